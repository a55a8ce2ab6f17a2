package main

import (
	"database/sql"
	"net/http"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"github.com/Parsarf/aleev-ai-review-management/internal/adapters/ai"
	"github.com/Parsarf/aleev-ai-review-management/internal/adapters/audit"
	"github.com/Parsarf/aleev-ai-review-management/internal/adapters/facebook"
	"github.com/Parsarf/aleev-ai-review-management/internal/adapters/google"
	server "github.com/Parsarf/aleev-ai-review-management/internal/adapters/http_server"
	"github.com/Parsarf/aleev-ai-review-management/internal/adapters/observability"
	"github.com/Parsarf/aleev-ai-review-management/internal/adapters/ratelimit"
	"github.com/Parsarf/aleev-ai-review-management/internal/adapters/tripadvisor"
	"github.com/Parsarf/aleev-ai-review-management/internal/adapters/yelp"
	"github.com/Parsarf/aleev-ai-review-management/internal/app"
	"github.com/Parsarf/aleev-ai-review-management/internal/domain"
	"github.com/Parsarf/aleev-ai-review-management/internal/policy"
	"github.com/Parsarf/aleev-ai-review-management/internal/shared"
	mysqlrepo "github.com/Parsarf/aleev-ai-review-management/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)
	flush := observability.InitSentry(cfg.SentryDSN, cfg.AppEnv)
	defer flush()

	observability.Serve()

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	// deps
	repo := mysqlrepo.New(db)
	adapters := buildAdapters(cfg)
	limiter, closeLimiter := buildLimiter(cfg)
	defer closeLimiter()

	sink := audit.NewSink(repo, cfg.AuditBuffer)
	defer sink.Close()

	var generator domain.ReplyGenerator
	if cfg.AIBaseURL != "" {
		generator = ai.New(cfg.AIBaseURL, cfg.AIKey, cfg.AIModel)
	} else {
		generator = ai.NewStatic()
	}

	pol := policy.Config{
		CrisisKeywords: cfg.CrisisKeywords,
		BannedPhrases:  cfg.BannedPhrases,
		MaxReplyLen:    cfg.MaxReplyLen,
	}

	replies := app.NewReplyService(app.ReplyServiceDeps{
		Adapters:   adapters,
		Businesses: repo,
		Reviews:    repo,
		Replies:    repo,
		Creds:      repo,
		Generator:  generator,
		Limiter:    limiter,
		Audit:      sink,
		Policy:     pol,
	})
	ingest := app.NewIngestService(adapters, repo, repo, sink, cfg.Workers)
	rollup := app.NewRollupService(repo, repo, sink)

	// http
	srv := server.New(cfg.RequestExpiry)
	srv.Use(observability.SentryHandler(cfg.SentryDSN))
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Replies: replies, Ingest: ingest, Rollup: rollup})

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}

func buildAdapters(cfg shared.Config) map[domain.Platform]domain.PlatformAdapter {
	return map[domain.Platform]domain.PlatformAdapter{
		domain.PlatformGoogle:      google.New(cfg.GoogleBase, cfg.GoogleTokenURL, cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.AdapterRPS),
		domain.PlatformFacebook:    facebook.New(cfg.FacebookBase, cfg.AdapterRPS),
		domain.PlatformYelp:        yelp.New(cfg.YelpBase, cfg.YelpAPIKey, cfg.AdapterRPS),
		domain.PlatformTripAdvisor: tripadvisor.New(),
	}
}

func buildLimiter(cfg shared.Config) (domain.RateLimiter, func()) {
	if cfg.RateBackend == "redis" {
		r := ratelimit.NewRedis(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, cfg.RateLimit, cfg.RateWindow)
		return r, func() { _ = r.Close() }
	}
	return ratelimit.NewMemory(cfg.RateLimit, cfg.RateWindow), func() {}
}
