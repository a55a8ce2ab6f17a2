package main

import (
	"context"
	"database/sql"
	"os"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"github.com/Parsarf/aleev-ai-review-management/internal/adapters/audit"
	"github.com/Parsarf/aleev-ai-review-management/internal/adapters/facebook"
	"github.com/Parsarf/aleev-ai-review-management/internal/adapters/google"
	"github.com/Parsarf/aleev-ai-review-management/internal/adapters/observability"
	"github.com/Parsarf/aleev-ai-review-management/internal/adapters/tripadvisor"
	"github.com/Parsarf/aleev-ai-review-management/internal/adapters/yelp"
	"github.com/Parsarf/aleev-ai-review-management/internal/app"
	"github.com/Parsarf/aleev-ai-review-management/internal/domain"
	"github.com/Parsarf/aleev-ai-review-management/internal/shared"
	mysqlrepo "github.com/Parsarf/aleev-ai-review-management/internal/storage/mysql"
)

// One reconciliation pass over every connected account, meant to be run from
// cron. Exit code 1 tells the scheduler the run itself failed; per-account
// trouble is only counted.
func main() {
	if !run() {
		os.Exit(1)
	}
}

func run() bool {
	ctx := context.Background()
	cfg := shared.Load()

	log.Logger = observability.NewLogger(cfg.AppEnv)
	flush := observability.InitSentry(cfg.SentryDSN, cfg.AppEnv)
	defer flush()
	observability.Serve()

	log.Info().Int("workers", cfg.Workers).Msg("reconciler starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Error().Err(err).Msg("sql.Open failed")
		return false
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Error().Err(err).Msg("db.Ping failed")
		return false
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)
	sink := audit.NewSink(repo, cfg.AuditBuffer)
	defer sink.Close()

	adapters := map[domain.Platform]domain.PlatformAdapter{
		domain.PlatformGoogle:      google.New(cfg.GoogleBase, cfg.GoogleTokenURL, cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.AdapterRPS),
		domain.PlatformFacebook:    facebook.New(cfg.FacebookBase, cfg.AdapterRPS),
		domain.PlatformYelp:        yelp.New(cfg.YelpBase, cfg.YelpAPIKey, cfg.AdapterRPS),
		domain.PlatformTripAdvisor: tripadvisor.New(),
	}

	ing := app.NewIngestService(adapters, repo, repo, sink, cfg.Workers)
	report := ing.Run(ctx)

	log.Info().
		Str("run_id", report.RunID).
		Int("locations", report.LocationsProcessed).
		Int("ingested", report.Ingested).
		Int("errors", report.Errors).
		Msg("reconciliation completed")
	return report.Success
}
