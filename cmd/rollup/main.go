package main

import (
	"context"
	"database/sql"
	"os"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"github.com/Parsarf/aleev-ai-review-management/internal/adapters/audit"
	"github.com/Parsarf/aleev-ai-review-management/internal/adapters/observability"
	"github.com/Parsarf/aleev-ai-review-management/internal/app"
	"github.com/Parsarf/aleev-ai-review-management/internal/shared"
	mysqlrepo "github.com/Parsarf/aleev-ai-review-management/internal/storage/mysql"
)

// Nightly metrics rollup. ROLLUP_DATE (YYYY-MM-DD) selects the UTC day to
// recompute; unset means today, which the schedule relies on by firing just
// before midnight UTC.
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

	day := time.Now().UTC()
	if ds := os.Getenv("ROLLUP_DATE"); ds != "" {
		d, err := time.Parse("2006-01-02", ds)
		if err != nil {
			log.Error().Str("date", ds).Msg("ROLLUP_DATE must be YYYY-MM-DD")
			return false
		}
		day = d
	}

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

	repo := mysqlrepo.New(db)
	sink := audit.NewSink(repo, cfg.AuditBuffer)
	defer sink.Close()

	report := app.NewRollupService(repo, repo, sink).Run(ctx, day)

	log.Info().
		Str("run_id", report.RunID).
		Str("date", day.Format("2006-01-02")).
		Int("businesses", report.BusinessesProcessed).
		Int("snapshots", report.Snapshots).
		Int("errors", report.Errors).
		Msg("rollup completed")
	return report.Success
}
