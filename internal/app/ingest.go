package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/Parsarf/aleev-ai-review-management/internal/adapters/observability"
	"github.com/Parsarf/aleev-ai-review-management/internal/domain"
)

// IngestService pulls reviews from every connected platform account and
// reconciles them into the review store. Accounts fan out across a bounded
// worker pool; a failing account costs one error in the report, never the run.
type IngestService struct {
	adapters map[domain.Platform]domain.PlatformAdapter
	creds    domain.CredentialStore
	reviews  domain.ReviewStore
	audit    domain.AuditSink
	workers  int
}

func NewIngestService(adapters map[domain.Platform]domain.PlatformAdapter, creds domain.CredentialStore, reviews domain.ReviewStore, audit domain.AuditSink, workers int) *IngestService {
	if workers <= 0 {
		workers = 8
	}
	return &IngestService{adapters: adapters, creds: creds, reviews: reviews, audit: audit, workers: workers}
}

// Run reconciles all connected accounts once and reports what happened. Only
// a failure to list the accounts fails the run itself; everything downstream
// is counted and carried on.
func (s *IngestService) Run(ctx context.Context) domain.IngestReport {
	runID := uuid.NewString()
	log.Info().Str("run_id", runID).Int("workers", s.workers).Msg("ingest run starting")

	conns, err := s.creds.ListConnected(ctx)
	if err != nil {
		log.Error().Err(err).Str("run_id", runID).Msg("list connected accounts failed")
		return domain.IngestReport{RunID: runID, Success: false, Errors: 1}
	}

	locations := map[int64]struct{}{}
	for _, ca := range conns {
		locations[ca.Account.LocationID] = struct{}{}
	}

	var (
		ingested atomic.Int64
		errCount atomic.Int64
		wg       sync.WaitGroup
	)
	sem := semaphore.NewWeighted(int64(s.workers))

	for _, ca := range conns {
		ca := ca

		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			errCount.Add(1)
			log.Warn().Err(err).Str("run_id", runID).Msg("ingest run interrupted")
			break
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			n, itemErrs, err := s.ingestAccount(ctx, ca)
			ingested.Add(int64(n))
			errCount.Add(int64(itemErrs))
			if err != nil {
				errCount.Add(1)
				observability.ObserveIngestError(string(ca.Account.Platform))
				log.Warn().Err(err).
					Int64("location_id", ca.Account.LocationID).
					Str("platform", string(ca.Account.Platform)).
					Msg("account ingest failed")
				return
			}
			log.Info().
				Int64("location_id", ca.Account.LocationID).
				Str("platform", string(ca.Account.Platform)).
				Int("new_reviews", n).
				Msg("account ingest ok")
		}()
	}
	wg.Wait()

	report := domain.IngestReport{
		RunID:              runID,
		Success:            true,
		LocationsProcessed: len(locations),
		Ingested:           int(ingested.Load()),
		Errors:             int(errCount.Load()),
	}
	if s.audit != nil {
		s.audit.Record("ingest.completed", "run:"+runID, map[string]any{
			"locations": report.LocationsProcessed,
			"ingested":  report.Ingested,
			"errors":    report.Errors,
		})
	}
	log.Info().
		Str("run_id", runID).
		Int("locations", report.LocationsProcessed).
		Int("ingested", report.Ingested).
		Int("errors", report.Errors).
		Msg("ingest run completed")
	return report
}

// ingestAccount syncs one (location, platform) account. A refreshed token is
// written back before reading so the next run skips the refresh. Item-level
// upsert failures are counted and skipped, not fatal for the account.
func (s *IngestService) ingestAccount(ctx context.Context, ca domain.ConnectedAccount) (ingested, itemErrs int, err error) {
	a := ca.Account
	ad, ok := s.adapters[a.Platform]
	if !ok {
		return 0, 0, fmt.Errorf("no adapter for platform %s", a.Platform)
	}
	if !ad.IsConnected(a) {
		log.Debug().Int64("location_id", a.LocationID).Str("platform", string(a.Platform)).Msg("account not usable, skipping")
		return 0, 0, nil
	}

	fresh, changed, err := ad.EnsureFresh(ctx, a)
	if err != nil {
		return 0, 0, err
	}
	if changed {
		if perr := s.creds.PutAccount(ctx, fresh); perr != nil {
			log.Warn().Err(perr).Int64("location_id", a.LocationID).Str("platform", string(a.Platform)).
				Msg("persisting refreshed credentials failed")
		}
	}

	drafts, err := ad.ReadReviews(ctx, fresh)
	if err != nil {
		return 0, 0, err
	}

	for _, d := range drafts {
		if d.PlatformID == "" {
			itemErrs++
			log.Warn().Str("platform", string(a.Platform)).Msg("draft without platform id, skipped")
			continue
		}
		created, uerr := s.reviews.UpsertDraft(ctx, a.LocationID, a.Platform, d)
		if uerr != nil {
			itemErrs++
			log.Warn().Err(uerr).Str("platform", string(a.Platform)).Str("platform_id", d.PlatformID).
				Msg("review upsert failed")
			continue
		}
		observability.ObserveIngest(string(a.Platform), created)
		if created {
			ingested++
		}
	}
	return ingested, itemErrs, nil
}
