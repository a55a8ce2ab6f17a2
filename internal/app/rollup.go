package app

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Parsarf/aleev-ai-review-management/internal/adapters/observability"
	"github.com/Parsarf/aleev-ai-review-management/internal/domain"
)

// RollupService derives one MetricsSnapshot per business per UTC calendar
// day. Recomputing a day overwrites the existing snapshot.
type RollupService struct {
	businesses domain.BusinessStore
	metrics    domain.MetricsStore
	audit      domain.AuditSink
}

func NewRollupService(businesses domain.BusinessStore, metrics domain.MetricsStore, audit domain.AuditSink) *RollupService {
	return &RollupService{businesses: businesses, metrics: metrics, audit: audit}
}

// Run rolls up the given day for every business. A failing business costs one
// error in the report and its siblings still run.
func (s *RollupService) Run(ctx context.Context, day time.Time) domain.RollupReport {
	runID := uuid.NewString()
	day = day.UTC()
	date := day.Format("2006-01-02")
	log.Info().Str("run_id", runID).Str("date", date).Msg("rollup run starting")

	bizs, err := s.businesses.ListBusinesses(ctx)
	if err != nil {
		log.Error().Err(err).Str("run_id", runID).Msg("list businesses failed")
		return domain.RollupReport{RunID: runID, Success: false, Errors: 1}
	}

	report := domain.RollupReport{RunID: runID, Success: true, BusinessesProcessed: len(bizs)}
	for _, b := range bizs {
		items, err := s.metrics.ListDayForBusiness(ctx, b.ID, day)
		if err != nil {
			report.Errors++
			observability.ObserveRollup("failed")
			log.Warn().Err(err).Int64("business_id", b.ID).Str("date", date).Msg("day listing failed")
			continue
		}
		snap := computeSnapshot(b.ID, date, items, time.Now().UTC())
		if err := s.metrics.UpsertSnapshot(ctx, snap); err != nil {
			report.Errors++
			observability.ObserveRollup("failed")
			log.Warn().Err(err).Int64("business_id", b.ID).Str("date", date).Msg("snapshot upsert failed")
			continue
		}
		report.Snapshots++
		observability.ObserveRollup("written")
		log.Debug().Int64("business_id", b.ID).Str("date", date).
			Int("reviews", snap.TotalReviews).Float64("coverage", snap.Coverage).
			Msg("snapshot written")
	}

	if s.audit != nil {
		s.audit.Record("rollup.completed", "run:"+runID, map[string]any{
			"date":       date,
			"businesses": report.BusinessesProcessed,
			"snapshots":  report.Snapshots,
			"errors":     report.Errors,
		})
	}
	log.Info().Str("run_id", runID).Str("date", date).
		Int("snapshots", report.Snapshots).Int("errors", report.Errors).
		Msg("rollup run completed")
	return report
}

// computeSnapshot reduces one business-day of reviews. Response time runs
// from the platform-reported creation time (first-seen time when the
// platform reported none) to the reply's sent time, averaged over reviews
// with a SENT reply only.
func computeSnapshot(businessID int64, date string, items []domain.ReviewWithReply, computedAt time.Time) domain.MetricsSnapshot {
	snap := domain.MetricsSnapshot{
		BusinessID:   businessID,
		Date:         date,
		TotalReviews: len(items),
		ComputedAt:   computedAt,
	}
	if len(items) == 0 {
		return snap
	}

	var (
		starSum   int
		sent      int
		respHours float64
	)
	for _, it := range items {
		starSum += it.Review.Stars
		if it.Reply != nil && it.Reply.Status == domain.ReplySent && it.Reply.SentAt != nil {
			sent++
			created := it.Review.PlatformCreatedAt
			if created.IsZero() {
				created = it.Review.CreatedAt
			}
			respHours += it.Reply.SentAt.Sub(created).Hours()
		}
	}

	snap.AvgRating = float64(starSum) / float64(len(items))
	snap.Coverage = 100 * float64(sent) / float64(len(items))
	if sent > 0 {
		snap.AvgResponseHours = respHours / float64(sent)
	}
	return snap
}
