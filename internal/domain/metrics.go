package domain

import "time"

// MetricsSnapshot is the derived daily rollup for one business. Keyed by
// (BusinessID, Date); recomputing a day overwrites, never duplicates.
type MetricsSnapshot struct {
	BusinessID       int64   `json:"business_id"`
	Date             string  `json:"date"` // YYYY-MM-DD, UTC calendar day
	TotalReviews     int     `json:"total_reviews"`
	AvgRating        float64 `json:"avg_rating"`
	Coverage         float64 `json:"coverage"` // % of reviews with a SENT reply
	AvgResponseHours float64 `json:"avg_response_hours"`
	ComputedAt       time.Time
}

// IngestReport is the completion record an ingestion run hands back to the
// scheduler. Partial failure shows up in Errors, never as a thrown error.
type IngestReport struct {
	RunID              string `json:"run_id"`
	Success            bool   `json:"success"`
	LocationsProcessed int    `json:"locations_processed"`
	Ingested           int    `json:"ingested"`
	Errors             int    `json:"errors"`
}

// RollupReport is the completion record of a metrics rollup run.
type RollupReport struct {
	RunID               string `json:"run_id"`
	Success             bool   `json:"success"`
	BusinessesProcessed int    `json:"businesses_processed"`
	Snapshots           int    `json:"snapshots"`
	Errors              int    `json:"errors"`
}
