package domain

import "time"

type ReviewStatus string

const (
	ReviewNeedsReply ReviewStatus = "NEEDS_REPLY"
	ReviewAutoSent   ReviewStatus = "AUTO_SENT"
	ReviewFlagged    ReviewStatus = "FLAGGED"
	ReviewResolved   ReviewStatus = "RESOLVED"
)

// Review is one customer review reconciled from an external platform.
// (Platform, PlatformID) is globally unique; re-ingesting the same pair
// refreshes mutable fields instead of inserting a duplicate.
type Review struct {
	ID                int64
	LocationID        int64
	Platform          Platform
	PlatformID        string
	Stars             int // 1..5
	Text              string
	AuthorName        *string
	AuthorAvatar      *string
	URL               *string
	Status            ReviewStatus
	PlatformCreatedAt time.Time // as reported by the platform
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ReviewDraft is what an adapter reads off a platform before reconciliation.
type ReviewDraft struct {
	PlatformID   string
	Stars        int
	Text         string
	AuthorName   *string
	AuthorAvatar *string
	URL          *string
	CreatedAt    time.Time
}

// ReviewWithReply joins a review with its reply, if any. Rollup input.
type ReviewWithReply struct {
	Review Review
	Reply  *Reply
}
