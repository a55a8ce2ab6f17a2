package domain

import (
	"context"
	"time"
)

// PlatformAdapter is the per-platform capability contract: read reviews, post
// a reply, report connectivity. One implementation per supported platform.
type PlatformAdapter interface {
	Platform() Platform

	// IsConnected is a pure predicate over required credential fields. No I/O.
	IsConnected(a Account) bool

	// EnsureFresh refreshes the access token when it is expired and a refresh
	// token exists; expired and unrefreshable is ErrAdapterAuth. The bool
	// reports that the returned account changed and must be written back to
	// the credential store by the caller within the same operation.
	EnsureFresh(ctx context.Context, a Account) (Account, bool, error)

	// ReadReviews returns the platform's reviews for the account's external
	// location. Platforms without a read capability return an empty slice and
	// nil error so ingestion stays uniform.
	ReadReviews(ctx context.Context, a Account) ([]ReviewDraft, error)

	// PostReply publishes text under a platform review. false with nil error
	// means the platform forbids replies; callers branch on it, they do not
	// fail.
	PostReply(ctx context.Context, a Account, platformReviewID, text string) (bool, error)
}

// CredentialStore reads and writes per-(location, platform) accounts.
type CredentialStore interface {
	GetAccount(ctx context.Context, locationID int64, p Platform) (Account, error)
	PutAccount(ctx context.Context, a Account) error
	// ListConnected returns every connected account across all locations,
	// paired with the owning business.
	ListConnected(ctx context.Context) ([]ConnectedAccount, error)
}

type BusinessStore interface {
	GetBusiness(ctx context.Context, id int64) (Business, error)
	ListBusinesses(ctx context.Context) ([]Business, error)
}

// ReviewStore owns review rows. UpsertDraft is the idempotent reconciliation
// write: the (platform, platform_id) unique key, not the caller, arbitrates
// concurrent ingestion of the same review.
type ReviewStore interface {
	// UpsertDraft inserts a new review as NEEDS_REPLY or refreshes the mutable
	// fields of an existing one, leaving status untouched. Returns true when a
	// new row was created.
	UpsertDraft(ctx context.Context, locationID int64, p Platform, d ReviewDraft) (bool, error)
	// GetReview loads a review scoped to the owning business; out-of-scope ids
	// are ErrReviewNotFound.
	GetReview(ctx context.Context, reviewID, businessID int64) (Review, error)
	SetReviewStatus(ctx context.Context, reviewID int64, s ReviewStatus) error
}

// ReplyStore owns reply rows and their coupled review-status writes.
type ReplyStore interface {
	// CreateReply persists a new DRAFT reply. A second insert for the same
	// review is rejected by the unique key and surfaced as ErrReplyExists.
	CreateReply(ctx context.Context, r Reply) (Reply, error)
	// GetReply loads a reply plus its review, scoped to the owning business.
	GetReply(ctx context.Context, replyID, businessID int64) (Reply, Review, error)
	SetApproved(ctx context.Context, replyID int64, finalText string) error
	// MarkSent flips the reply to SENT and its review to AUTO_SENT in one
	// transaction, so a subsequent read observes both or neither.
	MarkSent(ctx context.Context, replyID, reviewID int64, finalText, sentBy string, sentAt time.Time) error
	MarkFailed(ctx context.Context, replyID int64, finalText string) error
}

// MetricsStore feeds and persists the daily rollup.
type MetricsStore interface {
	ListDayForBusiness(ctx context.Context, businessID int64, day time.Time) ([]ReviewWithReply, error)
	UpsertSnapshot(ctx context.Context, s MetricsSnapshot) error
}

// GenerationInput is the contract of the external AI generation step.
type GenerationInput struct {
	BusinessName string
	BrandRules   string
	Tone         string
	Stars        int
	ReviewText   string
}

// ReplyGenerator produces a candidate reply. One blocking call, no retries
// inside this core.
type ReplyGenerator interface {
	Generate(ctx context.Context, in GenerationInput) (string, error)
}

type RateDecision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RateLimiter is consulted before human-triggered adapter and AI calls.
// Scheduled batch runs bypass it.
type RateLimiter interface {
	Check(ctx context.Context, identifier string) (RateDecision, error)
}

// AuditSink is a best-effort, fire-and-forget side channel. Implementations
// must never block the caller and must swallow their own failures.
type AuditSink interface {
	Record(action, resource string, details map[string]any)
}
