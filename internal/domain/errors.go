package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors; callers classify with errors.Is. Adapter errors wrap the
// two adapter sentinels so the platform-specific cause stays in the message
// while the kind stays matchable.
var (
	// ErrAdapterAuth: credentials absent, expired and unrefreshable, or
	// rejected by the platform. Surfaced, never retried by this core.
	ErrAdapterAuth = errors.New("adapter: authorization failed")

	// ErrAdapterUnavailable: transient platform-side failure. The caller may
	// retry the whole run later; the core itself does not.
	ErrAdapterUnavailable = errors.New("adapter: platform unavailable")

	ErrNotFound          = errors.New("not found")
	ErrReviewNotFound    = errors.New("review not found")
	ErrReplyNotFound     = errors.New("reply not found")
	ErrReplyExists       = errors.New("a reply already exists for this review")
	ErrNoTextToSend      = errors.New("no reply text to send")
	ErrInvalidTransition = errors.New("reply status does not allow this transition")
	ErrRateLimited       = errors.New("rate limit exceeded")
	ErrGenerationFailed  = errors.New("reply generation failed")
)

// RateLimitError wraps ErrRateLimited with the window bookkeeping the HTTP
// layer needs for Retry-After.
type RateLimitError struct {
	ResetAt   time.Time
	Remaining int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, resets at %s", e.ResetAt.UTC().Format(time.RFC3339))
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }
