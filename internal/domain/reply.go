package domain

import "time"

type ReplyStatus string

const (
	ReplyDraft    ReplyStatus = "DRAFT"
	ReplyApproved ReplyStatus = "APPROVED"
	ReplySent     ReplyStatus = "SENT"
	ReplyFailed   ReplyStatus = "FAILED"
)

// Sendable reports whether a reply in this status may still be sent.
// SENT and FAILED are terminal.
func (s ReplyStatus) Sendable() bool {
	return s == ReplyDraft || s == ReplyApproved
}

func (s ReplyStatus) Terminal() bool {
	return s == ReplySent || s == ReplyFailed
}

// Reply is the at-most-one response drafted for a review. Created only by the
// orchestrator's generate step; the unique key on ReviewID is what enforces
// the one-reply invariant, not application-level locking.
type Reply struct {
	ID         int64
	ReviewID   int64
	DraftText  string
	FinalText  *string
	Tone       string
	Status     ReplyStatus
	Flagged    bool
	IsCrisis   bool
	Violations []string
	SentBy     *string
	SentAt     *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SendText resolves the text a send should use: explicit override first, then
// the previously approved final text, then the draft. Empty means nothing to
// send.
func (r Reply) SendText(override string) string {
	if override != "" {
		return override
	}
	if r.FinalText != nil && *r.FinalText != "" {
		return *r.FinalText
	}
	return r.DraftText
}
