package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Parsarf/aleev-ai-review-management/internal/adapters/observability"
	"github.com/Parsarf/aleev-ai-review-management/internal/domain"
	"github.com/Parsarf/aleev-ai-review-management/internal/policy"
)

// ReplyServiceDeps wires the orchestrator. Limiter and Audit may be nil in
// tests; stores, adapters, and the generator are required.
type ReplyServiceDeps struct {
	Adapters   map[domain.Platform]domain.PlatformAdapter
	Businesses domain.BusinessStore
	Reviews    domain.ReviewStore
	Replies    domain.ReplyStore
	Creds      domain.CredentialStore
	Generator  domain.ReplyGenerator
	Limiter    domain.RateLimiter
	Audit      domain.AuditSink
	Policy     policy.Config
}

// ReplyService drives a reply through DRAFT, APPROVED, and the terminal SENT
// or FAILED. Every operation is scoped to the acting user's business.
type ReplyService struct {
	d ReplyServiceDeps
}

func NewReplyService(d ReplyServiceDeps) *ReplyService {
	return &ReplyService{d: d}
}

// Generate drafts a reply for a review. The review text goes through crisis
// detection, OR-ed with the caller's own crisis flag, and the generated draft
// through the policy filter; a hit flags the reply (and for a crisis, the
// review) but the draft is stored either way so a human can edit it.
func (s *ReplyService) Generate(ctx context.Context, actor domain.Actor, reviewID int64, tone string, crisisFlag bool) (domain.Reply, error) {
	if err := s.allow(ctx, actor); err != nil {
		return domain.Reply{}, err
	}

	review, err := s.d.Reviews.GetReview(ctx, reviewID, actor.BusinessID)
	if err != nil {
		return domain.Reply{}, err
	}
	biz, err := s.d.Businesses.GetBusiness(ctx, actor.BusinessID)
	if err != nil {
		return domain.Reply{}, err
	}
	if tone == "" {
		tone = "professional"
	}

	crisis := s.d.Policy.DetectCrisis(review.Text)
	isCrisis := crisis.IsCrisis || crisisFlag

	draft, err := s.d.Generator.Generate(ctx, domain.GenerationInput{
		BusinessName: biz.Name,
		BrandRules:   biz.BrandRules,
		Tone:         tone,
		Stars:        review.Stars,
		ReviewText:   review.Text,
	})
	if err != nil {
		return domain.Reply{}, fmt.Errorf("review %d: %w: %v", reviewID, domain.ErrGenerationFailed, err)
	}

	filtered := s.d.Policy.Filter(draft)
	violations := filtered.Violations
	for _, kw := range crisis.Matched {
		violations = append(violations, fmt.Sprintf("review contains crisis keyword %q", kw))
	}

	reply := domain.Reply{
		ReviewID:   review.ID,
		DraftText:  draft,
		Tone:       tone,
		Status:     domain.ReplyDraft,
		Flagged:    !filtered.Passed || isCrisis,
		IsCrisis:   isCrisis,
		Violations: violations,
	}
	reply, err = s.d.Replies.CreateReply(ctx, reply)
	if err != nil {
		return domain.Reply{}, err
	}

	if isCrisis {
		if serr := s.d.Reviews.SetReviewStatus(ctx, review.ID, domain.ReviewFlagged); serr != nil {
			log.Error().Err(serr).Int64("review_id", review.ID).Msg("flagging crisis review failed")
		}
		observability.ObserveReply("crisis")
	}
	observability.ObserveReply("generated")
	if reply.Flagged {
		observability.ObserveReply("flagged")
	}

	s.record("reply.generated", fmt.Sprintf("reply:%d", reply.ID), map[string]any{
		"user_id":   actor.UserID,
		"review_id": review.ID,
		"tone":      tone,
		"flagged":   reply.Flagged,
		"is_crisis": reply.IsCrisis,
	})
	log.Info().Int64("reply_id", reply.ID).Int64("review_id", review.ID).
		Bool("flagged", reply.Flagged).Bool("is_crisis", reply.IsCrisis).
		Msg("reply drafted")
	return reply, nil
}

// Approve locks in the final text. Only a DRAFT can be approved; the final
// text falls back to the draft when the caller supplies none.
func (s *ReplyService) Approve(ctx context.Context, actor domain.Actor, replyID int64, finalText string) (domain.Reply, error) {
	reply, _, err := s.d.Replies.GetReply(ctx, replyID, actor.BusinessID)
	if err != nil {
		return domain.Reply{}, err
	}
	if reply.Status != domain.ReplyDraft {
		return domain.Reply{}, fmt.Errorf("approve reply %d in status %s: %w", replyID, reply.Status, domain.ErrInvalidTransition)
	}

	text := finalText
	if text == "" {
		text = reply.DraftText
	}
	if err := s.d.Replies.SetApproved(ctx, replyID, text); err != nil {
		return domain.Reply{}, err
	}

	reply.Status = domain.ReplyApproved
	reply.FinalText = &text
	observability.ObserveReply("approved")
	s.record("reply.approved", fmt.Sprintf("reply:%d", replyID), map[string]any{
		"user_id": actor.UserID,
	})
	log.Info().Int64("reply_id", replyID).Str("user_id", actor.UserID).Msg("reply approved")
	return reply, nil
}

// Send publishes the reply through the review's platform adapter. An adapter
// refusal or failure is a normal FAILED outcome carried in the returned
// reply, not an error; the parent review is only promoted on success.
func (s *ReplyService) Send(ctx context.Context, actor domain.Actor, replyID int64, finalText string) (domain.Reply, error) {
	if err := s.allow(ctx, actor); err != nil {
		return domain.Reply{}, err
	}

	reply, review, err := s.d.Replies.GetReply(ctx, replyID, actor.BusinessID)
	if err != nil {
		return domain.Reply{}, err
	}
	if !reply.Status.Sendable() {
		return domain.Reply{}, fmt.Errorf("send reply %d in status %s: %w", replyID, reply.Status, domain.ErrInvalidTransition)
	}
	text := reply.SendText(finalText)
	if text == "" {
		return domain.Reply{}, domain.ErrNoTextToSend
	}

	published, cause := s.post(ctx, review, text)
	if !published {
		if err := s.d.Replies.MarkFailed(ctx, replyID, text); err != nil {
			return domain.Reply{}, err
		}
		reply.Status = domain.ReplyFailed
		reply.FinalText = &text
		observability.ObserveReply("send_failed")
		s.record("reply.send_failed", fmt.Sprintf("reply:%d", replyID), map[string]any{
			"user_id": actor.UserID,
			"reason":  cause,
		})
		log.Warn().Int64("reply_id", replyID).Str("platform", string(review.Platform)).
			Str("reason", cause).Msg("reply send failed")
		return reply, nil
	}

	sentAt := time.Now().UTC().Truncate(time.Second)
	if err := s.d.Replies.MarkSent(ctx, replyID, review.ID, text, actor.UserID, sentAt); err != nil {
		return domain.Reply{}, err
	}
	reply.Status = domain.ReplySent
	reply.FinalText = &text
	reply.SentBy = &actor.UserID
	reply.SentAt = &sentAt
	observability.ObserveReply("sent")
	s.record("reply.sent", fmt.Sprintf("reply:%d", replyID), map[string]any{
		"user_id":   actor.UserID,
		"review_id": review.ID,
		"platform":  string(review.Platform),
	})
	log.Info().Int64("reply_id", replyID).Int64("review_id", review.ID).
		Str("platform", string(review.Platform)).Msg("reply sent")
	return reply, nil
}

// post runs the adapter call chain for a send. Adapter trouble of any kind is
// collapsed into published=false with a reason; nothing here escapes as an
// error.
func (s *ReplyService) post(ctx context.Context, review domain.Review, text string) (bool, string) {
	ad, ok := s.d.Adapters[review.Platform]
	if !ok {
		return false, fmt.Sprintf("no adapter for platform %s", review.Platform)
	}

	account, err := s.d.Creds.GetAccount(ctx, review.LocationID, review.Platform)
	if err != nil {
		return false, fmt.Sprintf("load account: %v", err)
	}

	fresh, changed, err := ad.EnsureFresh(ctx, account)
	if err != nil {
		return false, fmt.Sprintf("refresh credentials: %v", err)
	}
	if changed {
		if perr := s.d.Creds.PutAccount(ctx, fresh); perr != nil {
			log.Warn().Err(perr).Int64("location_id", account.LocationID).
				Str("platform", string(account.Platform)).
				Msg("persisting refreshed credentials failed")
		}
	}

	published, err := ad.PostReply(ctx, fresh, review.PlatformID, text)
	if err != nil {
		return false, err.Error()
	}
	if !published {
		return false, "platform does not accept replies"
	}
	return true, ""
}

func (s *ReplyService) allow(ctx context.Context, actor domain.Actor) error {
	if s.d.Limiter == nil {
		return nil
	}
	id := fmt.Sprintf("user:%s|biz:%d", actor.UserID, actor.BusinessID)
	dec, err := s.d.Limiter.Check(ctx, id)
	if err != nil {
		// A broken limiter must not take replies down with it.
		log.Warn().Err(err).Msg("rate limiter unavailable, failing open")
		return nil
	}
	if !dec.Allowed {
		return &domain.RateLimitError{ResetAt: dec.ResetAt, Remaining: dec.Remaining}
	}
	return nil
}

func (s *ReplyService) record(action, resource string, details map[string]any) {
	if s.d.Audit == nil {
		return
	}
	s.d.Audit.Record(action, resource, details)
}
