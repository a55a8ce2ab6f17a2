package app_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Parsarf/aleev-ai-review-management/internal/app"
	"github.com/Parsarf/aleev-ai-review-management/internal/domain"
	"github.com/Parsarf/aleev-ai-review-management/internal/policy"
)

var actor = domain.Actor{UserID: "u-1", BusinessID: 1}

func reviewFixture(id int64) domain.Review {
	return domain.Review{
		ID:         id,
		LocationID: 10,
		Platform:   domain.PlatformGoogle,
		PlatformID: "g-1",
		Stars:      2,
		Text:       "Coffee was cold",
		Status:     domain.ReviewNeedsReply,
	}
}

func generateDeps(gen *fakeGenerator, reviews *fakeReviews, replies *fakeReplies) app.ReplyServiceDeps {
	return app.ReplyServiceDeps{
		Adapters:   map[domain.Platform]domain.PlatformAdapter{},
		Businesses: &fakeBusinesses{list: []domain.Business{{ID: 1, Name: "Blue Fern Cafe", BrandRules: "warm"}}},
		Reviews:    reviews,
		Replies:    replies,
		Creds:      &fakeCreds{},
		Generator:  gen,
		Policy:     policy.Config{},
	}
}

func TestReplyService_Generate_CreatesCleanDraft(t *testing.T) {
	gen := &fakeGenerator{text: "Thank you for the feedback, we'll do better."}
	reviews := &fakeReviews{byID: map[int64]domain.Review{42: reviewFixture(42)}, ownerBiz: 1}
	replies := &fakeReplies{ownerBiz: 1}
	aud := &fakeAudit{}
	deps := generateDeps(gen, reviews, replies)
	deps.Audit = aud
	svc := app.NewReplyService(deps)

	got, err := svc.Generate(context.Background(), actor, 42, "friendly", false)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got.Status != domain.ReplyDraft || got.Flagged || got.IsCrisis {
		t.Fatalf("unexpected reply: %+v", got)
	}
	if got.DraftText != gen.text || got.Tone != "friendly" {
		t.Fatalf("unexpected draft: %+v", got)
	}
	if gen.lastIn.BusinessName != "Blue Fern Cafe" || gen.lastIn.BrandRules != "warm" ||
		gen.lastIn.Stars != 2 || gen.lastIn.ReviewText != "Coffee was cold" {
		t.Fatalf("generator input incomplete: %+v", gen.lastIn)
	}
	if !aud.has("reply.generated") {
		t.Fatalf("expected reply.generated audit event")
	}
}

func TestReplyService_Generate_FlagsPolicyViolations(t *testing.T) {
	gen := &fakeGenerator{text: "We guarantee 100% satisfaction, contact me at owner@cafe.com"}
	reviews := &fakeReviews{byID: map[int64]domain.Review{42: reviewFixture(42)}, ownerBiz: 1}
	replies := &fakeReplies{ownerBiz: 1}
	svc := app.NewReplyService(generateDeps(gen, reviews, replies))

	got, err := svc.Generate(context.Background(), actor, 42, "", false)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !got.Flagged || got.IsCrisis {
		t.Fatalf("expected flagged non-crisis reply: %+v", got)
	}
	if got.Status != domain.ReplyDraft {
		t.Fatalf("flagged drafts are still stored as DRAFT, got %s", got.Status)
	}
	if len(got.Violations) < 2 {
		t.Fatalf("expected PII and banned-phrase violations, got %v", got.Violations)
	}
	// A policy hit alone does not flag the parent review.
	if _, ok := reviews.statuses[42]; ok {
		t.Fatalf("review status must be untouched for non-crisis drafts")
	}
}

func TestReplyService_Generate_CrisisFlagsReview(t *testing.T) {
	rv := reviewFixture(42)
	rv.Text = "I'm taking legal action over the food poisoning"
	gen := &fakeGenerator{text: "We take this very seriously."}
	reviews := &fakeReviews{byID: map[int64]domain.Review{42: rv}, ownerBiz: 1}
	replies := &fakeReplies{ownerBiz: 1}
	svc := app.NewReplyService(generateDeps(gen, reviews, replies))

	got, err := svc.Generate(context.Background(), actor, 42, "", false)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !got.IsCrisis || !got.Flagged {
		t.Fatalf("expected crisis reply: %+v", got)
	}
	found := false
	for _, v := range got.Violations {
		if strings.Contains(v, "legal action") {
			found = true
		}
	}
	if !found {
		t.Fatalf("violations should name the crisis keyword: %v", got.Violations)
	}
	if reviews.statuses[42] != domain.ReviewFlagged {
		t.Fatalf("crisis must flag the review, got %v", reviews.statuses[42])
	}
	if gen.calls != 1 {
		t.Fatalf("the draft is still generated for crisis reviews")
	}
}

func TestReplyService_Generate_CallerCrisisFlag(t *testing.T) {
	gen := &fakeGenerator{text: "Thank you, we hear you."}
	reviews := &fakeReviews{byID: map[int64]domain.Review{42: reviewFixture(42)}, ownerBiz: 1}
	replies := &fakeReplies{ownerBiz: 1}
	svc := app.NewReplyService(generateDeps(gen, reviews, replies))

	got, err := svc.Generate(context.Background(), actor, 42, "", true)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !got.IsCrisis || !got.Flagged {
		t.Fatalf("caller flag must mark the reply as crisis: %+v", got)
	}
	if len(got.Violations) != 0 {
		t.Fatalf("no keyword matched, violations must stay empty: %v", got.Violations)
	}
	if reviews.statuses[42] != domain.ReviewFlagged {
		t.Fatalf("caller-flagged crisis must flag the review, got %v", reviews.statuses[42])
	}
}

func TestReplyService_Generate_ReplyExists(t *testing.T) {
	gen := &fakeGenerator{text: "hello"}
	reviews := &fakeReviews{byID: map[int64]domain.Review{42: reviewFixture(42)}, ownerBiz: 1}
	replies := &fakeReplies{ownerBiz: 1, createErr: domain.ErrReplyExists}
	svc := app.NewReplyService(generateDeps(gen, reviews, replies))

	_, err := svc.Generate(context.Background(), actor, 42, "", false)
	if !errors.Is(err, domain.ErrReplyExists) {
		t.Fatalf("expected ErrReplyExists, got %v", err)
	}
}

func TestReplyService_Generate_ScopedToBusiness(t *testing.T) {
	gen := &fakeGenerator{text: "hello"}
	reviews := &fakeReviews{byID: map[int64]domain.Review{42: reviewFixture(42)}, ownerBiz: 2}
	replies := &fakeReplies{ownerBiz: 2}
	svc := app.NewReplyService(generateDeps(gen, reviews, replies))

	_, err := svc.Generate(context.Background(), actor, 42, "", false)
	if !errors.Is(err, domain.ErrReviewNotFound) {
		t.Fatalf("expected ErrReviewNotFound for foreign business, got %v", err)
	}
	if gen.calls != 0 {
		t.Fatalf("generator must not run for out-of-scope reviews")
	}
}

func TestReplyService_Generate_RateLimited(t *testing.T) {
	gen := &fakeGenerator{text: "hello"}
	reviews := &fakeReviews{byID: map[int64]domain.Review{42: reviewFixture(42)}, ownerBiz: 1}
	replies := &fakeReplies{ownerBiz: 1}
	deps := generateDeps(gen, reviews, replies)
	reset := time.Now().UTC().Add(30 * time.Second)
	deps.Limiter = &fakeLimiter{dec: domain.RateDecision{Allowed: false, ResetAt: reset}}
	svc := app.NewReplyService(deps)

	_, err := svc.Generate(context.Background(), actor, 42, "", false)
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	var rle *domain.RateLimitError
	if !errors.As(err, &rle) || !rle.ResetAt.Equal(reset) {
		t.Fatalf("expected RateLimitError carrying the reset time, got %v", err)
	}
	if gen.calls != 0 {
		t.Fatalf("generator must not run when rate limited")
	}
}

func TestReplyService_Generate_LimiterFailsOpen(t *testing.T) {
	gen := &fakeGenerator{text: "hello"}
	reviews := &fakeReviews{byID: map[int64]domain.Review{42: reviewFixture(42)}, ownerBiz: 1}
	replies := &fakeReplies{ownerBiz: 1}
	deps := generateDeps(gen, reviews, replies)
	deps.Limiter = &fakeLimiter{err: errors.New("redis down")}
	svc := app.NewReplyService(deps)

	if _, err := svc.Generate(context.Background(), actor, 42, "", false); err != nil {
		t.Fatalf("limiter backend failure must fail open, got %v", err)
	}
}

func TestReplyService_Generate_GeneratorFailure(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("model overloaded")}
	reviews := &fakeReviews{byID: map[int64]domain.Review{42: reviewFixture(42)}, ownerBiz: 1}
	replies := &fakeReplies{ownerBiz: 1}
	svc := app.NewReplyService(generateDeps(gen, reviews, replies))

	_, err := svc.Generate(context.Background(), actor, 42, "", false)
	if !errors.Is(err, domain.ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
	if len(replies.created) != 0 {
		t.Fatalf("no reply row may exist after failed generation")
	}
}

func sendFixture(status domain.ReplyStatus) (*fakeReplies, domain.Review) {
	rv := reviewFixture(42)
	rp := domain.Reply{ID: 7, ReviewID: 42, DraftText: "Sorry about that.", Tone: "professional", Status: status}
	return &fakeReplies{
		ownerBiz:  1,
		byID:      map[int64]domain.Reply{7: rp},
		reviewFor: map[int64]domain.Review{7: rv},
	}, rv
}

func sendDeps(replies *fakeReplies, ad *fakeAdapter) app.ReplyServiceDeps {
	creds := &fakeCreds{accounts: map[string]domain.Account{
		credKey(10, domain.PlatformGoogle): {
			LocationID: 10, Platform: domain.PlatformGoogle, AccessToken: "tok",
			ExternalAccountID: "ext", ExternalLocationID: "loc", Connected: true,
		},
	}}
	return app.ReplyServiceDeps{
		Adapters:   map[domain.Platform]domain.PlatformAdapter{domain.PlatformGoogle: ad},
		Businesses: &fakeBusinesses{list: []domain.Business{{ID: 1, Name: "Blue Fern Cafe"}}},
		Reviews:    &fakeReviews{},
		Replies:    replies,
		Creds:      creds,
		Generator:  &fakeGenerator{},
		Policy:     policy.Config{},
	}
}

func TestReplyService_Approve_FromDraft(t *testing.T) {
	replies, _ := sendFixture(domain.ReplyDraft)
	svc := app.NewReplyService(sendDeps(replies, &fakeAdapter{platform: domain.PlatformGoogle}))

	got, err := svc.Approve(context.Background(), actor, 7, "")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got.Status != domain.ReplyApproved {
		t.Fatalf("expected APPROVED, got %s", got.Status)
	}
	if replies.approved[7] != "Sorry about that." {
		t.Fatalf("empty final text must fall back to the draft, got %q", replies.approved[7])
	}
}

func TestReplyService_Approve_RejectsNonDraft(t *testing.T) {
	replies, _ := sendFixture(domain.ReplyApproved)
	svc := app.NewReplyService(sendDeps(replies, &fakeAdapter{platform: domain.PlatformGoogle}))

	_, err := svc.Approve(context.Background(), actor, 7, "x")
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestReplyService_Send_Success(t *testing.T) {
	replies, rv := sendFixture(domain.ReplyApproved)
	rp := replies.byID[7]
	rp.FinalText = ptr("Thanks for your patience.")
	replies.byID[7] = rp

	ad := &fakeAdapter{platform: domain.PlatformGoogle, postOK: true}
	deps := sendDeps(replies, ad)
	aud := &fakeAudit{}
	deps.Audit = aud
	svc := app.NewReplyService(deps)

	got, err := svc.Send(context.Background(), actor, 7, "")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got.Status != domain.ReplySent || got.SentBy == nil || *got.SentBy != "u-1" {
		t.Fatalf("unexpected reply: %+v", got)
	}
	if len(replies.sent) != 1 || replies.sent[0].reviewID != rv.ID || replies.sent[0].finalText != "Thanks for your patience." {
		t.Fatalf("unexpected MarkSent call: %+v", replies.sent)
	}
	if len(ad.posted) != 1 || ad.posted[0].platformID != "g-1" {
		t.Fatalf("unexpected adapter call: %+v", ad.posted)
	}
	if !aud.has("reply.sent") {
		t.Fatalf("expected reply.sent audit event")
	}
}

func TestReplyService_Send_ExplicitTextWins(t *testing.T) {
	replies, _ := sendFixture(domain.ReplyApproved)
	rp := replies.byID[7]
	rp.FinalText = ptr("approved text")
	replies.byID[7] = rp

	ad := &fakeAdapter{platform: domain.PlatformGoogle, postOK: true}
	svc := app.NewReplyService(sendDeps(replies, ad))

	if _, err := svc.Send(context.Background(), actor, 7, "explicit text"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if ad.posted[0].text != "explicit text" {
		t.Fatalf("explicit text must win, got %q", ad.posted[0].text)
	}
}

func TestReplyService_Send_AdapterRefusalIsFailedOutcome(t *testing.T) {
	replies, _ := sendFixture(domain.ReplyDraft)
	ad := &fakeAdapter{platform: domain.PlatformGoogle, postOK: false}
	svc := app.NewReplyService(sendDeps(replies, ad))

	got, err := svc.Send(context.Background(), actor, 7, "")
	if err != nil {
		t.Fatalf("refusal is an outcome, not an error: %v", err)
	}
	if got.Status != domain.ReplyFailed {
		t.Fatalf("expected FAILED, got %s", got.Status)
	}
	if replies.failed[7] != "Sorry about that." {
		t.Fatalf("failed send must record the attempted text")
	}
	if len(replies.sent) != 0 {
		t.Fatalf("MarkSent must not run on refusal")
	}
}

func TestReplyService_Send_AdapterErrorIsFailedOutcome(t *testing.T) {
	replies, _ := sendFixture(domain.ReplyApproved)
	rp := replies.byID[7]
	rp.FinalText = ptr("x")
	replies.byID[7] = rp
	ad := &fakeAdapter{platform: domain.PlatformGoogle, postErr: domain.ErrAdapterUnavailable}
	svc := app.NewReplyService(sendDeps(replies, ad))

	got, err := svc.Send(context.Background(), actor, 7, "")
	if err != nil {
		t.Fatalf("adapter error is caught at this boundary: %v", err)
	}
	if got.Status != domain.ReplyFailed {
		t.Fatalf("expected FAILED, got %s", got.Status)
	}
}

func TestReplyService_Send_MissingAccountIsFailedOutcome(t *testing.T) {
	replies, _ := sendFixture(domain.ReplyDraft)
	ad := &fakeAdapter{platform: domain.PlatformGoogle, postOK: true}
	deps := sendDeps(replies, ad)
	deps.Creds = &fakeCreds{}
	svc := app.NewReplyService(deps)

	got, err := svc.Send(context.Background(), actor, 7, "")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got.Status != domain.ReplyFailed {
		t.Fatalf("expected FAILED without an account, got %s", got.Status)
	}
	if len(ad.posted) != 0 {
		t.Fatalf("adapter must not be called without an account")
	}
}

func TestReplyService_Send_TerminalRejected(t *testing.T) {
	for _, status := range []domain.ReplyStatus{domain.ReplySent, domain.ReplyFailed} {
		replies, _ := sendFixture(status)
		svc := app.NewReplyService(sendDeps(replies, &fakeAdapter{platform: domain.PlatformGoogle, postOK: true}))

		_, err := svc.Send(context.Background(), actor, 7, "")
		if !errors.Is(err, domain.ErrInvalidTransition) {
			t.Fatalf("send from %s must be rejected, got %v", status, err)
		}
	}
}

func TestReplyService_Send_NoText(t *testing.T) {
	replies, _ := sendFixture(domain.ReplyDraft)
	rp := replies.byID[7]
	rp.DraftText = ""
	replies.byID[7] = rp
	svc := app.NewReplyService(sendDeps(replies, &fakeAdapter{platform: domain.PlatformGoogle, postOK: true}))

	_, err := svc.Send(context.Background(), actor, 7, "")
	if !errors.Is(err, domain.ErrNoTextToSend) {
		t.Fatalf("expected ErrNoTextToSend, got %v", err)
	}
}

func TestReplyService_Send_RateLimited(t *testing.T) {
	replies, _ := sendFixture(domain.ReplyApproved)
	ad := &fakeAdapter{platform: domain.PlatformGoogle, postOK: true}
	deps := sendDeps(replies, ad)
	deps.Limiter = &fakeLimiter{dec: domain.RateDecision{Allowed: false, ResetAt: time.Now().UTC().Add(time.Minute)}}
	svc := app.NewReplyService(deps)

	_, err := svc.Send(context.Background(), actor, 7, "")
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if len(ad.posted) != 0 {
		t.Fatalf("adapter must not run when rate limited")
	}
}
