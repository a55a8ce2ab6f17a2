package app_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Parsarf/aleev-ai-review-management/internal/domain"
)

// ---- fakes ----

type fakeAdapter struct {
	mu        sync.Mutex
	platform  domain.Platform
	offline   bool
	freshErr  error
	refreshed *domain.Account // returned with changed=true when set
	drafts    []domain.ReviewDraft
	readErr   error
	postOK    bool
	postErr   error
	posted    []postedReply
}

type postedReply struct {
	platformID string
	text       string
}

func (f *fakeAdapter) Platform() domain.Platform         { return f.platform }
func (f *fakeAdapter) IsConnected(a domain.Account) bool { return !f.offline }

func (f *fakeAdapter) EnsureFresh(ctx context.Context, a domain.Account) (domain.Account, bool, error) {
	if f.freshErr != nil {
		return a, false, f.freshErr
	}
	if f.refreshed != nil {
		return *f.refreshed, true, nil
	}
	return a, false, nil
}

func (f *fakeAdapter) ReadReviews(ctx context.Context, a domain.Account) ([]domain.ReviewDraft, error) {
	return f.drafts, f.readErr
}

func (f *fakeAdapter) PostReply(ctx context.Context, a domain.Account, platformReviewID, text string) (bool, error) {
	f.mu.Lock()
	f.posted = append(f.posted, postedReply{platformID: platformReviewID, text: text})
	f.mu.Unlock()
	return f.postOK, f.postErr
}

type fakeCreds struct {
	mu       sync.Mutex
	conns    []domain.ConnectedAccount
	listErr  error
	accounts map[string]domain.Account
	getErr   error
	puts     []domain.Account
}

func credKey(locationID int64, p domain.Platform) string {
	return fmt.Sprintf("%d:%s", locationID, p)
}

func (f *fakeCreds) GetAccount(ctx context.Context, locationID int64, p domain.Platform) (domain.Account, error) {
	if f.getErr != nil {
		return domain.Account{}, f.getErr
	}
	a, ok := f.accounts[credKey(locationID, p)]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	return a, nil
}

func (f *fakeCreds) PutAccount(ctx context.Context, a domain.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.accounts == nil {
		f.accounts = map[string]domain.Account{}
	}
	f.accounts[credKey(a.LocationID, a.Platform)] = a
	f.puts = append(f.puts, a)
	return nil
}

func (f *fakeCreds) ListConnected(ctx context.Context) ([]domain.ConnectedAccount, error) {
	return f.conns, f.listErr
}

type fakeReviews struct {
	mu        sync.Mutex
	byID      map[int64]domain.Review
	ownerBiz  int64
	seen      map[string]bool
	upserts   []domain.ReviewDraft
	upsertErr error
	statuses  map[int64]domain.ReviewStatus
}

func (f *fakeReviews) UpsertDraft(ctx context.Context, locationID int64, p domain.Platform, d domain.ReviewDraft) (bool, error) {
	if f.upsertErr != nil {
		return false, f.upsertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	key := string(p) + "|" + d.PlatformID
	created := !f.seen[key]
	f.seen[key] = true
	f.upserts = append(f.upserts, d)
	return created, nil
}

func (f *fakeReviews) GetReview(ctx context.Context, reviewID, businessID int64) (domain.Review, error) {
	rv, ok := f.byID[reviewID]
	if !ok || businessID != f.ownerBiz {
		return domain.Review{}, domain.ErrReviewNotFound
	}
	return rv, nil
}

func (f *fakeReviews) SetReviewStatus(ctx context.Context, reviewID int64, s domain.ReviewStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statuses == nil {
		f.statuses = map[int64]domain.ReviewStatus{}
	}
	f.statuses[reviewID] = s
	return nil
}

type sentCall struct {
	replyID, reviewID int64
	finalText, sentBy string
	sentAt            time.Time
}

type fakeReplies struct {
	mu        sync.Mutex
	byID      map[int64]domain.Reply
	reviewFor map[int64]domain.Review
	ownerBiz  int64
	nextID    int64
	createErr error
	created   []domain.Reply
	approved  map[int64]string
	sent      []sentCall
	failed    map[int64]string
}

func (f *fakeReplies) CreateReply(ctx context.Context, r domain.Reply) (domain.Reply, error) {
	if f.createErr != nil {
		return domain.Reply{}, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	r.ID = f.nextID
	r.CreatedAt = time.Now().UTC()
	r.UpdatedAt = r.CreatedAt
	f.created = append(f.created, r)
	return r, nil
}

func (f *fakeReplies) GetReply(ctx context.Context, replyID, businessID int64) (domain.Reply, domain.Review, error) {
	rp, ok := f.byID[replyID]
	if !ok || businessID != f.ownerBiz {
		return domain.Reply{}, domain.Review{}, domain.ErrReplyNotFound
	}
	return rp, f.reviewFor[replyID], nil
}

func (f *fakeReplies) SetApproved(ctx context.Context, replyID int64, finalText string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.approved == nil {
		f.approved = map[int64]string{}
	}
	f.approved[replyID] = finalText
	return nil
}

func (f *fakeReplies) MarkSent(ctx context.Context, replyID, reviewID int64, finalText, sentBy string, sentAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentCall{replyID: replyID, reviewID: reviewID, finalText: finalText, sentBy: sentBy, sentAt: sentAt})
	return nil
}

func (f *fakeReplies) MarkFailed(ctx context.Context, replyID int64, finalText string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failed == nil {
		f.failed = map[int64]string{}
	}
	f.failed[replyID] = finalText
	return nil
}

type fakeBusinesses struct {
	list []domain.Business
	err  error
}

func (f *fakeBusinesses) GetBusiness(ctx context.Context, id int64) (domain.Business, error) {
	if f.err != nil {
		return domain.Business{}, f.err
	}
	for _, b := range f.list {
		if b.ID == id {
			return b, nil
		}
	}
	return domain.Business{}, domain.ErrNotFound
}

func (f *fakeBusinesses) ListBusinesses(ctx context.Context) ([]domain.Business, error) {
	return f.list, f.err
}

type fakeMetrics struct {
	mu        sync.Mutex
	days      map[int64][]domain.ReviewWithReply
	listErr   map[int64]error
	snaps     []domain.MetricsSnapshot
	upsertErr error
}

func (f *fakeMetrics) ListDayForBusiness(ctx context.Context, businessID int64, day time.Time) ([]domain.ReviewWithReply, error) {
	if err := f.listErr[businessID]; err != nil {
		return nil, err
	}
	return f.days[businessID], nil
}

func (f *fakeMetrics) UpsertSnapshot(ctx context.Context, s domain.MetricsSnapshot) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snaps = append(f.snaps, s)
	return nil
}

type fakeGenerator struct {
	text   string
	err    error
	calls  int
	lastIn domain.GenerationInput
}

func (f *fakeGenerator) Generate(ctx context.Context, in domain.GenerationInput) (string, error) {
	f.calls++
	f.lastIn = in
	return f.text, f.err
}

type fakeLimiter struct {
	dec    domain.RateDecision
	err    error
	checks []string
}

func (f *fakeLimiter) Check(ctx context.Context, identifier string) (domain.RateDecision, error) {
	f.checks = append(f.checks, identifier)
	return f.dec, f.err
}

type auditEvent struct {
	action   string
	resource string
	details  map[string]any
}

type fakeAudit struct {
	mu     sync.Mutex
	events []auditEvent
}

func (f *fakeAudit) Record(action, resource string, details map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, auditEvent{action: action, resource: resource, details: details})
}

func (f *fakeAudit) has(action string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events {
		if e.action == action {
			return true
		}
	}
	return false
}

func ptr[T any](v T) *T { return &v }
