// Package tripadvisor is the placeholder adapter for a platform with no
// programmatic review access. Connected listings participate uniformly in
// ingestion and sending, they just never yield reviews or publish replies.
package tripadvisor

import (
	"context"
	"fmt"
	"time"

	"github.com/Parsarf/aleev-ai-review-management/internal/domain"
)

type Client struct{}

func New() *Client { return &Client{} }

func (c *Client) Platform() domain.Platform { return domain.PlatformTripAdvisor }

func (c *Client) IsConnected(a domain.Account) bool {
	return a.Connected && a.ExternalLocationID != ""
}

func (c *Client) EnsureFresh(ctx context.Context, a domain.Account) (domain.Account, bool, error) {
	if !a.Expired(time.Now().UTC()) {
		return a, false, nil
	}
	return a, false, fmt.Errorf("tripadvisor: credentials expired for location %d: %w", a.LocationID, domain.ErrAdapterAuth)
}

func (c *Client) ReadReviews(ctx context.Context, a domain.Account) ([]domain.ReviewDraft, error) {
	return nil, nil
}

func (c *Client) PostReply(ctx context.Context, a domain.Account, platformReviewID, text string) (bool, error) {
	return false, nil
}
