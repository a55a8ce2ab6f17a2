// Package yelp reads reviews through the Fusion API. Yelp exposes no reply
// endpoint, so posting reports not-published and the reply stays owned by the
// caller.
package yelp

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Parsarf/aleev-ai-review-management/internal/adapters/transport"
	"github.com/Parsarf/aleev-ai-review-management/internal/domain"
)

type Client struct {
	base   string
	apiKey string
	t      *transport.Client
}

func New(base, apiKey string, rps int) *Client {
	return &Client{base: base, apiKey: apiKey, t: transport.New(string(domain.PlatformYelp), rps)}
}

func (c *Client) Platform() domain.Platform { return domain.PlatformYelp }

type creds struct {
	businessID string
}

func parseCreds(a domain.Account) (creds, error) {
	if a.ExternalLocationID == "" {
		return creds{}, fmt.Errorf("yelp: missing business id for location %d: %w", a.LocationID, domain.ErrAdapterAuth)
	}
	return creds{businessID: a.ExternalLocationID}, nil
}

func (c *Client) IsConnected(a domain.Account) bool {
	if !a.Connected || c.apiKey == "" {
		return false
	}
	_, err := parseCreds(a)
	return err == nil
}

// EnsureFresh is a no-op for API-key auth; an explicit expiry on the record
// still disconnects the account since there is nothing to refresh with.
func (c *Client) EnsureFresh(ctx context.Context, a domain.Account) (domain.Account, bool, error) {
	if !a.Expired(time.Now().UTC()) {
		return a, false, nil
	}
	return a, false, fmt.Errorf("yelp: credentials expired for location %d: %w", a.LocationID, domain.ErrAdapterAuth)
}

type apiReview struct {
	ID          string  `json:"id"`
	URL         string  `json:"url"`
	Text        string  `json:"text"`
	Rating      float64 `json:"rating"`
	TimeCreated string  `json:"time_created"`
	User        struct {
		Name     string `json:"name"`
		ImageURL string `json:"image_url"`
	} `json:"user"`
}

type reviewsResponse struct {
	Reviews []apiReview `json:"reviews"`
	Total   int         `json:"total"`
}

func (c *Client) ReadReviews(ctx context.Context, a domain.Account) ([]domain.ReviewDraft, error) {
	cr, err := parseCreds(a)
	if err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/businesses/%s/reviews?limit=50&sort_by=newest", c.base, url.PathEscape(cr.businessID))
	header := http.Header{"Authorization": {"Bearer " + c.apiKey}}

	var resp reviewsResponse
	if err := c.t.Get(ctx, "list_reviews", u, header, &resp); err != nil {
		return nil, err
	}

	out := make([]domain.ReviewDraft, 0, len(resp.Reviews))
	for _, r := range resp.Reviews {
		d, err := mapReview(r)
		if err != nil {
			log.Warn().Err(err).Str("review_id", r.ID).Msg("yelp: skipping unmappable review")
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// PostReply always reports not-published: Yelp has no reply API.
func (c *Client) PostReply(ctx context.Context, a domain.Account, platformReviewID, text string) (bool, error) {
	return false, nil
}

func mapReview(r apiReview) (domain.ReviewDraft, error) {
	if r.ID == "" {
		return domain.ReviewDraft{}, fmt.Errorf("missing review id")
	}
	created, err := time.Parse("2006-01-02 15:04:05", r.TimeCreated)
	if err != nil {
		return domain.ReviewDraft{}, fmt.Errorf("bad time_created %q: %w", r.TimeCreated, err)
	}
	d := domain.ReviewDraft{
		PlatformID: r.ID,
		Stars:      int(r.Rating),
		Text:       r.Text,
		CreatedAt:  created.UTC(),
	}
	if r.User.Name != "" {
		name := r.User.Name
		d.AuthorName = &name
	}
	if r.User.ImageURL != "" {
		avatar := r.User.ImageURL
		d.AuthorAvatar = &avatar
	}
	if r.URL != "" {
		u := r.URL
		d.URL = &u
	}
	return d, nil
}
