// Package facebook reads page recommendations from the Graph API and posts
// replies as comments on the underlying story. Page tokens are long-lived and
// carry no refresh grant, so an expired token can only be fixed by
// reconnecting the page.
package facebook

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Parsarf/aleev-ai-review-management/internal/adapters/transport"
	"github.com/Parsarf/aleev-ai-review-management/internal/domain"
)

const maxPages = 20

type Client struct {
	base string
	t    *transport.Client
}

func New(base string, rps int) *Client {
	return &Client{base: base, t: transport.New(string(domain.PlatformFacebook), rps)}
}

func (c *Client) Platform() domain.Platform { return domain.PlatformFacebook }

type creds struct {
	pageToken string
	pageID    string
}

func parseCreds(a domain.Account) (creds, error) {
	if a.AccessToken == "" || a.ExternalLocationID == "" {
		return creds{}, fmt.Errorf("facebook: incomplete credentials for location %d: %w", a.LocationID, domain.ErrAdapterAuth)
	}
	return creds{pageToken: a.AccessToken, pageID: a.ExternalLocationID}, nil
}

func (c *Client) IsConnected(a domain.Account) bool {
	if !a.Connected {
		return false
	}
	_, err := parseCreds(a)
	return err == nil
}

// EnsureFresh never refreshes: there is no refresh grant for page tokens.
// An expired token surfaces as an auth failure the operator must resolve.
func (c *Client) EnsureFresh(ctx context.Context, a domain.Account) (domain.Account, bool, error) {
	if !a.Expired(time.Now().UTC()) {
		return a, false, nil
	}
	return a, false, fmt.Errorf("facebook: page token expired for location %d, reconnect required: %w", a.LocationID, domain.ErrAdapterAuth)
}

type apiRating struct {
	CreatedTime        string `json:"created_time"`
	RecommendationType string `json:"recommendation_type"`
	ReviewText         string `json:"review_text"`
	Rating             int    `json:"rating"`
	Reviewer           struct {
		Name string `json:"name"`
		ID   string `json:"id"`
	} `json:"reviewer"`
	OpenGraphStory struct {
		ID string `json:"id"`
	} `json:"open_graph_story"`
}

type ratingsResponse struct {
	Data   []apiRating `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

func (c *Client) ReadReviews(ctx context.Context, a domain.Account) ([]domain.ReviewDraft, error) {
	cr, err := parseCreds(a)
	if err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/%s/ratings?fields=%s&limit=50&access_token=%s",
		c.base, url.PathEscape(cr.pageID),
		url.QueryEscape("created_time,recommendation_type,review_text,rating,reviewer,open_graph_story"),
		url.QueryEscape(cr.pageToken))

	var out []domain.ReviewDraft
	for page := 0; page < maxPages && u != ""; page++ {
		var resp ratingsResponse
		if err := c.t.Get(ctx, "list_ratings", u, nil, &resp); err != nil {
			return nil, err
		}
		for _, r := range resp.Data {
			d, err := mapRating(cr.pageID, r)
			if err != nil {
				log.Warn().Err(err).Str("page_id", cr.pageID).Msg("facebook: skipping unmappable rating")
				continue
			}
			out = append(out, d)
		}
		u = resp.Paging.Next
	}
	return out, nil
}

// PostReply comments on the rating's story as the page.
func (c *Client) PostReply(ctx context.Context, a domain.Account, platformReviewID, text string) (bool, error) {
	cr, err := parseCreds(a)
	if err != nil {
		return false, err
	}
	u := fmt.Sprintf("%s/%s/comments?access_token=%s",
		c.base, url.PathEscape(platformReviewID), url.QueryEscape(cr.pageToken))
	body := map[string]string{"message": text}
	if err := c.t.SendJSON(ctx, "post_comment", http.MethodPost, u, nil, body, nil); err != nil {
		return false, err
	}
	return true, nil
}

func mapRating(pageID string, r apiRating) (domain.ReviewDraft, error) {
	created, err := time.Parse("2006-01-02T15:04:05-0700", r.CreatedTime)
	if err != nil {
		if created, err = time.Parse(time.RFC3339, r.CreatedTime); err != nil {
			return domain.ReviewDraft{}, fmt.Errorf("bad created_time %q: %w", r.CreatedTime, err)
		}
	}

	// Ratings without an attached story get a synthetic stable id so
	// re-ingestion still reconciles instead of duplicating.
	id := r.OpenGraphStory.ID
	if id == "" {
		h := sha1.Sum([]byte(pageID + "|" + r.Reviewer.ID + "|" + r.CreatedTime))
		id = "fb-" + hex.EncodeToString(h[:])
	}

	d := domain.ReviewDraft{
		PlatformID: id,
		Stars:      stars(r),
		Text:       r.ReviewText,
		CreatedAt:  created.UTC(),
	}
	if r.Reviewer.Name != "" {
		name := r.Reviewer.Name
		d.AuthorName = &name
	}
	return d, nil
}

// stars prefers the legacy numeric rating; recommendations map to the poles.
func stars(r apiRating) int {
	if r.Rating >= 1 && r.Rating <= 5 {
		return r.Rating
	}
	switch r.RecommendationType {
	case "positive":
		return 5
	case "negative":
		return 1
	default:
		return 0
	}
}
