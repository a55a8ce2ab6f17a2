// Package google talks to the Google Business Profile reviews API. It is the
// only platform with an OAuth refresh flow: expired access tokens are renewed
// against the token endpoint and the refreshed account is handed back to the
// caller for persistence.
package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Parsarf/aleev-ai-review-management/internal/adapters/transport"
	"github.com/Parsarf/aleev-ai-review-management/internal/domain"
)

const (
	pageSize = 50
	maxPages = 20
)

type Client struct {
	base         string
	tokenURL     string
	clientID     string
	clientSecret string
	t            *transport.Client
}

func New(base, tokenURL, clientID, clientSecret string, rps int) *Client {
	return &Client{
		base:         base,
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		t:            transport.New(string(domain.PlatformGoogle), rps),
	}
}

func (c *Client) Platform() domain.Platform { return domain.PlatformGoogle }

// creds is the shape a stored account must parse into before any call.
type creds struct {
	accessToken string
	accountID   string
	locationID  string
}

func parseCreds(a domain.Account) (creds, error) {
	if a.AccessToken == "" || a.ExternalAccountID == "" || a.ExternalLocationID == "" {
		return creds{}, fmt.Errorf("google: incomplete credentials for location %d: %w", a.LocationID, domain.ErrAdapterAuth)
	}
	return creds{accessToken: a.AccessToken, accountID: a.ExternalAccountID, locationID: a.ExternalLocationID}, nil
}

func (c *Client) IsConnected(a domain.Account) bool {
	if !a.Connected {
		return false
	}
	_, err := parseCreds(a)
	return err == nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// EnsureFresh refreshes the access token when it has expired. The second
// return reports whether the account changed and must be persisted.
func (c *Client) EnsureFresh(ctx context.Context, a domain.Account) (domain.Account, bool, error) {
	if !a.Expired(time.Now().UTC()) {
		return a, false, nil
	}
	if a.RefreshToken == "" {
		return a, false, fmt.Errorf("google: token expired for location %d and no refresh token: %w", a.LocationID, domain.ErrAdapterAuth)
	}

	form := url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"refresh_token": {a.RefreshToken},
		"grant_type":    {"refresh_token"},
	}
	var tok tokenResponse
	if err := c.t.PostForm(ctx, "token", c.tokenURL, form, &tok); err != nil {
		if errors.Is(err, domain.ErrAdapterUnavailable) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return a, false, err
		}
		// The token endpoint answers invalid_grant with 400; any rejection
		// here means the grant is dead and the account needs reconnecting.
		return a, false, fmt.Errorf("google: refresh rejected for location %d (%v): %w", a.LocationID, err, domain.ErrAdapterAuth)
	}
	if tok.AccessToken == "" {
		return a, false, fmt.Errorf("google: refresh returned empty token for location %d: %w", a.LocationID, domain.ErrAdapterAuth)
	}

	exp := time.Now().UTC().Add(time.Duration(tok.ExpiresIn) * time.Second)
	a.AccessToken = tok.AccessToken
	a.ExpiresAt = &exp
	log.Debug().Int64("location_id", a.LocationID).Time("expires_at", exp).Msg("google token refreshed")
	return a, true, nil
}

type apiReview struct {
	ReviewID string `json:"reviewId"`
	Reviewer struct {
		DisplayName     string `json:"displayName"`
		ProfilePhotoURL string `json:"profilePhotoUrl"`
	} `json:"reviewer"`
	StarRating string `json:"starRating"`
	Comment    string `json:"comment"`
	CreateTime string `json:"createTime"`
	Name       string `json:"name"`
}

type listResponse struct {
	Reviews       []apiReview `json:"reviews"`
	NextPageToken string      `json:"nextPageToken"`
	TotalCount    int         `json:"totalReviewCount"`
}

// ReadReviews pages through all reviews for the account's location.
func (c *Client) ReadReviews(ctx context.Context, a domain.Account) ([]domain.ReviewDraft, error) {
	cr, err := parseCreds(a)
	if err != nil {
		return nil, err
	}

	var out []domain.ReviewDraft
	pageToken := ""
	for page := 0; page < maxPages; page++ {
		u := fmt.Sprintf("%s/accounts/%s/locations/%s/reviews?pageSize=%d",
			c.base, url.PathEscape(cr.accountID), url.PathEscape(cr.locationID), pageSize)
		if pageToken != "" {
			u += "&pageToken=" + url.QueryEscape(pageToken)
		}
		var resp listResponse
		if err := c.t.Get(ctx, "list_reviews", u, bearer(cr.accessToken), &resp); err != nil {
			return nil, err
		}
		for _, r := range resp.Reviews {
			d, err := mapReview(r)
			if err != nil {
				log.Warn().Err(err).Str("review_id", r.ReviewID).Msg("google: skipping unmappable review")
				continue
			}
			out = append(out, d)
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}
	return out, nil
}

// PostReply publishes text as the owner reply on a review. Google always
// supports posting, so success means published.
func (c *Client) PostReply(ctx context.Context, a domain.Account, platformReviewID, text string) (bool, error) {
	cr, err := parseCreds(a)
	if err != nil {
		return false, err
	}
	u := fmt.Sprintf("%s/accounts/%s/locations/%s/reviews/%s/reply",
		c.base, url.PathEscape(cr.accountID), url.PathEscape(cr.locationID), url.PathEscape(platformReviewID))
	body := map[string]string{"comment": text}
	if err := c.t.SendJSON(ctx, "post_reply", http.MethodPut, u, bearer(cr.accessToken), body, nil); err != nil {
		return false, err
	}
	return true, nil
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": {"Bearer " + token}}
}

func mapReview(r apiReview) (domain.ReviewDraft, error) {
	if r.ReviewID == "" {
		return domain.ReviewDraft{}, errors.New("missing reviewId")
	}
	created, err := time.Parse(time.RFC3339, r.CreateTime)
	if err != nil {
		return domain.ReviewDraft{}, fmt.Errorf("bad createTime %q: %w", r.CreateTime, err)
	}
	d := domain.ReviewDraft{
		PlatformID: r.ReviewID,
		Stars:      starsFromEnum(r.StarRating),
		Text:       r.Comment,
		CreatedAt:  created.UTC(),
	}
	if r.Reviewer.DisplayName != "" {
		name := r.Reviewer.DisplayName
		d.AuthorName = &name
	}
	if r.Reviewer.ProfilePhotoURL != "" {
		avatar := r.Reviewer.ProfilePhotoURL
		d.AuthorAvatar = &avatar
	}
	if r.Name != "" {
		u := "https://business.google.com/reviews/" + r.Name
		d.URL = &u
	}
	return d, nil
}

func starsFromEnum(s string) int {
	switch s {
	case "ONE":
		return 1
	case "TWO":
		return 2
	case "THREE":
		return 3
	case "FOUR":
		return 4
	case "FIVE":
		return 5
	default:
		return 0
	}
}
