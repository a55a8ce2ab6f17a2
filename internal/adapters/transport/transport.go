// Package transport carries the outbound HTTP mechanics shared by every
// platform client: client-side rate limiting, retries on 429/transient 5xx
// honoring Retry-After, JSON decoding, and classification of auth statuses
// into the adapter error taxonomy.
package transport

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Parsarf/aleev-ai-review-management/internal/adapters/observability"
	"github.com/Parsarf/aleev-ai-review-management/internal/domain"
)

const maxAttempts = 4

type Client struct {
	platform string
	hc       *http.Client
	rl       *rate.Limiter
}

func New(platform string, rps int) *Client {
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		platform: platform,
		hc:       &http.Client{Timeout: 20 * time.Second},
		rl:       rate.NewLimiter(rate.Limit(rps), rps),
	}
}

// Get fetches u and decodes the JSON body into out (nil out discards it).
func (c *Client) Get(ctx context.Context, op, u string, header http.Header, out any) error {
	return c.do(ctx, op, http.MethodGet, u, header, "", nil, out)
}

// SendJSON marshals body once and sends it with the given method.
func (c *Client) SendJSON(ctx context.Context, op, method, u string, header http.Header, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s %s: encode request: %w", c.platform, op, err)
	}
	return c.do(ctx, op, method, u, header, "application/json", b, out)
}

// PostForm sends a form-encoded POST (OAuth token endpoints).
func (c *Client) PostForm(ctx context.Context, op, u string, form url.Values, out any) error {
	return c.do(ctx, op, http.MethodPost, u, nil, "application/x-www-form-urlencoded", []byte(form.Encode()), out)
}

// do retries on 429 and transient 5xx, building a fresh request per attempt.
func (c *Client) do(ctx context.Context, op, method, u string, header http.Header, contentType string, body []byte, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(body))
		if err != nil {
			return err
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "aleev-review-management/1.0")

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObservePlatform(c.platform, op, 0, time.Since(start))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if i < maxAttempts-1 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%s %s: %v: %w", c.platform, op, lastErr, domain.ErrAdapterUnavailable)
		}
		observability.ObservePlatform(c.platform, op, resp.StatusCode, time.Since(start))

		switch resp.StatusCode {
		case http.StatusOK, http.StatusCreated, http.StatusAccepted:
			if out == nil {
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				return nil
			}
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("%s %s: decode response: %w", c.platform, op, err)
			}
			return nil

		case http.StatusNoContent:
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil

		case http.StatusNotFound:
			resp.Body.Close()
			return fmt.Errorf("%s %s: %w", c.platform, op, domain.ErrNotFound)

		case http.StatusUnauthorized, http.StatusForbidden:
			resp.Body.Close()
			return fmt.Errorf("%s %s: status %d: %w", c.platform, op, resp.StatusCode, domain.ErrAdapterAuth)

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("remote %d", resp.StatusCode)
			if i < maxAttempts-1 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%s %s: %v: %w", c.platform, op, lastErr, domain.ErrAdapterUnavailable)

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fmt.Errorf("%s %s: bad status %d: %s", c.platform, op, resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}

	return lastErr
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After (seconds or HTTP-date). 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff doubles each attempt (200ms, 400ms, 800ms...) with up to +50%
// crypto/rand jitter to avoid thundering herds.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	j := time.Duration(0.5 * f * float64(base))
	return base + j
}
