package transport_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Parsarf/aleev-ai-review-management/internal/adapters/transport"
	"github.com/Parsarf/aleev-ai-review-management/internal/domain"
)

func TestClient_HonorsRetryAfter(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(429)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer ts.Close()

	cl := transport.New("test", 100)
	start := time.Now()
	var out map[string]any
	if err := cl.Get(context.Background(), "op", ts.URL, nil, &out); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if elapsed := time.Since(start); elapsed < time.Second {
		t.Fatalf("expected to wait for Retry-After, only waited %v", elapsed)
	}
	if atomic.LoadInt32(&hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", hits)
	}
}

func TestClient_ExhaustedRetriesAreUnavailable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(503)
	}))
	defer ts.Close()

	cl := transport.New("test", 100)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := cl.Get(ctx, "op", ts.URL, nil, nil)
	if !errors.Is(err, domain.ErrAdapterUnavailable) {
		t.Fatalf("expected ErrAdapterUnavailable, got %v", err)
	}
}

func TestClient_BadStatusIncludesBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(422)
		_, _ = w.Write([]byte(`{"error":"unprocessable thing"}`))
	}))
	defer ts.Close()

	cl := transport.New("test", 100)
	err := cl.Get(context.Background(), "op", ts.URL, nil, nil)
	if err == nil {
		t.Fatalf("expected error for 422")
	}
	if !strings.Contains(err.Error(), "unprocessable thing") {
		t.Fatalf("expected body snippet in error, got %v", err)
	}
	if errors.Is(err, domain.ErrAdapterUnavailable) || errors.Is(err, domain.ErrAdapterAuth) {
		t.Fatalf("422 must not map to a sentinel: %v", err)
	}
}

func TestClient_ContextCancelStopsRetries(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))
	defer ts.Close()

	cl := transport.New("test", 100)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := cl.Get(ctx, "op", ts.URL, nil, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}
