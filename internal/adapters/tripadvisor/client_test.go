package tripadvisor_test

import (
	"context"
	"testing"

	"github.com/Parsarf/aleev-ai-review-management/internal/adapters/tripadvisor"
	"github.com/Parsarf/aleev-ai-review-management/internal/domain"
)

func TestClient_NoProgrammaticAccess(t *testing.T) {
	cl := tripadvisor.New()
	a := domain.Account{LocationID: 1, Platform: domain.PlatformTripAdvisor, ExternalLocationID: "ta-1", Connected: true}

	drafts, err := cl.ReadReviews(context.Background(), a)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(drafts) != 0 {
		t.Fatalf("expected no drafts, got %d", len(drafts))
	}

	published, err := cl.PostReply(context.Background(), a, "ta-r-1", "text")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if published {
		t.Fatalf("expected not-published")
	}
}

func TestClient_IsConnected(t *testing.T) {
	cl := tripadvisor.New()
	if !cl.IsConnected(domain.Account{ExternalLocationID: "ta-1", Connected: true}) {
		t.Fatalf("expected connected")
	}
	if cl.IsConnected(domain.Account{ExternalLocationID: "", Connected: true}) {
		t.Fatalf("expected disconnected without listing id")
	}
}
