// Package ratelimit bounds how often an identifier may trigger reply sends.
// Both backends count in fixed windows: the in-memory one serves single-node
// deployments, the Redis one shares the budget across replicas.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/Parsarf/aleev-ai-review-management/internal/domain"
)

const pruneThreshold = 4096

type windowCount struct {
	start time.Time
	n     int
}

type Memory struct {
	limit  int
	window time.Duration

	mu   sync.Mutex
	hits map[string]*windowCount
	now  func() time.Time
}

func NewMemory(limit int, window time.Duration) *Memory {
	if limit <= 0 {
		limit = 30
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Memory{
		limit:  limit,
		window: window,
		hits:   map[string]*windowCount{},
		now:    time.Now,
	}
}

func (m *Memory) Check(ctx context.Context, identifier string) (domain.RateDecision, error) {
	now := m.now().UTC()
	start := now.Truncate(m.window)

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.hits) >= pruneThreshold {
		for k, w := range m.hits {
			if w.start.Before(start) {
				delete(m.hits, k)
			}
		}
	}

	w := m.hits[identifier]
	if w == nil || !w.start.Equal(start) {
		w = &windowCount{start: start}
		m.hits[identifier] = w
	}
	w.n++

	remaining := m.limit - w.n
	if remaining < 0 {
		remaining = 0
	}
	return domain.RateDecision{
		Allowed:   w.n <= m.limit,
		Remaining: remaining,
		ResetAt:   start.Add(m.window),
	}, nil
}
