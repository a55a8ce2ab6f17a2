package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Parsarf/aleev-ai-review-management/internal/domain"
)

type Redis struct {
	c      *redis.Client
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewRedis(addr, pass string, db, limit int, window time.Duration) *Redis {
	if limit <= 0 {
		limit = 30
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Redis{
		c:      redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db}),
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Check counts the hit in the identifier's current window. Backend errors are
// returned as-is so the caller can decide to fail open.
func (r *Redis) Check(ctx context.Context, identifier string) (domain.RateDecision, error) {
	now := r.now().UTC()
	winSec := int64(r.window / time.Second)
	bucket := now.Unix() / winSec
	key := fmt.Sprintf("ratelimit:%s:%d", identifier, bucket)

	pipe := r.c.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, r.window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.RateDecision{}, fmt.Errorf("ratelimit: redis: %w", err)
	}

	n := int(incr.Val())
	remaining := r.limit - n
	if remaining < 0 {
		remaining = 0
	}
	return domain.RateDecision{
		Allowed:   n <= r.limit,
		Remaining: remaining,
		ResetAt:   time.Unix((bucket+1)*winSec, 0).UTC(),
	}, nil
}

func (r *Redis) Close() error { return r.c.Close() }
