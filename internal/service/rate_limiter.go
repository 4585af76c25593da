package service

import (
	"context"
	"fmt"
	"time"

	"github.com/aichukanov/docta-auth/pkg/database"
	"github.com/redis/go-redis/v9"
)

// RateDecision is the outcome of a rate limit check.
type RateDecision struct {
	Allowed   bool
	Remaining int
	// RetryAfter is how long the caller must wait before the next request can
	// succeed. Zero when the request was allowed.
	RetryAfter time.Duration
}

// RateLimiter throttles credential endpoints using a sliding window log in
// Redis. Keys are scoped by client IP, so a brute-force run against many
// accounts from one address still hits the same window.
type RateLimiter struct {
	redis *database.Redis
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(redis *database.Redis) *RateLimiter {
	return &RateLimiter{redis: redis}
}

// Allow records the request against the window and reports whether it fits.
// A denied request is not recorded, so waiting out the window always works.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (RateDecision, error) {
	now := time.Now()
	windowStart := now.Add(-window)
	redisKey := fmt.Sprintf("ratelimit:%s", key)

	// Drop entries that have slid out of the window
	err := r.redis.Client.ZRemRangeByScore(ctx, redisKey, "0", fmt.Sprintf("%d", windowStart.Unix())).Err()
	if err != nil {
		return RateDecision{}, fmt.Errorf("failed to clean old entries: %w", err)
	}

	count, err := r.redis.Client.ZCard(ctx, redisKey).Result()
	if err != nil {
		return RateDecision{}, fmt.Errorf("failed to count entries: %w", err)
	}

	if count >= int64(limit) {
		decision := RateDecision{RetryAfter: window}

		// The oldest entry leaving the window is when a slot frees up
		oldest, err := r.redis.Client.ZRangeWithScores(ctx, redisKey, 0, 0).Result()
		if err == nil && len(oldest) > 0 {
			oldestTime := time.Unix(int64(oldest[0].Score), 0)
			if remaining := window - time.Since(oldestTime); remaining > 0 {
				decision.RetryAfter = remaining
			}
		}
		return decision, nil
	}

	member := fmt.Sprintf("%d-%d", now.UnixNano(), now.Unix())
	err = r.redis.Client.ZAdd(ctx, redisKey, redis.Z{
		Score:  float64(now.Unix()),
		Member: member,
	}).Err()
	if err != nil {
		return RateDecision{}, fmt.Errorf("failed to add entry: %w", err)
	}

	// Expiration keeps idle keys from accumulating; the window math above is
	// what actually enforces the limit
	if err := r.redis.Client.Expire(ctx, redisKey, window+time.Minute).Err(); err != nil {
		_ = err
	}

	remaining := limit - int(count) - 1
	if remaining < 0 {
		remaining = 0
	}

	return RateDecision{Allowed: true, Remaining: remaining}, nil
}
