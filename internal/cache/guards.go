package cache

import (
	"context"
	"strconv"
	"time"
)

const (
	rateLimitKeyPrefix = "swap:ratelimit:"
	spamGuardKeyPrefix = "swap:spam:"
)

// RateLimiter is a fixed-window per-wallet execution counter backed by the
// shared store's atomic increment-with-expiry.
type RateLimiter struct {
	store  Store
	limit  int64
	window time.Duration
}

// NewRateLimiter creates a limiter allowing limit hits per window
func NewRateLimiter(store Store, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{store: store, limit: limit, window: window}
}

// Allow counts one hit for wallet and reports whether it is within the
// limit. A store error is returned to the caller, which fails open.
func (r *RateLimiter) Allow(ctx context.Context, wallet string) (bool, error) {
	count, err := r.store.IncrementWithExpiry(ctx, rateLimitKeyPrefix+wallet, r.window)
	if err != nil {
		return false, err
	}
	return count <= r.limit, nil
}

// SpamGuard enforces a minimum elapsed time between accepted executions per
// wallet, via an atomic set-if-absent mark with the cooldown as TTL.
type SpamGuard struct {
	store    Store
	cooldown time.Duration
}

// NewSpamGuard creates a guard with the given cooldown
func NewSpamGuard(store Store, cooldown time.Duration) *SpamGuard {
	return &SpamGuard{store: store, cooldown: cooldown}
}

// Allow marks the wallet and reports whether the cooldown had elapsed.
// The mark is only placed when allowed, so a rejected attempt does not
// extend the cooldown. A store error is returned to the caller, which
// fails open.
func (s *SpamGuard) Allow(ctx context.Context, wallet string) (bool, error) {
	now := strconv.FormatInt(time.Now().Unix(), 10)
	return s.store.SetNX(ctx, spamGuardKeyPrefix+wallet, []byte(now), s.cooldown)
}

// Reset clears the wallet's mark (used by tests)
func (s *SpamGuard) Reset(ctx context.Context, wallet string) error {
	return s.store.Delete(ctx, spamGuardKeyPrefix+wallet)
}
