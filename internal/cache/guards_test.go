package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterAllow(t *testing.T) {
	limiter := NewRateLimiter(NewMemoryStore(), 3, time.Hour)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, "0xwallet")
		require.NoError(t, err)
		assert.True(t, allowed, "attempt %d should pass", i+1)
	}

	allowed, err := limiter.Allow(ctx, "0xwallet")
	require.NoError(t, err)
	assert.False(t, allowed)

	// other wallets are unaffected
	allowed, err = limiter.Allow(ctx, "0xother")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestSpamGuardCooldown(t *testing.T) {
	guard := NewSpamGuard(NewMemoryStore(), 50*time.Millisecond)
	ctx := context.Background()

	allowed, err := guard.Allow(ctx, "0xwallet")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = guard.Allow(ctx, "0xwallet")
	require.NoError(t, err)
	assert.False(t, allowed)

	time.Sleep(75 * time.Millisecond)
	allowed, err = guard.Allow(ctx, "0xwallet")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestSpamGuardReset(t *testing.T) {
	guard := NewSpamGuard(NewMemoryStore(), time.Hour)
	ctx := context.Background()

	_, err := guard.Allow(ctx, "0xwallet")
	require.NoError(t, err)
	require.NoError(t, guard.Reset(ctx, "0xwallet"))

	allowed, err := guard.Allow(ctx, "0xwallet")
	require.NoError(t, err)
	assert.True(t, allowed)
}
