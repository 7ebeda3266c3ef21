package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"swap-backend/internal/models"
)

const payloadKeyPrefix = "swap:payload:"

// CachedPayload is the exact multisig payload the caller was given to sign,
// plus the metadata execution needs. The cached bytes are authoritative:
// rebuilding a quote can shift calldata (new deadline, re-routed path) and
// silently invalidate the signature the user already produced.
type CachedPayload struct {
	Payload       models.SafePayload `json:"payload"`
	Hash          string             `json:"hash"`
	BackendID     string             `json:"backendId"`
	NeedsApproval bool               `json:"needsApproval"`
	CreatedAt     time.Time          `json:"createdAt"`
}

// PayloadCache stores signed-for payloads keyed by the client-supplied
// execution id. Entries expire after a short window; an expired entry means
// the caller must re-run the build step.
type PayloadCache struct {
	store Store
	ttl   time.Duration
}

// NewPayloadCache creates a payload cache with the given TTL
func NewPayloadCache(store Store, ttl time.Duration) *PayloadCache {
	return &PayloadCache{store: store, ttl: ttl}
}

// Put stores the payload under the execution id
func (c *PayloadCache) Put(ctx context.Context, executionID string, cached *CachedPayload) error {
	data, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to encode cached payload: %w", err)
	}
	return c.store.Set(ctx, payloadKeyPrefix+executionID, data, c.ttl)
}

// Get returns the cached payload, or absent
func (c *PayloadCache) Get(ctx context.Context, executionID string) (*CachedPayload, bool, error) {
	data, ok, err := c.store.Get(ctx, payloadKeyPrefix+executionID)
	if err != nil || !ok {
		return nil, false, err
	}
	var cached CachedPayload
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached payload: %w", err)
	}
	return &cached, true, nil
}

// Delete drops the entry after a completed execution
func (c *PayloadCache) Delete(ctx context.Context, executionID string) error {
	return c.store.Delete(ctx, payloadKeyPrefix+executionID)
}
