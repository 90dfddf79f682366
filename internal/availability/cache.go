package availability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Cache is a read-through Redis cache of doctor slot lists. The doctor
// store invalidates an entry whenever availability is updated, so a short
// TTL is only a backstop. A nil *Cache is a no-op.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache wraps the redis client. Returns nil for a nil client so callers
// can wire the cache optionally.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{client: client, ttl: ttl}
}

func cacheKey(doctorID uuid.UUID) string {
	return "availability:doctor:" + doctorID.String()
}

// Get returns the cached slots and whether the key was present.
func (c *Cache) Get(ctx context.Context, doctorID uuid.UUID) ([]Slot, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	raw, err := c.client.Get(ctx, cacheKey(doctorID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("availability: cache get: %w", err)
	}
	var slots []Slot
	if err := json.Unmarshal(raw, &slots); err != nil {
		return nil, false, fmt.Errorf("availability: cache decode: %w", err)
	}
	return slots, true, nil
}

// Set stores the doctor's slots with the configured TTL.
func (c *Cache) Set(ctx context.Context, doctorID uuid.UUID, slots []Slot) error {
	if c == nil {
		return nil
	}
	data, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("availability: cache encode: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey(doctorID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("availability: cache set: %w", err)
	}
	return nil
}

// Invalidate drops the cached slots for a doctor.
func (c *Cache) Invalidate(ctx context.Context, doctorID uuid.UUID) error {
	if c == nil {
		return nil
	}
	if err := c.client.Del(ctx, cacheKey(doctorID)).Err(); err != nil {
		return fmt.Errorf("availability: cache invalidate: %w", err)
	}
	return nil
}
