package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/afiyalink/afiyalink-assistant/pkg/logging"
)

const cacheKeyPrefix = "afiyalink:knowledge:"

// CachedLookup fronts a Lookup with Redis. Cache failures fall through to
// the underlying lookup; misses are not cached.
type CachedLookup struct {
	next   Lookup
	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewCachedLookup creates a Redis-backed cache around next.
func NewCachedLookup(next Lookup, client *redis.Client, ttl time.Duration, logger *logging.Logger) *CachedLookup {
	if next == nil {
		panic("knowledge: lookup cannot be nil")
	}
	if client == nil {
		panic("knowledge: redis client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &CachedLookup{next: next, client: client, ttl: ttl, logger: logger}
}

func cacheKey(symptom string) string {
	return cacheKeyPrefix + strings.ToLower(strings.TrimSpace(symptom))
}

func (c *CachedLookup) Find(ctx context.Context, symptom string) (*Entry, error) {
	key := cacheKey(symptom)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var e Entry
		if jsonErr := json.Unmarshal(raw, &e); jsonErr == nil {
			return &e, nil
		}
		c.logger.Warn("knowledge cache entry corrupt", "key", key)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("knowledge cache read failed", "key", key, "error", err)
	}

	entry, err := c.next.Find(ctx, symptom)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(entry); err == nil {
		if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.logger.Warn("knowledge cache write failed", "key", key, "error", err)
		}
	}
	return entry, nil
}

// Invalidate drops cached entries for the given symptoms.
func (c *CachedLookup) Invalidate(ctx context.Context, symptoms ...string) error {
	if len(symptoms) == 0 {
		return nil
	}
	keys := make([]string, len(symptoms))
	for i, s := range symptoms {
		keys[i] = cacheKey(s)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("knowledge: invalidate cache: %w", err)
	}
	return nil
}
