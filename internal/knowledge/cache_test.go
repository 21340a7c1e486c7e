package knowledge

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afiyalink/afiyalink-assistant/pkg/logging"
)

type countingLookup struct {
	calls int
	entry *Entry
	err   error
}

func (c *countingLookup) Find(context.Context, string) (*Entry, error) {
	c.calls++
	return c.entry, c.err
}

func TestCachedLookupServesFromRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	inner := &countingLookup{entry: &SeedEntries[0]}
	cache := NewCachedLookup(inner, client, time.Minute, logging.Discard())
	ctx := context.Background()

	first, err := cache.Find(ctx, "Headache")
	require.NoError(t, err)
	second, err := cache.Find(ctx, "headache")
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, first.PossibleCauses, second.PossibleCauses)
	assert.True(t, mr.Exists("afiyalink:knowledge:headache"))
	assert.Equal(t, time.Minute, mr.TTL("afiyalink:knowledge:headache"))

	require.NoError(t, cache.Invalidate(ctx, "headache"))
	_, err = cache.Find(ctx, "headache")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedLookupDoesNotCacheMisses(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	inner := &countingLookup{err: ErrNotFound}
	cache := NewCachedLookup(inner, client, time.Minute, logging.Discard())

	_, err := cache.Find(context.Background(), "rash")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, mr.Exists("afiyalink:knowledge:rash"))
}

func TestCachedLookupFallsThroughWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mr.Close()
	inner := &countingLookup{entry: &SeedEntries[1]}
	cache := NewCachedLookup(inner, client, time.Minute, logging.Discard())

	e, err := cache.Find(context.Background(), "fever")
	require.NoError(t, err)
	assert.Equal(t, "fever", e.Symptom)
}

func TestNewCachedLookupPanics(t *testing.T) {
	assert.Panics(t, func() { NewCachedLookup(nil, redis.NewClient(&redis.Options{}), 0, nil) })
	assert.Panics(t, func() { NewCachedLookup(&countingLookup{}, nil, 0, nil) })
}
