package cost

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisLedger(t *testing.T) (*RedisLedger, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ledger := NewRedisLedger(client)
	ledger.now = func() time.Time { return time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC) }
	return ledger, mr
}

func TestRedisLedgerReserveAndSettle(t *testing.T) {
	ctx := context.Background()
	ledger, mr := newRedisLedger(t)

	period, ok, err := ledger.Reserve(ctx, 1.0, 0.6)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2025-06-10", period)

	_, ok, err = ledger.Reserve(ctx, 1.0, 0.6)
	require.NoError(t, err)
	assert.False(t, ok, "second reservation would cross the ceiling")

	require.NoError(t, ledger.Settle(ctx, period, 0.6, 0.4))

	snap, err := ledger.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2025-06-10", snap.Period)
	assert.InDelta(t, 0.4, snap.Spent, 1e-9)
	assert.InDelta(t, 0, snap.Reserved, 1e-9)

	assert.True(t, mr.Exists("afiyalink:cost:2025-06-10:spent"))
	assert.Greater(t, mr.TTL("afiyalink:cost:2025-06-10:spent"), 24*time.Hour)
}

func TestRedisLedgerAddAndRollover(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newRedisLedger(t)

	require.NoError(t, ledger.Add(ctx, 2.5))
	snap, err := ledger.Snapshot(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, snap.Spent, 1e-9)

	ledger.now = func() time.Time { return time.Date(2025, 6, 11, 0, 5, 0, 0, time.UTC) }
	snap, err = ledger.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2025-06-11", snap.Period)
	assert.Zero(t, snap.Spent)
}

func TestRedisLedgerSettlesAcrossMidnight(t *testing.T) {
	ctx := context.Background()
	ledger, mr := newRedisLedger(t)
	ledger.now = func() time.Time { return time.Date(2025, 6, 10, 23, 59, 59, 0, time.UTC) }
	g := NewGovernor(ledger, 1.0, nil)

	res, err := g.Reserve(ctx, 0.6)
	require.NoError(t, err)

	ledger.now = func() time.Time { return time.Date(2025, 6, 11, 0, 0, 1, 0, time.UTC) }
	require.NoError(t, res.Commit(ctx, 0.4))

	reserved, err := mr.Get("afiyalink:cost:2025-06-10:reserved")
	require.NoError(t, err)
	assert.Equal(t, "0", reserved)
	spent, err := mr.Get("afiyalink:cost:2025-06-10:spent")
	require.NoError(t, err)
	assert.Equal(t, "0.4", spent)

	assert.False(t, mr.Exists("afiyalink:cost:2025-06-11:spent"))
	assert.False(t, mr.Exists("afiyalink:cost:2025-06-11:reserved"))
	snap, err := ledger.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2025-06-11", snap.Period)
	assert.Zero(t, snap.Spent)
	assert.Zero(t, snap.Reserved)
}

func TestRedisLedgerWithGovernor(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newRedisLedger(t)
	g := NewGovernor(ledger, 1.0, nil)

	res, err := g.Reserve(ctx, 0.6)
	require.NoError(t, err)
	require.NoError(t, res.Commit(ctx, 0.6))

	assert.False(t, g.CanSpend(ctx, 0.6))
	_, err = g.Reserve(ctx, 0.6)
	assert.ErrorIs(t, err, ErrBudgetExhausted)
}

func TestRedisLedgerUnavailable(t *testing.T) {
	ctx := context.Background()
	ledger, mr := newRedisLedger(t)
	mr.Close()

	_, _, err := ledger.Reserve(ctx, 1.0, 0.1)
	assert.Error(t, err)
	_, err = ledger.Snapshot(ctx)
	assert.Error(t, err)
}

func TestNewRedisLedgerPanicsWithoutClient(t *testing.T) {
	assert.Panics(t, func() { NewRedisLedger(nil) })
}
