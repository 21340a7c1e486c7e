package cost

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	ledgerKeyPrefix = "afiyalink:cost:"
	ledgerKeyTTL    = 48 * time.Hour
)

var reserveScript = redis.NewScript(`
local spent = tonumber(redis.call('GET', KEYS[1]) or '0')
local reserved = tonumber(redis.call('GET', KEYS[2]) or '0')
local ceiling = tonumber(ARGV[1])
local estimate = tonumber(ARGV[2])
local committed = spent + reserved
if committed >= ceiling or committed + estimate > ceiling then
  return 0
end
redis.call('INCRBYFLOAT', KEYS[2], ARGV[2])
redis.call('EXPIRE', KEYS[2], ARGV[3])
return 1
`)

var settleScript = redis.NewScript(`
if tonumber(ARGV[2]) > 0 then
  redis.call('INCRBYFLOAT', KEYS[1], ARGV[2])
  redis.call('EXPIRE', KEYS[1], ARGV[3])
end
local reserved = tonumber(redis.call('INCRBYFLOAT', KEYS[2], ARGV[1]))
if reserved < 0 then
  redis.call('SET', KEYS[2], '0')
end
redis.call('EXPIRE', KEYS[2], ARGV[3])
return 1
`)

// RedisLedger shares the ledger between replicas. Each day has its own
// spent and reserved keys that expire after two days.
type RedisLedger struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisLedger creates a Redis-backed ledger.
func NewRedisLedger(client *redis.Client) *RedisLedger {
	if client == nil {
		panic("cost: redis client cannot be nil")
	}
	return &RedisLedger{client: client, now: time.Now}
}

func (l *RedisLedger) keys() (period string, keys []string) {
	period = periodFor(l.now())
	return period, keysFor(period)
}

func keysFor(period string) []string {
	base := ledgerKeyPrefix + period
	return []string{base + ":spent", base + ":reserved"}
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func ttlSeconds() int {
	return int(ledgerKeyTTL / time.Second)
}

func (l *RedisLedger) Reserve(ctx context.Context, ceiling, estimate float64) (string, bool, error) {
	if estimate < 0 {
		return "", false, fmt.Errorf("cost: negative estimate %v", estimate)
	}
	period, keys := l.keys()
	ok, err := reserveScript.Run(ctx, l.client, keys, formatAmount(ceiling), formatAmount(estimate), ttlSeconds()).Int()
	if err != nil {
		return "", false, fmt.Errorf("cost: reserve: %w", err)
	}
	return period, ok == 1, nil
}

// Settle writes to the keys of the period the reservation was taken in, so a
// call that straddles midnight is charged to the day it started.
func (l *RedisLedger) Settle(ctx context.Context, period string, estimate, actual float64) error {
	if actual < 0 {
		return fmt.Errorf("cost: negative spend %v", actual)
	}
	if period == "" {
		period = periodFor(l.now())
	}
	keys := keysFor(period)
	if err := settleScript.Run(ctx, l.client, keys, formatAmount(-estimate), formatAmount(actual), ttlSeconds()).Err(); err != nil {
		return fmt.Errorf("cost: settle: %w", err)
	}
	return nil
}

func (l *RedisLedger) Add(ctx context.Context, amount float64) error {
	if amount < 0 {
		return fmt.Errorf("cost: negative spend %v", amount)
	}
	_, keys := l.keys()
	pipe := l.client.TxPipeline()
	pipe.IncrByFloat(ctx, keys[0], amount)
	pipe.Expire(ctx, keys[0], ledgerKeyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cost: add spend: %w", err)
	}
	return nil
}

func (l *RedisLedger) Snapshot(ctx context.Context) (Snapshot, error) {
	period, keys := l.keys()
	vals, err := l.client.MGet(ctx, keys...).Result()
	if err != nil {
		return Snapshot{}, fmt.Errorf("cost: snapshot: %w", err)
	}
	snap := Snapshot{Period: period}
	if snap.Spent, err = parseAmount(vals[0]); err != nil {
		return Snapshot{}, err
	}
	if snap.Reserved, err = parseAmount(vals[1]); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func parseAmount(v interface{}) (float64, error) {
	if v == nil {
		return 0, nil
	}
	s, ok := v.(string)
	if !ok {
		return 0, errors.New("cost: unexpected ledger value type")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("cost: parse ledger value %q: %w", s, err)
	}
	return f, nil
}
