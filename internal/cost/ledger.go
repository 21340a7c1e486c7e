// Package cost tracks daily AI spend and decides whether another paid call
// may start.
package cost

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Snapshot is the ledger state for the current period.
type Snapshot struct {
	Period   string
	Spent    float64
	Reserved float64
}

// Ledger stores cumulative spend and in-flight reservations per UTC day.
// Reserve must be an atomic check-and-increment.
type Ledger interface {
	// Reserve holds estimate against the ceiling and returns the period the
	// hold was taken in. It reports false without changing state when
	// spent+reserved is already at the ceiling or the estimate would push it
	// past.
	Reserve(ctx context.Context, ceiling, estimate float64) (period string, ok bool, err error)
	// Settle drops a reservation of estimate taken in period and adds actual
	// to that period's spend.
	Settle(ctx context.Context, period string, estimate, actual float64) error
	// Add records spend that was never reserved.
	Add(ctx context.Context, amount float64) error
	Snapshot(ctx context.Context) (Snapshot, error)
}

const periodLayout = "2006-01-02"

func periodFor(t time.Time) string {
	return t.UTC().Format(periodLayout)
}

func admits(spent, reserved, ceiling, estimate float64) bool {
	committed := spent + reserved
	return committed < ceiling && committed+estimate <= ceiling
}

// MemoryLedger keeps the ledger in process memory. A new UTC day starts
// from zero.
type MemoryLedger struct {
	mu       sync.Mutex
	now      func() time.Time
	period   string
	spent    float64
	reserved float64
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{now: time.Now}
}

// rollover must be called with mu held.
func (l *MemoryLedger) rollover() {
	p := periodFor(l.now())
	if p != l.period {
		l.period = p
		l.spent = 0
		l.reserved = 0
	}
}

func (l *MemoryLedger) Reserve(_ context.Context, ceiling, estimate float64) (string, bool, error) {
	if estimate < 0 {
		return "", false, fmt.Errorf("cost: negative estimate %v", estimate)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover()
	if !admits(l.spent, l.reserved, ceiling, estimate) {
		return l.period, false, nil
	}
	l.reserved += estimate
	return l.period, true, nil
}

// Settle against a period that has already rolled over is a no-op: the
// memory ledger only keeps the current day.
func (l *MemoryLedger) Settle(_ context.Context, period string, estimate, actual float64) error {
	if actual < 0 {
		return fmt.Errorf("cost: negative spend %v", actual)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover()
	if period != l.period {
		return nil
	}
	l.reserved -= estimate
	if l.reserved < 0 {
		l.reserved = 0
	}
	l.spent += actual
	return nil
}

func (l *MemoryLedger) Add(_ context.Context, amount float64) error {
	if amount < 0 {
		return fmt.Errorf("cost: negative spend %v", amount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover()
	l.spent += amount
	return nil
}

func (l *MemoryLedger) Snapshot(_ context.Context) (Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover()
	return Snapshot{Period: l.period, Spent: l.spent, Reserved: l.reserved}, nil
}
