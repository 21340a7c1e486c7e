package cost

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/afiyalink/afiyalink-assistant/pkg/logging"
)

// ErrBudgetExhausted is returned when a reservation would exceed the daily ceiling.
var ErrBudgetExhausted = errors.New("cost: daily AI budget exhausted")

// Action is the budget verdict reported by Status.
type Action string

const (
	ActionContinue Action = "continue"
	ActionWarn     Action = "warn"
	ActionHalt     Action = "halt"
)

// Status summarizes the current period for operators.
type Status struct {
	Period   string  `json:"period"`
	Spent    float64 `json:"spent"`
	Reserved float64 `json:"reserved"`
	Ceiling  float64 `json:"ceiling"`
	Ratio    float64 `json:"ratio"`
	Action   Action  `json:"action"`
}

// Governor enforces the daily AI spend ceiling on top of a Ledger.
type Governor struct {
	ledger  Ledger
	ceiling float64
	logger  *logging.Logger

	// WarnRatio is the fraction of the ceiling at which Status warns (default 0.8).
	WarnRatio float64
	// HaltRatio is the fraction of the ceiling at which Status halts (default 1.0).
	HaltRatio float64
}

// NewGovernor creates a governor with standard thresholds.
func NewGovernor(ledger Ledger, ceiling float64, logger *logging.Logger) *Governor {
	if ledger == nil {
		panic("cost: ledger cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Governor{
		ledger:    ledger,
		ceiling:   ceiling,
		logger:    logger,
		WarnRatio: 0.8,
		HaltRatio: 1.0,
	}
}

// Ceiling returns the configured daily ceiling.
func (g *Governor) Ceiling() float64 {
	return g.ceiling
}

// CanSpend reports whether a call estimated at estimate may start. With a
// zero estimate this is simply spent < ceiling. Ledger errors deny spend.
func (g *Governor) CanSpend(ctx context.Context, estimate float64) bool {
	snap, err := g.ledger.Snapshot(ctx)
	if err != nil {
		g.logger.Warn("cost ledger unavailable, denying spend", "error", err)
		return false
	}
	return admits(snap.Spent, snap.Reserved, g.ceiling, estimate)
}

// Record adds spend that was not reserved up front, such as a call billed
// outside the ladder. Reserved calls settle through Reservation.Commit.
func (g *Governor) Record(ctx context.Context, amount float64) error {
	if err := g.ledger.Add(ctx, amount); err != nil {
		return err
	}
	return nil
}

// Reserve holds estimate against the ceiling until the returned reservation
// is committed or released.
func (g *Governor) Reserve(ctx context.Context, estimate float64) (*Reservation, error) {
	period, ok, err := g.ledger.Reserve(ctx, g.ceiling, estimate)
	if err != nil {
		return nil, fmt.Errorf("cost: reserve %v: %w", estimate, err)
	}
	if !ok {
		return nil, ErrBudgetExhausted
	}
	return &Reservation{ledger: g.ledger, period: period, estimate: estimate}, nil
}

// Status reports spend against the ceiling with a continue/warn/halt verdict.
func (g *Governor) Status(ctx context.Context) (Status, error) {
	snap, err := g.ledger.Snapshot(ctx)
	if err != nil {
		return Status{Ceiling: g.ceiling, Action: ActionHalt}, err
	}
	st := Status{
		Period:   snap.Period,
		Spent:    snap.Spent,
		Reserved: snap.Reserved,
		Ceiling:  g.ceiling,
	}
	if g.ceiling > 0 {
		st.Ratio = snap.Spent / g.ceiling
	}
	st.Action = g.evaluate(snap.Spent)
	return st, nil
}

func (g *Governor) evaluate(spent float64) Action {
	if g.ceiling <= 0 {
		return ActionHalt
	}
	ratio := spent / g.ceiling
	if ratio >= g.HaltRatio {
		return ActionHalt
	}
	if ratio >= g.WarnRatio {
		return ActionWarn
	}
	return ActionContinue
}

// Reservation is a hold on part of the daily budget. Commit and Release are
// idempotent; only the first call has an effect.
type Reservation struct {
	ledger   Ledger
	period   string
	estimate float64
	done     atomic.Bool
}

// Commit converts the hold into actual spend.
func (r *Reservation) Commit(ctx context.Context, actual float64) error {
	if !r.done.CompareAndSwap(false, true) {
		return nil
	}
	return r.ledger.Settle(ctx, r.period, r.estimate, actual)
}

// Release drops the hold without recording spend.
func (r *Reservation) Release(ctx context.Context) error {
	if !r.done.CompareAndSwap(false, true) {
		return nil
	}
	return r.ledger.Settle(ctx, r.period, r.estimate, 0)
}
