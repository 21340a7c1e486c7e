// Package interactionlog keeps an append-only record of every answered
// request.
package interactionlog

import (
	"context"
	"errors"
	"time"
)

// ErrNotConfigured is returned by reads against a backend that cannot serve them.
var ErrNotConfigured = errors.New("interactionlog: not configured")

// Record is one completed or failed request.
type Record struct {
	RequestID      string    `json:"request_id" dynamodbav:"requestId"`
	UserID         string    `json:"user_id" dynamodbav:"userId"`
	Query          string    `json:"query" dynamodbav:"query"`
	Response       string    `json:"response" dynamodbav:"response"`
	RiskLevel      string    `json:"risk_level" dynamodbav:"riskLevel"`
	EmergencyAlert bool      `json:"emergency_alert" dynamodbav:"emergencyAlert"`
	Intent         string    `json:"intent" dynamodbav:"intent"`
	CreatedAt      time.Time `json:"created_at" dynamodbav:"-"`
}

// Log appends records. Implementations never update or delete.
type Log interface {
	Append(ctx context.Context, rec Record) error
}

// Reader reads records back for operators and exports.
type Reader interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]Record, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]Record, error)
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func stamp(rec *Record) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
}

// Nop discards records. Reads return ErrNotConfigured.
type Nop struct{}

func (Nop) Append(context.Context, Record) error { return nil }

func (Nop) ListByUser(context.Context, string, int) ([]Record, error) {
	return nil, ErrNotConfigured
}

func (Nop) ListBetween(context.Context, time.Time, time.Time) ([]Record, error) {
	return nil, ErrNotConfigured
}
