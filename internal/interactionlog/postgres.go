package interactionlog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresLog writes to the interaction_logs table from migrations/.
type PostgresLog struct {
	pool pgQuerier
}

func NewPostgresLog(pool *pgxpool.Pool) *PostgresLog {
	if pool == nil {
		panic("interactionlog: pgx pool cannot be nil")
	}
	return &PostgresLog{pool: pool}
}

func newPostgresLogWithExec(exec pgQuerier) *PostgresLog {
	if exec == nil {
		panic("interactionlog: exec required")
	}
	return &PostgresLog{pool: exec}
}

func (l *PostgresLog) Append(ctx context.Context, rec Record) error {
	if rec.UserID == "" {
		return errors.New("interactionlog: user id required")
	}
	stamp(&rec)
	_, err := l.pool.Exec(ctx, `
		INSERT INTO interaction_logs (
			request_id, user_id, query, response, risk_level, emergency_alert, intent, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, rec.RequestID, rec.UserID, rec.Query, rec.Response, rec.RiskLevel, rec.EmergencyAlert, rec.Intent, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("interactionlog: append: %w", err)
	}
	return nil
}

const pgSelect = `
		SELECT request_id, user_id, query, response, risk_level, emergency_alert, intent, created_at
		FROM interaction_logs`

func (l *PostgresLog) ListByUser(ctx context.Context, userID string, limit int) ([]Record, error) {
	rows, err := l.pool.Query(ctx, pgSelect+`
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("interactionlog: list by user: %w", err)
	}
	return scanPGRows(rows)
}

func (l *PostgresLog) ListBetween(ctx context.Context, from, to time.Time) ([]Record, error) {
	rows, err := l.pool.Query(ctx, pgSelect+`
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at ASC
	`, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("interactionlog: list between: %w", err)
	}
	return scanPGRows(rows)
}

func scanPGRows(rows pgx.Rows) ([]Record, error) {
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.RequestID, &rec.UserID, &rec.Query, &rec.Response, &rec.RiskLevel, &rec.EmergencyAlert, &rec.Intent, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("interactionlog: scan: %w", err)
		}
		rec.CreatedAt = rec.CreatedAt.UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}
