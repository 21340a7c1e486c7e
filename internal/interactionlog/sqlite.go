package interactionlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLiteLog writes to the interaction_logs table created by store.NewDB.
type SQLiteLog struct {
	db *sql.DB
}

func NewSQLiteLog(db *sql.DB) *SQLiteLog {
	if db == nil {
		panic("interactionlog: db cannot be nil")
	}
	return &SQLiteLog{db: db}
}

func (l *SQLiteLog) Append(ctx context.Context, rec Record) error {
	if rec.UserID == "" {
		return errors.New("interactionlog: user id required")
	}
	stamp(&rec)
	const q = `INSERT INTO interaction_logs (request_id, user_id, query, response, risk_level, emergency_alert, intent, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := l.db.ExecContext(ctx, q,
		rec.RequestID,
		rec.UserID,
		rec.Query,
		rec.Response,
		rec.RiskLevel,
		rec.EmergencyAlert,
		rec.Intent,
		rec.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("interactionlog: append: %w", err)
	}
	return nil
}

const sqliteSelect = `SELECT request_id, user_id, query, response, risk_level, emergency_alert, intent, created_at
FROM interaction_logs`

func (l *SQLiteLog) ListByUser(ctx context.Context, userID string, limit int) ([]Record, error) {
	rows, err := l.db.QueryContext(ctx, sqliteSelect+`
WHERE user_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?`, userID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("interactionlog: list by user: %w", err)
	}
	return scanSQLiteRows(rows)
}

func (l *SQLiteLog) ListBetween(ctx context.Context, from, to time.Time) ([]Record, error) {
	rows, err := l.db.QueryContext(ctx, sqliteSelect+`
WHERE created_at >= ? AND created_at < ?
ORDER BY created_at ASC, id ASC`, from.UTC().UnixNano(), to.UTC().UnixNano())
	if err != nil {
		return nil, fmt.Errorf("interactionlog: list between: %w", err)
	}
	return scanSQLiteRows(rows)
}

func scanSQLiteRows(rows *sql.Rows) ([]Record, error) {
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var rec Record
		var created int64
		if err := rows.Scan(&rec.RequestID, &rec.UserID, &rec.Query, &rec.Response, &rec.RiskLevel, &rec.EmergencyAlert, &rec.Intent, &created); err != nil {
			return nil, fmt.Errorf("interactionlog: scan: %w", err)
		}
		rec.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}
