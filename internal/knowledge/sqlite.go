package knowledge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// SQLiteStore reads and writes the knowledge tables.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an open database whose schema is already applied.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	if db == nil {
		panic("knowledge: db cannot be nil")
	}
	return &SQLiteStore{db: db}
}

// Find returns the most reliable record whose name or description contains
// symptom. Spaces in the term also match underscores in stored names.
func (s *SQLiteStore) Find(ctx context.Context, symptom string) (*Entry, error) {
	term := strings.ToLower(strings.TrimSpace(symptom))
	if term == "" {
		return nil, ErrNotFound
	}
	const q = `SELECT symptom, description, possible_causes, self_care_advice, when_to_see_doctor,
	emergency_indicators, severity_level, cultural_considerations, reliability_score
FROM symptoms
WHERE symptom LIKE ? OR description LIKE ?
ORDER BY reliability_score DESC
LIMIT 1`

	nameTerm := "%" + strings.ReplaceAll(term, " ", "_") + "%"
	var e Entry
	err := s.db.QueryRowContext(ctx, q, nameTerm, "%"+term+"%").Scan(
		&e.Symptom,
		&e.Description,
		&e.PossibleCauses,
		&e.SelfCareAdvice,
		&e.WhenToSeeDoctor,
		&e.EmergencyIndicators,
		&e.SeverityLevel,
		&e.CulturalNote,
		&e.Reliability,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("knowledge: find %q: %w", term, err)
	}
	return &e, nil
}

// GetProtocol returns the first emergency protocol whose condition contains
// the given term.
func (s *SQLiteStore) GetProtocol(ctx context.Context, condition string) (*Protocol, error) {
	term := strings.ToLower(strings.TrimSpace(condition))
	if term == "" {
		return nil, ErrNotFound
	}
	const q = `SELECT condition, immediate_actions, warning_signs, emergency_numbers, cultural_considerations
FROM emergency_protocols
WHERE condition LIKE ?
LIMIT 1`

	var p Protocol
	err := s.db.QueryRowContext(ctx, q, "%"+strings.ReplaceAll(term, " ", "_")+"%").Scan(
		&p.Condition,
		&p.ImmediateActions,
		&p.WarningSigns,
		&p.EmergencyNumbers,
		&p.CulturalNote,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("knowledge: protocol %q: %w", term, err)
	}
	return &p, nil
}

// UpsertEntry inserts or replaces a symptom record.
func (s *SQLiteStore) UpsertEntry(ctx context.Context, e Entry) error {
	const q = `INSERT INTO symptoms (symptom, description, possible_causes, self_care_advice, when_to_see_doctor,
	emergency_indicators, severity_level, cultural_considerations, reliability_score)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(symptom) DO UPDATE SET
	description = excluded.description,
	possible_causes = excluded.possible_causes,
	self_care_advice = excluded.self_care_advice,
	when_to_see_doctor = excluded.when_to_see_doctor,
	emergency_indicators = excluded.emergency_indicators,
	severity_level = excluded.severity_level,
	cultural_considerations = excluded.cultural_considerations,
	reliability_score = excluded.reliability_score`
	_, err := s.db.ExecContext(ctx, q,
		e.Symptom,
		e.Description,
		e.PossibleCauses,
		e.SelfCareAdvice,
		e.WhenToSeeDoctor,
		e.EmergencyIndicators,
		e.SeverityLevel,
		e.CulturalNote,
		e.Reliability,
	)
	if err != nil {
		return fmt.Errorf("knowledge: upsert %q: %w", e.Symptom, err)
	}
	return nil
}

// UpsertProtocol inserts or replaces an emergency protocol.
func (s *SQLiteStore) UpsertProtocol(ctx context.Context, p Protocol) error {
	const q = `INSERT INTO emergency_protocols (condition, immediate_actions, warning_signs, emergency_numbers, cultural_considerations)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(condition) DO UPDATE SET
	immediate_actions = excluded.immediate_actions,
	warning_signs = excluded.warning_signs,
	emergency_numbers = excluded.emergency_numbers,
	cultural_considerations = excluded.cultural_considerations`
	_, err := s.db.ExecContext(ctx, q, p.Condition, p.ImmediateActions, p.WarningSigns, p.EmergencyNumbers, p.CulturalNote)
	if err != nil {
		return fmt.Errorf("knowledge: upsert protocol %q: %w", p.Condition, err)
	}
	return nil
}

// Seed loads the built-in records. It is safe to run on every start.
func (s *SQLiteStore) Seed(ctx context.Context) error {
	for _, e := range SeedEntries {
		if err := s.UpsertEntry(ctx, e); err != nil {
			return err
		}
	}
	for _, p := range SeedProtocols {
		if err := s.UpsertProtocol(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
