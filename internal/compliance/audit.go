// Package compliance records the safety decisions the triage pipeline makes
// so they can be reviewed later.
package compliance

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// AuditEventType represents the type of compliance event.
type AuditEventType string

const (
	// EventEmergencyDetected is logged when a message takes the emergency path.
	EventEmergencyDetected AuditEventType = "safety.emergency_detected"
	// EventHighRiskInput is logged when a message matches a high-risk pattern
	// without being an emergency.
	EventHighRiskInput AuditEventType = "safety.high_risk_input"
	// EventSafetyRejection is logged when AI output fails validation and the
	// safe fallback is substituted.
	EventSafetyRejection AuditEventType = "safety.output_rejected"
	// EventPromptInjection is logged when a prompt injection attempt is detected.
	EventPromptInjection AuditEventType = "security.prompt_injection"
)

const maxStoredMessage = 2000

// AuditEvent represents an immutable compliance audit record.
type AuditEvent struct {
	ID          string          `json:"id"`
	EventType   AuditEventType  `json:"event_type"`
	RequestID   string          `json:"request_id"`
	UserID      string          `json:"user_id"`
	UserMessage string          `json:"user_message,omitempty"`
	AIResponse  string          `json:"ai_response,omitempty"`
	Warnings    []string        `json:"warnings,omitempty"`
	Details     json.RawMessage `json:"details,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// AuditDetails contains event-specific details.
type AuditDetails struct {
	RiskLevel string `json:"risk_level,omitempty"`

	// For safety rejections
	Model           string `json:"model,omitempty"`
	RejectionReason string `json:"rejection_reason,omitempty"`

	// For prompt injection
	InjectionScore float64 `json:"injection_score,omitempty"`
}

// AuditService handles compliance audit logging.
type AuditService struct {
	db *sql.DB
}

// NewAuditService creates a new audit service.
func NewAuditService(db *sql.DB) *AuditService {
	if db == nil {
		panic("compliance: db cannot be nil")
	}
	return &AuditService{db: db}
}

// LogEvent records a compliance audit event.
func (s *AuditService) LogEvent(ctx context.Context, event AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if event.Warnings == nil {
		event.Warnings = []string{}
	}
	if len(event.Details) == 0 {
		event.Details = json.RawMessage(`{}`)
	}

	query := `
		INSERT INTO compliance_audit_events (
			id, event_type, request_id, user_id,
			user_message, ai_response, warnings, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.EventType,
		event.RequestID,
		event.UserID,
		nullString(truncate(event.UserMessage)),
		nullString(truncate(event.AIResponse)),
		pq.Array(event.Warnings),
		[]byte(event.Details),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("compliance: failed to log audit event: %w", err)
	}

	return nil
}

// LogEmergencyDetected logs a message that triggered the emergency path.
func (s *AuditService) LogEmergencyDetected(ctx context.Context, requestID, userID, message string, warnings []string) error {
	detailsJSON, _ := json.Marshal(AuditDetails{RiskLevel: "critical"})
	return s.LogEvent(ctx, AuditEvent{
		EventType:   EventEmergencyDetected,
		RequestID:   requestID,
		UserID:      userID,
		UserMessage: message,
		Warnings:    warnings,
		Details:     detailsJSON,
	})
}

// LogHighRiskInput logs a message that matched a high-risk pattern.
func (s *AuditService) LogHighRiskInput(ctx context.Context, requestID, userID, message string, warnings []string) error {
	detailsJSON, _ := json.Marshal(AuditDetails{RiskLevel: "high"})
	return s.LogEvent(ctx, AuditEvent{
		EventType:   EventHighRiskInput,
		RequestID:   requestID,
		UserID:      userID,
		UserMessage: message,
		Warnings:    warnings,
		Details:     detailsJSON,
	})
}

// LogSafetyRejection logs AI output that was withheld from the user.
func (s *AuditService) LogSafetyRejection(ctx context.Context, requestID, userID, model, reason, aiResponse string) error {
	detailsJSON, _ := json.Marshal(AuditDetails{Model: model, RejectionReason: reason})
	return s.LogEvent(ctx, AuditEvent{
		EventType:  EventSafetyRejection,
		RequestID:  requestID,
		UserID:     userID,
		AIResponse: aiResponse,
		Details:    detailsJSON,
	})
}

// LogPromptInjection logs when a prompt injection attempt is detected and blocked.
func (s *AuditService) LogPromptInjection(ctx context.Context, requestID, userID string, score float64, reasons []string) error {
	detailsJSON, _ := json.Marshal(AuditDetails{InjectionScore: score})
	return s.LogEvent(ctx, AuditEvent{
		EventType:   EventPromptInjection,
		RequestID:   requestID,
		UserID:      userID,
		UserMessage: "[BLOCKED]", // Don't store injection payload
		Warnings:    reasons,
		Details:     detailsJSON,
	})
}

// AuditFilter specifies criteria for querying audit events.
type AuditFilter struct {
	UserID    string
	RequestID string
	EventType AuditEventType
	StartTime time.Time
	EndTime   time.Time
	Limit     int
	Offset    int
}

// QueryEvents retrieves audit events with filters, newest first.
func (s *AuditService) QueryEvents(ctx context.Context, filter AuditFilter) ([]AuditEvent, error) {
	query := `
		SELECT id, event_type, request_id, user_id,
			   user_message, ai_response, warnings, details, created_at
		FROM compliance_audit_events
	`
	var (
		where []string
		args  []interface{}
	)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if filter.UserID != "" {
		add("user_id = $%d", filter.UserID)
	}
	if filter.RequestID != "" {
		add("request_id = $%d", filter.RequestID)
	}
	if filter.EventType != "" {
		add("event_type = $%d", filter.EventType)
	}
	if !filter.StartTime.IsZero() {
		add("created_at >= $%d", filter.StartTime)
	}
	if !filter.EndTime.IsZero() {
		add("created_at <= $%d", filter.EndTime)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("compliance: failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		var e AuditEvent
		var userMsg, aiResp sql.NullString
		var details []byte
		err := rows.Scan(
			&e.ID, &e.EventType, &e.RequestID, &e.UserID,
			&userMsg, &aiResp, pq.Array(&e.Warnings), &details, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("compliance: failed to scan audit event: %w", err)
		}
		e.UserMessage = userMsg.String
		e.AIResponse = aiResp.String
		if len(details) > 0 {
			e.Details = json.RawMessage(details)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("compliance: failed to iterate audit events: %w", err)
	}

	return events, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxStoredMessage {
		return s
	}
	return string(r[:maxStoredMessage])
}
