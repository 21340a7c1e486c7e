package archive

import "time"

const recordVersion = "1.0"

// InteractionRecord is one line of a daily export file.
type InteractionRecord struct {
	Version        string    `json:"version"`
	RequestID      string    `json:"request_id"`
	UserHash       string    `json:"user_hash"` // sha256 of user id
	Query          string    `json:"query"`
	Response       string    `json:"response"`
	Intent         string    `json:"intent"`
	RiskLevel      string    `json:"risk_level"`
	EmergencyAlert bool      `json:"emergency_alert"`
	CreatedAt      time.Time `json:"created_at"`
	Labels         Labels    `json:"labels"`
}

// Labels are derived from the record for review and dataset curation.
type Labels struct {
	Category      string `json:"category"` // emergency|ai_answer|knowledge|rule|fallback|error
	PIIRedacted   bool   `json:"pii_redacted"`
	HumanReviewed bool   `json:"human_reviewed"`
}

// ManifestEntry is one JSONL line in the monthly manifest file.
type ManifestEntry struct {
	Date           string `json:"date"`
	S3Key          string `json:"s3_key"`
	RecordCount    int    `json:"record_count"`
	EmergencyCount int    `json:"emergency_count"`
	ExportedAt     string `json:"exported_at"`
}

// ExportResult summarizes one ExportDay run.
type ExportResult struct {
	Date           string
	S3Key          string
	RecordCount    int
	EmergencyCount int
}
