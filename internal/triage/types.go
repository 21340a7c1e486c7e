// Package triage turns a free-text health message into a safe reply. Every
// message is checked for emergencies first; everything else goes through a
// response ladder (AI, curated knowledge, canned rules) whose AI output is
// validated before it reaches the user.
package triage

import "strings"

// Intent labels a response.
type Intent string

const (
	IntentEmergency      Intent = "emergency"
	IntentHealthQuery    Intent = "health_query"
	IntentSymptomCheck   Intent = "symptom_check"
	IntentAppointment    Intent = "appointment"
	IntentMedication     Intent = "medication"
	IntentCulturalHealth Intent = "cultural_health"
	IntentGeneralHealth  Intent = "general_health"
	IntentSystemFallback Intent = "system_fallback"
	IntentError          Intent = "error"
)

// RiskLevel is recorded with each response. It is independent of the
// safety level of the input.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

const (
	DefaultLanguage           = "en"
	DefaultCulturalBackground = "general"
)

// Message is one inbound user message.
type Message struct {
	Text               string
	UserID             string
	Language           string
	CulturalBackground string
	// Region is an ISO country hint used to lead the emergency text with the
	// local number.
	Region string
}

func (m Message) withDefaults() Message {
	if strings.TrimSpace(m.Language) == "" {
		m.Language = DefaultLanguage
	}
	if strings.TrimSpace(m.CulturalBackground) == "" {
		m.CulturalBackground = DefaultCulturalBackground
	}
	return m
}

// ChatResponse is what the pipeline hands back for every message.
type ChatResponse struct {
	Response                  string    `json:"response"`
	Intent                    Intent    `json:"intent"`
	Confidence                float64   `json:"confidence"`
	RiskLevel                 RiskLevel `json:"risk_level"`
	EmergencyAlert            bool      `json:"emergency_alert"`
	RequiresHumanIntervention bool      `json:"requires_human_intervention"`
	UsedAIModel               string    `json:"used_ai_model,omitempty"`
	CostEstimate              float64   `json:"cost_estimate"`
	ResponseTime              float64   `json:"response_time"`
	RequestID                 string    `json:"request_id"`
}

// Stage names a step of the pipeline. Used in logs and spans.
type Stage string

const (
	StageReceived            Stage = "received"
	StageSafetyChecked       Stage = "safety_checked"
	StageEmergencyPath       Stage = "emergency_path"
	StageNormalPath          Stage = "normal_path"
	StageResponseGenerated   Stage = "response_generated"
	StageOutputValidated     Stage = "output_validated"
	StageCulturallyAnnotated Stage = "culturally_annotated"
	StageTranslated          Stage = "translated"
	StageLogged              Stage = "logged"
	StageDone                Stage = "done"
	StageFailed              Stage = "failed"
)
