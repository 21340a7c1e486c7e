// Package knowledge serves curated symptom guidance and emergency protocols.
package knowledge

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no record matches a lookup.
var ErrNotFound = errors.New("knowledge: not found")

// Severity of a symptom record.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Entry is curated guidance for one symptom.
type Entry struct {
	Symptom             string  `json:"symptom"`
	Description         string  `json:"description"`
	PossibleCauses      string  `json:"possible_causes"`
	SelfCareAdvice      string  `json:"self_care_advice"`
	WhenToSeeDoctor     string  `json:"when_to_see_doctor"`
	EmergencyIndicators string  `json:"emergency_indicators"`
	SeverityLevel       string  `json:"severity_level"`
	CulturalNote        string  `json:"cultural_considerations"`
	Reliability         float64 `json:"reliability_score"`
}

// Protocol is first-aid guidance for an emergency condition.
type Protocol struct {
	Condition        string `json:"condition"`
	ImmediateActions string `json:"immediate_actions"`
	WarningSigns     string `json:"warning_signs"`
	EmergencyNumbers string `json:"emergency_numbers"`
	CulturalNote     string `json:"cultural_considerations"`
}

// Lookup finds the best symptom record for a term.
type Lookup interface {
	Find(ctx context.Context, symptom string) (*Entry, error)
}
