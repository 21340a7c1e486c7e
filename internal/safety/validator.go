// Package safety classifies inbound health messages by risk and checks
// generated replies before they reach a user.
package safety

import "strings"

const (
	emergencyConfidence = 0.95
	defaultConfidence   = 0.8
)

// Validator applies the rule tables. It holds no mutable state and is safe
// for concurrent use.
type Validator struct {
	emergencyRules []Rule
	highRiskRules  []Rule
}

// Option customizes a Validator.
type Option func(*Validator)

// WithEmergencyDetection toggles the emergency phrase table. The high-risk
// table always runs.
func WithEmergencyDetection(enabled bool) Option {
	return func(v *Validator) {
		if !enabled {
			v.emergencyRules = nil
		}
	}
}

// NewValidator builds a validator over the default tables.
func NewValidator(opts ...Option) *Validator {
	v := &Validator{
		emergencyRules: EmergencyRules,
		highRiskRules:  HighRiskRules,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ValidateInput assesses a user message.
func (v *Validator) ValidateInput(text string) Assessment {
	lower := strings.ToLower(text)

	for _, rule := range v.emergencyRules {
		if rule.match(lower) {
			return Assessment{
				Level:                     LevelCritical,
				EmergencyDetected:         true,
				HumanInterventionRequired: true,
				Confidence:                emergencyConfidence,
				Warnings:                  []string{rule.Warning},
			}
		}
	}

	for _, rule := range v.highRiskRules {
		if rule.match(lower) {
			return Assessment{
				Level:      rule.Level,
				Confidence: defaultConfidence,
				Warnings:   []string{rule.Warning},
			}
		}
	}

	return Assessment{Level: LevelSafe, Confidence: defaultConfidence}
}

// OutputCheck is the verdict on a generated reply.
type OutputCheck struct {
	Safe   bool
	Reason string
}

// ValidateOutput reports whether a generated reply may be shown to a user.
func (v *Validator) ValidateOutput(text string) bool {
	return v.CheckOutput(text).Safe
}

// CheckOutput is ValidateOutput with the reason kept for auditing.
func (v *Validator) CheckOutput(text string) OutputCheck {
	lower := strings.ToLower(text)
	for _, rule := range forbiddenAdvice {
		if rule.re.MatchString(lower) {
			return OutputCheck{Reason: rule.reason}
		}
	}
	for _, phrase := range disclaimerPhrases {
		if strings.Contains(lower, phrase) {
			return OutputCheck{Safe: true}
		}
	}
	return OutputCheck{Reason: "missing:professional_referral"}
}
