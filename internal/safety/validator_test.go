package safety

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateInput(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name          string
		text          string
		wantLevel     Level
		wantEmergency bool
		wantWarning   string
	}{
		{
			name:          "chest pain is an emergency",
			text:          "I have severe chest pain radiating to my arm",
			wantLevel:     LevelCritical,
			wantEmergency: true,
			wantWarning:   "Emergency keyword detected: chest pain",
		},
		{
			name:          "upper case is matched",
			text:          "HE IS UNCONSCIOUS",
			wantLevel:     LevelCritical,
			wantEmergency: true,
			wantWarning:   "Emergency keyword detected: unconscious",
		},
		{
			name:          "first phrase in table order wins",
			text:          "after the stroke he had a seizure",
			wantLevel:     LevelCritical,
			wantEmergency: true,
			wantWarning:   "Emergency keyword detected: stroke",
		},
		{
			name:          "apostrophe variant",
			text:          "I can't breathe properly",
			wantLevel:     LevelCritical,
			wantEmergency: true,
			wantWarning:   "Emergency keyword detected: can't breathe",
		},
		{
			name:        "severe pain pattern",
			text:        "I have severe back pain since morning",
			wantLevel:   LevelWarning,
			wantWarning: "High-risk pattern detected",
		},
		{
			name:        "fever pattern",
			text:        "my temperature is now above about 39",
			wantLevel:   LevelWarning,
			wantWarning: "High-risk pattern detected",
		},
		{
			// the fever pattern needs words on both sides of "above"
			name:      "fever pattern without filler words",
			text:      "my temperature is above 39 degrees",
			wantLevel: LevelSafe,
		},
		{
			name:        "self harm pattern",
			text:        "sometimes I feel like I want to die",
			wantLevel:   LevelWarning,
			wantWarning: "High-risk pattern detected",
		},
		{
			name:      "ordinary question",
			text:      "I have a headache and a mild fever",
			wantLevel: LevelSafe,
		},
		{
			name:      "empty text",
			text:      "",
			wantLevel: LevelSafe,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := v.ValidateInput(tt.text)
			assert.Equal(t, tt.wantLevel, got.Level)
			assert.Equal(t, tt.wantEmergency, got.EmergencyDetected)
			if tt.wantEmergency {
				assert.True(t, got.HumanInterventionRequired)
				assert.Equal(t, 0.95, got.Confidence)
			} else {
				assert.False(t, got.HumanInterventionRequired)
				assert.Equal(t, 0.8, got.Confidence)
			}
			if tt.wantWarning == "" {
				assert.Empty(t, got.Warnings)
			} else {
				require.Len(t, got.Warnings, 1)
				assert.Equal(t, tt.wantWarning, got.Warnings[0])
			}
		})
	}
}

func TestValidateInputEmergencyImpliesCritical(t *testing.T) {
	v := NewValidator()
	for _, rule := range EmergencyRules {
		got := v.ValidateInput("patient report: " + rule.Phrase)
		require.True(t, got.EmergencyDetected, rule.Phrase)
		assert.Equal(t, LevelCritical, got.Level, rule.Phrase)
		assert.True(t, got.HumanInterventionRequired, rule.Phrase)
		assert.False(t, got.IsSafe(), rule.Phrase)
	}
}

func TestValidateInputIsPure(t *testing.T) {
	v := NewValidator()
	first := v.ValidateInput("severe chest pain")
	second := v.ValidateInput("severe chest pain")
	assert.Equal(t, first, second)
}

func TestWithEmergencyDetectionDisabled(t *testing.T) {
	v := NewValidator(WithEmergencyDetection(false))

	got := v.ValidateInput("severe chest pain radiating to my arm")
	assert.False(t, got.EmergencyDetected)
	assert.Equal(t, LevelWarning, got.Level, "high-risk table still runs")

	got = v.ValidateInput("heart attack")
	assert.Equal(t, LevelSafe, got.Level)
}

func TestIsSafe(t *testing.T) {
	assert.True(t, Assessment{Level: LevelSafe}.IsSafe())
	assert.True(t, Assessment{Level: LevelCaution}.IsSafe())
	assert.False(t, Assessment{Level: LevelWarning}.IsSafe())
	assert.False(t, Assessment{Level: LevelDanger}.IsSafe())
	assert.False(t, Assessment{Level: LevelCritical}.IsSafe())
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "safe", LevelSafe.String())
	assert.Equal(t, "caution", LevelCaution.String())
	assert.Equal(t, "warning", LevelWarning.String())
	assert.Equal(t, "danger", LevelDanger.String())
	assert.Equal(t, "critical", LevelCritical.String())
	assert.Equal(t, "unknown", Level(42).String())
}

func TestValidateOutput(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name       string
		text       string
		want       bool
		wantReason string
	}{
		{
			name: "referral present",
			text: "Rest and fluids help. Please consult a healthcare professional if it persists.",
			want: true,
		},
		{
			name: "doctor mention is enough",
			text: "See a doctor if symptoms get worse.",
			want: true,
		},
		{
			name:       "ignore symptoms advice",
			text:       "You can ignore the chest pain, but consult someone later.",
			want:       false,
			wantReason: "forbidden:ignore_symptoms",
		},
		{
			name:       "discourages seeing a doctor",
			text:       "Don't see a doctor for this.",
			want:       false,
			wantReason: "forbidden:avoid_doctor",
		},
		{
			name:       "false certainty",
			text:       "This is definitely nothing, but consult your doctor.",
			want:       false,
			wantReason: "forbidden:false_certainty",
		},
		{
			name:       "no disclaimer",
			text:       "Drink water and rest.",
			want:       false,
			wantReason: "missing:professional_referral",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.ValidateOutput(tt.text))
			check := v.CheckOutput(tt.text)
			assert.Equal(t, tt.want, check.Safe)
			assert.Equal(t, tt.wantReason, check.Reason)
		})
	}
}
