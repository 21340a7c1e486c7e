package triage

import "strings"

// symptomVocabulary is scanned in order; every match is returned.
var symptomVocabulary = []string{
	"headache", "fever", "cough", "pain", "nausea", "fatigue", "dizzy",
	"chest pain", "back pain", "stomach ache", "sore throat", "runny nose",
	"shortness of breath", "difficulty breathing",
}

type intentFamily struct {
	intent   Intent
	keywords []string
}

// intentFamilies is scanned in order; the first family with a hit wins.
var intentFamilies = []intentFamily{
	{IntentEmergency, []string{"emergency", "urgent", "help", "severe"}},
	{IntentSymptomCheck, []string{"pain", "hurt", "sick", "feel"}},
	{IntentAppointment, []string{"appointment", "book", "schedule"}},
	{IntentMedication, []string{"medicine", "medication", "drug"}},
	{IntentCulturalHealth, []string{"halal", "haram", "islamic", "ramadan"}},
}

// ExtractSymptoms returns every vocabulary term found in text, in
// vocabulary order.
func ExtractSymptoms(text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, s := range symptomVocabulary {
		if strings.Contains(lower, s) {
			found = append(found, s)
		}
	}
	return found
}

// ClassifyIntent picks the first keyword family present in text, defaulting
// to general_health.
func ClassifyIntent(text string) Intent {
	lower := strings.ToLower(text)
	for _, f := range intentFamilies {
		if containsAny(lower, f.keywords) {
			return f.intent
		}
	}
	return IntentGeneralHealth
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// isFaithTag reports whether a cultural background gets Islamic annotations.
func isFaithTag(background string) bool {
	switch strings.ToLower(strings.TrimSpace(background)) {
	case "islamic", "muslim":
		return true
	}
	return false
}
