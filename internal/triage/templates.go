package triage

import (
	"fmt"
	"strings"

	"github.com/afiyalink/afiyalink-assistant/internal/knowledge"
)

const emergencyText = `🚨 MEDICAL EMERGENCY DETECTED 🚨

CALL EMERGENCY SERVICES IMMEDIATELY:
• US: 911
• UK: 999
• EU: 112
• India: 102

IMMEDIATE ACTIONS:
• Stay calm and call for help
• Follow dispatcher instructions exactly
• Stay with the person if safe to do so
• Be prepared for CPR if trained
• Do not move the person unless in immediate danger

⚠️ TIME IS CRITICAL - EVERY SECOND COUNTS

This is a life-threatening situation requiring immediate professional medical intervention.`

const safeFallbackText = `I apologize, but I'm experiencing technical difficulties.

For any health concerns:
🏥 Please consult with a qualified healthcare professional
📞 Contact your doctor or healthcare provider
🚨 For emergencies, call emergency services immediately

Emergency Numbers:
• US: 911
• UK: 999
• EU: 112
• India: 102

Your health and safety are the top priority.`

const errorText = "I apologize for the technical issue. For any health concerns, please consult with a qualified healthcare professional or contact emergency services if urgent."

const emergencyFooter = "\n\n🚨 If this is an emergency, call emergency services now: US 911 | UK 999 | EU 112 | India 102"

const symptomTemplate = `Thank you for sharing your health concern. While I can provide general information, I cannot diagnose medical conditions.

For any symptoms:
• Monitor how you're feeling and note any changes
• Consider basic self-care (rest, hydration, healthy diet)
• Keep track of when symptoms started
• Note any triggers or patterns

⚠️ Seek medical attention if you experience:
• Severe or worsening symptoms
• Symptoms that persist or don't improve
• Any emergency warning signs
• Symptoms that interfere with daily activities

🏥 Always consult with a qualified healthcare professional for proper evaluation, diagnosis, and treatment of any health concerns.`

const appointmentTemplate = `To schedule a medical appointment:

📞 Contact Methods:
• Call your healthcare provider directly
• Use your health insurance provider directory
• Visit your clinic's website or patient portal
• Use healthcare apps available in your area

📋 Information to prepare:
• Insurance information
• Preferred appointment times
• Reason for visit
• Current medications
• Previous medical records if relevant

🕌 Cultural Considerations:
• You may request a healthcare provider of your preferred gender
• Inform them of any religious practices that may affect treatment
• Prayer times can be considered when scheduling

If this is urgent, contact your healthcare provider immediately or visit an urgent care facility.`

const medicationTemplate = `For medication-related questions:

⚕️ Always Consult:
• Your prescribing doctor
• Your pharmacist
• Healthcare professionals familiar with your medical history

🚫 Important Safety Guidelines:
• Never stop medications without medical supervision
• Don't share medications with others
• Follow prescribed dosages exactly
• Be aware of potential drug interactions

🕌 Islamic Considerations:
• Most medications are permissible when medically necessary
• Discuss any religious concerns with your healthcare provider
• During Ramadan, medication timing may need adjustment
• Consult Islamic scholars for specific religious guidance if needed

For medication emergencies or severe side effects, seek immediate medical attention.`

const generalTemplate = `I'm here to provide general health information and guidance.

🏥 For specific health concerns:
• Consult qualified healthcare professionals
• Contact your primary care doctor
• Visit urgent care for non-emergency concerns
• Call emergency services for life-threatening situations

📚 I can help with:
• General health information
• Guidance on when to seek medical care
• Basic health and wellness tips
• Cultural health considerations

🕌 Islamic Health Principles:
• Taking care of your health is a religious obligation
• Seeking medical treatment is encouraged in Islam
• Prevention is emphasized in Islamic teachings
• Balance in all aspects of life promotes good health

Please feel free to ask specific health-related questions, and I'll provide reliable, general information while always recommending professional medical consultation when appropriate.`

// Template families for the rule stage, checked in order.
const (
	TemplateSymptom     = "symptom"
	TemplateAppointment = "appointment"
	TemplateMedication  = "medication"
	TemplateGeneral     = "general"
)

type ruleTemplate struct {
	name     string
	keywords []string
	text     string
}

var ruleTemplates = []ruleTemplate{
	{TemplateSymptom, []string{"pain", "hurt", "ache", "feel", "sick"}, symptomTemplate},
	{TemplateAppointment, []string{"appointment", "book", "schedule", "doctor"}, appointmentTemplate},
	{TemplateMedication, []string{"medicine", "medication", "drug", "pill"}, medicationTemplate},
}

// SelectTemplate returns the canned reply family for text and its body.
func SelectTemplate(text string) (string, string) {
	lower := strings.ToLower(text)
	for _, t := range ruleTemplates {
		if containsAny(lower, t.keywords) {
			return t.name, t.text
		}
	}
	return TemplateGeneral, generalTemplate
}

const (
	medicationNote = "\n\n🕌 Islamic Note: Most medications are halal when medically necessary. During Ramadan, consult your doctor about timing."
	remedyNote     = "\n\n🕌 Islamic Tradition: The Prophet (PBUH) recommended natural remedies like black seed and honey for healing."
	lifeNote       = "\n\n🕌 Islamic Principle: Preserving life (hifz al-nafs) is one of the highest priorities in Islam."
)

// annotateCulture appends at most one note. Existing text is never changed.
func annotateCulture(text string, symptoms []string, intent Intent) string {
	switch intent {
	case IntentMedication:
		if !strings.Contains(strings.ToLower(text), "cultural note") {
			return text + medicationNote
		}
	case IntentSymptomCheck:
		for _, s := range symptoms {
			if s == "fever" || s == "headache" {
				return text + remedyNote
			}
		}
	case IntentEmergency:
		return text + lifeNote
	}
	return text
}

// FormatKnowledge renders a knowledge entry as a reply.
func FormatKnowledge(e *knowledge.Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Information about %s:\n\n", e.Symptom)
	fmt.Fprintf(&b, "📝 Description: %s\n\n", e.Description)
	fmt.Fprintf(&b, "🔍 Possible causes: %s\n\n", e.PossibleCauses)
	fmt.Fprintf(&b, "🏠 Self-care suggestions: %s\n\n", e.SelfCareAdvice)
	fmt.Fprintf(&b, "⚠️ See a doctor if: %s\n\n", e.WhenToSeeDoctor)
	if e.EmergencyIndicators != "" {
		fmt.Fprintf(&b, "🚨 SEEK EMERGENCY CARE if: %s\n\n", e.EmergencyIndicators)
	}
	if e.CulturalNote != "" {
		fmt.Fprintf(&b, "🕌 Cultural note: %s\n\n", e.CulturalNote)
	}
	b.WriteString("⚕️ This is general information only. Please consult a healthcare professional for proper diagnosis and treatment.")
	return b.String()
}

var regionNumbers = map[string]string{
	"US": "911", "CA": "911", "MX": "911",
	"GB": "999", "UK": "999",
	"IN": "102",
	"AT": "112", "BE": "112", "DE": "112", "DK": "112", "ES": "112", "FI": "112",
	"FR": "112", "GR": "112", "IE": "112", "IT": "112", "NL": "112", "PL": "112",
	"PT": "112", "SE": "112", "EU": "112",
	"AE": "999", "SA": "997", "PK": "1122", "KE": "999", "NG": "112", "EG": "123",
}

// EmergencyNumber returns the local emergency number for an ISO country code.
func EmergencyNumber(region string) (string, bool) {
	n, ok := regionNumbers[strings.ToUpper(strings.TrimSpace(region))]
	return n, ok
}

// EmergencyText is the fixed emergency reply, led by the local number when
// the region is known.
func EmergencyText(region string) string {
	n, ok := EmergencyNumber(region)
	if !ok {
		return emergencyText
	}
	header, rest, _ := strings.Cut(emergencyText, "\n\n")
	return fmt.Sprintf("%s\n\n📍 YOUR LOCAL EMERGENCY NUMBER: %s\n\n%s", header, n, rest)
}
