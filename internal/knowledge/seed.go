package knowledge

const emergencyNumbers = "Emergency: 911 (US), 999 (UK), 112 (EU), 102 (India)"

// SeedEntries is the built-in symptom guidance.
var SeedEntries = []Entry{
	{
		Symptom:             "headache",
		Description:         "Pain in the head or neck area",
		PossibleCauses:      "tension, dehydration, stress, eye strain, lack of sleep",
		SelfCareAdvice:      "rest in quiet dark room, drink water, gentle massage, over-the-counter pain relief",
		WhenToSeeDoctor:     "if severe, sudden onset, with fever, vision changes, or neck stiffness",
		EmergencyIndicators: "sudden severe headache, confusion, vision loss, neck stiffness, high fever",
		SeverityLevel:       SeverityLow,
		CulturalNote:        "Islamic tradition recommends black seed oil and honey. Prayer and dhikr may help with stress-related headaches.",
		Reliability:         0.95,
	},
	{
		Symptom:             "fever",
		Description:         "Body temperature above 38°C (100.4°F)",
		PossibleCauses:      "infection, viral illness, bacterial infection, inflammatory conditions",
		SelfCareAdvice:      "rest, increase fluid intake, light clothing, monitor temperature, acetaminophen or ibuprofen",
		WhenToSeeDoctor:     "if temperature above 39°C (102°F), persists >3 days, or with severe symptoms",
		EmergencyIndicators: "temperature above 40°C (104°F), difficulty breathing, confusion, severe dehydration",
		SeverityLevel:       SeverityMedium,
		CulturalNote:        "During Ramadan, break fast if needed for medication. Consult with Islamic scholar about religious obligations during illness.",
		Reliability:         0.98,
	},
	{
		Symptom:             "chest_pain",
		Description:         "Discomfort or pain in the chest area",
		PossibleCauses:      "heart conditions, lung problems, muscle strain, acid reflux, anxiety",
		SelfCareAdvice:      "sit upright, loosen tight clothing, take slow deep breaths",
		WhenToSeeDoctor:     "any chest pain should be evaluated by healthcare professional immediately",
		EmergencyIndicators: "crushing pain, radiating to arm/jaw, shortness of breath, sweating, nausea",
		SeverityLevel:       SeverityHigh,
		CulturalNote:        "Seek immediate medical attention. Islamic teaching emphasizes preserving life above all religious obligations.",
		Reliability:         0.99,
	},
	{
		Symptom:             "cough",
		Description:         "Forceful expulsion of air from lungs",
		PossibleCauses:      "cold, flu, allergies, infection, asthma",
		SelfCareAdvice:      "warm liquids, honey, steam inhalation, throat lozenges",
		WhenToSeeDoctor:     "if persistent >2 weeks, blood in sputum, or breathing difficulty",
		EmergencyIndicators: "severe breathing difficulty, blood in sputum, high fever with cough",
		SeverityLevel:       SeverityLow,
		CulturalNote:        "Honey mentioned in Quran as healing. Avoid honey for children under 1 year.",
		Reliability:         0.92,
	},
	{
		Symptom:             "nausea",
		Description:         "Feeling of sickness with urge to vomit",
		PossibleCauses:      "stomach virus, food poisoning, motion sickness, pregnancy, medication side effects",
		SelfCareAdvice:      "small sips of clear fluids, rest, bland foods like crackers",
		WhenToSeeDoctor:     "if persistent vomiting, signs of dehydration, or severe abdominal pain",
		EmergencyIndicators: "severe dehydration, blood in vomit, severe abdominal pain",
		SeverityLevel:       SeverityLow,
		CulturalNote:        "Ginger tea is recommended in Islamic medicine for nausea.",
		Reliability:         0.90,
	},
}

// SeedProtocols is the built-in emergency first-aid guidance.
var SeedProtocols = []Protocol{
	{
		Condition:        "chest_pain",
		ImmediateActions: "Call emergency services immediately (911/999/112). Have person sit upright. Loosen tight clothing. If conscious and not allergic, give aspirin if available. Monitor breathing and pulse.",
		WarningSigns:     "crushing or squeezing chest pain, pain radiating to arm/jaw/back, shortness of breath, sweating, nausea, dizziness",
		EmergencyNumbers: emergencyNumbers,
		CulturalNote:     "Islamic principle: preserving life overrides all other obligations. Seek help immediately.",
	},
	{
		Condition:        "difficulty_breathing",
		ImmediateActions: "Call emergency services immediately. Help person sit upright. Loosen tight clothing. If they have prescribed inhaler, help them use it. Stay calm and reassuring.",
		WarningSigns:     "severe shortness of breath, wheezing, blue lips/fingernails, confusion, inability to speak in full sentences",
		EmergencyNumbers: emergencyNumbers,
		CulturalNote:     "Life-threatening situation requiring immediate medical intervention.",
	},
	{
		Condition:        "severe_bleeding",
		ImmediateActions: "Call emergency services. Apply direct pressure to wound with clean cloth. Elevate injured area above heart if possible. Do not remove embedded objects.",
		WarningSigns:     "bleeding that won't stop, large amount of blood loss, weakness, confusion",
		EmergencyNumbers: emergencyNumbers,
		CulturalNote:     "Saving life is paramount in Islamic teaching.",
	},
}
