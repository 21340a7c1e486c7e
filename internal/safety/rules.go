package safety

import (
	"regexp"
	"strings"
)

// Rule is one row of a detection table. Exactly one of Phrase or Pattern is set.
type Rule struct {
	Phrase  string
	Pattern *regexp.Regexp
	Level   Level
	Warning string
}

func (r Rule) match(lower string) bool {
	if r.Pattern != nil {
		return r.Pattern.MatchString(lower)
	}
	return r.Phrase != "" && strings.Contains(lower, r.Phrase)
}

func phraseRule(phrase string) Rule {
	return Rule{
		Phrase:  phrase,
		Level:   LevelCritical,
		Warning: "Emergency keyword detected: " + phrase,
	}
}

func patternRule(expr string) Rule {
	return Rule{
		Pattern: regexp.MustCompile(expr),
		Level:   LevelWarning,
		Warning: "High-risk pattern detected",
	}
}

// EmergencyRules is scanned in order; the first hit wins.
var EmergencyRules = []Rule{
	phraseRule("chest pain"),
	phraseRule("heart attack"),
	phraseRule("stroke"),
	phraseRule("cant breathe"),
	phraseRule("can't breathe"),
	phraseRule("difficulty breathing"),
	phraseRule("severe bleeding"),
	phraseRule("unconscious"),
	phraseRule("suicide"),
	phraseRule("overdose"),
	phraseRule("allergic reaction"),
	phraseRule("choking"),
	phraseRule("poisoning"),
	phraseRule("seizure"),
	phraseRule("paralysis"),
	phraseRule("loss of vision"),
}

// HighRiskRules run only when no emergency rule matched.
var HighRiskRules = []Rule{
	patternRule(`(want to|going to) (die|kill|harm)`),
	patternRule(`severe .* pain`),
	patternRule(`can'?t (breathe|see|move|feel)`),
	patternRule(`blood .* (vomit|stool|urine)`),
	patternRule(`temperature .* (above|over) .* (39|102)`),
}

type adviceRule struct {
	re     *regexp.Regexp
	reason string
}

var forbiddenAdvice = []adviceRule{
	{regexp.MustCompile(`ignore .* (chest pain|bleeding|symptoms)`), "forbidden:ignore_symptoms"},
	{regexp.MustCompile(`don'?t (see|visit|call) .* doctor`), "forbidden:avoid_doctor"},
	{regexp.MustCompile(`this is (definitely|certainly) (not|nothing)`), "forbidden:false_certainty"},
	{regexp.MustCompile(`you (don'?t need|shouldn'?t see) .* (doctor|hospital)`), "forbidden:discourage_care"},
}

var disclaimerPhrases = []string{"consult", "doctor", "healthcare professional", "medical advice"}
