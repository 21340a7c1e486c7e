package safety

import (
	"regexp"
	"strings"
)

// GuardResult is the outcome of scanning user text before it is embedded
// in an AI prompt.
type GuardResult struct {
	Blocked bool
	// Score is 0.0 for clean text and approaches 1.0 as signals accumulate.
	Score   float64
	Reasons []string
}

type guardPattern struct {
	re     *regexp.Regexp
	reason string
	weight float64
}

const blockThreshold = 0.7

var directInjectionPatterns = []guardPattern{
	{regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above|earlier|your)\s+(instructions?|rules?|prompts?|guidelines?|directives?|programming)`), "direct_injection:ignore_instructions", 0.9},
	{regexp.MustCompile(`(?i)disregard\s+(all\s+)?(previous|prior|above|earlier|your)\s+(instructions?|rules?|prompts?|guidelines?|directives?)`), "direct_injection:disregard_instructions", 0.9},
	{regexp.MustCompile(`(?i)forget\s+(all\s+)?(previous|prior|above|earlier|your)\s+(instructions?|rules?|prompts?|guidelines?|directives?)`), "direct_injection:forget_instructions", 0.9},
	{regexp.MustCompile(`(?i)you\s+are\s+now\s+(a|an|my)\s+`), "direct_injection:role_reassignment", 0.7},
	{regexp.MustCompile(`(?i)new\s+role\s*:|new\s+instructions?\s*:|system\s*prompt\s*:|<<\s*sys(tem)?\s*>>`), "direct_injection:new_role", 0.9},
	{regexp.MustCompile(`(?i)override\s+(your\s+)?(system|instructions?|rules?|safety|guidelines?)`), "direct_injection:override", 0.8},
	{regexp.MustCompile(`(?i)(pretend|imagine|suppose|assume)\s+(that\s+)?(you\s+)?(are|have|were|don'?t\s+have)\s+(no\s+)?(rules?|restrictions?|limits?|guidelines?|filters?|safety)`), "direct_injection:pretend_no_rules", 0.9},
	{regexp.MustCompile(`(?i)(act|respond)\s+as\s+(a\s+|my\s+)?(licensed\s+)?(doctor|physician)\s+(and|to)\s+(diagnose|prescribe)`), "direct_injection:impersonate_clinician", 0.7},
	{regexp.MustCompile(`(?i)bypass\s+(your\s+)?(safety|filters?|restrictions?|guidelines?|rules?|content\s+policy)`), "direct_injection:bypass", 0.8},
	{regexp.MustCompile(`(?i)jailbreak|DAN\s*mode|developer\s*mode|unrestricted\s*mode|god\s*mode`), "direct_injection:jailbreak_keyword", 0.9},
}

var exfiltrationPatterns = []guardPattern{
	{regexp.MustCompile(`(?i)(reveal|show|display|print|output|repeat|tell\s+me|what\s+(is|are))\s+(your\s+)?(system\s+prompt|instructions?|initial\s+prompt|hidden\s+prompt|system\s+message|original\s+prompt)`), "exfiltration:system_prompt", 0.8},
	{regexp.MustCompile(`(?i)(what|list|show|give|tell)\s+(me\s+)?(all\s+)?(the\s+)?(other\s+)?(users?|patients?)('?s)?\s+(data|info|names?|messages?|records?|histor(y|ies)|conversations?)`), "exfiltration:user_data", 0.7},
	{regexp.MustCompile(`(?i)\b(api|secret|openai|gemini|aws|database|db)\s*(key|token|secret|password|credential)s?\b`), "exfiltration:credentials_keyword", 0.8},
	{regexp.MustCompile(`(?i)repeat\s+(everything|all|the\s+text)\s+(above|before|from\s+the\s+start|from\s+the\s+beginning)`), "exfiltration:repeat_above", 0.7},
}

var obfuscationPatterns = []guardPattern{
	{regexp.MustCompile(`(?i)base64\s*(encode|decode|:)|\\x[0-9a-fA-F]{2}`), "obfuscation:encoding", 0.5},
	{regexp.MustCompile(`!\[.*\]\(https?://`), "obfuscation:markdown_image", 0.4},
	{regexp.MustCompile(`<\s*(script|img|iframe|object|embed|link|style|svg|form)\b`), "obfuscation:html_injection", 0.6},
}

var contextManipulationPatterns = []guardPattern{
	{regexp.MustCompile(`(?i)(end\s+of\s+)?(system|assistant)\s*(message|prompt|instructions?)\s*[\-=]{2,}`), "context_manipulation:fake_boundary", 0.8},
	{regexp.MustCompile(`(?i)\[/?INST\]|\[/?SYS\]|<\|im_start\|>|<\|im_end\|>|<\|system\|>|<\|user\|>|<\|assistant\|>`), "context_manipulation:special_tokens", 0.9},
	{regexp.MustCompile(`(?i)###\s*(system|instruction|human|assistant|user)\s*:`), "context_manipulation:role_markers", 0.7},
	{regexp.MustCompile(`(?i)the\s+real\s+(instructions?|task|prompt|conversation)\s+(is|starts?|begins?)`), "context_manipulation:real_instructions", 0.8},
}

var allGuardPatterns = func() []guardPattern {
	out := make([]guardPattern, 0, len(directInjectionPatterns)+len(exfiltrationPatterns)+len(obfuscationPatterns)+len(contextManipulationPatterns))
	out = append(out, directInjectionPatterns...)
	out = append(out, exfiltrationPatterns...)
	out = append(out, obfuscationPatterns...)
	return append(out, contextManipulationPatterns...)
}()

// ScanForPromptInjection scores user text for attempts to subvert the AI
// prompt. The score is the strongest signal plus 0.1 per extra signal.
func ScanForPromptInjection(message string) GuardResult {
	if strings.TrimSpace(message) == "" {
		return GuardResult{}
	}

	var reasons []string
	maxWeight := 0.0
	for _, p := range allGuardPatterns {
		if p.re.MatchString(message) {
			reasons = append(reasons, p.reason)
			if p.weight > maxWeight {
				maxWeight = p.weight
			}
		}
	}

	score := maxWeight
	if len(reasons) > 1 {
		score = maxWeight + float64(len(reasons)-1)*0.1
		if score > 1.0 {
			score = 1.0
		}
	}

	return GuardResult{
		Blocked: score >= blockThreshold,
		Score:   score,
		Reasons: reasons,
	}
}

var (
	specialTokenRe  = regexp.MustCompile(`(?i)\[/?INST\]|\[/?SYS\]|<\|im_start\|>|<\|im_end\|>|<\|system\|>|<\|user\|>|<\|assistant\|>`)
	roleMarkerRe    = regexp.MustCompile(`(?i)###\s*(system|instruction|human|assistant|user)\s*:`)
	htmlTagRe       = regexp.MustCompile(`<\s*(script|img|iframe|object|embed|link|style|svg|form)\b[^>]*>`)
	markdownImageRe = regexp.MustCompile(`!\[.*?\]\(https?://[^)]+\)`)
	doubleQuoteRe   = regexp.MustCompile(`"+`)
)

// SanitizeForLLM strips injection markers from text that is about to be
// quoted inside a prompt. Double quotes become single quotes so the text
// cannot close the surrounding quotation.
func SanitizeForLLM(message string) string {
	cleaned := specialTokenRe.ReplaceAllString(message, "")
	cleaned = roleMarkerRe.ReplaceAllString(cleaned, "")
	cleaned = htmlTagRe.ReplaceAllString(cleaned, "")
	cleaned = markdownImageRe.ReplaceAllString(cleaned, "")
	cleaned = doubleQuoteRe.ReplaceAllString(cleaned, "'")
	return strings.TrimSpace(cleaned)
}
