// Package injection implements the prompt-injection detector and
// sanitizer (C10): a fixed rule set of regexes scored by risk weight,
// Unicode-aware normalization passes, and four sanitization modes.
package injection

import "regexp"

// RuleType classifies the kind of injection attempt a rule targets.
type RuleType string

const (
	TypeInstructionOverride RuleType = "instruction_override"
	TypeJailbreak           RuleType = "jailbreak"
	TypeRoleManipulation    RuleType = "role_manipulation"
	TypeDataExfiltration    RuleType = "data_exfiltration"
	TypeDelimiterAttack     RuleType = "delimiter_attack"
	TypeContextReset        RuleType = "context_reset"
	TypePromptLeakage       RuleType = "prompt_leakage"
	TypeEncodedBlob         RuleType = "encoded_blob"
	TypeTokenSmuggling      RuleType = "token_smuggling"
)

type rule struct {
	typ        RuleType
	re         *regexp.Regexp
	confidence float64
	riskWeight float64
}

var rules = []rule{
	{TypeInstructionOverride, regexp.MustCompile(`(?i)ignore\s+(all\s+)?(the\s+)?(previous|prior|above)\s+(instructions?|prompts?|rules?)`), 0.9, 0.4},
	{TypeInstructionOverride, regexp.MustCompile(`(?i)disregard\s+(the\s+)?(previous|prior|above)\s+(instructions?|rules?)`), 0.85, 0.35},
	{TypeJailbreak, regexp.MustCompile(`(?i)\b(DAN|do anything now)\b`), 0.8, 0.4},
	{TypeJailbreak, regexp.MustCompile(`(?i)you\s+are\s+no\s+longer\s+bound\s+by`), 0.85, 0.4},
	{TypeJailbreak, regexp.MustCompile(`(?i)pretend\s+(that\s+)?you\s+have\s+no\s+(restrictions|limits|filters)`), 0.8, 0.35},
	{TypeRoleManipulation, regexp.MustCompile(`(?i)you\s+are\s+now\s+(a|an)\s+\w+`), 0.6, 0.25},
	{TypeRoleManipulation, regexp.MustCompile(`(?i)act\s+as\s+(if\s+you\s+are\s+)?(a|an)\s+\w+`), 0.55, 0.2},
	{TypeRoleManipulation, regexp.MustCompile(`(?i)system\s*:\s*you\s+are`), 0.75, 0.3},
	{TypeDataExfiltration, regexp.MustCompile(`(?i)reveal\s+(your|the)\s+(system\s+)?prompt`), 0.85, 0.4},
	{TypeDataExfiltration, regexp.MustCompile(`(?i)(print|output|show)\s+(your|the)\s+(instructions|system\s+prompt|configuration)`), 0.8, 0.35},
	{TypeDataExfiltration, regexp.MustCompile(`(?i)what\s+(are\s+)?your\s+(initial\s+)?instructions`), 0.6, 0.25},
	{TypeDelimiterAttack, regexp.MustCompile("```[a-zA-Z]*\\s*system"), 0.6, 0.25},
	{TypeDelimiterAttack, regexp.MustCompile(`(?i)<\|?(system|im_start|im_end)\|?>`), 0.7, 0.3},
	{TypeDelimiterAttack, regexp.MustCompile(`\[INST\]|\[/INST\]`), 0.65, 0.3},
	{TypeContextReset, regexp.MustCompile(`(?i)(forget|erase|clear)\s+(everything|all)\s+(you\s+)?(know|remember|learned)`), 0.75, 0.3},
	{TypeContextReset, regexp.MustCompile(`(?i)start\s+(a\s+)?new\s+conversation\s+(and\s+)?forget`), 0.7, 0.3},
	{TypePromptLeakage, regexp.MustCompile(`(?i)repeat\s+(the\s+)?(words|text)\s+above`), 0.65, 0.25},
	{TypePromptLeakage, regexp.MustCompile(`(?i)what\s+was\s+written\s+before\s+this\s+message`), 0.55, 0.2},
	{TypeEncodedBlob, regexp.MustCompile(`\b(?:[A-Za-z0-9+/]{40,}={0,2})\b`), 0.4, 0.1},
}

// tokenSmugglingRule matches the same invisible characters stripInvisible
// removes. It is scored separately from rules: Detect and Sanitize must
// run it against text before stripInvisible ever touches it, or the
// characters it looks for are already gone by the time matching happens.
// Its weight stays below 0.3 and counts once per text (later matches
// carry no weight), so smuggling alone never crosses into LevelMedium
// (see levelFor).
var tokenSmugglingRule = rule{TypeTokenSmuggling, regexp.MustCompile("[​‌‍﻿᠎⁠­]"), 0.7, 0.15}

// detectTokenSmuggling runs tokenSmugglingRule against raw, unstripped
// text so invisible-character payloads are caught before any
// normalization pass can delete them.
func detectTokenSmuggling(text string) []Match {
	var matches []Match
	for i, loc := range tokenSmugglingRule.re.FindAllStringIndex(text, -1) {
		weight := tokenSmugglingRule.riskWeight
		if i > 0 {
			weight = 0
		}
		matches = append(matches, Match{
			Type: tokenSmugglingRule.typ, Start: loc[0], End: loc[1],
			Confidence: tokenSmugglingRule.confidence, RiskWeight: weight,
		})
	}
	return matches
}
