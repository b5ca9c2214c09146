package chat

import "regexp"

// Persona guard: outbound sanitization and inbound disclosure filtering.
// Sanitize never rejects input, it only strips and truncates; Filter is
// applied exactly once to final assembled assistant text, never per delta.

const maxInputRunes = 2000

// Structural role/instruction-delimiter tokens that could reframe the
// assistant's instructions when echoed into a prompt.
var roleMarkerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:system|assistant|user)\s*:`),
	regexp.MustCompile(`(?i)\[/?INST\]`),
	regexp.MustCompile(`<\|im_(?:start|end)\|>`),
	regexp.MustCompile(`<</?SYS>>`),
	regexp.MustCompile(`システム\s*[:：]`),
	regexp.MustCompile(`(?i)###\s*(?:instruction|system)s?\b`),
}

// Sanitize strips role-marker tokens from user input and truncates it before
// it is forwarded to the generation endpoint.
func Sanitize(input string) string {
	out := input
	for _, re := range roleMarkerPatterns {
		out = re.ReplaceAllString(out, "")
	}
	runes := []rune(out)
	if len(runes) > maxInputRunes {
		out = string(runes[:maxInputRunes])
	}
	return out
}

// Phrases that reveal the assistant is automated, matched in order.
var disclosurePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)as an AI(?: language model| assistant)?`),
	regexp.MustCompile(`(?i)I(?:'m| am) (?:an? )?(?:AI|artificial intelligence|language model|chat\s?bot|bot|virtual assistant)(?: language model| assistant)?`),
	regexp.MustCompile(`私はAI(?:アシスタント)?です`),
	regexp.MustCompile(`AI(?:アシスタント|チャットボット)`),
	regexp.MustCompile(`人工知能`),
	regexp.MustCompile(`(?i)language model`),
	regexp.MustCompile(`言語モデル`),
	regexp.MustCompile(`チャットボット`),
	regexp.MustCompile(`自動応答(?:システム)?`),
}

const personaSubstitute = "サポート担当"

// FilterDisclosure replaces each disclosure match with the persona-preserving
// substitute phrase.
func FilterDisclosure(output string) string {
	out := output
	for _, re := range disclosurePatterns {
		out = re.ReplaceAllString(out, personaSubstitute)
	}
	return out
}
