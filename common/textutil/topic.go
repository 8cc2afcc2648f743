// Package textutil provides the small text helpers shared by the memory
// manager and the conversation engine: topic extraction, tokenization for
// keyword-overlap scoring, and normalized string similarity.
//
// Topic extraction is the correlation key between key memories, history
// entries, and generated replies — the same rule must be applied everywhere,
// which is why it lives in one package instead of being re-implemented at
// each call-site.
package textutil

import (
	"strings"
	"unicode"
)

// topicRuneLimit caps the extracted topic when the text contains no sentence
// boundary at all (e.g. a run-on message).
const topicRuneLimit = 50

// sentenceTerminators are the characters treated as sentence boundaries.
// Both CJK full-width and ASCII punctuation are recognized because user
// messages mix scripts freely.
const sentenceTerminators = "。！？.!?"

// ExtractTopic returns the first sentence of text, trimmed of surrounding
// whitespace. When text contains no sentence terminator, the first 50 runes
// are returned instead. An all-whitespace input yields the empty string.
func ExtractTopic(text string) string {
	var current strings.Builder
	count := 0
	for _, r := range text {
		if strings.ContainsRune(sentenceTerminators, r) {
			if s := strings.TrimSpace(current.String()); s != "" {
				return s
			}
			// Empty segment (e.g. leading punctuation) — keep scanning.
			current.Reset()
			continue
		}
		current.WriteRune(r)
		count++
	}

	// Trailing segment without a terminator (e.g. "。今天天气").
	if s := strings.TrimSpace(current.String()); s != "" && current.Len() < len(text) {
		return s
	}

	// No terminator produced a non-empty sentence: fall back to a rune prefix.
	runes := []rune(text)
	if len(runes) > topicRuneLimit {
		runes = runes[:topicRuneLimit]
	}
	return strings.TrimSpace(string(runes))
}

// Tokens splits text into lower-cased whitespace-separated tokens.
// Used for the keyword-overlap relevance scoring in the memory manager.
func Tokens(text string) []string {
	fields := strings.FieldsFunc(text, unicode.IsSpace)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		tokens = append(tokens, strings.ToLower(f))
	}
	return tokens
}
