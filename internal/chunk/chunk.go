// Package chunk estimates token cost of conversation text and splits long
// conversations into line-aligned chunks that fit a token budget.
package chunk

import (
	"strings"
	"unicode/utf16"
)

// DefaultMaxTokens is the per-chunk token budget used when none is configured.
const DefaultMaxTokens = 6000

// charsPerToken is the character-to-token ratio of the estimate.
const charsPerToken = 4

// EstimateTokens approximates the token count of text as ceil(chars / 4),
// counting characters as UTF-16 code units so an emoji counts twice. It is a
// heuristic, not a tokenizer.
func EstimateTokens(text string) int {
	return tokensFor(textLen(text))
}

// textLen is the length of s in UTF-16 code units.
func textLen(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

func tokensFor(chars int) int {
	return (chars + charsPerToken - 1) / charsPerToken
}

// NeedsChunking reports whether text exceeds the token budget.
func NeedsChunking(text string, maxTokens int) bool {
	return EstimateTokens(text) > normalize(maxTokens)
}

// Split returns text as a single chunk when it fits maxTokens, otherwise the
// result of Conversation.
func Split(text string, maxTokens int) []string {
	maxTokens = normalize(maxTokens)
	if !NeedsChunking(text, maxTokens) {
		return []string{text}
	}
	return Conversation(text, maxTokens)
}

// Conversation greedily packs the lines of text into chunks whose estimated
// size stays within maxTokens. A chunk is closed only when it is non-empty
// and the next line would push it over budget, so a single oversized line is
// emitted whole rather than truncated. Joining the chunks with "\n"
// reproduces the input apart from a dropped all-blank tail.
func Conversation(text string, maxTokens int) []string {
	maxTokens = normalize(maxTokens)

	var (
		chunks  []string
		current strings.Builder
		units   int
		lines   int
	)

	for _, line := range strings.Split(text, "\n") {
		n := textLen(line)
		if units > 0 && tokensFor(units+1+n) > maxTokens {
			chunks = append(chunks, current.String())
			current.Reset()
			units, lines = 0, 0
		}
		if lines > 0 {
			current.WriteByte('\n')
			units++
		}
		current.WriteString(line)
		units += n
		lines++
	}

	if tail := current.String(); strings.TrimSpace(tail) != "" {
		chunks = append(chunks, tail)
	}
	return chunks
}

func normalize(maxTokens int) int {
	if maxTokens <= 0 {
		return DefaultMaxTokens
	}
	return maxTokens
}
