// Package tokens counts and bounds prompt text by token count: a lazily
// initialized cl100k_base tiktoken encoding, falling back to a character
// heuristic if the encoding can't be loaded.
package tokens

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	once     sync.Once
	encoding *tiktoken.Tiktoken
)

func initEncoding() {
	once.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			encoding = enc
		}
	})
}

// Count returns text's token count via cl100k_base, falling back to
// EstimateFast if the encoding failed to load.
func Count(text string) int {
	initEncoding()
	if encoding != nil {
		return len(encoding.Encode(text, nil, nil))
	}
	return EstimateFast(text)
}

// EstimateFast is a cheap heuristic: max(runes/4, word_count).
func EstimateFast(text string) int {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0
	}
	runes := len([]rune(trimmed))
	words := len(strings.Fields(trimmed))
	estimate := runes / 4
	if estimate < words {
		estimate = words
	}
	if estimate == 0 {
		estimate = 1
	}
	return estimate
}

// TruncateTo truncates text to approximately maxTokens, dropping from the
// front so the most recent context (warnings, latest knowledge) survives —
// the opposite end from a typical chunker, which truncates from the back
// of a document; a capability prompt cares about what's freshest, not what's
// first.
func TruncateTo(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return text
	}
	initEncoding()
	if encoding != nil {
		toks := encoding.Encode(text, nil, nil)
		if len(toks) <= maxTokens {
			return text
		}
		return "..." + encoding.Decode(toks[len(toks)-maxTokens:])
	}
	runes := []rune(text)
	limit := maxTokens * 4
	if limit >= len(runes) {
		return text
	}
	return "..." + string(runes[len(runes)-limit:])
}
