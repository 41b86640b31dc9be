// Package utils provides tiktoken-based token counting utilities.
package utils

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

//nolint:gochecknoglobals // codec construction is expensive; share one
var (
	codecOnce sync.Once
	codec     tokenizer.Codec
)

func sharedCodec() tokenizer.Codec {
	codecOnce.Do(func() {
		// Every provider is approximated with the GPT-4 encoding.
		c, err := tokenizer.ForModel(tokenizer.GPT4)
		if err == nil {
			codec = c
		}
	})
	return codec
}

// CountTokens returns the approximate number of tokens in text.
// Falls back to 4 characters per token if the codec is unavailable.
func CountTokens(text string) int {
	if text == "" {
		return 0
	}
	c := sharedCodec()
	if c == nil {
		return len(text) / 4
	}
	count, err := c.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return count
}

// TruncateToTokenLimit trims text to roughly limit tokens, appending "...".
// It cuts proportionally by characters, not on exact token boundaries.
func TruncateToTokenLimit(text string, limit int) string {
	current := CountTokens(text)
	if current <= limit {
		return text
	}
	charLimit := int(float64(len(text)) * float64(limit) / float64(current) * 0.9)
	if charLimit >= len(text) {
		return text
	}
	// Avoid splitting a multi-byte rune.
	for charLimit > 0 && charLimit < len(text) && text[charLimit]&0xC0 == 0x80 {
		charLimit--
	}
	return text[:charLimit] + "..."
}
