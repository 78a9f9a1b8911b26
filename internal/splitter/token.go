package splitter

import (
	"strings"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/prapp/rag/internal/logger"
)

// TokenCounter measures text in tokens and slices token tails for chunk
// overlap. Counts must be deterministic for identical input.
type TokenCounter interface {
	// Count returns the token length of text.
	Count(text string) int
	// Tail returns the trailing n tokens of text as a string.
	Tail(text string, n int) string
}

// NewTokenCounter returns a tiktoken-backed counter (cl100k_base, the
// encoding of the embedding model family), or the character heuristic
// when the encoding cannot be loaded.
func NewTokenCounter() TokenCounter {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		logger.Warn("tiktoken encoding unavailable, using character heuristic: %v", err)
		return HeuristicCounter{}
	}
	return &TiktokenCounter{enc: enc}
}

// TiktokenCounter counts with a real BPE tokenizer.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

func (c *TiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

func (c *TiktokenCounter) Tail(text string, n int) string {
	if n <= 0 || text == "" {
		return ""
	}
	toks := c.enc.Encode(text, nil, nil)
	if len(toks) <= n {
		return text
	}
	return c.enc.Decode(toks[len(toks)-n:])
}

// HeuristicCounter approximates one token per four characters, the
// degraded fallback the tokenizer-less path uses.
type HeuristicCounter struct{}

func (HeuristicCounter) Count(text string) int {
	return len(text) / 4
}

func (HeuristicCounter) Tail(text string, n int) string {
	if n <= 0 || text == "" {
		return ""
	}
	want := n * 4
	if want >= len(text) {
		return text
	}
	cut := len(text) - want
	// don't start mid-rune
	for cut < len(text) && !utf8.RuneStart(text[cut]) {
		cut++
	}
	// prefer starting on a word boundary
	if i := strings.IndexAny(text[cut:], " \n"); i >= 0 && cut+i+1 < len(text) {
		cut += i + 1
	}
	return text[cut:]
}
