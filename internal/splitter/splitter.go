// Package splitter segments raw document text into overlapping chunks
// bounded by a token budget, preferring coarse semantic boundaries
// (paragraphs) and only falling back to finer ones (lines, sentences,
// words) when a piece still exceeds the budget.
package splitter

import "strings"

// Separator priority, coarsest first. Separators stay attached to the
// preceding piece so that concatenating all pieces reproduces the input.
var separators = []string{"\n\n", "\n", ". ", "! ", "? ", " "}

// Splitter produces chunks of at most Budget tokens, each chunk after the
// first re-including the trailing Overlap tokens of its predecessor.
type Splitter struct {
	budget  int
	overlap int
	counter TokenCounter
}

// New creates a Splitter. budget <= 0 falls back to 1000 tokens and a
// negative overlap to 0; an overlap of at least the budget is clamped to
// half of it so fresh content always makes progress.
func New(budget, overlap int, counter TokenCounter) *Splitter {
	if budget <= 0 {
		budget = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= budget {
		overlap = budget / 2
	}
	if counter == nil {
		counter = NewTokenCounter()
	}
	return &Splitter{budget: budget, overlap: overlap, counter: counter}
}

// Budget returns the configured token budget.
func (s *Splitter) Budget() int { return s.budget }

// Overlap returns the configured overlap in tokens.
func (s *Splitter) Overlap() int { return s.overlap }

// Split segments text into chunks. Empty or whitespace-only input yields
// no chunks. The output is deterministic for identical input.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.merge(s.splitUnits(text, 0))
}

// effectiveBudget reserves headroom for the overlap prefix so that a
// carried tail plus one unit still fits the budget.
func (s *Splitter) effectiveBudget() int {
	return s.budget - s.overlap
}

// splitUnits recursively splits text until each unit fits the effective
// budget, trying the separator at sepIdx and descending to finer ones. A
// single word longer than the budget is kept whole rather than recursed
// below word level.
func (s *Splitter) splitUnits(text string, sepIdx int) []string {
	if s.counter.Count(text) <= s.effectiveBudget() {
		return []string{text}
	}
	if sepIdx >= len(separators) {
		// unbreakable run, accept as-is
		return []string{text}
	}
	pieces := splitAfter(text, separators[sepIdx])
	if len(pieces) == 1 {
		return s.splitUnits(text, sepIdx+1)
	}
	units := make([]string, 0, len(pieces))
	for _, p := range pieces {
		units = append(units, s.splitUnits(p, sepIdx+1)...)
	}
	return units
}

// merge greedily packs units into chunks of at most budget tokens. When a
// chunk closes, the trailing overlap tokens of it seed the next chunk.
func (s *Splitter) merge(units []string) []string {
	var chunks []string
	cur := ""
	base := "" // overlap prefix cur started with
	for _, u := range units {
		if cur != base && s.counter.Count(cur+u) > s.budget {
			chunks = append(chunks, cur)
			base = s.counter.Tail(cur, s.overlap)
			// shrink the carried overlap when the next unit is large
			for base != "" && s.counter.Count(base+u) > s.budget {
				base = trimLeadingWord(base)
			}
			cur = base + u
			continue
		}
		cur += u
	}
	if strings.TrimSpace(cur) != "" {
		chunks = append(chunks, cur)
	}
	return chunks
}

// splitAfter splits on sep keeping it attached to the preceding piece,
// dropping the empty trailing piece SplitAfter produces when text ends
// with sep.
func splitAfter(text, sep string) []string {
	pieces := strings.SplitAfter(text, sep)
	out := pieces[:0]
	for _, p := range pieces {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// trimLeadingWord drops the first word of text, including the separator
// that follows it.
func trimLeadingWord(text string) string {
	if i := strings.IndexAny(text, " \n"); i >= 0 && i+1 < len(text) {
		return text[i+1:]
	}
	return ""
}
