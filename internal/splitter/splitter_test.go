package splitter

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sentence is 59 bytes, ~15 heuristic tokens, separator included.
const sentence = "the quick brown fox jumps over a lazy dog in the old yard. "

// paragraph builds a paragraph of n sentences terminated by a blank line.
func paragraph(n int) string {
	return strings.TrimSuffix(strings.Repeat(sentence, n), " ") + "\n\n"
}

func TestSplitEmptyInput(t *testing.T) {
	s := New(1000, 200, HeuristicCounter{})
	assert.Nil(t, s.Split(""))
	assert.Nil(t, s.Split("   \n\t  \n"))
}

func TestSplitShortTextSingleChunk(t *testing.T) {
	s := New(1000, 200, HeuristicCounter{})
	text := "A short note that easily fits in one chunk."
	chunks := s.Split(text)
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])
}

func TestSplitPrefersParagraphBoundaries(t *testing.T) {
	s := New(1000, 200, HeuristicCounter{})
	// two paragraphs of ~600 tokens each, both within the effective budget
	p1 := paragraph(40)
	p2 := strings.TrimSuffix(paragraph(40), "\n\n")
	chunks := s.Split(p1 + p2)
	require.Len(t, chunks, 2)
	assert.Equal(t, p1, chunks[0])
	assert.True(t, strings.HasSuffix(chunks[1], p2))
}

func TestChunksNeverExceedBudget(t *testing.T) {
	counter := HeuristicCounter{}
	s := New(1000, 200, counter)
	text := paragraph(56) + paragraph(56) + paragraph(56)
	chunks := s.Split(text)
	require.NotEmpty(t, chunks)
	for i, c := range chunks {
		assert.LessOrEqual(t, counter.Count(c), 1000, "chunk %d over budget", i)
	}
}

func TestLongDocumentChunkCountAndOverlap(t *testing.T) {
	counter := HeuristicCounter{}
	s := New(1000, 200, counter)
	// three paragraphs of ~830 tokens each, ~2500 tokens total
	text := paragraph(56) + paragraph(56) + strings.TrimSuffix(paragraph(56), "\n\n")
	require.InDelta(t, 2500, counter.Count(text), 60)

	chunks := s.Split(text)
	require.GreaterOrEqual(t, len(chunks), 3)
	require.LessOrEqual(t, len(chunks), 5)

	for i := 1; i < len(chunks); i++ {
		shared := sharedBoundary(chunks[i-1], chunks[i])
		assert.GreaterOrEqual(t, counter.Count(shared), 180,
			"chunks %d and %d share too little context", i-1, i)
	}
}

func TestOverlapReconstructsOriginalText(t *testing.T) {
	s := New(1000, 200, HeuristicCounter{})
	// unique sentences keep overlap boundaries unambiguous
	var b strings.Builder
	for i := 0; i < 180; i++ {
		fmt.Fprintf(&b, "Entry %d covers the incident reported on day %d in full detail. ", i, i*3+7)
		if i%12 == 11 {
			b.WriteString("\n\n")
		}
	}
	text := b.String() + "closing line"
	chunks := s.Split(text)
	require.NotEmpty(t, chunks)

	rebuilt := chunks[0]
	for i := 1; i < len(chunks); i++ {
		shared := sharedBoundary(chunks[i-1], chunks[i])
		rebuilt += chunks[i][len(shared):]
	}
	assert.Equal(t, text, rebuilt)
}

func TestUnsplittableRunKeptWhole(t *testing.T) {
	s := New(1000, 200, HeuristicCounter{})
	// a single 6000-byte run with no separators, 1500 heuristic tokens
	blob := strings.Repeat("x", 6000)
	chunks := s.Split(blob)
	require.Len(t, chunks, 1)
	assert.Equal(t, blob, chunks[0])
}

func TestSplitIsDeterministic(t *testing.T) {
	s := New(1000, 200, HeuristicCounter{})
	text := paragraph(56) + paragraph(56)
	assert.Equal(t, s.Split(text), s.Split(text))
}

func TestNewClampsConfig(t *testing.T) {
	s := New(0, -5, HeuristicCounter{})
	assert.Equal(t, 1000, s.Budget())
	assert.Equal(t, 0, s.Overlap())

	s = New(100, 150, HeuristicCounter{})
	assert.Equal(t, 100, s.Budget())
	assert.Equal(t, 50, s.Overlap())
}

func TestZeroOverlapChunksAreDisjoint(t *testing.T) {
	s := New(100, 0, HeuristicCounter{})
	text := paragraph(20) + strings.TrimSuffix(paragraph(20), "\n\n")
	chunks := s.Split(text)
	require.Greater(t, len(chunks), 1)
	assert.Equal(t, text, strings.Join(chunks, ""))
}

// sharedBoundary returns the longest suffix of prev that prefixes next.
func sharedBoundary(prev, next string) string {
	max := len(prev)
	if len(next) < max {
		max = len(next)
	}
	for n := max; n > 0; n-- {
		if strings.HasPrefix(next, prev[len(prev)-n:]) {
			return prev[len(prev)-n:]
		}
	}
	return ""
}
