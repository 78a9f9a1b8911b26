package rag

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prapp/rag/internal/core"
)

func scored(text string, distance float32) core.ScoredChunk {
	return core.ScoredChunk{
		Text:     text,
		Distance: distance,
		Metadata: core.ChunkMetadata{DocumentID: "doc-1", UserID: "alice"},
	}
}

func TestFormatContextEmpty(t *testing.T) {
	assert.Equal(t, "", FormatContext(nil))
	assert.Equal(t, "", FormatContext([]core.ScoredChunk{}))
}

func TestFormatContext(t *testing.T) {
	out := FormatContext([]core.ScoredChunk{
		scored("first passage", 0.1),
		scored("second passage", 0.2),
	})

	assert.True(t, strings.Contains(out, "=== BACKGROUND INFORMATION ==="))
	assert.True(t, strings.Contains(out, "=== END BACKGROUND INFORMATION ==="))
	assert.Contains(t, out, "[Source 1]\nfirst passage\n")
	assert.Contains(t, out, "[Source 2]\nsecond passage\n")
	assert.Less(t, strings.Index(out, "first passage"), strings.Index(out, "second passage"))
}

func TestFormatContextCapsSources(t *testing.T) {
	var results []core.ScoredChunk
	for i := 0; i < 8; i++ {
		results = append(results, scored(fmt.Sprintf("passage %d", i), float32(i)))
	}

	out := FormatContext(results)
	assert.Contains(t, out, "[Source 5]")
	assert.NotContains(t, out, "[Source 6]")
	assert.NotContains(t, out, "passage 5")
}

func TestFormatResultsJSONEmpty(t *testing.T) {
	out := FormatResultsJSON("missing topic", nil)

	var decoded struct {
		Results []interface{} `json:"results"`
		Message string        `json:"message"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Empty(t, decoded.Results)
	assert.Contains(t, decoded.Message, "missing topic")
}

func TestFormatResultsJSONEscapesQuery(t *testing.T) {
	queries := []string{
		`what is "pricing"?`,
		`back\slash and "quotes"`,
		"newline\nin query",
	}
	for _, q := range queries {
		var decoded struct {
			Message string `json:"message"`
		}
		out := FormatResultsJSON(q, nil)
		require.NoError(t, json.Unmarshal([]byte(out), &decoded), "query %q", q)
		assert.Contains(t, decoded.Message, q)

		out = FormatResultsJSON(q, []core.ScoredChunk{scored("passage", 0.1)})
		var populated map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(out), &populated), "query %q", q)
		assert.Equal(t, q, populated["query"])
	}
}

func TestFormatResultsJSON(t *testing.T) {
	withMeta := scored("first passage", 0.25)
	withMeta.Metadata.Extra = map[string]interface{}{"source": "manual"}

	out := FormatResultsJSON("some query", []core.ScoredChunk{
		withMeta,
		scored("second passage", 0.5),
	})

	var decoded struct {
		Query   string `json:"query"`
		Count   int    `json:"count"`
		Results []struct {
			Text     string                 `json:"text"`
			Distance float32                `json:"distance"`
			Metadata map[string]interface{} `json:"metadata"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))

	assert.Equal(t, "some query", decoded.Query)
	assert.Equal(t, 2, decoded.Count)
	require.Len(t, decoded.Results, 2)
	assert.Equal(t, "first passage", decoded.Results[0].Text)
	assert.InDelta(t, 0.25, decoded.Results[0].Distance, 1e-6)
	assert.Equal(t, "manual", decoded.Results[0].Metadata["source"])
	assert.Equal(t, "doc-1", decoded.Results[0].Metadata["document_id"])
}
