package rag

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/prapp/rag/internal/core"
	"github.com/prapp/rag/internal/logger"
)

// maxContextSources caps how many retrieved chunks go into a prompt
// context block.
const maxContextSources = 5

// FormatContext renders retrieved chunks as a delimited background block
// for injection into a chat prompt. At most maxContextSources chunks are
// included. Returns "" when there is nothing to show, so callers can skip
// the block entirely.
func FormatContext(results []core.ScoredChunk) string {
	if len(results) == 0 {
		return ""
	}
	if len(results) > maxContextSources {
		results = results[:maxContextSources]
	}

	var b strings.Builder
	b.WriteString("\n\n=== BACKGROUND INFORMATION ===\n")
	b.WriteString("The following information is available about the topic being discussed:\n\n")
	for i, r := range results {
		fmt.Fprintf(&b, "[Source %d]\n%s\n\n", i+1, r.Text)
	}
	b.WriteString("=== END BACKGROUND INFORMATION ===\n")
	return b.String()
}

// FormatResultsJSON renders retrieved chunks as a JSON document for
// machine consumers. Distances are included so callers can apply their own
// relevance cutoffs.
func FormatResultsJSON(query string, results []core.ScoredChunk) string {
	if len(results) == 0 {
		data, err := json.Marshal(map[string]interface{}{
			"results": []interface{}{},
			"message": "No results found for query: " + query,
		})
		if err != nil {
			logger.Error("Failed to marshal empty search results: %v", err)
			return `{"results": [], "error": "failed to format results"}`
		}
		return string(data)
	}

	type resultEntry struct {
		Text     string                 `json:"text"`
		Distance float32                `json:"distance"`
		Metadata map[string]interface{} `json:"metadata,omitempty"`
	}
	payload := struct {
		Query   string        `json:"query"`
		Count   int           `json:"count"`
		Results []resultEntry `json:"results"`
	}{Query: query, Count: len(results)}

	for _, r := range results {
		payload.Results = append(payload.Results, resultEntry{
			Text:     r.Text,
			Distance: r.Distance,
			Metadata: r.Metadata.ToMap(),
		})
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		logger.Error("Failed to marshal search results: %v", err)
		return `{"results": [], "error": "failed to format results"}`
	}
	return string(data)
}
