// Package rag coordinates the retrieval pipeline: segmentation, embedding
// and per-user vector indexing on ingest; embedding, similarity search and
// context assembly on query.
package rag

import (
	"context"
	"errors"
	"fmt"

	"github.com/prapp/rag/internal/core"
	"github.com/prapp/rag/internal/logger"
	"github.com/prapp/rag/internal/splitter"
)

// Service is the retrieval orchestrator. It is constructed explicitly and
// injected into callers; there is no package-level instance.
type Service struct {
	splitter *splitter.Splitter
	embedder core.Embedder
	index    core.VectorIndex
}

// New wires a Service from its three collaborators.
func New(sp *splitter.Splitter, embedder core.Embedder, index core.VectorIndex) *Service {
	return &Service{splitter: sp, embedder: embedder, index: index}
}

// ChunkID is the deterministic chunk identifier: document ID plus ordinal
// position. Re-ingesting a document reproduces the same IDs, which is what
// makes indexing idempotent.
func ChunkID(documentID string, i int) string {
	return fmt.Sprintf("%s_chunk_%d", documentID, i)
}

// Ingest splits text, embeds every chunk, then writes them to the user's
// collection in one Add call. Nothing is written until embeddings for the
// whole document are in hand, so a failed or cancelled ingest leaves the
// index in its prior state. Returns the number of chunks created; zero for
// empty or whitespace-only input, which is a legitimate result, not an
// error.
func (s *Service) Ingest(ctx context.Context, userID, documentID, text string, metadata map[string]interface{}) (int, error) {
	pieces := s.splitter.Split(text)
	if len(pieces) == 0 {
		logger.Warn("No chunks produced for document %s", documentID)
		return 0, nil
	}
	logger.Debug("Split document %s into %d chunks", documentID, len(pieces))

	embeddings, err := s.embedder.EmbedDocuments(ctx, pieces)
	if err != nil {
		return 0, asEmbeddingError(err)
	}
	if len(embeddings) != len(pieces) {
		return 0, &core.EmbeddingError{Err: fmt.Errorf("expected %d embeddings, got %d", len(pieces), len(embeddings))}
	}

	chunks := make([]core.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = core.Chunk{
			ID:        ChunkID(documentID, i),
			Text:      piece,
			Embedding: embeddings[i],
			Metadata: core.ChunkMetadata{
				DocumentID: documentID,
				UserID:     userID,
				ChunkIndex: i,
				Extra:      copyExtra(metadata),
			},
		}
	}

	if err := s.index.Add(ctx, userID, chunks); err != nil {
		return 0, &core.RetrievalError{Op: "add", Err: err}
	}
	// A re-ingested document may have shrunk; drop chunks past the new end.
	if err := s.index.PruneDocument(ctx, userID, documentID, len(chunks)); err != nil {
		return 0, &core.RetrievalError{Op: "prune", Err: err}
	}

	logger.Info("Indexed %d chunks for document %s", len(chunks), documentID)
	return len(chunks), nil
}

// Query embeds queryText and returns at most topK chunks from the user's
// collection, ordered by ascending distance. A user with no collection yet
// gets an empty result. topK <= 0 falls back to the default of 5.
func (s *Service) Query(ctx context.Context, userID, queryText string, topK int, filter map[string]string) ([]core.ScoredChunk, error) {
	if topK <= 0 {
		topK = core.DefaultTopK
	}
	vec, err := s.embedder.EmbedQuery(ctx, queryText)
	if err != nil {
		return nil, asEmbeddingError(err)
	}
	results, err := s.index.Search(ctx, userID, vec, topK, filter)
	if err != nil {
		return nil, &core.RetrievalError{Op: "search", Err: err}
	}
	logger.Debug("Query returned %d results for user %s", len(results), userID)
	return results, nil
}

// Delete removes every indexed chunk of the document. Idempotent.
func (s *Service) Delete(ctx context.Context, userID, documentID string) error {
	if err := s.index.DeleteDocument(ctx, userID, documentID); err != nil {
		return &core.RetrievalError{Op: "delete", Err: err}
	}
	return nil
}

// DocumentCount returns the number of distinct documents indexed for the
// user.
func (s *Service) DocumentCount(ctx context.Context, userID string) (int, error) {
	n, err := s.index.CountDocuments(ctx, userID)
	if err != nil {
		return 0, &core.RetrievalError{Op: "count", Err: err}
	}
	return n, nil
}

// Reset drops the user's entire collection, for account deletion and test
// cleanup.
func (s *Service) Reset(ctx context.Context, userID string) error {
	if err := s.index.Reset(ctx, userID); err != nil {
		return &core.RetrievalError{Op: "reset", Err: err}
	}
	return nil
}

// copyExtra clones the caller's metadata so stored chunks stay immutable
// when the caller mutates the map after Ingest returns.
func copyExtra(metadata map[string]interface{}) map[string]interface{} {
	if len(metadata) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	return out
}

func asEmbeddingError(err error) error {
	var e *core.EmbeddingError
	if errors.As(err, &e) {
		return err
	}
	return &core.EmbeddingError{Err: err}
}
