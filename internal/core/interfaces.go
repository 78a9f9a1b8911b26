package core

import "context"

// Embedder turns text into fixed-length vectors. Document and query
// embeddings come from the same model so they are comparable under the
// same distance metric.
type Embedder interface {
	// EmbedDocuments embeds a batch of chunk texts, preserving order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery embeds a single query string.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// Dimension returns the vector length this embedder produces.
	Dimension() int
}

// VectorIndex is the per-user collection store. Every operation is scoped
// by userID; implementations resolve the physical collection from the
// userID alone, never from a caller-supplied name.
type VectorIndex interface {
	// Add upserts chunks into the user's collection. Colliding chunk IDs
	// overwrite, which is what makes re-ingestion idempotent.
	Add(ctx context.Context, userID string, chunks []Chunk) error

	// Search returns at most topK chunks ordered by ascending distance.
	// A missing or empty collection yields an empty slice, not an error.
	// filter, when non-nil, restricts results to chunks whose metadata
	// fields equal the given values.
	Search(ctx context.Context, userID string, vector []float32, topK int, filter map[string]string) ([]ScoredChunk, error)

	// DeleteDocument removes every chunk of the given document. No-op when
	// nothing matches.
	DeleteDocument(ctx context.Context, userID, documentID string) error

	// PruneDocument removes the document's chunks whose index is >= keep.
	// Used after an upsert when a re-ingested document shrank.
	PruneDocument(ctx context.Context, userID, documentID string, keep int) error

	// CountDocuments returns the number of distinct documents indexed for
	// the user.
	CountDocuments(ctx context.Context, userID string) (int, error)

	// Reset drops the user's entire collection. Idempotent.
	Reset(ctx context.Context, userID string) error

	// Close releases the underlying connection.
	Close(ctx context.Context) error
}
