package core

import "fmt"

// EmbeddingError reports a transport, auth or rate-limit failure from the
// embedding backend. Ingestion and query abort without partial state.
type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding provider: %v", e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// RetrievalError reports that the vector index is unreachable or that an
// index operation failed. Same no-partial-state guarantee.
type RetrievalError struct {
	Op  string
	Err error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval unavailable (%s): %v", e.Op, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }
