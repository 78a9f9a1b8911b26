package core

// Metadata field names shared by every index implementation.
const (
	MetaDocumentID = "document_id"
	MetaUserID     = "user_id"
	MetaChunkIndex = "chunk_index"
)

// DefaultTopK is the number of results a query returns when the caller
// does not ask for a specific amount.
const DefaultTopK = 5

// ChunkMetadata is the typed metadata attached to every indexed chunk.
// DocumentID, UserID and ChunkIndex are mandatory; Extra carries any
// caller-supplied document fields (content type, page count, ...).
type ChunkMetadata struct {
	DocumentID string                 `json:"document_id"`
	UserID     string                 `json:"user_id"`
	ChunkIndex int                    `json:"chunk_index"`
	Extra      map[string]interface{} `json:"extra,omitempty"`
}

// ToMap flattens the metadata into a single key/value bag, the shape the
// surrounding application sees in query results.
func (m ChunkMetadata) ToMap() map[string]interface{} {
	out := make(map[string]interface{}, len(m.Extra)+3)
	for k, v := range m.Extra {
		out[k] = v
	}
	out[MetaDocumentID] = m.DocumentID
	out[MetaUserID] = m.UserID
	out[MetaChunkIndex] = m.ChunkIndex
	return out
}

// MetadataFromMap rebuilds typed metadata from a flat bag. Unknown keys
// land in Extra.
func MetadataFromMap(in map[string]interface{}) ChunkMetadata {
	var m ChunkMetadata
	for k, v := range in {
		switch k {
		case MetaDocumentID:
			if s, ok := v.(string); ok {
				m.DocumentID = s
			}
		case MetaUserID:
			if s, ok := v.(string); ok {
				m.UserID = s
			}
		case MetaChunkIndex:
			switch n := v.(type) {
			case int:
				m.ChunkIndex = n
			case int64:
				m.ChunkIndex = int(n)
			case float64:
				m.ChunkIndex = int(n)
			}
		default:
			if m.Extra == nil {
				m.Extra = make(map[string]interface{})
			}
			m.Extra[k] = v
		}
	}
	return m
}

// Chunk is the unit of indexed content: a bounded slice of a document's
// text plus its embedding and metadata. Immutable once stored.
type Chunk struct {
	ID        string        `json:"id"`
	Text      string        `json:"text"`
	Embedding []float32     `json:"-"`
	Metadata  ChunkMetadata `json:"metadata"`
}

// ScoredChunk is one ranked query result. Distance is the L2 distance
// between the query vector and the chunk vector; smaller is closer.
type ScoredChunk struct {
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
	Distance float32       `json:"distance"`
}
