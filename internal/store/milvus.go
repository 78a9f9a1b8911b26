package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	milvusindex "github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	"github.com/prapp/rag/internal/core"
	"github.com/prapp/rag/internal/logger"
)

// Field names for the per-user chunk collections.
const (
	fieldID         = "id"
	fieldDocumentID = "document_id"
	fieldUserID     = "user_id"
	fieldChunkIndex = "chunk_index"
	fieldText       = "text"
	fieldMetadata   = "metadata"
	fieldCreatedAt  = "created_at"
	fieldVector     = "vector"
)

const (
	maxIDLength      = 255
	maxVarCharLength = 65535

	// Milvus caps scalar query result sets; distinct-document counting
	// reads at most this many rows.
	maxQueryLimit = 16384
)

// MilvusStore implements core.VectorIndex on Milvus with one collection
// per user. The same L2 metric is used for the HNSW index and every
// search, and chunk IDs are the primary key, so Add is an idempotent
// upsert.
type MilvusStore struct {
	client *milvusclient.Client
	dim    int

	mu    sync.Mutex
	ready map[string]struct{} // collections known to exist and be loaded
}

// NewMilvusStore connects to Milvus at addr. dim is the embedding
// dimension every collection is created with.
func NewMilvusStore(ctx context.Context, addr string, dim int) (*MilvusStore, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", dim)
	}
	logger.Info("Connecting to Milvus at %s (dim=%d)", addr, dim)
	c, err := milvusclient.New(ctx, &milvusclient.ClientConfig{Address: addr})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Milvus: %w", err)
	}
	return &MilvusStore{
		client: c,
		dim:    dim,
		ready:  make(map[string]struct{}),
	}, nil
}

// ensureCollection creates and loads the user's collection on first touch.
// Collections are created lazily on the first ingest or query for a user.
func (s *MilvusStore) ensureCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	_, ok := s.ready[name]
	s.mu.Unlock()
	if ok {
		return nil
	}

	exists, err := s.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(name))
	if err != nil {
		return fmt.Errorf("failed to check if collection exists: %w", err)
	}

	if !exists {
		schema := entity.NewSchema().
			WithName(name).
			WithDescription("Per-user document chunks for retrieval").
			WithField(entity.NewField().
				WithName(fieldID).
				WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(maxIDLength).
				WithIsPrimaryKey(true)).
			WithField(entity.NewField().
				WithName(fieldDocumentID).
				WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(maxIDLength)).
			WithField(entity.NewField().
				WithName(fieldUserID).
				WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(maxIDLength)).
			WithField(entity.NewField().
				WithName(fieldChunkIndex).
				WithDataType(entity.FieldTypeInt64)).
			WithField(entity.NewField().
				WithName(fieldText).
				WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(maxVarCharLength)).
			WithField(entity.NewField().
				WithName(fieldMetadata).
				WithDataType(entity.FieldTypeJSON)).
			WithField(entity.NewField().
				WithName(fieldCreatedAt).
				WithDataType(entity.FieldTypeInt64)).
			WithField(entity.NewField().
				WithName(fieldVector).
				WithDataType(entity.FieldTypeFloatVector).
				WithDim(int64(s.dim)))

		if err := s.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(name, schema)); err != nil {
			return fmt.Errorf("failed to create collection %s: %w", name, err)
		}

		idx := milvusindex.NewHNSWIndex(entity.L2, 16, 200)
		idxTask, err := s.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(name, fieldVector, idx))
		if err != nil {
			return fmt.Errorf("failed to create vector index on %s: %w", name, err)
		}
		if err := idxTask.Await(ctx); err != nil {
			return fmt.Errorf("failed to wait for index creation on %s: %w", name, err)
		}
		logger.Info("Created collection %s", name)
	}

	loadTask, err := s.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(name))
	if err != nil {
		return fmt.Errorf("failed to load collection %s: %w", name, err)
	}
	if err := loadTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for collection %s loading: %w", name, err)
	}

	s.mu.Lock()
	s.ready[name] = struct{}{}
	s.mu.Unlock()
	return nil
}

// Add upserts chunks into the user's collection. The deterministic chunk
// ID is the primary key, so re-ingested chunks overwrite in place and a
// concurrent query never observes the document absent.
func (s *MilvusStore) Add(ctx context.Context, userID string, chunks []core.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	name := CollectionName(userID)
	if err := s.ensureCollection(ctx, name); err != nil {
		return err
	}

	n := len(chunks)
	ids := make([]string, n)
	docIDs := make([]string, n)
	userIDs := make([]string, n)
	chunkIdx := make([]int64, n)
	texts := make([]string, n)
	metas := make([][]byte, n)
	created := make([]int64, n)
	vectors := make([][]float32, n)
	now := time.Now().Unix()

	for i, c := range chunks {
		ids[i] = c.ID
		docIDs[i] = c.Metadata.DocumentID
		userIDs[i] = c.Metadata.UserID
		chunkIdx[i] = int64(c.Metadata.ChunkIndex)
		texts[i] = c.Text
		created[i] = now
		vectors[i] = c.Embedding

		extra := c.Metadata.Extra
		if extra == nil {
			extra = map[string]interface{}{}
		}
		data, err := json.Marshal(extra)
		if err != nil {
			return fmt.Errorf("failed to marshal chunk metadata: %w", err)
		}
		metas[i] = data
	}

	columns := []column.Column{
		column.NewColumnVarChar(fieldID, ids),
		column.NewColumnVarChar(fieldDocumentID, docIDs),
		column.NewColumnVarChar(fieldUserID, userIDs),
		column.NewColumnInt64(fieldChunkIndex, chunkIdx),
		column.NewColumnVarChar(fieldText, texts),
		column.NewColumnJSONBytes(fieldMetadata, metas),
		column.NewColumnInt64(fieldCreatedAt, created),
		column.NewColumnFloatVector(fieldVector, s.dim, vectors),
	}

	if _, err := s.client.Upsert(ctx, milvusclient.NewColumnBasedInsertOption(name, columns...)); err != nil {
		return fmt.Errorf("failed to upsert %d chunks into %s: %w", n, name, err)
	}

	// Flush so the write is visible to queries that follow the ingest.
	flushTask, err := s.client.Flush(ctx, milvusclient.NewFlushOption(name))
	if err != nil {
		return fmt.Errorf("failed to flush %s: %w", name, err)
	}
	if err := flushTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for flush of %s: %w", name, err)
	}

	logger.Debug("Upserted %d chunks into %s", n, name)
	return nil
}

// Search returns at most topK chunks by ascending L2 distance. The
// collection is created lazily when the user has none yet, so a fresh
// user gets an empty result rather than an error.
func (s *MilvusStore) Search(ctx context.Context, userID string, vector []float32, topK int, filter map[string]string) ([]core.ScoredChunk, error) {
	if topK <= 0 {
		topK = core.DefaultTopK
	}
	name := CollectionName(userID)
	if err := s.ensureCollection(ctx, name); err != nil {
		return nil, err
	}

	expr, err := filterExpr(filter)
	if err != nil {
		return nil, err
	}
	opt := milvusclient.NewSearchOption(name, topK, []entity.Vector{entity.FloatVector(vector)}).
		WithANNSField(fieldVector).
		WithSearchParam("ef", "100").
		WithOutputFields(fieldText, fieldDocumentID, fieldUserID, fieldChunkIndex, fieldMetadata)
	if expr != "" {
		opt = opt.WithFilter(expr)
	}

	results, err := s.client.Search(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", name, err)
	}
	if len(results) == 0 || results[0].ResultCount == 0 {
		return []core.ScoredChunk{}, nil
	}

	rs := results[0]
	cols := make(map[string]column.Column, len(rs.Fields))
	for _, f := range rs.Fields {
		cols[f.Name()] = f
	}

	out := make([]core.ScoredChunk, 0, rs.ResultCount)
	for i := 0; i < rs.ResultCount; i++ {
		sc := core.ScoredChunk{Distance: rs.Scores[i]}

		if col, ok := cols[fieldText]; ok {
			if v, err := col.GetAsString(i); err == nil {
				sc.Text = v
			}
		}
		if col, ok := cols[fieldDocumentID]; ok {
			if v, err := col.GetAsString(i); err == nil {
				sc.Metadata.DocumentID = v
			}
		}
		if col, ok := cols[fieldUserID]; ok {
			if v, err := col.GetAsString(i); err == nil {
				sc.Metadata.UserID = v
			}
		}
		if col, ok := cols[fieldChunkIndex]; ok {
			if v, err := col.GetAsInt64(i); err == nil {
				sc.Metadata.ChunkIndex = int(v)
			}
		}
		if col, ok := cols[fieldMetadata].(*column.ColumnJSONBytes); ok && i < len(col.Data()) {
			var extra map[string]interface{}
			if err := json.Unmarshal(col.Data()[i], &extra); err == nil && len(extra) > 0 {
				sc.Metadata.Extra = extra
			}
		}

		out = append(out, sc)
	}
	return out, nil
}

// DeleteDocument removes every chunk of the document. No-op when the user
// has no collection or nothing matches.
func (s *MilvusStore) DeleteDocument(ctx context.Context, userID, documentID string) error {
	name := CollectionName(userID)
	exists, err := s.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(name))
	if err != nil {
		return fmt.Errorf("failed to check if collection exists: %w", err)
	}
	if !exists {
		return nil
	}

	expr := fmt.Sprintf(`%s == "%s"`, fieldDocumentID, escapeExpr(documentID))
	if _, err := s.client.Delete(ctx, milvusclient.NewDeleteOption(name).WithExpr(expr)); err != nil {
		return fmt.Errorf("failed to delete document %s from %s: %w", documentID, name, err)
	}
	logger.Debug("Deleted chunks of document %s from %s", documentID, name)
	return nil
}

// PruneDocument removes the document's chunks with index >= keep, used
// after re-ingesting a document that shrank.
func (s *MilvusStore) PruneDocument(ctx context.Context, userID, documentID string, keep int) error {
	name := CollectionName(userID)
	exists, err := s.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(name))
	if err != nil {
		return fmt.Errorf("failed to check if collection exists: %w", err)
	}
	if !exists {
		return nil
	}

	expr := fmt.Sprintf(`%s == "%s" && %s >= %d`, fieldDocumentID, escapeExpr(documentID), fieldChunkIndex, keep)
	if _, err := s.client.Delete(ctx, milvusclient.NewDeleteOption(name).WithExpr(expr)); err != nil {
		return fmt.Errorf("failed to prune document %s in %s: %w", documentID, name, err)
	}
	return nil
}

// CountDocuments returns the number of distinct documents in the user's
// collection.
func (s *MilvusStore) CountDocuments(ctx context.Context, userID string) (int, error) {
	name := CollectionName(userID)
	exists, err := s.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(name))
	if err != nil {
		return 0, fmt.Errorf("failed to check if collection exists: %w", err)
	}
	if !exists {
		return 0, nil
	}

	queryOpt := milvusclient.NewQueryOption(name).
		WithOutputFields(fieldDocumentID).
		WithLimit(maxQueryLimit)
	results, err := s.client.Query(ctx, queryOpt)
	if err != nil {
		return 0, fmt.Errorf("failed to query %s for document IDs: %w", name, err)
	}

	col := results.GetColumn(fieldDocumentID)
	if col == nil {
		return 0, nil
	}
	seen := make(map[string]struct{})
	for i := 0; i < col.Len(); i++ {
		id, err := col.GetAsString(i)
		if err != nil || id == "" {
			continue
		}
		seen[id] = struct{}{}
	}
	return len(seen), nil
}

// Reset drops the user's collection. Idempotent.
func (s *MilvusStore) Reset(ctx context.Context, userID string) error {
	name := CollectionName(userID)
	exists, err := s.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(name))
	if err != nil {
		return fmt.Errorf("failed to check if collection exists: %w", err)
	}
	if exists {
		if err := s.client.DropCollection(ctx, milvusclient.NewDropCollectionOption(name)); err != nil {
			return fmt.Errorf("failed to drop collection %s: %w", name, err)
		}
		logger.Info("Dropped collection %s", name)
	}
	s.mu.Lock()
	delete(s.ready, name)
	s.mu.Unlock()
	return nil
}

// Close closes the Milvus connection.
func (s *MilvusStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

// filterExpr renders an equality filter as a Milvus boolean expression.
// Known scalar fields compare directly; anything else matches inside the
// JSON metadata payload. String values are escaped and the numeric
// chunk_index value is parsed, so filter values can never extend the
// expression itself.
func filterExpr(filter map[string]string) (string, error) {
	if len(filter) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(filter))
	for k, v := range filter {
		switch k {
		case fieldDocumentID, fieldUserID:
			parts = append(parts, fmt.Sprintf(`%s == "%s"`, k, escapeExpr(v)))
		case fieldChunkIndex:
			n, err := strconv.Atoi(v)
			if err != nil {
				return "", fmt.Errorf("%s filter must be an integer, got %q", fieldChunkIndex, v)
			}
			parts = append(parts, fmt.Sprintf(`%s == %d`, k, n))
		default:
			parts = append(parts, fmt.Sprintf(`%s["%s"] == "%s"`, fieldMetadata, escapeExpr(k), escapeExpr(v)))
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, " && "), nil
}

func escapeExpr(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	return strings.ReplaceAll(v, `"`, `\"`)
}

var _ core.VectorIndex = (*MilvusStore)(nil)
