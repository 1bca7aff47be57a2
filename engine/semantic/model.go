package semantic

import (
	"context"

	"github.com/google/uuid"
)

// Payload keys written for every stored passage.
const (
	KeyDocID      = "doc_id"
	KeyChunkIndex = "chunk_index"
	KeyChapter    = "chapter"
	KeySection    = "section"
	KeyURL        = "url"
	KeyContent    = "content"
	KeyFile       = "file"
)

// Point is one vector with its payload, as stored in the collection.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// SearchResult represents a single vector search hit.
type SearchResult struct {
	ID      string         `json:"id"`
	Score   float32        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// String returns a payload field as a string, or "" when absent.
func (r SearchResult) String(key string) string {
	s, _ := r.Payload[key].(string)
	return s
}

// CollectionInfo describes the backing collection.
type CollectionInfo struct {
	Name        string `json:"name"`
	PointsCount uint64 `json:"vector_count"`
	VectorSize  uint64 `json:"vector_size"`
	Distance    string `json:"distance"`
	Status      string `json:"status"`
}

// Index is the vector store contract shared by Qdrant and the in-process
// implementations.
type Index interface {
	EnsureCollection(ctx context.Context, dims int) error
	DeleteCollection(ctx context.Context) error
	Upsert(ctx context.Context, points []Point) error
	DeleteByDocID(ctx context.Context, docID string) error
	Search(ctx context.Context, vector []float32, topK int) ([]SearchResult, error)
	CollectionInfo(ctx context.Context) (CollectionInfo, error)
}

// PointID derives a stable UUID from a chunk key so that re-ingesting the
// same page overwrites its points instead of duplicating them.
func PointID(key string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}
