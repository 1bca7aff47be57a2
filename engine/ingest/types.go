package ingest

import (
	"context"
	"time"

	"github.com/humanoid-academy/coursebot/engine/domain"
)

// ChunkedDoc is a parsed page split into embeddable chunks.
type ChunkedDoc struct {
	Doc    domain.Document
	Chunks []domain.Chunk
}

// EmbeddedDoc is a chunked page with one vector per chunk, in chunk order.
type EmbeddedDoc struct {
	ChunkedDoc
	Vectors [][]float32
}

// Failure records one page that could not be ingested.
type Failure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Summary is the aggregate outcome of one run.
type Summary struct {
	Root           string        `json:"root"`
	Collection     string        `json:"collection,omitempty"`
	Embedder       string        `json:"embedder"`
	FilesFound     int           `json:"files_found"`
	FilesProcessed int           `json:"files_processed"`
	ChunksProduced int           `json:"chunks_produced"`
	ChunksUpserted int           `json:"chunks_upserted"`
	FailedBatches  int           `json:"failed_batches"`
	Errors         int           `json:"errors"`
	Failures       []Failure     `json:"failures,omitempty"`
	Duration       time.Duration `json:"duration_ns"`
}

// OutlineSink receives every parsed page, e.g. to maintain the course graph.
type OutlineSink interface {
	SavePage(ctx context.Context, doc domain.Document) error
	RemovePage(ctx context.Context, id string) error
}

// SummaryPublisher announces a finished run.
type SummaryPublisher interface {
	PublishSummary(ctx context.Context, s Summary) error
}
