// Package ingest turns markdown course pages into indexed passages:
// discover, parse, chunk, embed, upsert.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/humanoid-academy/coursebot/engine/domain"
	"github.com/humanoid-academy/coursebot/engine/embed"
	"github.com/humanoid-academy/coursebot/engine/semantic"
	"github.com/humanoid-academy/coursebot/pkg/fn"
	"github.com/humanoid-academy/coursebot/pkg/resilience"
)

// UpsertBatchSize bounds the points sent in one index request.
const UpsertBatchSize = 50

// Options tunes a Pipeline. Zero values fall back to defaults.
type Options struct {
	Chunker   Chunker
	BatchSize int
	// Limiter throttles embedding calls; nil means unthrottled.
	Limiter   *resilience.Limiter
	Outline   OutlineSink
	Publisher SummaryPublisher
	Retry     fn.RetryOpts
	Logger    *slog.Logger
}

// Pipeline is safe to reuse across runs but not for concurrent runs.
type Pipeline struct {
	embedder embed.Embedder
	index    semantic.Index
	opts     Options
	log      *slog.Logger
}

// New builds a Pipeline over e and idx, filling unset Options with defaults.
func New(e embed.Embedder, idx semantic.Index, opts Options) *Pipeline {
	if opts.Chunker.Size == 0 {
		opts.Chunker = Chunker{Size: DefaultChunkSize, Overlap: DefaultOverlap, MinChars: MinChunkChars}
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = UpsertBatchSize
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = fn.DefaultRetry
	}
	if opts.Retry.Retryable == nil {
		opts.Retry.Retryable = func(err error) bool { return !errors.Is(err, domain.ErrDimensionMismatch) }
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{embedder: embed.Guard(e), index: idx, opts: opts, log: log}
}

// --- Pipeline Stages ---

func (p *Pipeline) parse(root string) fn.Stage[string, domain.Document] {
	return func(_ context.Context, path string) fn.Result[domain.Document] {
		return fn.FromPair(ReadDocument(root, path))
	}
}

func (p *Pipeline) outline(ctx context.Context, doc domain.Document) {
	if p.opts.Outline == nil {
		return
	}
	if err := p.opts.Outline.SavePage(ctx, doc); err != nil {
		p.log.Warn("ingest: outline save failed", "doc_id", doc.ID, "error", err)
	}
}

func (p *Pipeline) chunk(_ context.Context, doc domain.Document) fn.Result[ChunkedDoc] {
	chunks, err := p.opts.Chunker.Split(doc)
	if err != nil {
		return fn.Err[ChunkedDoc](err)
	}
	return fn.Ok(ChunkedDoc{Doc: doc, Chunks: chunks})
}

func (p *Pipeline) embed(ctx context.Context, doc ChunkedDoc) fn.Result[EmbeddedDoc] {
	if len(doc.Chunks) == 0 {
		return fn.Ok(EmbeddedDoc{ChunkedDoc: doc})
	}
	texts := fn.Map(doc.Chunks, func(c domain.Chunk) string { return c.Text })
	vecs, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fn.Errf[EmbeddedDoc]("ingest: embed %s: %w", doc.Doc.ID, err)
	}
	return fn.Ok(EmbeddedDoc{ChunkedDoc: doc, Vectors: vecs})
}

// Points converts an embedded page into index points keyed by chunk identity.
func Points(doc EmbeddedDoc) []semantic.Point {
	points := make([]semantic.Point, len(doc.Chunks))
	for i, c := range doc.Chunks {
		points[i] = semantic.Point{
			ID:     semantic.PointID(c.Key()),
			Vector: doc.Vectors[i],
			Payload: map[string]any{
				semantic.KeyDocID:      doc.Doc.ID,
				semantic.KeyChunkIndex: c.Index,
				semantic.KeyChapter:    doc.Doc.Chapter,
				semantic.KeySection:    doc.Doc.Title,
				semantic.KeyURL:        doc.Doc.URL,
				semantic.KeyContent:    c.Text,
				semantic.KeyFile:       doc.Doc.Path,
			},
		}
	}
	return points
}

// LoggedTap returns a stage that logs entry/exit with duration.
func LoggedTap[T any](name string, log *slog.Logger) fn.Stage[T, T] {
	return func(ctx context.Context, t T) fn.Result[T] {
		log.Debug("stage.enter", "stage", name)
		start := time.Now()
		defer func() {
			log.Debug("stage.exit", "stage", name, "duration", time.Since(start))
		}()
		return fn.Ok(t)
	}
}

// document composes Parse → Outline → Chunk → Embed → Points for one page.
func (p *Pipeline) document(root string) fn.Stage[string, []semantic.Point] {
	log := p.log

	embedStage := fn.Stage[ChunkedDoc, EmbeddedDoc](p.embed)
	if p.opts.Limiter != nil {
		embedStage = resilience.LimiterStage(p.opts.Limiter, embedStage)
	}

	parsed := fn.Then(LoggedTap[string]("parse", log), fn.TracedStage("ingest.parse", p.parse(root)))
	noted := fn.Then(parsed, fn.TapStage(p.outline))
	chunked := fn.Then(noted, fn.Then(LoggedTap[domain.Document]("chunk", log), fn.TracedStage("ingest.chunk", p.chunk)))
	embedded := fn.Then(chunked, fn.Then(LoggedTap[ChunkedDoc]("embed", log), fn.TracedStage("ingest.embed", embedStage)))
	return fn.Then(embedded, func(_ context.Context, d EmbeddedDoc) fn.Result[[]semantic.Point] {
		return fn.Ok(Points(d))
	})
}

// --- Runs ---

// Run ingests every markdown page under root. Per-page and per-batch
// failures are counted in the Summary; only discovery, collection setup
// and cancellation end the run early.
func (p *Pipeline) Run(ctx context.Context, root string) (Summary, error) {
	start := time.Now()
	s := Summary{Root: root, Embedder: p.embedder.Name()}

	if err := p.index.EnsureCollection(ctx, p.embedder.Dimension()); err != nil {
		return s, fmt.Errorf("ingest: ensure collection: %w", err)
	}
	paths, err := Discover(root)
	if err != nil {
		return s, err
	}
	s.FilesFound = len(paths)
	p.log.Info("ingest run start", "root", root, "files", len(paths), "embedder", s.Embedder)

	b := &batcher{p: p, summary: &s}
	stage := p.document(root)
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			s.Duration = time.Since(start)
			return s, err
		}
		p.process(ctx, stage, path, b)
	}
	b.flush(ctx, true)

	s.Duration = time.Since(start)
	p.log.Info("ingest run done",
		"files_processed", s.FilesProcessed,
		"chunks_produced", s.ChunksProduced,
		"chunks_upserted", s.ChunksUpserted,
		"failed_batches", s.FailedBatches,
		"errors", s.Errors,
		"duration", s.Duration,
	)
	p.publish(ctx, s)
	return s, nil
}

// Rebuild drops the collection and ingests from scratch. It must not run
// while the collection serves queries.
func (p *Pipeline) Rebuild(ctx context.Context, root string) (Summary, error) {
	p.log.Warn("ingest rebuild: deleting collection")
	if err := p.index.DeleteCollection(ctx); err != nil {
		return Summary{Root: root}, fmt.Errorf("ingest: rebuild: %w", err)
	}
	return p.Run(ctx, root)
}

// IngestFile re-ingests one page, replacing whatever it stored before.
// The old points are only deleted once the new version has been embedded,
// so a failed embed leaves the committed page searchable.
func (p *Pipeline) IngestFile(ctx context.Context, root, path string) (Summary, error) {
	start := time.Now()
	s := Summary{Root: root, Embedder: p.embedder.Name(), FilesFound: 1}

	if err := p.index.EnsureCollection(ctx, p.embedder.Dimension()); err != nil {
		return s, fmt.Errorf("ingest: ensure collection: %w", err)
	}
	points, ok := p.points(ctx, p.document(root), path, &s)
	if !ok {
		s.Duration = time.Since(start)
		return s, nil
	}
	id := DocumentID(root, path)
	if err := p.index.DeleteByDocID(ctx, id); err != nil {
		return s, fmt.Errorf("ingest: replace %s: %w", id, err)
	}

	b := &batcher{p: p, summary: &s}
	b.add(ctx, points)
	b.flush(ctx, true)
	s.Duration = time.Since(start)
	return s, nil
}

// RemoveFile drops a deleted page from the index and the outline.
func (p *Pipeline) RemoveFile(ctx context.Context, root, path string) error {
	id := DocumentID(root, path)
	if err := p.index.DeleteByDocID(ctx, id); err != nil {
		return fmt.Errorf("ingest: remove %s: %w", id, err)
	}
	if p.opts.Outline != nil {
		if err := p.opts.Outline.RemovePage(ctx, id); err != nil {
			p.log.Warn("ingest: outline remove failed", "doc_id", id, "error", err)
		}
	}
	return nil
}

func (p *Pipeline) process(ctx context.Context, stage fn.Stage[string, []semantic.Point], path string, b *batcher) {
	if points, ok := p.points(ctx, stage, path, b.summary); ok {
		b.add(ctx, points)
	}
}

// points runs one page through stage, counting it in s either way.
func (p *Pipeline) points(ctx context.Context, stage fn.Stage[string, []semantic.Point], path string, s *Summary) ([]semantic.Point, bool) {
	points, err := stage(ctx, path).Unwrap()
	if err != nil {
		s.Errors++
		s.Failures = append(s.Failures, Failure{Path: path, Error: err.Error()})
		p.log.Warn("ingest: document skipped", "path", path, "error", err)
		return nil, false
	}
	s.FilesProcessed++
	s.ChunksProduced += len(points)
	return points, true
}

func (p *Pipeline) publish(ctx context.Context, s Summary) {
	if p.opts.Publisher == nil {
		return
	}
	if err := p.opts.Publisher.PublishSummary(ctx, s); err != nil {
		p.log.Warn("ingest: summary publish failed", "error", err)
	}
}

// batcher buffers points across pages and upserts them in fixed-size
// batches. A failed batch is dropped and counted; committed batches stay.
type batcher struct {
	p       *Pipeline
	summary *Summary
	buf     []semantic.Point
}

func (b *batcher) add(ctx context.Context, points []semantic.Point) {
	b.buf = append(b.buf, points...)
	b.flush(ctx, false)
}

func (b *batcher) flush(ctx context.Context, all bool) {
	size := b.p.opts.BatchSize
	batches := fn.Chunk(b.buf, size)
	var rest []semantic.Point
	if !all && len(batches) > 0 && len(batches[len(batches)-1]) < size {
		rest = batches[len(batches)-1]
		batches = batches[:len(batches)-1]
	}
	for _, batch := range batches {
		b.upsert(ctx, batch)
	}
	b.buf = append([]semantic.Point(nil), rest...)
}

func (b *batcher) upsert(ctx context.Context, batch []semantic.Point) {
	_, err := fn.Retry(ctx, b.p.opts.Retry, func(ctx context.Context) fn.Result[int] {
		if err := b.p.index.Upsert(ctx, batch); err != nil {
			return fn.Err[int](err)
		}
		return fn.Ok(len(batch))
	}).Unwrap()
	if err != nil {
		b.summary.FailedBatches++
		b.p.log.Error("ingest: batch upsert failed", "points", len(batch), "error", err)
		return
	}
	b.summary.ChunksUpserted += len(batch)
}
