package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/humanoid-academy/coursebot/engine/graph"
	"github.com/humanoid-academy/coursebot/engine/ingest"
	"github.com/humanoid-academy/coursebot/engine/provider"
	"github.com/humanoid-academy/coursebot/engine/semantic"
	"github.com/humanoid-academy/coursebot/pkg/config"
	"github.com/humanoid-academy/coursebot/pkg/metrics"
	"github.com/humanoid-academy/coursebot/pkg/natsutil"
	"github.com/humanoid-academy/coursebot/pkg/resilience"
)

// workspace is one configured pipeline plus the connections it owns.
type workspace struct {
	pipeline   *ingest.Pipeline
	root       string
	collection string
	closers    []func()
}

func (w *workspace) close() {
	for i := len(w.closers) - 1; i >= 0; i-- {
		w.closers[i]()
	}
}

// open selects the embedder and index and attaches the optional outline
// graph and summary publisher. A dry run keeps everything in process.
func open(ctx context.Context, cfg config.Config, f *flags, log *slog.Logger) (*workspace, error) {
	p, err := provider.Select(cfg, metrics.New(), log)
	if err != nil {
		return nil, err
	}
	chunker, err := ingest.NewChunker(cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	w := &workspace{root: cfg.DocsDir, collection: cfg.Qdrant.Collection}
	opts := ingest.Options{
		Chunker:   chunker,
		BatchSize: f.batchSize,
		Logger:    log,
	}
	if cfg.Retrieval.EmbedRateLimit > 0 {
		opts.Limiter = resilience.NewLimiter(resilience.LimiterOpts{Rate: cfg.Retrieval.EmbedRateLimit, Burst: 1})
	}

	var idx semantic.Index
	if f.dryRun {
		idx = semantic.NewMemory(cfg.Qdrant.Collection)
		log.Info("dry run: points stay in memory", "collection", cfg.Qdrant.Collection)
	} else {
		i, closeIdx, err := provider.Index(cfg, p.Dimension)
		if err != nil {
			return nil, err
		}
		idx = i
		w.closers = append(w.closers, func() { _ = closeIdx() })

		if cfg.Neo4j.URL != "" {
			driver, err := graph.Connect(ctx, cfg.Neo4j.URL, cfg.Neo4j.User, cfg.Neo4j.Pass)
			if err != nil {
				w.close()
				return nil, fmt.Errorf("course outline: %w", err)
			}
			w.closers = append(w.closers, func() { _ = driver.Close(context.Background()) })
			opts.Outline = graph.New(driver, log)
		}
		if cfg.NATSURL != "" {
			nc, err := natsutil.Connect(cfg.NATSURL, "coursebot-ingest", log)
			if err != nil {
				w.close()
				return nil, err
			}
			w.closers = append(w.closers, func() { _ = nc.Drain() })
			opts.Publisher = ingest.NewEventPublisher(nc)
		}
	}

	w.pipeline = ingest.New(p.Embedder, idx, opts)
	return w, nil
}
