package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/humanoid-academy/coursebot/engine/graph"
	"github.com/humanoid-academy/coursebot/engine/history"
	"github.com/humanoid-academy/coursebot/engine/ingest"
	"github.com/humanoid-academy/coursebot/engine/provider"
	"github.com/humanoid-academy/coursebot/engine/rag"
	"github.com/humanoid-academy/coursebot/engine/semantic"
	"github.com/humanoid-academy/coursebot/pkg/config"
	"github.com/humanoid-academy/coursebot/pkg/metrics"
	"github.com/humanoid-academy/coursebot/pkg/natsutil"
)

// app owns every long-lived dependency of the server.
type app struct {
	server  *server
	svc     *rag.Service
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// build connects the configured backends. Only provider selection and the
// vector index are required; persistence, NATS and Neo4j degrade to a
// warning when they cannot be reached.
func build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	reg := metrics.New()
	a := &app{}

	p, err := provider.Select(cfg, reg, logger)
	if err != nil {
		return nil, err
	}
	warnings := append([]string(nil), p.Warnings...)
	degrade := func(what string, err error) {
		logger.Warn(what+" disabled", "error", err)
		warnings = append(warnings, fmt.Sprintf("%s disabled: %v", what, err))
	}

	idx, closeIdx, err := provider.Index(cfg, p.Dimension)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = closeIdx() })

	// --- Conversation history ---
	var (
		recorders []history.Recorder
		reader    history.Reader = history.Nop{}
		db        pinger
	)
	if cfg.DatabaseURL != "" && !cfg.TestMode {
		store, err := history.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			degrade("conversation history", err)
		} else {
			a.closers = append(a.closers, func() { _ = store.Close() })
			recorders = append(recorders, store)
			reader, db = store, store
			logger.Info("conversation history enabled", "dialect", store.Dialect())
		}
	}

	// --- NATS events ---
	if cfg.NATSURL != "" {
		nc, err := natsutil.Connect(cfg.NATSURL, "coursebot-api", logger)
		if err != nil {
			degrade("nats events", err)
		} else {
			a.closers = append(a.closers, nc.Close)
			recorders = append(recorders, history.NewEventRecorder(nc))
			lastIngest := reg.Gauge("coursebot_last_ingest_chunks", "Chunks upserted by the most recent ingestion run.")
			if _, err := natsutil.Subscribe(nc, ingest.SummarySubject, func(_ context.Context, s ingest.Summary) {
				lastIngest.Set(int64(s.ChunksUpserted))
				logger.Info("ingest completed", "root", s.Root, "files", s.FilesProcessed, "chunks", s.ChunksUpserted, "errors", s.Errors)
			}); err != nil {
				degrade("ingest summaries", err)
			}
		}
	}

	// --- Course outline ---
	var outline outliner
	if cfg.Neo4j.URL != "" {
		driver, err := graph.Connect(ctx, cfg.Neo4j.URL, cfg.Neo4j.User, cfg.Neo4j.Pass)
		if err != nil {
			degrade("course outline", err)
		} else {
			a.closers = append(a.closers, func() { _ = driver.Close(context.Background()) })
			outline = graph.New(driver, logger)
		}
	}

	opts := rag.Options{TopK: cfg.Retrieval.TopK}
	if len(recorders) > 0 {
		opts.Recorder = history.Multi(recorders...)
	}
	a.svc = rag.New(p.Embedder, semantic.NewRetriever(idx, logger), p.Responder, opts, reg, logger)

	a.server = &server{
		rag:        a.svc,
		history:    reader,
		index:      idx,
		outline:    outline,
		db:         db,
		providers:  p,
		warnings:   warnings,
		collection: cfg.Qdrant.Collection,
		testMode:   cfg.TestMode,
		reg:        reg,
		logger:     logger,
	}
	return a, nil
}
