// Package rag answers one course question per call: embed it, retrieve the
// closest passages, have the responder compose an answer, and attach
// citations. Exchanges are handed to a Recorder in the background.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/humanoid-academy/coursebot/engine/domain"
	"github.com/humanoid-academy/coursebot/engine/embed"
	"github.com/humanoid-academy/coursebot/engine/respond"
	"github.com/humanoid-academy/coursebot/pkg/metrics"
)

const (
	// DefaultTopK is the number of passages retrieved per question.
	DefaultTopK = 5
	// MaxCitations caps the citations returned with an answer.
	MaxCitations = 3
	// DefaultRecordTimeout bounds one background Recorder call.
	DefaultRecordTimeout = 5 * time.Second
)

// Searcher finds the passages closest to a query vector.
type Searcher interface {
	SearchSimilar(ctx context.Context, vector []float32, topK int) ([]domain.Passage, error)
}

// Recorder persists or announces a finished exchange.
type Recorder interface {
	Record(ctx context.Context, ex domain.ChatExchange) error
}

// Options configures the Service.
type Options struct {
	TopK          int
	RecordTimeout time.Duration
	// Recorder is optional; nil skips persistence.
	Recorder Recorder
}

// Answer is the result of one query.
type Answer struct {
	Response  string            `json:"response"`
	Citations []domain.Citation `json:"citations"`
	SessionID string            `json:"session_id"`
}

// Service is the query orchestrator.
type Service struct {
	embedder  embed.Embedder
	searcher  Searcher
	responder respond.Responder
	opts      Options
	logger    *slog.Logger
	tracer    trace.Tracer

	duration *metrics.Histogram
	reg      *metrics.Registry
	pending  sync.WaitGroup
}

// QueryBuckets suit end-to-end answer latency, LLM call included.
var QueryBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// New creates a Service. A nil registry or logger gets a private default.
func New(e embed.Embedder, s Searcher, r respond.Responder, opts Options, reg *metrics.Registry, logger *slog.Logger) *Service {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.RecordTimeout <= 0 {
		opts.RecordTimeout = DefaultRecordTimeout
	}
	if reg == nil {
		reg = metrics.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		embedder:  embed.Guard(e),
		searcher:  s,
		responder: r,
		opts:      opts,
		logger:    logger,
		tracer:    otel.Tracer("coursebot/engine/rag"),
		duration:  reg.Histogram("coursebot_query_duration_seconds", "End-to-end query latency.", QueryBuckets),
		reg:       reg,
	}
}

func (s *Service) outcome(name string) {
	s.reg.Counter(metrics.WithLabels("coursebot_queries_total", "outcome", name), "Queries by outcome.").Inc()
}

// Query runs one question through embed, retrieve, respond and cite.
// Validation failures wrap domain.ErrInvalidQuery.
func (s *Service) Query(ctx context.Context, q domain.Query) (ans *Answer, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "rag.query")
	defer func() {
		s.duration.Since(start)
		s.outcome(classify(err))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := domain.ValidateQuery(q); err != nil {
		return nil, err
	}
	sessionID := q.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	span.SetAttributes(attribute.String("session_id", sessionID))
	s.logger.Info("rag query start", "session_id", sessionID, "message_len", len(q.Message), "history", len(q.History))

	vector, err := s.embedQuery(ctx, q)
	if err != nil {
		return nil, err
	}

	passages, err := s.retrieve(ctx, vector)
	if err != nil {
		return nil, err
	}

	response := s.respond(ctx, q, passages)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("rag: respond: %w", err)
	}

	citations := make([]domain.Citation, 0, MaxCitations)
	for _, p := range passages[:min(MaxCitations, len(passages))] {
		citations = append(citations, domain.CitationFrom(p))
	}

	s.record(ctx, domain.ChatExchange{
		SessionID:   sessionID,
		UserMessage: q.Message,
		AIResponse:  response,
		Context:     q.Context,
		CreatedAt:   time.Now().UTC(),
	})

	s.logger.Info("rag query done", "session_id", sessionID, "passages", len(passages), "citations", len(citations), "duration", time.Since(start))
	return &Answer{Response: response, Citations: citations, SessionID: sessionID}, nil
}

// EmbedInput is the text embedded for a query: the caller's context, when
// present, ahead of the question.
func EmbedInput(q domain.Query) string {
	if strings.TrimSpace(q.Context) == "" {
		return q.Message
	}
	return q.Context + "\n\nQuestion: " + q.Message
}

func (s *Service) embedQuery(ctx context.Context, q domain.Query) ([]float32, error) {
	ctx, span := s.tracer.Start(ctx, "rag.embed", trace.WithAttributes(attribute.String("embedder", s.embedder.Name())))
	defer span.End()
	v, err := s.embedder.Embed(ctx, EmbedInput(q))
	if err != nil {
		return nil, fmt.Errorf("rag: embed query: %w", err)
	}
	return v, nil
}

func (s *Service) retrieve(ctx context.Context, vector []float32) ([]domain.Passage, error) {
	ctx, span := s.tracer.Start(ctx, "rag.retrieve", trace.WithAttributes(attribute.Int("top_k", s.opts.TopK)))
	defer span.End()
	passages, err := s.searcher.SearchSimilar(ctx, vector, s.opts.TopK)
	if err != nil {
		return nil, fmt.Errorf("rag: retrieve: %w", err)
	}
	span.SetAttributes(attribute.Int("passages", len(passages)))
	return passages, nil
}

func (s *Service) respond(ctx context.Context, q domain.Query, passages []domain.Passage) string {
	ctx, span := s.tracer.Start(ctx, "rag.respond", trace.WithAttributes(attribute.String("responder", s.responder.Name())))
	defer span.End()
	return s.responder.Respond(ctx, q.Message, passages, q.History)
}

// record hands the exchange to the Recorder without blocking the answer.
// The goroutine outlives the request, so it runs on a detached context.
func (s *Service) record(ctx context.Context, ex domain.ChatExchange) {
	if s.opts.Recorder == nil {
		return
	}
	detached := context.WithoutCancel(ctx)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		rctx, cancel := context.WithTimeout(detached, s.opts.RecordTimeout)
		defer cancel()
		if err := s.opts.Recorder.Record(rctx, ex); err != nil {
			s.logger.Warn("rag: record exchange failed", "session_id", ex.SessionID, "error", err)
		}
	}()
}

// Wait blocks until background recordings started so far have finished.
func (s *Service) Wait() {
	s.pending.Wait()
}

func classify(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrInvalidQuery):
		return "invalid"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
