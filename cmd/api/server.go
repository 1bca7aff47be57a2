package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/humanoid-academy/coursebot/engine/domain"
	"github.com/humanoid-academy/coursebot/engine/graph"
	"github.com/humanoid-academy/coursebot/engine/history"
	"github.com/humanoid-academy/coursebot/engine/provider"
	"github.com/humanoid-academy/coursebot/engine/rag"
	"github.com/humanoid-academy/coursebot/engine/semantic"
	"github.com/humanoid-academy/coursebot/pkg/config"
	"github.com/humanoid-academy/coursebot/pkg/metrics"
	"github.com/humanoid-academy/coursebot/pkg/mid"
)

const (
	serviceName    = "coursebot-api"
	serviceVersion = "1.0.0"
	maxBodyBytes   = 1 << 20
	probeTimeout   = 2 * time.Second
)

type querier interface {
	Query(ctx context.Context, q domain.Query) (*rag.Answer, error)
}

type outliner interface {
	Outline(ctx context.Context) ([]graph.Module, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// server holds the handler dependencies. outline and db are nil when the
// corresponding backend is not configured.
type server struct {
	rag        querier
	history    history.Reader
	index      semantic.Index
	outline    outliner
	db         pinger
	providers  provider.Providers
	warnings   []string
	collection string
	testMode   bool
	reg        *metrics.Registry
	logger     *slog.Logger
}

func (s *server) routes(cfg config.Server) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/chat/query", s.handleQuery)
	mux.HandleFunc("GET /api/chat/history/{session_id}", s.handleHistory)
	mux.HandleFunc("GET /api/collection/info", s.handleCollectionInfo)
	mux.HandleFunc("POST /api/collection/create", s.handleCollectionCreate)
	mux.HandleFunc("GET /api/course/outline", s.handleOutline)
	mux.Handle("GET /metrics", s.reg.Handler())

	return mid.Chain(mux,
		mid.Recover(s.logger),
		mid.Logger(s.logger),
		mid.CORS(cfg.CORSOrigins),
		mid.OTel(serviceName),
		mid.Timeout(cfg.RequestTimeout),
		mid.Metrics(s.reg, mid.RoutePattern),
	)
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// queryStatus maps a query error to its HTTP status.
func queryStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidQuery):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// --- Handlers ---

func (s *server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Physical AI & Humanoid Robotics course assistant",
		"version": serviceVersion,
		"mode":    string(s.providers.Mode),
		"health":  "/health",
		"metrics": "/metrics",
	})
}

// HealthResponse is the JSON body for GET /health.
type HealthResponse struct {
	Status       string   `json:"status"`
	Version      string   `json:"version"`
	Mode         string   `json:"mode"`
	ChatProvider string   `json:"chat_provider"`
	Embedder     string   `json:"embedder"`
	VectorIndex  string   `json:"vector_index"`
	Database     string   `json:"database"`
	Outline      string   `json:"outline"`
	Warnings     []string `json:"warnings"`
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:       "healthy",
		Version:      serviceVersion,
		Mode:         string(s.providers.Mode),
		ChatProvider: s.providers.ChatName(),
		Embedder:     s.providers.Embedder.Name(),
		VectorIndex:  "connected",
		Database:     "not_configured",
		Outline:      "not_configured",
		Warnings:     s.warnings,
	}
	if resp.Warnings == nil {
		resp.Warnings = []string{}
	}

	if _, err := s.index.CollectionInfo(ctx); err != nil {
		resp.VectorIndex = "unavailable"
		if errors.Is(err, domain.ErrCollectionMissing) {
			resp.VectorIndex = "collection_missing"
		}
		resp.Status = "degraded"
	}
	if s.db != nil {
		resp.Database = "connected"
		if err := s.db.Ping(ctx); err != nil {
			resp.Database = "unavailable"
		}
	}
	if s.outline != nil {
		resp.Outline = "configured"
	}
	writeJSON(w, http.StatusOK, resp)
}

// QueryRequest is the JSON body for POST /api/chat/query.
type QueryRequest struct {
	Message   string        `json:"message"`
	SessionID string        `json:"session_id,omitempty"`
	Context   string        `json:"context,omitempty"`
	History   []domain.Turn `json:"history,omitempty"`
}

func (s *server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	answer, err := s.rag.Query(r.Context(), domain.Query{
		Message:   req.Message,
		SessionID: req.SessionID,
		Context:   req.Context,
		History:   req.History,
	})
	if err != nil {
		status := queryStatus(err)
		switch status {
		case http.StatusBadRequest:
			writeError(w, status, err.Error())
		case http.StatusGatewayTimeout:
			s.logger.Warn("rag query timed out", "err", err)
			writeError(w, status, "request timed out")
		default:
			s.logger.Error("rag query failed", "err", err)
			writeError(w, status, "failed to answer the question")
		}
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

// HistoryMessage is one exchange in GET /api/chat/history.
type HistoryMessage struct {
	UserMessage string    `json:"user_message"`
	AIResponse  string    `json:"ai_response"`
	CreatedAt   time.Time `json:"created_at"`
}

// HistoryResponse is the JSON body for GET /api/chat/history/{session_id}.
type HistoryResponse struct {
	SessionID string           `json:"session_id"`
	Messages  []HistoryMessage `json:"messages"`
	Note      string           `json:"note,omitempty"`
}

func (s *server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")
	exchanges, err := s.history.ListBySession(r.Context(), sessionID)
	if err != nil {
		s.logger.Error("history lookup failed", "session_id", sessionID, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	resp := HistoryResponse{SessionID: sessionID, Messages: make([]HistoryMessage, 0, len(exchanges))}
	for _, ex := range exchanges {
		resp.Messages = append(resp.Messages, HistoryMessage{
			UserMessage: ex.UserMessage,
			AIResponse:  ex.AIResponse,
			CreatedAt:   ex.CreatedAt,
		})
	}
	if s.testMode {
		resp.Note = "test mode: history is not saved"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleCollectionInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.index.CollectionInfo(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrCollectionMissing) {
			writeError(w, http.StatusNotFound, "collection "+s.collection+" does not exist")
			return
		}
		s.logger.Error("collection info failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to read collection info")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *server) handleCollectionCreate(w http.ResponseWriter, r *http.Request) {
	if err := s.index.EnsureCollection(r.Context(), s.providers.Dimension); err != nil {
		if errors.Is(err, domain.ErrDimensionMismatch) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.logger.Error("collection create failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to create collection")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"message":     "Collection ready",
		"collection":  s.collection,
		"vector_size": s.providers.Dimension,
	})
}

func (s *server) handleOutline(w http.ResponseWriter, r *http.Request) {
	if s.outline == nil {
		writeError(w, http.StatusServiceUnavailable, "course outline is not configured")
		return
	}
	modules, err := s.outline.Outline(r.Context())
	if err != nil {
		s.logger.Error("outline lookup failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to load course outline")
		return
	}
	if modules == nil {
		modules = []graph.Module{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"modules": modules})
}
