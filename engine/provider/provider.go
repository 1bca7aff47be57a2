// Package provider picks the embedder, responder and vector index once at
// startup from configuration, and reports which mode the service runs in.
package provider

import (
	"fmt"
	"log/slog"

	"github.com/humanoid-academy/coursebot/engine/domain"
	"github.com/humanoid-academy/coursebot/engine/embed"
	"github.com/humanoid-academy/coursebot/engine/respond"
	"github.com/humanoid-academy/coursebot/engine/semantic"
	"github.com/humanoid-academy/coursebot/pkg/config"
	"github.com/humanoid-academy/coursebot/pkg/metrics"
	"github.com/humanoid-academy/coursebot/pkg/ollama"
)

// Mode is the operating mode reported by /health.
type Mode string

const (
	ModeTest       Mode = "TEST"
	ModeProduction Mode = "PRODUCTION"
	// ModeDegraded means no chat provider is configured outside test mode.
	ModeDegraded Mode = "DEGRADED"
)

// Chat provider names.
const (
	ChatGroq   = "groq"
	ChatOpenAI = "openai"
)

// Providers is the selection made at startup.
type Providers struct {
	Embedder  embed.Embedder
	Responder respond.Responder
	// Dimension is the resolved collection vector size.
	Dimension int
	Mode      Mode
	Warnings  []string
}

// ChatName is the active responder, e.g. "groq" or "mock".
func (p Providers) ChatName() string { return p.Responder.Name() }

// Select builds the providers described by cfg. Missing credentials are not
// an error: they fall back to the hash embedder or the mock responder and
// add a warning. A configured vector size that contradicts the embedding
// model fails with domain.ErrDimensionMismatch.
func Select(cfg config.Config, reg *metrics.Registry, logger *slog.Logger) (Providers, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var p Providers

	if cfg.TestMode {
		p.Dimension = hashDimension(cfg.Qdrant.VectorSize)
		p.Embedder = embed.NewHash(p.Dimension)
		p.Responder = respond.Mock{}
		p.Mode = ModeTest
		p.Warnings = append(p.Warnings, "test mode: fixture passages, keyword responder and hash embeddings")
		logSelection(logger, p)
		return p, nil
	}

	e, dim, warn, err := selectEmbedder(cfg)
	if err != nil {
		return Providers{}, err
	}
	p.Embedder, p.Dimension = e, dim
	if warn != "" {
		p.Warnings = append(p.Warnings, warn)
	}

	r, err := selectResponder(cfg, reg, logger)
	if err != nil {
		return Providers{}, err
	}
	p.Responder = r
	p.Mode = ModeProduction
	if r.Name() == respond.MockName {
		p.Mode = ModeDegraded
		p.Warnings = append(p.Warnings, "no chat provider configured (GROQ_API_KEY, OPENAI_API_KEY): answers come from the keyword responder")
	}

	logSelection(logger, p)
	return p, nil
}

func logSelection(logger *slog.Logger, p Providers) {
	logger.Info("providers selected",
		"mode", p.Mode,
		"chat", p.ChatName(),
		"embedder", p.Embedder.Name(),
		"dimension", p.Dimension,
	)
	for _, w := range p.Warnings {
		logger.Warn("provider fallback", "warning", w)
	}
}

// selectEmbedder prefers OpenAI, then Ollama, then the hash fallback.
func selectEmbedder(cfg config.Config) (embed.Embedder, int, string, error) {
	switch {
	case cfg.OpenAI.APIKey != "":
		dim, err := ResolveDimension(cfg.OpenAI.EmbeddingModel, cfg.Qdrant.VectorSize)
		if err != nil {
			return nil, 0, "", err
		}
		e, err := embed.NewOpenAI(embed.OpenAIOpts{
			APIKey:    cfg.OpenAI.APIKey,
			Model:     cfg.OpenAI.EmbeddingModel,
			BaseURL:   cfg.OpenAI.BaseURL,
			Dimension: dim,
		})
		if err != nil {
			return nil, 0, "", fmt.Errorf("provider: %w", err)
		}
		return e, dim, "", nil

	case cfg.Ollama.URL != "":
		dim, err := ResolveDimension(cfg.Ollama.EmbedModel, cfg.Qdrant.VectorSize)
		if err != nil {
			return nil, 0, "", err
		}
		client := ollama.NewEmbedClient(cfg.Ollama.URL, cfg.Ollama.EmbedModel)
		return embed.NewOllama(client, dim), dim, "", nil
	}

	dim := hashDimension(cfg.Qdrant.VectorSize)
	return embed.NewHash(dim), dim,
		"no embedding provider configured (OPENAI_API_KEY, OLLAMA_URL): hash-sha256 vectors carry no semantic signal", nil
}

// selectResponder prefers Groq, then OpenAI, then the mock.
func selectResponder(cfg config.Config, reg *metrics.Registry, logger *slog.Logger) (respond.Responder, error) {
	switch {
	case cfg.Groq.APIKey != "":
		m, err := respond.NewOpenAIChat(cfg.Groq.APIKey, cfg.Groq.Model, cfg.Groq.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("provider: %w", err)
		}
		return respond.NewLLM(m, respond.LLMConfig{
			Name:        ChatGroq,
			MaxTokens:   cfg.Groq.MaxTokens,
			Temperature: cfg.Groq.Temperature,
			TopP:        cfg.Groq.TopP,
		}, reg, logger), nil

	case cfg.OpenAI.APIKey != "":
		m, err := respond.NewOpenAIChat(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("provider: %w", err)
		}
		return respond.NewLLM(m, respond.LLMConfig{
			Name:        ChatOpenAI,
			MaxTokens:   cfg.OpenAI.MaxTokens,
			Temperature: cfg.OpenAI.Temperature,
		}, reg, logger), nil
	}
	return respond.Mock{}, nil
}

// ResolveDimension returns the collection size for model. A configured size
// of 0 takes the model's native size; a non-zero size must agree with it
// when the model is known. Unknown models need an explicit size.
func ResolveDimension(model string, configured int) (int, error) {
	native, known := embed.KnownDimension(model)
	switch {
	case configured == 0 && known:
		return native, nil
	case configured == 0:
		return 0, fmt.Errorf("provider: unknown dimension for embedding model %q: set QDRANT_VECTOR_SIZE", model)
	case known && configured != native:
		return 0, domain.DimensionError("provider: "+model, configured, native)
	}
	return configured, nil
}

func hashDimension(configured int) int {
	if configured > 0 {
		return configured
	}
	return embed.HashDimension
}

// Index opens the vector index for the selection: the fixture index in test
// mode, Qdrant otherwise. The returned close function is never nil.
func Index(cfg config.Config, dims int) (semantic.Index, func() error, error) {
	if cfg.TestMode {
		return semantic.NewStatic(cfg.Qdrant.Collection, dims, semantic.CourseFixtures), func() error { return nil }, nil
	}
	var opts []semantic.Option
	if cfg.Qdrant.APIKey != "" {
		opts = append(opts, semantic.WithAPIKey(cfg.Qdrant.APIKey))
	}
	vs, err := semantic.New(cfg.Qdrant.URL, cfg.Qdrant.Collection, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("provider: qdrant: %w", err)
	}
	return vs, vs.Close, nil
}
