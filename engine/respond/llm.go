package respond

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/humanoid-academy/coursebot/engine/domain"
	"github.com/humanoid-academy/coursebot/pkg/metrics"
	"github.com/humanoid-academy/coursebot/pkg/resilience"
)

var errEmptyReply = errors.New("respond: empty completion")

// LLMConfig holds the sampling parameters of one chat provider.
type LLMConfig struct {
	Name        string
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// LLM answers through a langchaingo chat model behind a circuit breaker.
type LLM struct {
	model     llms.Model
	cfg       LLMConfig
	breaker   *resilience.Breaker
	fallbacks *metrics.Counter
	logger    *slog.Logger
}

var _ Responder = (*LLM)(nil)

// NewLLM wraps model. A nil registry or logger gets a private default.
func NewLLM(model llms.Model, cfg LLMConfig, reg *metrics.Registry, logger *slog.Logger) *LLM {
	if reg == nil {
		reg = metrics.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LLM{
		model:   model,
		cfg:     cfg,
		breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts),
		fallbacks: reg.Counter(
			metrics.WithLabels("coursebot_responder_fallbacks_total", "provider", cfg.Name),
			"Answers replaced by the apology after a provider failure.",
		),
		logger: logger,
	}
}

// NewOpenAIChat builds a chat model for any OpenAI-compatible endpoint.
// Groq is reached the same way through its base URL.
func NewOpenAIChat(apiKey, model, baseURL string) (llms.Model, error) {
	opts := []openai.Option{openai.WithToken(apiKey), openai.WithModel(model)}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	m, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("respond: chat model %s: %w", model, err)
	}
	return m, nil
}

func (l *LLM) Name() string { return l.cfg.Name }

// Respond calls the model once. Failures, empty replies and an open breaker
// all produce Apology.
func (l *LLM) Respond(ctx context.Context, message string, passages []domain.Passage, history []domain.Turn) string {
	msgs := Messages(message, passages, history)

	var reply string
	err := l.breaker.Call(ctx, func(ctx context.Context) error {
		resp, err := l.model.GenerateContent(ctx, msgs, l.callOptions()...)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
			return errEmptyReply
		}
		reply = resp.Choices[0].Content
		return nil
	})
	if err != nil {
		l.fallbacks.Inc()
		l.logger.Error("responder call failed", "provider", l.cfg.Name, "breaker", l.breaker.State().String(), "error", err)
		return Apology
	}
	return reply
}

func (l *LLM) callOptions() []llms.CallOption {
	opts := []llms.CallOption{llms.WithTemperature(l.cfg.Temperature)}
	if l.cfg.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(l.cfg.MaxTokens))
	}
	if l.cfg.TopP > 0 {
		opts = append(opts, llms.WithTopP(l.cfg.TopP))
	}
	return opts
}
