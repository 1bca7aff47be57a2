// Package config loads process configuration from the environment, with an
// optional .env file applied first.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Server configures the HTTP listener.
type Server struct {
	Port           string
	LogLevel       string
	CORSOrigins    []string
	RequestTimeout time.Duration
}

// OpenAI configures the OpenAI chat and embedding providers.
type OpenAI struct {
	APIKey         string
	BaseURL        string
	Model          string
	EmbeddingModel string
	MaxTokens      int
	Temperature    float64
}

// Groq configures the Groq chat provider (OpenAI-compatible API).
type Groq struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// Ollama configures the local embedding provider.
type Ollama struct {
	URL        string
	EmbedModel string
}

// Qdrant configures the vector index. VectorSize 0 means "use the embedding
// model's native size".
type Qdrant struct {
	URL        string
	APIKey     string
	Collection string
	VectorSize int
}

// Neo4j configures the optional outline graph.
type Neo4j struct {
	URL  string
	User string
	Pass string
}

// Retrieval holds the chunking and search knobs.
type Retrieval struct {
	TopK         int
	ChunkSize    int
	ChunkOverlap int
	// EmbedRateLimit is embedding calls per second during ingestion; 0 is unlimited.
	EmbedRateLimit float64
}

// Config is the full process configuration.
type Config struct {
	Server      Server
	TestMode    bool
	OpenAI      OpenAI
	Groq        Groq
	Ollama      Ollama
	Qdrant      Qdrant
	Neo4j       Neo4j
	Retrieval   Retrieval
	DatabaseURL string
	NATSURL     string
	DocsDir     string
}

// Load applies the given .env files (".env" when none are named), then reads
// and validates the environment. Missing .env files are ignored.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: %s: %w", f, err)
		}
	}
	cfg, err := FromEnv()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv reads the environment without validating it.
func FromEnv() (Config, error) {
	var e env
	cfg := Config{
		Server: Server{
			Port:           envOr("PORT", "8000"),
			LogLevel:       envOr("LOG_LEVEL", "info"),
			CORSOrigins:    listOr("CORS_ORIGINS", "http://localhost:3000,http://localhost:3001"),
			RequestTimeout: e.durationOr("REQUEST_TIMEOUT", 60*time.Second),
		},
		TestMode: e.boolOr("TEST_MODE", false),
		OpenAI: OpenAI{
			APIKey:         os.Getenv("OPENAI_API_KEY"),
			BaseURL:        os.Getenv("OPENAI_BASE_URL"),
			Model:          envOr("OPENAI_MODEL", "gpt-4"),
			EmbeddingModel: envOr("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			MaxTokens:      e.intOr("OPENAI_MAX_TOKENS", 1500),
			Temperature:    e.floatOr("OPENAI_TEMPERATURE", 0.7),
		},
		Groq: Groq{
			APIKey:      os.Getenv("GROQ_API_KEY"),
			BaseURL:     envOr("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
			Model:       envOr("GROQ_MODEL", "llama-3.3-70b-versatile"),
			MaxTokens:   e.intOr("GROQ_MAX_TOKENS", 500),
			Temperature: e.floatOr("GROQ_TEMPERATURE", 0.7),
			TopP:        e.floatOr("GROQ_TOP_P", 0.9),
		},
		Ollama: Ollama{
			URL:        os.Getenv("OLLAMA_URL"),
			EmbedModel: envOr("OLLAMA_EMBED_MODEL", "nomic-embed-text"),
		},
		Qdrant: Qdrant{
			URL:        envOr("QDRANT_URL", "localhost:6334"),
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			Collection: envOr("QDRANT_COLLECTION_NAME", "physical_ai_textbook"),
			VectorSize: e.intOr("QDRANT_VECTOR_SIZE", 0),
		},
		Neo4j: Neo4j{
			URL:  os.Getenv("NEO4J_URL"),
			User: os.Getenv("NEO4J_USER"),
			Pass: os.Getenv("NEO4J_PASS"),
		},
		Retrieval: Retrieval{
			TopK:           e.intOr("TOP_K", 5),
			ChunkSize:      e.intOr("CHUNK_SIZE", 500),
			ChunkOverlap:   e.intOr("CHUNK_OVERLAP", 50),
			EmbedRateLimit: e.floatOr("EMBED_RATE_LIMIT", 0),
		},
		DatabaseURL: os.Getenv("DATABASE_URL"),
		NATSURL:     os.Getenv("NATS_URL"),
		DocsDir:     envOr("DOCS_DIR", "docs"),
	}
	if err := errors.Join(e.errs...); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Validate rejects settings the services cannot run with.
func (c Config) Validate() error {
	var errs []error
	r := c.Retrieval
	if r.ChunkSize <= 0 || r.ChunkOverlap < 0 || r.ChunkOverlap >= r.ChunkSize {
		errs = append(errs, fmt.Errorf("CHUNK_OVERLAP (%d) must be in [0, CHUNK_SIZE (%d))", r.ChunkOverlap, r.ChunkSize))
	}
	if r.TopK < 1 {
		errs = append(errs, fmt.Errorf("TOP_K must be at least 1, got %d", r.TopK))
	}
	if c.Qdrant.VectorSize < 0 {
		errs = append(errs, fmt.Errorf("QDRANT_VECTOR_SIZE must not be negative, got %d", c.Qdrant.VectorSize))
	}
	if r.EmbedRateLimit < 0 {
		errs = append(errs, fmt.Errorf("EMBED_RATE_LIMIT must not be negative, got %g", r.EmbedRateLimit))
	}
	if t := c.OpenAI.Temperature; t < 0 || t > 2 {
		errs = append(errs, fmt.Errorf("OPENAI_TEMPERATURE must be within [0, 2], got %g", t))
	}
	if t := c.Groq.Temperature; t < 0 || t > 2 {
		errs = append(errs, fmt.Errorf("GROQ_TEMPERATURE must be within [0, 2], got %g", t))
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.Server.RequestTimeout))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: invalid: %w", err)
	}
	return nil
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info.
func (s Server) SlogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// Addr is the listen address for Port.
func (s Server) Addr() string { return ":" + s.Port }

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func listOr(key, fallback string) []string {
	var out []string
	for _, p := range strings.Split(envOr(key, fallback), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// env collects parse errors so every bad variable is reported at once.
type env struct{ errs []error }

func (e *env) intOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not an integer", key, v))
		return fallback
	}
	return n
}

func (e *env) floatOr(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not a number", key, v))
		return fallback
	}
	return f
}

func (e *env) boolOr(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not a boolean", key, v))
		return fallback
	}
	return b
}

// durationOr accepts Go durations ("90s") or a bare number of seconds.
func (e *env) durationOr(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	e.errs = append(e.errs, fmt.Errorf("%s: %q is not a duration", key, v))
	return fallback
}
