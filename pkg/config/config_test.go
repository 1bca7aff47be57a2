package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var knownKeys = []string{
	"PORT", "LOG_LEVEL", "CORS_ORIGINS", "REQUEST_TIMEOUT", "TEST_MODE",
	"OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL", "OPENAI_EMBEDDING_MODEL", "OPENAI_MAX_TOKENS", "OPENAI_TEMPERATURE",
	"GROQ_API_KEY", "GROQ_BASE_URL", "GROQ_MODEL", "GROQ_MAX_TOKENS", "GROQ_TEMPERATURE", "GROQ_TOP_P",
	"OLLAMA_URL", "OLLAMA_EMBED_MODEL",
	"QDRANT_URL", "QDRANT_API_KEY", "QDRANT_COLLECTION_NAME", "QDRANT_VECTOR_SIZE",
	"NEO4J_URL", "NEO4J_USER", "NEO4J_PASS",
	"TOP_K", "CHUNK_SIZE", "CHUNK_OVERLAP", "EMBED_RATE_LIMIT",
	"DATABASE_URL", "NATS_URL", "DOCS_DIR",
}

// clearEnv blanks every variable the package reads; empty means unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range knownKeys {
		t.Setenv(k, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, ":8000", cfg.Server.Addr())
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:3001"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 60*time.Second, cfg.Server.RequestTimeout)
	assert.False(t, cfg.TestMode)
	assert.Equal(t, "gpt-4", cfg.OpenAI.Model)
	assert.Equal(t, "text-embedding-3-small", cfg.OpenAI.EmbeddingModel)
	assert.Equal(t, 1500, cfg.OpenAI.MaxTokens)
	assert.Equal(t, "llama-3.3-70b-versatile", cfg.Groq.Model)
	assert.Equal(t, 500, cfg.Groq.MaxTokens)
	assert.InDelta(t, 0.9, cfg.Groq.TopP, 1e-9)
	assert.Equal(t, "nomic-embed-text", cfg.Ollama.EmbedModel)
	assert.Equal(t, "localhost:6334", cfg.Qdrant.URL)
	assert.Equal(t, "physical_ai_textbook", cfg.Qdrant.Collection)
	assert.Zero(t, cfg.Qdrant.VectorSize)
	assert.Equal(t, Retrieval{TopK: 5, ChunkSize: 500, ChunkOverlap: 50}, cfg.Retrieval)
	assert.Equal(t, "docs", cfg.DocsDir)
	assert.NoError(t, cfg.Validate())
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("CORS_ORIGINS", " https://course.example , ,http://localhost:3000")
	t.Setenv("REQUEST_TIMEOUT", "15")
	t.Setenv("TEST_MODE", "true")
	t.Setenv("GROQ_API_KEY", "gsk_test")
	t.Setenv("QDRANT_VECTOR_SIZE", "768")
	t.Setenv("EMBED_RATE_LIMIT", "2.5")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, []string{"https://course.example", "http://localhost:3000"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 15*time.Second, cfg.Server.RequestTimeout)
	assert.True(t, cfg.TestMode)
	assert.Equal(t, "gsk_test", cfg.Groq.APIKey)
	assert.Equal(t, 768, cfg.Qdrant.VectorSize)
	assert.InDelta(t, 2.5, cfg.Retrieval.EmbedRateLimit, 1e-9)

	t.Setenv("REQUEST_TIMEOUT", "1m30s")
	cfg, err = FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.Server.RequestTimeout)
}

func TestFromEnv_ReportsEveryBadValue(t *testing.T) {
	clearEnv(t)
	t.Setenv("TOP_K", "five")
	t.Setenv("TEST_MODE", "maybe")
	t.Setenv("GROQ_TOP_P", "high")
	t.Setenv("REQUEST_TIMEOUT", "soon")

	_, err := FromEnv()
	require.Error(t, err)
	for _, key := range []string{"TOP_K", "TEST_MODE", "GROQ_TOP_P", "REQUEST_TIMEOUT"} {
		assert.Contains(t, err.Error(), key)
	}
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	base, err := FromEnv()
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"overlap equals size", func(c *Config) { c.Retrieval.ChunkOverlap = 500 }, "CHUNK_OVERLAP"},
		{"zero top k", func(c *Config) { c.Retrieval.TopK = 0 }, "TOP_K"},
		{"negative vector size", func(c *Config) { c.Qdrant.VectorSize = -1 }, "QDRANT_VECTOR_SIZE"},
		{"hot openai", func(c *Config) { c.OpenAI.Temperature = 2.1 }, "OPENAI_TEMPERATURE"},
		{"cold groq", func(c *Config) { c.Groq.Temperature = -0.1 }, "GROQ_TEMPERATURE"},
		{"negative rate", func(c *Config) { c.Retrieval.EmbedRateLimit = -1 }, "EMBED_RATE_LIMIT"},
		{"zero timeout", func(c *Config) { c.Server.RequestTimeout = 0 }, "REQUEST_TIMEOUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	// godotenv never overrides a present variable, so TOP_K must be absent.
	t.Setenv("TOP_K", "")
	os.Unsetenv("TOP_K")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TOP_K=7\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Retrieval.TopK)
}

func TestLoad_MissingFileIgnored(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHUNK_SIZE", "40")
	t.Setenv("CHUNK_OVERLAP", "40")
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHUNK_OVERLAP")
}

func TestSlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, Server{LogLevel: "debug"}.SlogLevel())
	assert.Equal(t, slog.LevelWarn, Server{LogLevel: "WARN"}.SlogLevel())
	assert.Equal(t, slog.LevelInfo, Server{LogLevel: "verbose"}.SlogLevel())
}
