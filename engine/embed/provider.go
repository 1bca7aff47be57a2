package embed

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// Provider is an embedding-model backed Embedder.
type Provider struct {
	client embeddings.Embedder
	name   string
	dim    int
}

// NewProvider wraps any langchaingo embeddings.Embedder.
func NewProvider(client embeddings.Embedder, name string, dim int) *Provider {
	return &Provider{client: client, name: name, dim: dim}
}

// OpenAIOpts configures NewOpenAI.
type OpenAIOpts struct {
	APIKey    string
	Model     string
	BaseURL   string
	Dimension int
	BatchSize int
}

// NewOpenAI builds a Provider against the OpenAI embeddings API.
func NewOpenAI(opts OpenAIOpts) (*Provider, error) {
	llmOpts := []openai.Option{
		openai.WithToken(opts.APIKey),
		openai.WithEmbeddingModel(opts.Model),
	}
	if opts.BaseURL != "" {
		llmOpts = append(llmOpts, openai.WithBaseURL(opts.BaseURL))
	}
	llm, err := openai.New(llmOpts...)
	if err != nil {
		return nil, fmt.Errorf("embed: openai client: %w", err)
	}

	batch := opts.BatchSize
	if batch <= 0 {
		batch = 100
	}
	client, err := embeddings.NewEmbedder(llm,
		embeddings.WithBatchSize(batch),
		embeddings.WithStripNewLines(false),
	)
	if err != nil {
		return nil, fmt.Errorf("embed: openai embedder: %w", err)
	}
	return NewProvider(client, "openai:"+opts.Model, opts.Dimension), nil
}

func (p *Provider) Name() string   { return p.name }
func (p *Provider) Dimension() int { return p.dim }

func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := p.client.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed: %s: %w", p.name, err)
	}
	if err := checkDim(p.name, p.dim, v); err != nil {
		return nil, err
	}
	return v, nil
}

// EmbedBatch returns one vector per text, in input order.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vs, err := p.client.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed: %s batch: %w", p.name, err)
	}
	if len(vs) != len(texts) {
		return nil, fmt.Errorf("embed: %s: batch returned %d vectors for %d texts", p.name, len(vs), len(texts))
	}
	for _, v := range vs {
		if err := checkDim(p.name, p.dim, v); err != nil {
			return nil, err
		}
	}
	return vs, nil
}
