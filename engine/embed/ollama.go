package embed

import (
	"context"
	"fmt"

	"github.com/humanoid-academy/coursebot/pkg/ollama"
)

// Ollama adapts an ollama.EmbedClient to Embedder.
type Ollama struct {
	client *ollama.EmbedClient
	dim    int
}

// NewOllama returns an Embedder backed by a local Ollama server.
func NewOllama(client *ollama.EmbedClient, dim int) *Ollama {
	return &Ollama{client: client, dim: dim}
}

func (o *Ollama) Name() string   { return "ollama:" + o.client.Model() }
func (o *Ollama) Dimension() int { return o.dim }

func (o *Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := o.client.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed: %s: %w", o.Name(), err)
	}
	if err := checkDim(o.Name(), o.dim, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (o *Ollama) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vs, err := o.client.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed: %s: %w", o.Name(), err)
	}
	for _, v := range vs {
		if err := checkDim(o.Name(), o.dim, v); err != nil {
			return nil, err
		}
	}
	return vs, nil
}
