// Package embed maps text to fixed-dimension vectors. Every variant returns
// vectors of exactly Dimension() floats or an error.
package embed

import (
	"context"
	"fmt"

	"github.com/humanoid-academy/coursebot/engine/domain"
)

// Embedder is the capability set shared by all variants.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Name() string
}

// Guard wraps an Embedder and checks every returned vector against its
// declared dimension.
func Guard(e Embedder) Embedder {
	if g, ok := e.(*guarded); ok {
		return g
	}
	return &guarded{inner: e}
}

type guarded struct {
	inner Embedder
}

func (g *guarded) Name() string   { return g.inner.Name() }
func (g *guarded) Dimension() int { return g.inner.Dimension() }

func (g *guarded) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := g.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := checkDim(g.inner.Name(), g.Dimension(), v); err != nil {
		return nil, err
	}
	return v, nil
}

func (g *guarded) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vs, err := g.inner.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vs) != len(texts) {
		return nil, fmt.Errorf("embed: %s: batch returned %d vectors for %d texts", g.inner.Name(), len(vs), len(texts))
	}
	for _, v := range vs {
		if err := checkDim(g.inner.Name(), g.Dimension(), v); err != nil {
			return nil, err
		}
	}
	return vs, nil
}

func checkDim(name string, want int, v []float32) error {
	if len(v) != want {
		return domain.DimensionError("embed: "+name, want, len(v))
	}
	return nil
}
