package embed

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"strconv"
)

const (
	// HashName identifies the deterministic fallback in logs and /health.
	HashName = "hash-sha256"
	// HashDimension is the fallback size when nothing else fixes one.
	HashDimension = 384
)

// Hash derives vectors from SHA-256 digests of the text. It needs no network
// and carries no semantic signal.
type Hash struct {
	dim int
}

// NewHash returns a fallback embedder producing dim-length vectors.
func NewHash(dim int) *Hash {
	return &Hash{dim: dim}
}

func (h *Hash) Name() string   { return HashName }
func (h *Hash) Dimension() int { return h.dim }

// Embed hashes "{text}_{i}" for i in [0, ceil(dim/32)) and maps each 4-byte
// big-endian word to [-1, 1). The result is cut or zero-padded to dim.
func (h *Hash) Embed(_ context.Context, text string) ([]float32, error) {
	return hashVector(text, h.dim), nil
}

// EmbedBatch embeds each text in order.
func (h *Hash) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = hashVector(t, h.dim)
	}
	return out, nil
}

func hashVector(text string, dim int) []float32 {
	out := make([]float32, dim)
	rounds := (dim + 31) / 32
	n := 0
	for i := 0; i < rounds && n < dim; i++ {
		sum := sha256.Sum256([]byte(text + "_" + strconv.Itoa(i)))
		for j := 0; j+4 <= len(sum) && n < dim; j += 4 {
			v := binary.BigEndian.Uint32(sum[j : j+4])
			out[n] = float32(float64(v)/(1<<32)*2 - 1)
			n++
		}
	}
	return out
}
