package semantic

import (
	"context"
	"log/slog"

	"github.com/humanoid-academy/coursebot/engine/domain"
)

// Fallbacks for payload fields missing from a stored point.
const (
	UnknownField = "Unknown"
	RootURL      = "/"
)

// Retriever turns index hits into passages the responder can always format.
type Retriever struct {
	index  Index
	logger *slog.Logger
}

// NewRetriever wraps an Index.
func NewRetriever(index Index, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{index: index, logger: logger}
}

// SearchSimilar returns up to topK passages, most relevant first.
// Index failures degrade to an empty result; a done context does not.
func (r *Retriever) SearchSimilar(ctx context.Context, vector []float32, topK int) ([]domain.Passage, error) {
	hits, err := r.index.Search(ctx, vector, topK)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		r.logger.Warn("retriever search failed, continuing without passages", "error", err)
		return []domain.Passage{}, nil
	}

	out := make([]domain.Passage, 0, min(len(hits), max(topK, 0)))
	for _, h := range hits {
		if len(out) == topK {
			break
		}
		out = append(out, toPassage(h))
	}
	return out, nil
}

func toPassage(h SearchResult) domain.Passage {
	return domain.Passage{
		ID:      h.ID,
		Chapter: orDefault(h.String(KeyChapter), UnknownField),
		Section: orDefault(h.String(KeySection), UnknownField),
		URL:     orDefault(h.String(KeyURL), RootURL),
		Content: h.String(KeyContent),
		File:    h.String(KeyFile),
		Score:   h.Score,
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
