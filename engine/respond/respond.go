package respond

import (
	"context"

	"github.com/humanoid-academy/coursebot/engine/domain"
)

// Responder produces an answer for a question and its retrieved passages.
// It never fails; provider errors surface as a fixed apology and in logs.
type Responder interface {
	Respond(ctx context.Context, message string, passages []domain.Passage, history []domain.Turn) string
	Name() string
}
