// Package history persists and announces chat exchanges. Every writer is
// best-effort from the caller's point of view: the query path logs and
// drops their errors.
package history

import (
	"context"
	"errors"

	"github.com/humanoid-academy/coursebot/engine/domain"
)

// Recorder stores or forwards one exchange.
type Recorder interface {
	Record(ctx context.Context, ex domain.ChatExchange) error
}

// Reader lists the exchanges of a session, oldest first.
type Reader interface {
	ListBySession(ctx context.Context, sessionID string) ([]domain.ChatExchange, error)
}

// Multi fans an exchange out to every recorder, joining their errors.
func Multi(recorders ...Recorder) Recorder {
	var rs multi
	for _, r := range recorders {
		if r != nil {
			rs = append(rs, r)
		}
	}
	return rs
}

type multi []Recorder

func (m multi) Record(ctx context.Context, ex domain.ChatExchange) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.Record(ctx, ex))
	}
	return errors.Join(errs...)
}

// Nop is used when persistence is not configured: nothing is stored and
// every session reads back empty.
type Nop struct{}

func (Nop) Record(context.Context, domain.ChatExchange) error { return nil }

func (Nop) ListBySession(context.Context, string) ([]domain.ChatExchange, error) {
	return []domain.ChatExchange{}, nil
}
