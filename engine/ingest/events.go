package ingest

import (
	"context"

	"github.com/humanoid-academy/coursebot/pkg/natsutil"
)

// SummarySubject carries one Summary per finished run.
const SummarySubject = "coursebot.ingest.completed"

// EventPublisher announces run summaries on NATS.
type EventPublisher struct {
	conn    natsutil.Conn
	subject string
}

// NewEventPublisher publishes on SummarySubject.
func NewEventPublisher(conn natsutil.Conn) *EventPublisher {
	return &EventPublisher{conn: conn, subject: SummarySubject}
}

func (e *EventPublisher) PublishSummary(ctx context.Context, s Summary) error {
	return natsutil.Publish(ctx, e.conn, e.subject, s)
}
