package history

import (
	"context"
	"time"

	"github.com/humanoid-academy/coursebot/engine/domain"
	"github.com/humanoid-academy/coursebot/pkg/natsutil"
)

// ExchangeSubject carries one ExchangeEvent per answered question.
const ExchangeSubject = "coursebot.chat.exchange"

// ExchangeEvent is the NATS payload for an answered question.
type ExchangeEvent struct {
	SessionID     string    `json:"session_id"`
	UserMessage   string    `json:"user_message"`
	AIResponse    string    `json:"ai_response"`
	HasContext    bool      `json:"has_context"`
	CreatedAt     time.Time `json:"created_at"`
	ResponseChars int       `json:"response_chars"`
}

// EventRecorder publishes exchanges instead of storing them.
type EventRecorder struct {
	conn    natsutil.Conn
	subject string
}

var _ Recorder = (*EventRecorder)(nil)

// NewEventRecorder publishes on ExchangeSubject.
func NewEventRecorder(conn natsutil.Conn) *EventRecorder {
	return &EventRecorder{conn: conn, subject: ExchangeSubject}
}

func (e *EventRecorder) Record(ctx context.Context, ex domain.ChatExchange) error {
	return natsutil.Publish(ctx, e.conn, e.subject, ExchangeEvent{
		SessionID:     ex.SessionID,
		UserMessage:   ex.UserMessage,
		AIResponse:    ex.AIResponse,
		HasContext:    ex.Context != "",
		CreatedAt:     ex.CreatedAt,
		ResponseChars: len([]rune(ex.AIResponse)),
	})
}
