package domain

import (
	"strings"
	"unicode/utf8"
)

// Query limits.
const (
	MaxMessageChars   = 5000
	MaxSessionIDChars = 255
)

// ValidateQuery checks a query before it reaches the orchestrator.
func ValidateQuery(q Query) error {
	if strings.TrimSpace(q.Message) == "" {
		return NewValidationError("message", q.Message, ErrInvalidQuery)
	}
	if n := utf8.RuneCountInString(q.Message); n > MaxMessageChars {
		return NewValidationError("message", truncate(q.Message, 40), ErrMessageTooLong)
	}
	if utf8.RuneCountInString(q.SessionID) > MaxSessionIDChars {
		return NewValidationError("session_id", truncate(q.SessionID, 40), ErrInvalidQuery)
	}
	for _, t := range q.History {
		if t.Role != RoleUser && t.Role != RoleAssistant {
			return NewValidationError("history.role", t.Role, ErrInvalidQuery)
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}
