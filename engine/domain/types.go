// Package domain defines the core types, sentinel errors, and validation for
// the coursebot engine. It is the validation gate at pipeline entry points.
package domain

import (
	"fmt"
	"time"
)

// Document is one course page read from disk.
type Document struct {
	ID      string `json:"id"`
	Path    string `json:"path"`
	Text    string `json:"text"`
	Title   string `json:"title"`
	Chapter string `json:"chapter"`
	URL     string `json:"url"`
}

// Chunk is a bounded slice of a document's text.
type Chunk struct {
	DocumentID string `json:"document_id"`
	Index      int    `json:"index"`
	Text       string `json:"text"`
	Words      int    `json:"words"`
}

// Key returns the chunk identity, "{document_id}_{index}".
func (c Chunk) Key() string {
	return fmt.Sprintf("%s_%d", c.DocumentID, c.Index)
}

// Role of a prior conversation turn.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one prior message passed through from the caller.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Query is a single user turn.
type Query struct {
	Message   string `json:"message"`
	Context   string `json:"context,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	History   []Turn `json:"history,omitempty"`
}

// Passage is a retrieved chunk payload with its similarity score.
type Passage struct {
	ID      string  `json:"id"`
	Chapter string  `json:"chapter"`
	Section string  `json:"section"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	File    string  `json:"file,omitempty"`
	Score   float32 `json:"score"`
}

// Citation is the user-facing provenance of a passage.
type Citation struct {
	Chapter        string  `json:"chapter"`
	Section        string  `json:"section"`
	URL            string  `json:"url"`
	RelevanceScore float32 `json:"relevance_score"`
}

// CitationFrom reduces a passage to a citation.
func CitationFrom(p Passage) Citation {
	return Citation{
		Chapter:        p.Chapter,
		Section:        p.Section,
		URL:            p.URL,
		RelevanceScore: p.Score,
	}
}

// ChatExchange is one persisted question/answer pair.
type ChatExchange struct {
	ID          int64     `json:"id,omitempty"`
	SessionID   string    `json:"session_id"`
	UserMessage string    `json:"user_message"`
	AIResponse  string    `json:"ai_response"`
	Context     string    `json:"context,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
