// Package respond builds grounded prompts and turns them into answers.
package respond

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/humanoid-academy/coursebot/engine/domain"
)

const (
	// MaxContextPassages bounds how many retrieved passages enter the prompt.
	MaxContextPassages = 3
	// MaxHistoryMessages keeps the last two exchanges.
	MaxHistoryMessages = 4
)

// Apology is returned in place of an answer when the model call fails.
const Apology = "I encountered an error processing your question. Please try again or rephrase your question."

// SystemPrompt fixes the assistant persona and course scope.
const SystemPrompt = `You are an expert AI assistant for a Physical AI and Humanoid Robotics course.
Your role is to help students learn about:
- ROS 2 (Robot Operating System)
- Gazebo and Unity simulation
- NVIDIA Isaac platform
- Vision-Language-Action systems

Guidelines:
1. Answer based on the provided context from the course
2. Be clear, concise, and educational
3. Use technical terms but explain them simply
4. If the question is outside the course scope, politely redirect to course topics
5. Keep responses 3-5 sentences unless more detail is needed
6. Use examples when helpful`

const noContext = "No course passages matched this question."

// FormatContext renders the top passages with their source labels.
func FormatContext(passages []domain.Passage) string {
	if len(passages) == 0 {
		return noContext
	}
	n := min(len(passages), MaxContextPassages)
	blocks := make([]string, n)
	for i, p := range passages[:n] {
		blocks[i] = fmt.Sprintf("[Source: %s - %s]\n%s", p.Chapter, p.Section, p.Content)
	}
	return strings.Join(blocks, "\n\n")
}

// UserPrompt embeds the context block and the literal question.
func UserPrompt(message string, passages []domain.Passage) string {
	return fmt.Sprintf(`Context from the course:
%s

Student Question: %s

Please answer the student's question based on the context provided. If the context doesn't contain relevant information, provide a general answer related to the course topics and suggest they refer to specific course modules.`,
		FormatContext(passages), message)
}

// TrimHistory keeps the most recent MaxHistoryMessages turns.
func TrimHistory(history []domain.Turn) []domain.Turn {
	if len(history) <= MaxHistoryMessages {
		return history
	}
	return history[len(history)-MaxHistoryMessages:]
}

// Messages orders the chat as system, trimmed history, then the user prompt.
func Messages(message string, passages []domain.Passage, history []domain.Turn) []llms.MessageContent {
	h := TrimHistory(history)
	msgs := make([]llms.MessageContent, 0, len(h)+2)
	msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, SystemPrompt))
	for _, t := range h {
		role := llms.ChatMessageTypeHuman
		if t.Role == domain.RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		msgs = append(msgs, llms.TextParts(role, t.Content))
	}
	return append(msgs, llms.TextParts(llms.ChatMessageTypeHuman, UserPrompt(message, passages)))
}
