// Package llm implements a client for OpenAI-compatible chat completion
// routers.
package llm

import (
	"fmt"
	"unicode/utf8"

	"github.com/cloud-shuttle/quill/pkg/types"
)

// Finish reasons reported by backends when output hit the length cap
const (
	FinishLength    = "length"
	FinishMaxTokens = "max_tokens"
	FinishStop      = "stop"
)

// IsTruncation reports whether reason means the reply was cut off
func IsTruncation(reason string) bool {
	return reason == FinishLength || reason == FinishMaxTokens
}

// Message represents a chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// MessagesFromTurns converts session turns to wire messages, prefixed by an
// optional system prompt.
func MessagesFromTurns(system string, turns []types.Turn) []Message {
	msgs := make([]Message, 0, len(turns)+1)
	if system != "" {
		msgs = append(msgs, Message{Role: "system", Content: system})
	}
	for _, t := range turns {
		msgs = append(msgs, Message{Role: t.Role.String(), Content: t.Content})
	}
	return msgs
}

// ChatRequest is a request to generate a chat completion
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	TopP        float64   `json:"top_p,omitempty"`

	// Backend pins the serving provider; it is folded into Model on send
	Backend string `json:"-"`
}

// RoutedModel returns the model identifier sent on the wire
func (r *ChatRequest) RoutedModel() string {
	if r.Backend == "" {
		return r.Model
	}
	return r.Model + ":" + r.Backend
}

// ChatResponse is the response from a chat completion
type ChatResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// Choice represents a choice in the response
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage represents token usage information
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates other into u
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// Completion is the part of a response the caller acts on
type Completion struct {
	Text         string
	FinishReason string
	Usage        *Usage
}

// maxErrorBody bounds how much of a failed response body is kept
const maxErrorBody = 400

// APIError is returned for non-2xx responses
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: status %d: %s", e.StatusCode, e.Body)
}

func truncate(s string, maxChars int) string {
	if utf8.RuneCountInString(s) <= maxChars {
		return s
	}
	return string([]rune(s)[:maxChars])
}
