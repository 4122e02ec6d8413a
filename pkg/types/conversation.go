// Package types defines core data structures for quill
package types

import (
	"fmt"
	"unicode/utf8"
)

// Role represents the author of a turn
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ContinuePrompt is the content of the synthetic user turn that asks the
// model to resume a truncated reply.
const ContinuePrompt = "Continue."

// String returns the wire form of the role
func (r Role) String() string {
	return string(r)
}

// IsValid reports whether r is one of the roles a session may hold
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Turn is one role-tagged unit of conversational content
type Turn struct {
	Role    Role   `json:"role" cbor:"role"`
	Content string `json:"content" cbor:"content"`
}

// Validate checks that the turn can be persisted
func (t Turn) Validate() error {
	if !t.Role.IsValid() {
		return fmt.Errorf("invalid role %q", t.Role)
	}
	// JSON would replace invalid bytes, so the stored text could not round trip
	if !utf8.ValidString(t.Content) {
		return fmt.Errorf("%s turn content is not valid UTF-8", t.Role)
	}
	return nil
}

// UserTurn builds a user-originated turn
func UserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

// AssistantTurn builds an assistant-originated turn
func AssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content}
}

// CloneTurns returns a copy of turns that shares no backing array with the input
func CloneTurns(turns []Turn) []Turn {
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}
