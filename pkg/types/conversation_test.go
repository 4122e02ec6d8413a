package types

import "testing"

func TestRoleIsValid(t *testing.T) {
	tests := []struct {
		name     string
		role     Role
		expected bool
	}{
		{"User", RoleUser, true},
		{"Assistant", RoleAssistant, true},
		{"System", Role("system"), false},
		{"Empty", Role(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.role.IsValid(); got != tt.expected {
				t.Errorf("Role.IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestTurnValidate(t *testing.T) {
	if err := UserTurn("hello").Validate(); err != nil {
		t.Errorf("UserTurn().Validate() = %v, want nil", err)
	}
	if err := (Turn{Role: "tool", Content: "x"}).Validate(); err == nil {
		t.Error("expected error for tool role")
	}
	if err := AssistantTurn("ok \xff bad").Validate(); err == nil {
		t.Error("expected error for invalid UTF-8 content")
	}
	if err := AssistantTurn("  a\n\n b\t \u00e9").Validate(); err != nil {
		t.Errorf("whitespace and accents rejected: %v", err)
	}
}

func TestCloneTurnsIsIndependent(t *testing.T) {
	orig := []Turn{UserTurn("a"), AssistantTurn("b")}
	clone := CloneTurns(orig)
	clone[0].Content = "changed"
	clone = append(clone, UserTurn(ContinuePrompt))

	if orig[0].Content != "a" {
		t.Errorf("original mutated: %q", orig[0].Content)
	}
	if len(orig) != 2 {
		t.Errorf("original length changed: %d", len(orig))
	}
}
