package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cloud-shuttle/quill/pkg/types"
)

func TestComplete(t *testing.T) {
	var got map[string]any
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&got)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "Once."}, "finish_reason": "length"},
			},
			"usage": map[string]any{"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15},
		})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL + "/v1/", APIKey: "hf_test", Timeout: 5 * time.Second})
	resp, err := client.Complete(context.Background(), &ChatRequest{
		Model:       "meta/llama",
		Backend:     "novita",
		Messages:    MessagesFromTurns("be brief", []types.Turn{types.UserTurn("hi")}),
		Temperature: 0.85,
		TopP:        0.92,
		MaxTokens:   4096,
	})
	if err != nil {
		t.Fatal(err)
	}

	if resp.Text != "Once." || resp.FinishReason != "length" {
		t.Errorf("Complete() = %+v", resp)
	}
	if resp.Usage == nil || resp.Usage.CompletionTokens != 3 {
		t.Errorf("Usage = %+v, want 3 completion tokens", resp.Usage)
	}
	if auth != "Bearer hf_test" {
		t.Errorf("Authorization = %q", auth)
	}
	if got["model"] != "meta/llama:novita" {
		t.Errorf("model = %v, want meta/llama:novita", got["model"])
	}
	if got["max_tokens"] != float64(4096) || got["top_p"] != 0.92 || got["temperature"] != 0.85 {
		t.Errorf("sampling fields = %v", got)
	}
	if _, ok := got["Backend"]; ok {
		t.Error("backend leaked into the request body")
	}
	msgs := got["messages"].([]any)
	if len(msgs) != 2 || msgs[0].(map[string]any)["role"] != "system" {
		t.Errorf("messages = %v", msgs)
	}
}

func TestCompleteWithoutBackend(t *testing.T) {
	var model string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body ChatRequest
		json.NewDecoder(r.Body).Decode(&body)
		model = body.Model
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	resp, err := client.Complete(context.Background(), &ChatRequest{Model: "m"})
	if err != nil {
		t.Fatal(err)
	}
	if model != "m" {
		t.Errorf("model = %q, want bare model", model)
	}
	if resp.Usage != nil {
		t.Errorf("Usage = %+v, want nil", resp.Usage)
	}
}

func TestCompleteEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	_, err := NewClient(Config{BaseURL: server.URL}).Complete(context.Background(), &ChatRequest{Model: "m"})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("Complete() error = %v, want ErrEmptyResponse", err)
	}
}

func TestCompleteHTTPError(t *testing.T) {
	long := strings.Repeat("é", 1000)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(long))
	}))
	defer server.Close()

	_, err := NewClient(Config{BaseURL: server.URL}).Complete(context.Background(), &ChatRequest{Model: "m"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Complete() error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d", apiErr.StatusCode)
	}
	if n := len([]rune(apiErr.Body)); n != maxErrorBody {
		t.Errorf("body has %d runes, want %d", n, maxErrorBody)
	}
}

func TestCompleteMalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": [`))
	}))
	defer server.Close()

	if _, err := NewClient(Config{BaseURL: server.URL}).Complete(context.Background(), &ChatRequest{Model: "m"}); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestIsTruncation(t *testing.T) {
	tests := map[string]bool{
		"length":     true,
		"max_tokens": true,
		"stop":       false,
		"":           false,
		"eos":        false,
	}
	for reason, want := range tests {
		if got := IsTruncation(reason); got != want {
			t.Errorf("IsTruncation(%q) = %v, want %v", reason, got, want)
		}
	}
}
