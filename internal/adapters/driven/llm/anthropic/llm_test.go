package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/veritas-labs/lexquery/internal/core/ports/driven"
)

func TestNewLLMService_RequiresAPIKey(t *testing.T) {
	_, err := NewLLMService(Config{})
	if err == nil {
		t.Fatal("expected error without API key")
	}
}

func TestChat_LiftsSystemMessage(t *testing.T) {
	var gotReq messagesRequest
	var gotKey, gotVersion string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"content":     []map[string]any{{"type": "text", "text": "Both parties may terminate."}},
			"stop_reason": "end_turn",
		})
	}))
	defer server.Close()

	svc, err := NewLLMService(Config{APIKey: "secret", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer svc.Close()

	answer, err := svc.Chat(context.Background(), []driven.ChatMessage{
		{Role: "system", Content: "Answer from the supplied contract."},
		{Role: "user", Content: "Who may terminate?"},
	}, driven.ChatOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotKey != "secret" {
		t.Errorf("expected x-api-key header, got %q", gotKey)
	}
	if gotVersion == "" {
		t.Error("expected anthropic-version header")
	}
	if gotReq.System != "Answer from the supplied contract." {
		t.Errorf("system message not lifted to top level: %q", gotReq.System)
	}
	if len(gotReq.Messages) != 1 || gotReq.Messages[0].Role != "user" {
		t.Errorf("expected only the user message in the list, got %+v", gotReq.Messages)
	}
	if answer != "Both parties may terminate." {
		t.Errorf("unexpected answer %q", answer)
	}
}

func TestChat_DefaultsMaxTokens(t *testing.T) {
	var gotReq messagesRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{{"type": "text", "text": "ok"}},
		})
	}))
	defer server.Close()

	svc, err := NewLLMService(Config{APIKey: "k", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer svc.Close()

	_, err = svc.Chat(context.Background(), []driven.ChatMessage{{Role: "user", Content: "hi"}}, driven.ChatOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The messages API rejects requests without max_tokens.
	if gotReq.MaxTokens != 1024 {
		t.Errorf("expected default max_tokens 1024, got %d", gotReq.MaxTokens)
	}
}

func TestGenerate_ConcatenatesTextBlocks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": "Part one. "},
				{"type": "tool_use", "text": "ignored"},
				{"type": "text", "text": "Part two."},
			},
		})
	}))
	defer server.Close()

	svc, err := NewLLMService(Config{APIKey: "k", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer svc.Close()

	answer, err := svc.Generate(context.Background(), "summarise", driven.GenerateOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "Part one. Part two." {
		t.Errorf("unexpected answer %q", answer)
	}
}

func TestChat_APIErrorSurfaced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"type": "invalid_request_error", "message": "max_tokens required"},
		})
	}))
	defer server.Close()

	svc, err := NewLLMService(Config{APIKey: "k", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer svc.Close()

	_, err = svc.Chat(context.Background(), []driven.ChatMessage{{Role: "user", Content: "hi"}}, driven.ChatOptions{})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "max_tokens required") {
		t.Errorf("expected API error message surfaced, got: %v", err)
	}
}

func TestPing_SendsRequiredHeaders(t *testing.T) {
	var gotPath, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-api-key")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	svc, err := NewLLMService(Config{APIKey: "k", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer svc.Close()

	if err := svc.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
	if gotPath != "/v1/models" {
		t.Errorf("expected ping on /v1/models, got %s", gotPath)
	}
	if gotKey != "k" {
		t.Errorf("expected x-api-key on ping, got %q", gotKey)
	}
}
