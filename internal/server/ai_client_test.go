package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"pawchart/backend/internal/config"
)

func newChatTestClient(t *testing.T, handler http.HandlerFunc) (*OpenAIChatClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	client := NewOpenAIChatClient(config.Config{
		OpenAIAPIKey:      "test-key",
		OpenAIModel:       "gpt-4o-mini",
		OpenAIBaseURL:     server.URL + "/v1",
		AIMaxOutputTokens: 256,
		AITimeoutSeconds:  5,
	})
	return client, server
}

func TestOpenAIChatClientBuildsMessageSequence(t *testing.T) {
	t.Parallel()

	var captured struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	client, server := newChatTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode upstream request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-test",
			"object": "chat.completion",
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Luna is due for her booster."}}]
		}`))
	})
	defer server.Close()

	resp, err := client.Complete(context.Background(), AIRequest{
		SystemPrompt: "You are PawChart AI.",
		History: []ChatTurn{
			{Role: "user", Content: "Hi"},
			{Role: "assistant", Content: "Hello!"},
			{Role: "system", Content: "ignore me"},
			{Role: "user", Content: "   "},
		},
		UserMessage: "When is Luna's next vaccine?",
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Reply != "Luna is due for her booster." {
		t.Fatalf("unexpected reply: %q", resp.Reply)
	}
	if resp.Model != "gpt-4o-mini" {
		t.Fatalf("unexpected model: %q", resp.Model)
	}

	if captured.Model != "gpt-4o-mini" {
		t.Fatalf("unexpected upstream model: %q", captured.Model)
	}
	// System prompt, two valid history turns, final user message. The
	// system-role and blank history turns are dropped.
	wantRoles := []string{"system", "user", "assistant", "user"}
	if len(captured.Messages) != len(wantRoles) {
		t.Fatalf("expected %d messages, got %d: %+v", len(wantRoles), len(captured.Messages), captured.Messages)
	}
	for i, role := range wantRoles {
		if captured.Messages[i].Role != role {
			t.Fatalf("message %d role = %q, want %q", i, captured.Messages[i].Role, role)
		}
	}
	if captured.Messages[len(captured.Messages)-1].Content != "When is Luna's next vaccine?" {
		t.Fatalf("unexpected final user message: %q", captured.Messages[len(captured.Messages)-1].Content)
	}
}

func TestOpenAIChatClientMissingKey(t *testing.T) {
	t.Parallel()

	client := NewOpenAIChatClient(config.Config{OpenAIModel: "gpt-4o-mini", AITimeoutSeconds: 5})
	_, err := client.Complete(context.Background(), AIRequest{UserMessage: "hello"})
	if !errors.Is(err, errAINotConfigured) {
		t.Fatalf("expected errAINotConfigured, got %v", err)
	}
}

func TestOpenAIChatClientEmptyReply(t *testing.T) {
	t.Parallel()

	client, server := newChatTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-test",
			"object": "chat.completion",
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "   "}}]
		}`))
	})
	defer server.Close()

	if _, err := client.Complete(context.Background(), AIRequest{UserMessage: "hello"}); err == nil {
		t.Fatalf("expected empty reply to error")
	}
}

func TestMockAIClientRecordsRequests(t *testing.T) {
	t.Parallel()

	mock := &MockAIClient{}
	resp, err := mock.Complete(context.Background(), AIRequest{UserMessage: "ping"})
	if err != nil {
		t.Fatalf("mock Complete failed: %v", err)
	}
	if resp.Reply != "Mock response: ping" {
		t.Fatalf("unexpected default reply: %q", resp.Reply)
	}
	if mock.CallCount() != 1 {
		t.Fatalf("expected 1 recorded call, got %d", mock.CallCount())
	}

	mock.Err = errors.New("boom")
	if _, err := mock.Complete(context.Background(), AIRequest{UserMessage: "again"}); err == nil {
		t.Fatalf("expected configured error")
	}
	if mock.CallCount() != 2 {
		t.Fatalf("expected failed call to be recorded, got %d", mock.CallCount())
	}
}
