package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

// aiChatDirect invokes the chat handler with an authenticated context but no
// database. Validation must reject the message before any record or LLM work,
// so the nil pool is never touched.
func aiChatDirect(t *testing.T, app *App, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/ai/chat", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set("authUser", userRecord{ID: "u1", Email: "user@example.com"})

	app.aiChat(c)
	return rec
}

func TestAIChatRejectsBlankMessageBeforeAnyWork(t *testing.T) {
	mock := &MockAIClient{}
	app := &App{ai: mock}

	rec := aiChatDirect(t, app, `{"message": "   "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if code := responseCode(t, rec); code != codeValidation {
		t.Fatalf("expected %s, got %s", codeValidation, code)
	}
	if mock.CallCount() != 0 {
		t.Fatalf("expected no LLM calls for a blank message, got %d", mock.CallCount())
	}
}

func TestAIChatRejectsMissingMessage(t *testing.T) {
	mock := &MockAIClient{}
	app := &App{ai: mock}

	rec := aiChatDirect(t, app, `{"pet_id": "p1"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if mock.CallCount() != 0 {
		t.Fatalf("expected no LLM calls, got %d", mock.CallCount())
	}
}

func TestAIChatAnswersWithoutPetContext(t *testing.T) {
	mock := &MockAIClient{Reply: "General advice."}
	app := &App{ai: mock}

	rec := aiChatDirect(t, app, `{"message": "What should I feed a senior dog?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeJSONMap(t, rec)
	if body["reply"] != "General advice." {
		t.Fatalf("unexpected reply: %v", body["reply"])
	}

	if mock.CallCount() != 1 {
		t.Fatalf("expected 1 LLM call, got %d", mock.CallCount())
	}
	req := mock.Requests[0]
	if strings.Contains(req.SystemPrompt, "currently helping with health information") {
		t.Fatalf("expected no pet context block without a pet id")
	}
	if !strings.Contains(req.SystemPrompt, "Today's date is "+formatDate(time.Now().UTC())) {
		t.Fatalf("expected the current date in the system prompt")
	}
}

func TestAIChatForwardsHistory(t *testing.T) {
	mock := &MockAIClient{}
	app := &App{ai: mock}

	rec := aiChatDirect(t, app, `{
		"message": "And her weight?",
		"history": [
			{"role": "user", "content": "Tell me about Luna"},
			{"role": "assistant", "content": "Luna is a Golden Retriever."}
		]
	}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	req := mock.Requests[0]
	if len(req.History) != 2 {
		t.Fatalf("expected 2 history turns, got %d", len(req.History))
	}
	if req.History[1].Role != "assistant" {
		t.Fatalf("unexpected history order: %+v", req.History)
	}
	if req.UserMessage != "And her weight?" {
		t.Fatalf("unexpected user message: %q", req.UserMessage)
	}
}

func TestAIChatMapsGatewayFailures(t *testing.T) {
	app := &App{ai: &MockAIClient{Err: errAINotConfigured}}
	rec := aiChatDirect(t, app, `{"message": "hello"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when the key is missing, got %d", rec.Code)
	}
	if code := responseCode(t, rec); code != codeNotConfigured {
		t.Fatalf("expected %s, got %s", codeNotConfigured, code)
	}

	app = &App{ai: &MockAIClient{Err: http.ErrHandlerTimeout}}
	rec = aiChatDirect(t, app, `{"message": "hello"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 on upstream failure, got %d", rec.Code)
	}
	if code := responseCode(t, rec); code != codeUpstream {
		t.Fatalf("expected %s, got %s", codeUpstream, code)
	}
}
