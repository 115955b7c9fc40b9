package server

import (
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestAuthRequiredOnProtectedRoutes(t *testing.T) {
	app := newTestApp(t, nil)
	router := app.Router()

	rec := performRequest(t, router, http.MethodGet, "/api/pets", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", rec.Code)
	}
	if code := responseCode(t, rec); code != codeAuthRequired {
		t.Fatalf("expected %s, got %s", codeAuthRequired, code)
	}
}

func TestAuthRejectsUnknownSubject(t *testing.T) {
	resetDatabase(t)
	app := newTestApp(t, nil)
	router := app.Router()

	token := signToken(t, testID(), nil)
	rec := performRequest(t, router, http.MethodGet, "/api/pets", token, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown subject, got %d", rec.Code)
	}
	if code := responseCode(t, rec); code != codeUserNotFound {
		t.Fatalf("expected %s, got %s", codeUserNotFound, code)
	}
}

func TestCreateOrFindUserIsIdempotent(t *testing.T) {
	resetDatabase(t)
	app := newTestApp(t, nil)
	router := app.Router()

	first := performRequest(t, router, http.MethodPost, "/api/users", "", map[string]any{
		"email": "Pat@Example.com",
	})
	if first.Code != http.StatusOK {
		t.Fatalf("expected 200 on create, got %d: %s", first.Code, first.Body.String())
	}
	firstBody := decodeJSONMap(t, first)
	if firstBody["email"] != "pat@example.com" {
		t.Fatalf("expected lowercased email, got %v", firstBody["email"])
	}
	if firstBody["isPremium"] != false {
		t.Fatalf("expected new user without subscription to not be premium")
	}

	second := performRequest(t, router, http.MethodPost, "/api/users", "", map[string]any{
		"email": "pat@example.com",
		"name":  "Pat",
	})
	if second.Code != http.StatusOK {
		t.Fatalf("expected 200 on find, got %d: %s", second.Code, second.Body.String())
	}
	secondBody := decodeJSONMap(t, second)
	if secondBody["id"] != firstBody["id"] {
		t.Fatalf("expected the same user row, got %v and %v", firstBody["id"], secondBody["id"])
	}
	if secondBody["name"] != "Pat" {
		t.Fatalf("expected missing name to be filled in, got %v", secondBody["name"])
	}
}

func TestCreateOrFindUserRequiresEmail(t *testing.T) {
	resetDatabase(t)
	app := newTestApp(t, nil)
	router := app.Router()

	rec := performRequest(t, router, http.MethodPost, "/api/users", "", map[string]any{"email": "  "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestPremiumGateBlocksFreeUsers(t *testing.T) {
	resetDatabase(t)
	mock := &MockAIClient{Reply: "hello"}
	app := newTestApp(t, mock)
	router := app.Router()

	userID := seedTestUser(t, "free@example.com", false)
	token := signToken(t, userID, nil)

	rec := performRequest(t, router, http.MethodPost, "/api/ai/chat", token, map[string]any{
		"message": "When is Luna due for her rabies shot?",
	})
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402 for a free user, got %d: %s", rec.Code, rec.Body.String())
	}
	if code := responseCode(t, rec); code != codePremiumRequired {
		t.Fatalf("expected %s, got %s", codePremiumRequired, code)
	}
	if mock.CallCount() != 0 {
		t.Fatalf("expected the gate to stop before any LLM call, got %d", mock.CallCount())
	}
}

func TestPremiumGateAllowsVIPAndActiveSubscribers(t *testing.T) {
	resetDatabase(t)
	mock := &MockAIClient{Reply: "Here to help."}
	app := newTestApp(t, mock)
	router := app.Router()

	vipID := seedTestUser(t, "vip@example.com", true)
	vipToken := signToken(t, vipID, nil)
	rec := performRequest(t, router, http.MethodPost, "/api/ai/chat", vipToken, map[string]any{
		"message": "hello",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected VIP flag to pass the gate, got %d: %s", rec.Code, rec.Body.String())
	}

	subID := seedTestUser(t, "subscriber@example.com", false)
	periodEnd := time.Now().UTC().Add(30 * 24 * time.Hour)
	seedTestSubscription(t, subID, "active", &periodEnd)
	subToken := signToken(t, subID, nil)
	rec = performRequest(t, router, http.MethodPost, "/api/ai/chat", subToken, map[string]any{
		"message": "hello",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected active subscriber to pass the gate, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestPremiumGateBlocksExpiredSubscription(t *testing.T) {
	resetDatabase(t)
	app := newTestApp(t, nil)
	router := app.Router()

	userID := seedTestUser(t, "lapsed@example.com", false)
	periodEnd := time.Now().UTC().Add(-time.Hour)
	seedTestSubscription(t, userID, "active", &periodEnd)
	token := signToken(t, userID, nil)

	rec := performRequest(t, router, http.MethodGet, "/api/ai/insights", token, nil)
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402 for an expired period, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestInsightsWithNoPetsSkipsLLM(t *testing.T) {
	resetDatabase(t)
	mock := &MockAIClient{}
	app := newTestApp(t, mock)
	router := app.Router()

	userID := seedTestUser(t, "vip@example.com", true)
	token := signToken(t, userID, nil)

	rec := performRequest(t, router, http.MethodGet, "/api/ai/insights", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeJSONMap(t, rec)
	insights, ok := body["insights"].([]any)
	if !ok || len(insights) != 0 {
		t.Fatalf("expected an empty insights list, got %v", body["insights"])
	}
	if mock.CallCount() != 0 {
		t.Fatalf("expected no LLM call with zero pets, got %d", mock.CallCount())
	}
}

func TestInsightsAggregatesAllPets(t *testing.T) {
	resetDatabase(t)
	mock := &MockAIClient{
		Reply: `[{"petName":"Luna","type":"alert","title":"Rabies overdue","message":"Book a visit.","urgent":true}]`,
	}
	app := newTestApp(t, mock)
	router := app.Router()

	userID := seedTestUser(t, "vip@example.com", true)
	token := signToken(t, userID, nil)

	lunaID := seedTestPet(t, "Luna", "Dog")
	seedTestPet(t, "Mochi", "Cat")
	due := time.Now().UTC().Add(-48 * time.Hour)
	seedTestVaccination(t, lunaID, "Rabies", due.AddDate(-1, 0, 0), &due)

	rec := performRequest(t, router, http.MethodGet, "/api/ai/insights", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeJSONMap(t, rec)
	insights, ok := body["insights"].([]any)
	if !ok || len(insights) != 1 {
		t.Fatalf("expected one parsed insight, got %v", body["insights"])
	}

	if mock.CallCount() != 1 {
		t.Fatalf("expected one LLM call, got %d", mock.CallCount())
	}
	prompt := mock.Requests[0].SystemPrompt
	if !strings.Contains(prompt, "- Name: Luna") || !strings.Contains(prompt, "- Name: Mochi") {
		t.Fatalf("expected both pets in the insights prompt:\n%s", prompt)
	}
	if !strings.Contains(prompt, "[OVERDUE]") {
		t.Fatalf("expected the overdue vaccine status in the prompt:\n%s", prompt)
	}
	if !strings.Contains(prompt, petContextSeparator) {
		t.Fatalf("expected per-pet contexts to be joined by the separator")
	}
}

func TestInsightsDegradesOnMalformedModelOutput(t *testing.T) {
	resetDatabase(t)
	mock := &MockAIClient{Reply: "Sorry, I cannot produce JSON today."}
	app := newTestApp(t, mock)
	router := app.Router()

	userID := seedTestUser(t, "vip@example.com", true)
	token := signToken(t, userID, nil)
	seedTestPet(t, "Luna", "Dog")

	rec := performRequest(t, router, http.MethodGet, "/api/ai/insights", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 despite malformed output, got %d", rec.Code)
	}
	body := decodeJSONMap(t, rec)
	insights, ok := body["insights"].([]any)
	if !ok || len(insights) != 0 {
		t.Fatalf("expected an empty list for malformed output, got %v", body["insights"])
	}
}

func TestChatUsesSelectedPetContext(t *testing.T) {
	resetDatabase(t)
	mock := &MockAIClient{Reply: "Luna looks healthy."}
	app := newTestApp(t, mock)
	router := app.Router()

	userID := seedTestUser(t, "vip@example.com", true)
	token := signToken(t, userID, nil)
	petID := seedTestPet(t, "Luna", "Dog")

	rec := performRequest(t, router, http.MethodPost, "/api/ai/chat", token, map[string]any{
		"pet_id":  petID,
		"message": "How is Luna doing?",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	prompt := mock.Requests[0].SystemPrompt
	if !strings.Contains(prompt, "You are currently helping with health information for the following pet:") {
		t.Fatalf("expected the pet context block:\n%s", prompt)
	}
	if !strings.Contains(prompt, "- Name: Luna") {
		t.Fatalf("expected Luna's profile in the prompt")
	}
}

func TestChatIgnoresUnknownPetID(t *testing.T) {
	resetDatabase(t)
	mock := &MockAIClient{Reply: "General answer."}
	app := newTestApp(t, mock)
	router := app.Router()

	userID := seedTestUser(t, "vip@example.com", true)
	token := signToken(t, userID, nil)

	rec := performRequest(t, router, http.MethodPost, "/api/ai/chat", token, map[string]any{
		"pet_id":  testID(),
		"message": "General question",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected unknown pet id to be soft for chat, got %d: %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(mock.Requests[0].SystemPrompt, "currently helping with health information") {
		t.Fatalf("expected no pet context for an unknown pet id")
	}
}
