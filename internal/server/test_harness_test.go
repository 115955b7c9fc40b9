package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"pawchart/backend/internal/config"
	"pawchart/backend/internal/db"
)

var (
	testPool              *pgxpool.Pool
	baseTestConfig        config.Config
	integrationDBReady    bool
	integrationSkipReason string
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	baseTestConfig = newTestConfig()

	testDatabaseURL := strings.TrimSpace(os.Getenv("TEST_DATABASE_URL"))
	if testDatabaseURL == "" {
		integrationSkipReason = "integration tests skipped: TEST_DATABASE_URL is not set"
		fmt.Fprintln(os.Stderr, integrationSkipReason)
		os.Exit(m.Run())
	}
	testDatabaseURL = withSimpleProtocol(testDatabaseURL)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.Connect(ctx, testDatabaseURL)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "integration test setup failed: cannot connect TEST_DATABASE_URL: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	err = EnsureSchema(ctx, pool)
	cancel()
	if err != nil {
		pool.Close()
		fmt.Fprintf(os.Stderr, "integration test setup failed: schema setup failed: %v\n", err)
		os.Exit(1)
	}

	testPool = pool
	integrationDBReady = true

	exitCode := m.Run()
	testPool.Close()
	os.Exit(exitCode)
}

func withSimpleProtocol(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return rawURL
	}
	queries := parsed.Query()
	queries.Set("default_query_exec_mode", "simple_protocol")
	parsed.RawQuery = queries.Encode()
	return parsed.String()
}

func newTestConfig() config.Config {
	cfg := config.Config{
		AppEnv:           "test",
		AppName:          "PawChart API Test",
		APIPrefix:        "/api",
		AppPort:          "0",
		AppURL:           "http://localhost:5173",
		DatabaseURL:      "test",
		JWTSecret:        "test-secret-1234567890",
		JWTAlgorithm:     "HS256",
		OpenAIModel:      "gpt-4o-mini",
		AITimeoutSeconds: 5,
		StripeWebhookKey: "whsec_test_secret",
		CORSAllowOrigins: []string{
			"http://localhost:5173",
			"http://localhost:3000",
		},
	}

	if v := strings.TrimSpace(os.Getenv("TEST_JWT_SECRET")); v != "" {
		cfg.JWTSecret = v
	}
	return cfg
}

func requireIntegration(t *testing.T) {
	t.Helper()
	if !integrationDBReady {
		if integrationSkipReason == "" {
			integrationSkipReason = "integration tests skipped: TEST_DATABASE_URL is not configured"
		}
		t.Skip(integrationSkipReason)
	}
}

func newTestApp(t *testing.T, ai *MockAIClient) *App {
	t.Helper()
	return newTestAppWithConfig(t, baseTestConfig, ai)
}

func newTestAppWithConfig(t *testing.T, cfg config.Config, ai *MockAIClient) *App {
	t.Helper()
	requireIntegration(t)
	if ai == nil {
		ai = &MockAIClient{}
	}
	return New(cfg, testPool, ai)
}

func resetDatabase(t *testing.T) {
	t.Helper()
	requireIntegration(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := testPool.Exec(
		ctx,
		`TRUNCATE TABLE
			health_conditions,
			medications,
			weight_records,
			appointments,
			vaccinations,
			pets,
			subscriptions,
			users
		CASCADE`,
	)
	if err != nil {
		t.Fatalf("reset database: %v", err)
	}
}

func seedTestUser(t *testing.T, email string, isVIP bool) string {
	t.Helper()
	requireIntegration(t)
	userID := testID()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := testPool.Exec(
		ctx,
		`INSERT INTO users (id, email, name, is_vip) VALUES ($1, $2, $3, $4)`,
		userID,
		strings.ToLower(email),
		"user-"+userID[:8],
		isVIP,
	)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return userID
}

func seedTestSubscription(t *testing.T, userID, status string, periodEnd *time.Time) string {
	t.Helper()
	requireIntegration(t)
	subID := testID()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := testPool.Exec(
		ctx,
		`INSERT INTO subscriptions (id, user_id, status, current_period_end)
		 VALUES ($1, $2, $3, $4)`,
		subID,
		userID,
		status,
		periodEnd,
	)
	if err != nil {
		t.Fatalf("seed subscription: %v", err)
	}
	return subID
}

func seedTestPet(t *testing.T, name, species string) string {
	t.Helper()
	requireIntegration(t)
	petID := testID()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := testPool.Exec(
		ctx,
		`INSERT INTO pets (id, name, species) VALUES ($1, $2, $3)`,
		petID,
		name,
		species,
	)
	if err != nil {
		t.Fatalf("seed pet: %v", err)
	}
	return petID
}

func seedTestVaccination(t *testing.T, petID, vaccine string, administered time.Time, nextDue *time.Time) string {
	t.Helper()
	requireIntegration(t)
	vaccinationID := testID()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := testPool.Exec(
		ctx,
		`INSERT INTO vaccinations (id, pet_id, vaccine_name, date_administered, next_due_date)
		 VALUES ($1, $2, $3, $4, $5)`,
		vaccinationID,
		petID,
		vaccine,
		administered,
		nextDue,
	)
	if err != nil {
		t.Fatalf("seed vaccination: %v", err)
	}
	return vaccinationID
}

func signToken(t *testing.T, sub string, overrides map[string]any) string {
	t.Helper()
	return signTokenWithConfig(t, baseTestConfig, sub, overrides)
}

func signTokenWithConfig(t *testing.T, cfg config.Config, sub string, overrides map[string]any) string {
	t.Helper()

	claims := jwt.MapClaims{
		"exp": time.Now().UTC().Add(1 * time.Hour).Unix(),
		"iat": time.Now().UTC().Add(-1 * time.Minute).Unix(),
	}
	if strings.TrimSpace(sub) != "" {
		claims["sub"] = sub
	}
	if strings.TrimSpace(cfg.JWTAudience) != "" {
		claims["aud"] = cfg.JWTAudience
	}
	if strings.TrimSpace(cfg.JWTIssuer) != "" {
		claims["iss"] = cfg.JWTIssuer
	}
	for key, value := range overrides {
		if value == nil {
			delete(claims, key)
			continue
		}
		claims[key] = value
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func performRequest(
	t *testing.T,
	router http.Handler,
	method, targetPath, token string,
	body any,
) *httptest.ResponseRecorder {
	t.Helper()

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
	}

	req := httptest.NewRequest(method, targetPath, bytes.NewReader(payload))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeJSONMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response JSON: %v; body=%s", err, rec.Body.String())
	}
	return payload
}

func responseCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeJSONMap(t, rec)
	code, _ := body["code"].(string)
	return code
}

func mustTestDate(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := parseDate(value)
	if err != nil {
		t.Fatalf("bad test date %q: %v", value, err)
	}
	return parsed
}

func testID() string {
	return uuid.NewString()
}
