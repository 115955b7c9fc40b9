package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stripe/stripe-go/v82"

	"pawchart/backend/internal/config"
)

// Machine-readable error codes surfaced alongside human-readable messages so
// clients can branch (log in vs upgrade vs create a pet first).
const (
	codeAuthRequired    = "AUTH_REQUIRED"
	codeUserNotFound    = "USER_NOT_FOUND"
	codePremiumRequired = "PREMIUM_REQUIRED"
	codeValidation      = "VALIDATION_ERROR"
	codeNotFound        = "NOT_FOUND"
	codeUpstream        = "UPSTREAM_ERROR"
	codeInternal        = "INTERNAL_ERROR"
	codeNotConfigured   = "NOT_CONFIGURED"
)

type dbQuerier interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

type App struct {
	cfg       config.Config
	db        *pgxpool.Pool
	ai        AIClient
	vipEmails map[string]struct{}
}

func New(cfg config.Config, db *pgxpool.Pool, ai AIClient) *App {
	vip := make(map[string]struct{})
	for _, email := range cfg.NormalizedVIPEmails() {
		vip[email] = struct{}{}
	}
	stripe.Key = strings.TrimSpace(cfg.StripeSecretKey)
	return &App{cfg: cfg, db: db, ai: ai, vipEmails: vip}
}

func (a *App) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     a.cfg.CORSAllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", a.health)

	open := router.Group(a.cfg.APIPrefix)
	// Login bootstrap and the Stripe callback authenticate themselves:
	// create-or-find is how a user record comes to exist, and the webhook
	// is verified by signature.
	open.POST("/users", a.createOrFindUser)
	open.POST("/subscriptions/webhook", a.subscriptionWebhook)

	api := router.Group(a.cfg.APIPrefix)
	api.Use(a.authMiddleware())

	api.GET("/users/:id", a.getUser)

	api.GET("/pets", a.listPets)
	api.GET("/pets/:id", a.getPet)
	api.POST("/pets", a.createPet)
	api.PUT("/pets/:id", a.updatePet)
	api.DELETE("/pets/:id", a.deletePet)

	api.GET("/vaccinations/pet/:petId", a.listVaccinationsForPet)
	api.POST("/vaccinations", a.createVaccination)
	api.PUT("/vaccinations/:id", a.updateVaccination)
	api.DELETE("/vaccinations/:id", a.deleteVaccination)

	api.GET("/appointments", a.listAppointments)
	api.GET("/appointments/upcoming", a.listUpcomingAppointments)
	api.GET("/appointments/pet/:petId", a.listAppointmentsForPet)
	api.POST("/appointments", a.createAppointment)
	api.PUT("/appointments/:id", a.updateAppointment)
	api.DELETE("/appointments/:id", a.deleteAppointment)

	api.GET("/weight/pet/:petId", a.listWeightRecordsForPet)
	api.POST("/weight", a.createWeightRecord)
	api.DELETE("/weight/:id", a.deleteWeightRecord)

	api.GET("/medications/pet/:petId", a.listMedicationsForPet)
	api.GET("/medications/active", a.listActiveMedications)
	api.POST("/medications", a.createMedication)
	api.PUT("/medications/:id", a.updateMedication)
	api.DELETE("/medications/:id", a.deleteMedication)

	api.GET("/conditions/pet/:petId", a.listConditionsForPet)
	api.POST("/conditions", a.createCondition)
	api.PUT("/conditions/:id", a.updateCondition)
	api.DELETE("/conditions/:id", a.deleteCondition)

	api.POST("/subscriptions/checkout", a.checkoutSubscription)
	api.POST("/subscriptions/portal", a.openBillingPortal)

	assistant := api.Group("/ai")
	assistant.Use(a.requirePremium())
	assistant.POST("/chat", a.aiChat)
	assistant.GET("/insights", a.aiInsights)

	return router
}

func (a *App) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"service":   "pawchart-api",
		"timestamp": time.Now().UTC(),
	})
}

var errUserNotFound = errors.New("user not found")

func (a *App) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
			writeError(c, http.StatusUnauthorized, codeAuthRequired, "Authentication required")
			return
		}
		tokenString := strings.TrimSpace(authHeader[len("Bearer "):])
		if tokenString == "" {
			writeError(c, http.StatusUnauthorized, codeAuthRequired, "Authentication required")
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
			if token.Method == nil || token.Method.Alg() != a.cfg.JWTAlgorithm {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(a.cfg.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			writeError(c, http.StatusUnauthorized, codeAuthRequired, "Invalid bearer token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			writeError(c, http.StatusUnauthorized, codeAuthRequired, "Invalid token payload")
			return
		}
		if a.cfg.JWTAudience != "" && !claimHasAudience(claims["aud"], a.cfg.JWTAudience) {
			writeError(c, http.StatusUnauthorized, codeAuthRequired, "Invalid token audience")
			return
		}
		if a.cfg.JWTIssuer != "" {
			issuer, _ := claims["iss"].(string)
			if issuer != a.cfg.JWTIssuer {
				writeError(c, http.StatusUnauthorized, codeAuthRequired, "Invalid token issuer")
				return
			}
		}
		sub, _ := claims["sub"].(string)
		sub = strings.TrimSpace(sub)
		if sub == "" {
			writeError(c, http.StatusUnauthorized, codeAuthRequired, "Token subject missing")
			return
		}

		user, err := a.getOrCreateUser(c.Request.Context(), sub, claims)
		if errors.Is(err, errUserNotFound) {
			writeError(c, http.StatusUnauthorized, codeUserNotFound, "User not found")
			return
		}
		if err != nil {
			writeError(c, http.StatusInternalServerError, codeInternal, "Failed to resolve user")
			return
		}

		c.Set("authUser", user)
		c.Next()
	}
}

func claimHasAudience(value any, audience string) bool {
	switch v := value.(type) {
	case string:
		return v == audience
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s == audience {
				return true
			}
		}
	case []string:
		for _, item := range v {
			if item == audience {
				return true
			}
		}
	}
	return false
}

func (a *App) getOrCreateUser(ctx context.Context, userID string, claims jwt.MapClaims) (userRecord, error) {
	user, err := a.loadUser(ctx, a.db, userID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return userRecord{}, err
	}
	if !a.cfg.AuthAutoCreateUser {
		return userRecord{}, errUserNotFound
	}

	email := ""
	if rawEmail, ok := claims["email"].(string); ok {
		email = strings.ToLower(strings.TrimSpace(rawEmail))
	}
	if email == "" {
		return userRecord{}, errUserNotFound
	}

	var name *string
	if rawName, ok := claims["name"].(string); ok {
		if trimmed := strings.TrimSpace(rawName); trimmed != "" {
			name = &trimmed
		}
	}

	isVIP := a.isVIPEmail(email)
	var createdAt time.Time
	err = a.db.QueryRow(
		ctx,
		`INSERT INTO users (id, email, name, is_vip, created_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 RETURNING created_at`,
		userID,
		email,
		name,
		isVIP,
	).Scan(&createdAt)
	if err != nil {
		return userRecord{}, err
	}

	return userRecord{
		ID:        userID,
		Email:     email,
		Name:      name,
		IsVIP:     isVIP,
		CreatedAt: createdAt,
	}, nil
}

func (a *App) isVIPEmail(email string) bool {
	_, ok := a.vipEmails[strings.ToLower(strings.TrimSpace(email))]
	return ok
}

func authUserFromContext(c *gin.Context) (userRecord, bool) {
	raw, ok := c.Get("authUser")
	if !ok {
		return userRecord{}, false
	}
	user, ok := raw.(userRecord)
	return user, ok
}

func writeError(c *gin.Context, status int, code, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"error": detail, "code": code})
}

func mustJSON(c *gin.Context, payload any) bool {
	if err := c.ShouldBindJSON(payload); err != nil {
		writeError(c, http.StatusBadRequest, codeValidation, "Invalid request payload")
		return false
	}
	return true
}

func newID() string {
	return uuid.NewString()
}

func parseDate(value string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

func parseOptionalDate(value *string) (*time.Time, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	t, err := parseDate(*value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func formatOptionalDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatDate(*t)
}

func nullableString(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}

// stringOr keeps the current column value when the request omitted the field
// or sent blank (partial update semantics for required columns).
func stringOr(value *string, current string) string {
	if value == nil || strings.TrimSpace(*value) == "" {
		return current
	}
	return strings.TrimSpace(*value)
}

// optionalOr replaces the current value only when the field was present in
// the request body; an explicit empty string clears it.
func optionalOr(value *string, current *string) *string {
	if value == nil {
		return current
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
