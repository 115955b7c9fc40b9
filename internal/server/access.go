package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
)

type userRecord struct {
	ID        string
	Email     string
	Name      *string
	IsVIP     bool
	CreatedAt time.Time
}

type subscriptionRecord struct {
	ID                   string
	UserID               string
	StripeCustomerID     *string
	StripeSubscriptionID *string
	StripeSessionID      *string
	Status               string
	CurrentPeriodEnd     *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// hasPremiumAccess decides premium entitlement. Rules are evaluated in order
// and the first match wins:
//  1. VIP flag on the user row.
//  2. Email in the configured VIP allow-list.
//  3. No subscription row at all.
//  4. Latest subscription not active.
//  5. Subscription period already ended.
func hasPremiumAccess(user userRecord, sub *subscriptionRecord, vipEmails map[string]struct{}, now time.Time) bool {
	if user.IsVIP {
		return true
	}
	if _, ok := vipEmails[strings.ToLower(strings.TrimSpace(user.Email))]; ok {
		return true
	}
	if sub == nil {
		return false
	}
	if sub.Status != "active" {
		return false
	}
	if sub.CurrentPeriodEnd != nil && sub.CurrentPeriodEnd.Before(now) {
		return false
	}
	return true
}

func (a *App) loadUser(ctx context.Context, q dbQuerier, userID string) (userRecord, error) {
	user := userRecord{}
	err := q.QueryRow(
		ctx,
		`SELECT id, email, name, is_vip, created_at FROM users WHERE id = $1`,
		userID,
	).Scan(&user.ID, &user.Email, &user.Name, &user.IsVIP, &user.CreatedAt)
	if err != nil {
		return userRecord{}, err
	}
	return user, nil
}

func (a *App) loadUserByEmail(ctx context.Context, q dbQuerier, email string) (userRecord, error) {
	user := userRecord{}
	err := q.QueryRow(
		ctx,
		`SELECT id, email, name, is_vip, created_at FROM users WHERE email = $1`,
		strings.ToLower(strings.TrimSpace(email)),
	).Scan(&user.ID, &user.Email, &user.Name, &user.IsVIP, &user.CreatedAt)
	if err != nil {
		return userRecord{}, err
	}
	return user, nil
}

// latestSubscription returns the most recently created subscription row for
// the user, or nil when the user never subscribed. Creation order is
// authoritative when multiple rows exist (renewals, upgrades).
func (a *App) latestSubscription(ctx context.Context, q dbQuerier, userID string) (*subscriptionRecord, error) {
	sub := subscriptionRecord{}
	err := q.QueryRow(
		ctx,
		`SELECT id, user_id, stripe_customer_id, stripe_subscription_id, stripe_session_id,
		        status, current_period_end, created_at, updated_at
		 FROM subscriptions
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT 1`,
		userID,
	).Scan(
		&sub.ID,
		&sub.UserID,
		&sub.StripeCustomerID,
		&sub.StripeSubscriptionID,
		&sub.StripeSessionID,
		&sub.Status,
		&sub.CurrentPeriodEnd,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// requirePremium gates AI-backed routes. It runs after authMiddleware, so a
// missing auth user means the middleware chain was mounted wrong rather than
// a client mistake; either way the request stops before any LLM work.
func (a *App) requirePremium() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := authUserFromContext(c)
		if !ok {
			writeError(c, http.StatusUnauthorized, codeAuthRequired, "Authentication required")
			return
		}

		sub, err := a.latestSubscription(c.Request.Context(), a.db, user.ID)
		if err != nil {
			writeError(c, http.StatusInternalServerError, codeInternal, "Failed to check subscription")
			return
		}

		if !hasPremiumAccess(user, sub, a.vipEmails, time.Now().UTC()) {
			writeError(c, http.StatusPaymentRequired, codePremiumRequired, "Premium subscription required")
			return
		}

		c.Next()
	}
}

func userJSON(user userRecord) gin.H {
	return gin.H{
		"id":         user.ID,
		"email":      user.Email,
		"name":       nullableString(user.Name),
		"is_vip":     user.IsVIP,
		"created_at": user.CreatedAt.UTC(),
	}
}

func subscriptionJSON(sub *subscriptionRecord) any {
	if sub == nil {
		return nil
	}
	return gin.H{
		"id":                     sub.ID,
		"user_id":                sub.UserID,
		"stripe_customer_id":     nullableString(sub.StripeCustomerID),
		"stripe_subscription_id": nullableString(sub.StripeSubscriptionID),
		"stripe_session_id":      nullableString(sub.StripeSessionID),
		"status":                 sub.Status,
		"current_period_end":     sub.CurrentPeriodEnd,
		"created_at":             sub.CreatedAt.UTC(),
		"updated_at":             sub.UpdatedAt.UTC(),
	}
}
