package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/stripe/stripe-go/v82"
	billingportalsession "github.com/stripe/stripe-go/v82/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	stripesubscription "github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"
)

func (a *App) checkoutSubscription(c *gin.Context) {
	var payload checkoutRequest
	if !mustJSON(c, &payload) {
		return
	}
	userID := strings.TrimSpace(payload.UserID)
	if userID == "" {
		writeError(c, http.StatusBadRequest, codeValidation, "userId is required")
		return
	}

	user, err := a.loadUser(c.Request.Context(), a.db, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(c, http.StatusNotFound, codeNotFound, "User not found")
		return
	}
	if err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to load user")
		return
	}

	if strings.TrimSpace(a.cfg.StripeSecretKey) == "" {
		writeError(c, http.StatusServiceUnavailable, codeNotConfigured, "Payment processing not configured")
		return
	}
	if strings.TrimSpace(a.cfg.StripePriceID) == "" {
		writeError(c, http.StatusServiceUnavailable, codeNotConfigured, "Subscription price not configured")
		return
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		CustomerEmail:      stripe.String(user.Email),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(a.cfg.StripePriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(a.cfg.AppURL + "/subscription/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(a.cfg.AppURL + "/ai"),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"userId": user.ID},
		},
	}
	params.AddMetadata("userId", user.ID)

	session, err := checkoutsession.New(params)
	if err != nil {
		log.Printf("stripe checkout failed user_id=%s err=%v", user.ID, err)
		writeError(c, http.StatusInternalServerError, codeUpstream, "Failed to create checkout session")
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": session.URL})
}

func (a *App) openBillingPortal(c *gin.Context) {
	var payload billingPortalRequest
	if !mustJSON(c, &payload) {
		return
	}
	userID := strings.TrimSpace(payload.UserID)
	if userID == "" {
		writeError(c, http.StatusBadRequest, codeValidation, "userId is required")
		return
	}

	sub, err := a.latestSubscription(c.Request.Context(), a.db, userID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to check subscription")
		return
	}
	if sub == nil || sub.StripeCustomerID == nil {
		writeError(c, http.StatusBadRequest, codeValidation, "No active subscription found")
		return
	}

	session, err := billingportalsession.New(&stripe.BillingPortalSessionParams{
		Customer:  stripe.String(*sub.StripeCustomerID),
		ReturnURL: stripe.String(a.cfg.AppURL + "/ai"),
	})
	if err != nil {
		log.Printf("stripe portal failed user_id=%s err=%v", userID, err)
		writeError(c, http.StatusInternalServerError, codeUpstream, "Failed to open billing portal")
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": session.URL})
}

// subscriptionWebhook ingests Stripe events. Delivery is at-least-once, so
// every write here is an idempotent upsert keyed by user or stripe
// subscription id.
func (a *App) subscriptionWebhook(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, 1<<20))
	if err != nil {
		writeError(c, http.StatusBadRequest, codeValidation, "Failed to read webhook body")
		return
	}

	event, err := webhook.ConstructEvent(body, c.GetHeader("Stripe-Signature"), a.cfg.StripeWebhookKey)
	if err != nil {
		log.Printf("stripe webhook signature failed err=%v", err)
		writeError(c, http.StatusBadRequest, codeValidation, "Invalid webhook signature")
		return
	}

	ctx := c.Request.Context()
	switch string(event.Type) {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			log.Printf("stripe webhook decode failed type=%s err=%v", event.Type, err)
			break
		}
		if err := a.handleCheckoutCompleted(ctx, &session); err != nil {
			log.Printf("stripe checkout.session.completed failed session_id=%s err=%v", session.ID, err)
		}
	case "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			log.Printf("stripe webhook decode failed type=%s err=%v", event.Type, err)
			break
		}
		if err := a.handleSubscriptionChanged(ctx, &sub); err != nil {
			log.Printf("stripe subscription update failed subscription_id=%s err=%v", sub.ID, err)
		}
	}

	// Processing failures are logged, not retried via non-2xx: a replayed
	// event would hit the same data issue, and signature-valid events
	// should not pile up in Stripe's retry queue.
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (a *App) handleCheckoutCompleted(ctx context.Context, session *stripe.CheckoutSession) error {
	userID := strings.TrimSpace(session.Metadata["userId"])
	if userID == "" {
		return nil
	}
	if session.Subscription == nil || session.Customer == nil {
		return errors.New("checkout session missing subscription or customer")
	}
	stripeSubID := session.Subscription.ID
	stripeCustomerID := session.Customer.ID

	// The session payload does not carry the billing period; fetch the
	// subscription for its period end.
	stripeSub, err := stripesubscription.Get(stripeSubID, nil)
	if err != nil {
		return err
	}
	periodEnd := subscriptionPeriodEnd(stripeSub)

	tx, err := a.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var existingID string
	err = tx.QueryRow(ctx, `SELECT id FROM subscriptions WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1`, userID).Scan(&existingID)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		if _, err := tx.Exec(
			ctx,
			`INSERT INTO subscriptions (id, user_id, stripe_customer_id, stripe_subscription_id, stripe_session_id, status, current_period_end, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, 'active', $6, NOW(), NOW())`,
			newID(),
			userID,
			stripeCustomerID,
			stripeSubID,
			session.ID,
			periodEnd,
		); err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		if _, err := tx.Exec(
			ctx,
			`UPDATE subscriptions
			 SET stripe_customer_id = $2, stripe_subscription_id = $3, stripe_session_id = $4,
			     status = 'active', current_period_end = $5, updated_at = NOW()
			 WHERE id = $1`,
			existingID,
			stripeCustomerID,
			stripeSubID,
			session.ID,
			periodEnd,
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (a *App) handleSubscriptionChanged(ctx context.Context, sub *stripe.Subscription) error {
	status := "inactive"
	if sub.Status == stripe.SubscriptionStatusActive {
		status = "active"
	}

	_, err := a.db.Exec(
		ctx,
		`UPDATE subscriptions
		 SET status = $2, current_period_end = $3, updated_at = NOW()
		 WHERE stripe_subscription_id = $1`,
		sub.ID,
		status,
		subscriptionPeriodEnd(sub),
	)
	return err
}

// subscriptionPeriodEnd reads the current period end, which lives on the
// subscription items in current Stripe API versions.
func subscriptionPeriodEnd(sub *stripe.Subscription) *time.Time {
	if sub == nil || sub.Items == nil || len(sub.Items.Data) == 0 {
		return nil
	}
	end := sub.Items.Data[0].CurrentPeriodEnd
	if end <= 0 {
		return nil
	}
	t := time.Unix(end, 0).UTC()
	return &t
}
