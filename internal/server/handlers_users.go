package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
)

// createOrFindUser is the login bootstrap: the client exchanges an email for
// the app user record, creating it on first sight. Emails are compared
// case-insensitively; VIP membership is stamped at creation time.
func (a *App) createOrFindUser(c *gin.Context) {
	var payload createOrFindUserRequest
	if !mustJSON(c, &payload) {
		return
	}

	email := strings.ToLower(strings.TrimSpace(payload.Email))
	if email == "" {
		writeError(c, http.StatusBadRequest, codeValidation, "Email is required")
		return
	}
	name := strings.TrimSpace(payload.Name)

	ctx := c.Request.Context()
	user, err := a.loadUserByEmail(ctx, a.db, email)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		user = userRecord{
			ID:    newID(),
			Email: email,
			IsVIP: a.isVIPEmail(email),
		}
		if name != "" {
			user.Name = &name
		}
		var createdAt time.Time
		if err := a.db.QueryRow(
			ctx,
			`INSERT INTO users (id, email, name, is_vip, created_at)
			 VALUES ($1, $2, $3, $4, NOW())
			 RETURNING created_at`,
			user.ID,
			user.Email,
			user.Name,
			user.IsVIP,
		).Scan(&createdAt); err != nil {
			writeError(c, http.StatusInternalServerError, codeInternal, "Failed to create user")
			return
		}
		user.CreatedAt = createdAt
	case err != nil:
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to load user")
		return
	default:
		// Fill in a name the user did not have yet; never overwrite one.
		if name != "" && user.Name == nil {
			if _, err := a.db.Exec(
				ctx,
				`UPDATE users SET name = $2 WHERE id = $1`,
				user.ID,
				name,
			); err != nil {
				writeError(c, http.StatusInternalServerError, codeInternal, "Failed to update user")
				return
			}
			user.Name = &name
		}
	}

	a.respondWithUserAndSubscription(c, user)
}

func (a *App) getUser(c *gin.Context) {
	user, err := a.loadUser(c.Request.Context(), a.db, c.Param("id"))
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(c, http.StatusNotFound, codeNotFound, "User not found")
		return
	}
	if err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to load user")
		return
	}

	a.respondWithUserAndSubscription(c, user)
}

func (a *App) respondWithUserAndSubscription(c *gin.Context, user userRecord) {
	sub, err := a.latestSubscription(c.Request.Context(), a.db, user.ID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to check subscription")
		return
	}

	response := userJSON(user)
	response["isPremium"] = hasPremiumAccess(user, sub, a.vipEmails, time.Now().UTC())
	response["subscription"] = subscriptionJSON(sub)
	c.JSON(http.StatusOK, response)
}
