package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
)

// petContextSeparator joins per-pet context documents in the insights prompt.
const petContextSeparator = "\n\n---\n\n"

// chatHistoryLimit caps the conversation turns forwarded to the model so a
// long-running conversation cannot grow the prompt without bound.
const chatHistoryLimit = 50

func (a *App) aiChat(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, codeAuthRequired, "Authentication required")
		return
	}

	var payload chatRequest
	if !mustJSON(c, &payload) {
		return
	}

	message := strings.TrimSpace(payload.Message)
	if message == "" {
		writeError(c, http.StatusBadRequest, codeValidation, "Message is required")
		return
	}

	now := time.Now().UTC()
	contextText := ""
	if petID := strings.TrimSpace(payload.PetID); petID != "" {
		set, err := a.loadPetRecordSet(c.Request.Context(), petID)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			// Unresolvable pet id is soft for chat: answer without
			// pet-specific context.
		case err != nil:
			writeError(c, http.StatusInternalServerError, codeInternal, "Failed to load pet records")
			return
		default:
			contextText = renderPetContext(set, now)
		}
	}

	history := payload.History
	if len(history) > chatHistoryLimit {
		history = history[len(history)-chatHistoryLimit:]
	}

	response, err := a.ai.Complete(c.Request.Context(), AIRequest{
		SystemPrompt: chatSystemPrompt(now, contextText),
		History:      history,
		UserMessage:  message,
	})
	if err != nil {
		log.Printf("ai chat failed user_id=%s pet_id=%s err=%v", user.ID, payload.PetID, err)
		writeAIError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reply": response.Reply})
}

func (a *App) aiInsights(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, codeAuthRequired, "Authentication required")
		return
	}

	petIDs, err := a.listPetIDs(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to load pets")
		return
	}
	if len(petIDs) == 0 {
		c.JSON(http.StatusOK, gin.H{"insights": []Insight{}})
		return
	}

	now := time.Now().UTC()
	contexts := make([]string, 0, len(petIDs))
	for _, petID := range petIDs {
		set, err := a.loadPetRecordSet(c.Request.Context(), petID)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			writeError(c, http.StatusInternalServerError, codeInternal, "Failed to load pet records")
			return
		}
		contexts = append(contexts, renderPetContext(set, now))
	}

	response, err := a.ai.Complete(c.Request.Context(), AIRequest{
		SystemPrompt: insightsSystemPrompt(now, strings.Join(contexts, petContextSeparator)),
		UserMessage:  "Generate health insights for these pets based on their records.",
	})
	if err != nil {
		log.Printf("ai insights failed user_id=%s pets=%d err=%v", user.ID, len(petIDs), err)
		writeAIError(c, err)
		return
	}

	insights, ok := parseInsights(response.Reply)
	if !ok {
		// Malformed model output degrades to an empty feed, never an error.
		log.Printf("ai insights parse failed user_id=%s model=%s", user.ID, response.Model)
		insights = nil
	}
	if insights == nil {
		insights = []Insight{}
	}

	c.JSON(http.StatusOK, gin.H{"insights": insights})
}

func (a *App) listPetIDs(ctx context.Context) ([]string, error) {
	rows, err := a.db.Query(ctx, `SELECT id FROM pets ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// writeAIError maps gateway failures to responses without leaking provider
// detail to the client.
func writeAIError(c *gin.Context, err error) {
	if errors.Is(err, errAINotConfigured) {
		writeError(c, http.StatusServiceUnavailable, codeNotConfigured, "AI assistant is not configured")
		return
	}
	writeError(c, http.StatusBadGateway, codeUpstream, "Failed to get AI response. Please try again.")
}
