package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
)

func (a *App) listConditionsForPet(c *gin.Context) {
	rows, err := a.db.Query(
		c.Request.Context(),
		`SELECT `+conditionColumns+` FROM health_conditions WHERE pet_id = $1 ORDER BY diagnosed_date DESC NULLS LAST`,
		c.Param("petId"),
	)
	if err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to list health conditions")
		return
	}
	records, err := collectConditions(rows)
	if err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to list health conditions")
		return
	}
	c.JSON(http.StatusOK, mapToJSON(records, conditionJSON))
}

func (a *App) createCondition(c *gin.Context) {
	var payload conditionWriteRequest
	if !mustJSON(c, &payload) {
		return
	}

	petID := strings.TrimSpace(payload.PetID)
	conditionName := strings.TrimSpace(derefString(payload.ConditionName))
	if petID == "" || conditionName == "" {
		writeError(c, http.StatusBadRequest, codeValidation, "pet_id and condition_name are required")
		return
	}
	diagnosedDate, err := parseOptionalDate(payload.DiagnosedDate)
	if err != nil {
		writeError(c, http.StatusBadRequest, codeValidation, "diagnosed_date must be YYYY-MM-DD")
		return
	}

	status := strings.TrimSpace(derefString(payload.Status))
	if status == "" {
		status = "active"
	}

	recordID := newID()
	if _, err := a.db.Exec(
		c.Request.Context(),
		`INSERT INTO health_conditions (id, pet_id, condition_name, diagnosed_date, diagnosed_by, severity, status, treatment, notes, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())`,
		recordID,
		petID,
		conditionName,
		diagnosedDate,
		optionalOr(payload.DiagnosedBy, nil),
		optionalOr(payload.Severity, nil),
		status,
		optionalOr(payload.Treatment, nil),
		optionalOr(payload.Notes, nil),
	); err != nil {
		if isForeignKeyViolation(err) {
			writeError(c, http.StatusNotFound, codeNotFound, "Pet not found")
			return
		}
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to create health condition")
		return
	}

	a.respondWithCondition(c, recordID, http.StatusCreated)
}

func (a *App) updateCondition(c *gin.Context) {
	recordID := c.Param("id")

	current, err := a.loadCondition(c, recordID)
	if err != nil {
		return
	}

	var payload conditionWriteRequest
	if !mustJSON(c, &payload) {
		return
	}

	diagnosedDate := current.DiagnosedDate
	if payload.DiagnosedDate != nil {
		diagnosedDate, err = parseOptionalDate(payload.DiagnosedDate)
		if err != nil {
			writeError(c, http.StatusBadRequest, codeValidation, "diagnosed_date must be YYYY-MM-DD")
			return
		}
	}

	if _, err := a.db.Exec(
		c.Request.Context(),
		`UPDATE health_conditions SET
			condition_name = $2, diagnosed_date = $3, diagnosed_by = $4,
			severity = $5, status = $6, treatment = $7, notes = $8
		 WHERE id = $1`,
		recordID,
		stringOr(payload.ConditionName, current.ConditionName),
		diagnosedDate,
		optionalOr(payload.DiagnosedBy, current.DiagnosedBy),
		optionalOr(payload.Severity, current.Severity),
		stringOr(payload.Status, current.Status),
		optionalOr(payload.Treatment, current.Treatment),
		optionalOr(payload.Notes, current.Notes),
	); err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to update health condition")
		return
	}

	a.respondWithCondition(c, recordID, http.StatusOK)
}

func (a *App) deleteCondition(c *gin.Context) {
	tag, err := a.db.Exec(c.Request.Context(), `DELETE FROM health_conditions WHERE id = $1`, c.Param("id"))
	if err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to delete health condition")
		return
	}
	if tag.RowsAffected() == 0 {
		writeError(c, http.StatusNotFound, codeNotFound, "Health condition not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Health condition deleted"})
}

func (a *App) loadCondition(c *gin.Context, recordID string) (conditionRecord, error) {
	rec := conditionRecord{}
	err := a.db.QueryRow(
		c.Request.Context(),
		`SELECT `+conditionColumns+` FROM health_conditions WHERE id = $1`,
		recordID,
	).Scan(
		&rec.ID,
		&rec.PetID,
		&rec.ConditionName,
		&rec.DiagnosedDate,
		&rec.DiagnosedBy,
		&rec.Severity,
		&rec.Status,
		&rec.Treatment,
		&rec.Notes,
		&rec.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(c, http.StatusNotFound, codeNotFound, "Health condition not found")
		return conditionRecord{}, err
	}
	if err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to load health condition")
		return conditionRecord{}, err
	}
	return rec, nil
}

func (a *App) respondWithCondition(c *gin.Context, recordID string, status int) {
	rec, err := a.loadCondition(c, recordID)
	if err != nil {
		return
	}
	c.JSON(status, conditionJSON(rec))
}
