package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func (a *App) listWeightRecordsForPet(c *gin.Context) {
	// Oldest first so the weight chart plots left to right.
	rows, err := a.db.Query(
		c.Request.Context(),
		`SELECT `+weightColumns+` FROM weight_records WHERE pet_id = $1 ORDER BY recorded_at ASC`,
		c.Param("petId"),
	)
	if err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to list weight records")
		return
	}
	records, err := collectWeightRecords(rows)
	if err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to list weight records")
		return
	}
	c.JSON(http.StatusOK, mapToJSON(records, weightRecordJSON))
}

func (a *App) createWeightRecord(c *gin.Context) {
	var payload weightRecordWriteRequest
	if !mustJSON(c, &payload) {
		return
	}

	petID := strings.TrimSpace(payload.PetID)
	if petID == "" || payload.Weight == nil || payload.RecordedAt == nil {
		writeError(c, http.StatusBadRequest, codeValidation, "pet_id, weight, and recorded_at are required")
		return
	}
	if *payload.Weight <= 0 {
		writeError(c, http.StatusBadRequest, codeValidation, "weight must be positive")
		return
	}
	recordedAt, err := parseDate(*payload.RecordedAt)
	if err != nil {
		writeError(c, http.StatusBadRequest, codeValidation, "recorded_at must be YYYY-MM-DD")
		return
	}

	unit := strings.TrimSpace(derefString(payload.Unit))
	if unit == "" {
		unit = "kg"
	}

	recordID := newID()
	if _, err := a.db.Exec(
		c.Request.Context(),
		`INSERT INTO weight_records (id, pet_id, weight, unit, recorded_at, notes, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
		recordID,
		petID,
		*payload.Weight,
		unit,
		recordedAt,
		optionalOr(payload.Notes, nil),
	); err != nil {
		if isForeignKeyViolation(err) {
			writeError(c, http.StatusNotFound, codeNotFound, "Pet not found")
			return
		}
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to create weight record")
		return
	}

	rec := weightRecordRow{}
	err = a.db.QueryRow(
		c.Request.Context(),
		`SELECT `+weightColumns+` FROM weight_records WHERE id = $1`,
		recordID,
	).Scan(&rec.ID, &rec.PetID, &rec.Weight, &rec.Unit, &rec.RecordedAt, &rec.Notes, &rec.CreatedAt)
	if err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to load weight record")
		return
	}
	c.JSON(http.StatusCreated, weightRecordJSON(rec))
}

func (a *App) deleteWeightRecord(c *gin.Context) {
	tag, err := a.db.Exec(c.Request.Context(), `DELETE FROM weight_records WHERE id = $1`, c.Param("id"))
	if err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to delete weight record")
		return
	}
	if tag.RowsAffected() == 0 {
		writeError(c, http.StatusNotFound, codeNotFound, "Weight record not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Weight record deleted"})
}
