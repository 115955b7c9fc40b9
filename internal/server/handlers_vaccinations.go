package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

func (a *App) listVaccinationsForPet(c *gin.Context) {
	rows, err := a.db.Query(
		c.Request.Context(),
		`SELECT `+vaccinationColumns+` FROM vaccinations WHERE pet_id = $1 ORDER BY date_administered DESC`,
		c.Param("petId"),
	)
	if err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to list vaccinations")
		return
	}
	records, err := collectVaccinations(rows)
	if err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to list vaccinations")
		return
	}
	c.JSON(http.StatusOK, mapToJSON(records, vaccinationJSON))
}

func (a *App) createVaccination(c *gin.Context) {
	var payload vaccinationWriteRequest
	if !mustJSON(c, &payload) {
		return
	}

	petID := strings.TrimSpace(payload.PetID)
	vaccineName := strings.TrimSpace(derefString(payload.VaccineName))
	if petID == "" || vaccineName == "" || payload.DateAdministered == nil {
		writeError(c, http.StatusBadRequest, codeValidation, "pet_id, vaccine_name, and date_administered are required")
		return
	}
	dateAdministered, err := parseDate(*payload.DateAdministered)
	if err != nil {
		writeError(c, http.StatusBadRequest, codeValidation, "date_administered must be YYYY-MM-DD")
		return
	}
	nextDue, err := parseOptionalDate(payload.NextDueDate)
	if err != nil {
		writeError(c, http.StatusBadRequest, codeValidation, "next_due_date must be YYYY-MM-DD")
		return
	}

	recordID := newID()
	if _, err := a.db.Exec(
		c.Request.Context(),
		`INSERT INTO vaccinations (id, pet_id, vaccine_name, date_administered, next_due_date, administered_by, batch_number, notes, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())`,
		recordID,
		petID,
		vaccineName,
		dateAdministered,
		nextDue,
		optionalOr(payload.AdministeredBy, nil),
		optionalOr(payload.BatchNumber, nil),
		optionalOr(payload.Notes, nil),
	); err != nil {
		if isForeignKeyViolation(err) {
			writeError(c, http.StatusNotFound, codeNotFound, "Pet not found")
			return
		}
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to create vaccination")
		return
	}

	a.respondWithVaccination(c, recordID, http.StatusCreated)
}

func (a *App) updateVaccination(c *gin.Context) {
	recordID := c.Param("id")
	ctx := c.Request.Context()

	current, err := a.loadVaccination(c, recordID)
	if err != nil {
		return
	}

	var payload vaccinationWriteRequest
	if !mustJSON(c, &payload) {
		return
	}

	dateAdministered := current.DateAdministered
	if payload.DateAdministered != nil {
		dateAdministered, err = parseDate(*payload.DateAdministered)
		if err != nil {
			writeError(c, http.StatusBadRequest, codeValidation, "date_administered must be YYYY-MM-DD")
			return
		}
	}
	nextDue := current.NextDueDate
	if payload.NextDueDate != nil {
		nextDue, err = parseOptionalDate(payload.NextDueDate)
		if err != nil {
			writeError(c, http.StatusBadRequest, codeValidation, "next_due_date must be YYYY-MM-DD")
			return
		}
	}

	if _, err := a.db.Exec(
		ctx,
		`UPDATE vaccinations SET
			vaccine_name = $2, date_administered = $3, next_due_date = $4,
			administered_by = $5, batch_number = $6, notes = $7
		 WHERE id = $1`,
		recordID,
		stringOr(payload.VaccineName, current.VaccineName),
		dateAdministered,
		nextDue,
		optionalOr(payload.AdministeredBy, current.AdministeredBy),
		optionalOr(payload.BatchNumber, current.BatchNumber),
		optionalOr(payload.Notes, current.Notes),
	); err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to update vaccination")
		return
	}

	a.respondWithVaccination(c, recordID, http.StatusOK)
}

func (a *App) deleteVaccination(c *gin.Context) {
	tag, err := a.db.Exec(c.Request.Context(), `DELETE FROM vaccinations WHERE id = $1`, c.Param("id"))
	if err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to delete vaccination")
		return
	}
	if tag.RowsAffected() == 0 {
		writeError(c, http.StatusNotFound, codeNotFound, "Vaccination record not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Vaccination record deleted"})
}

func (a *App) loadVaccination(c *gin.Context, recordID string) (vaccinationRecord, error) {
	rec := vaccinationRecord{}
	err := a.db.QueryRow(
		c.Request.Context(),
		`SELECT `+vaccinationColumns+` FROM vaccinations WHERE id = $1`,
		recordID,
	).Scan(
		&rec.ID,
		&rec.PetID,
		&rec.VaccineName,
		&rec.DateAdministered,
		&rec.NextDueDate,
		&rec.AdministeredBy,
		&rec.BatchNumber,
		&rec.Notes,
		&rec.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(c, http.StatusNotFound, codeNotFound, "Vaccination record not found")
		return vaccinationRecord{}, err
	}
	if err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to load vaccination")
		return vaccinationRecord{}, err
	}
	return rec, nil
}

func (a *App) respondWithVaccination(c *gin.Context, recordID string, status int) {
	rec, err := a.loadVaccination(c, recordID)
	if err != nil {
		return
	}
	c.JSON(status, vaccinationJSON(rec))
}
