package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
)

func (a *App) listMedicationsForPet(c *gin.Context) {
	rows, err := a.db.Query(
		c.Request.Context(),
		`SELECT `+medicationColumns+` FROM medications WHERE pet_id = $1 ORDER BY start_date DESC`,
		c.Param("petId"),
	)
	if err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to list medications")
		return
	}
	records, err := collectMedications(rows)
	if err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to list medications")
		return
	}
	c.JSON(http.StatusOK, mapToJSON(records, medicationJSON))
}

// listActiveMedications spans all pets for the dashboard reminder list.
func (a *App) listActiveMedications(c *gin.Context) {
	rows, err := a.db.Query(
		c.Request.Context(),
		`SELECT m.id, m.pet_id, m.name, m.dosage, m.frequency, m.start_date, m.end_date,
		        m.prescribed_by, m.purpose, m.active, m.notes, m.created_at, p.name, p.species
		 FROM medications m JOIN pets p ON m.pet_id = p.id
		 WHERE m.active
		 ORDER BY m.name ASC`,
	)
	if err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to list medications")
		return
	}
	defer rows.Close()

	result := make([]gin.H, 0)
	for rows.Next() {
		rec := medicationRecord{}
		var petName, petSpecies string
		if err := rows.Scan(
			&rec.ID,
			&rec.PetID,
			&rec.Name,
			&rec.Dosage,
			&rec.Frequency,
			&rec.StartDate,
			&rec.EndDate,
			&rec.PrescribedBy,
			&rec.Purpose,
			&rec.Active,
			&rec.Notes,
			&rec.CreatedAt,
			&petName,
			&petSpecies,
		); err != nil {
			writeError(c, http.StatusInternalServerError, codeInternal, "Failed to list medications")
			return
		}
		payload := medicationJSON(rec)
		payload["pet_name"] = petName
		payload["pet_species"] = petSpecies
		result = append(result, payload)
	}
	if rows.Err() != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to list medications")
		return
	}

	c.JSON(http.StatusOK, result)
}

func (a *App) createMedication(c *gin.Context) {
	var payload medicationWriteRequest
	if !mustJSON(c, &payload) {
		return
	}

	petID := strings.TrimSpace(payload.PetID)
	name := strings.TrimSpace(derefString(payload.Name))
	dosage := strings.TrimSpace(derefString(payload.Dosage))
	frequency := strings.TrimSpace(derefString(payload.Frequency))
	if petID == "" || name == "" || dosage == "" || frequency == "" || payload.StartDate == nil {
		writeError(c, http.StatusBadRequest, codeValidation, "pet_id, name, dosage, frequency, and start_date are required")
		return
	}
	startDate, err := parseDate(*payload.StartDate)
	if err != nil {
		writeError(c, http.StatusBadRequest, codeValidation, "start_date must be YYYY-MM-DD")
		return
	}
	endDate, err := parseOptionalDate(payload.EndDate)
	if err != nil {
		writeError(c, http.StatusBadRequest, codeValidation, "end_date must be YYYY-MM-DD")
		return
	}

	active := true
	if payload.Active != nil {
		active = *payload.Active
	}

	recordID := newID()
	if _, err := a.db.Exec(
		c.Request.Context(),
		`INSERT INTO medications (id, pet_id, name, dosage, frequency, start_date, end_date, prescribed_by, purpose, active, notes, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())`,
		recordID,
		petID,
		name,
		dosage,
		frequency,
		startDate,
		endDate,
		optionalOr(payload.PrescribedBy, nil),
		optionalOr(payload.Purpose, nil),
		active,
		optionalOr(payload.Notes, nil),
	); err != nil {
		if isForeignKeyViolation(err) {
			writeError(c, http.StatusNotFound, codeNotFound, "Pet not found")
			return
		}
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to create medication")
		return
	}

	a.respondWithMedication(c, recordID, http.StatusCreated)
}

func (a *App) updateMedication(c *gin.Context) {
	recordID := c.Param("id")

	current, err := a.loadMedication(c, recordID)
	if err != nil {
		return
	}

	var payload medicationWriteRequest
	if !mustJSON(c, &payload) {
		return
	}

	startDate := current.StartDate
	if payload.StartDate != nil {
		startDate, err = parseDate(*payload.StartDate)
		if err != nil {
			writeError(c, http.StatusBadRequest, codeValidation, "start_date must be YYYY-MM-DD")
			return
		}
	}
	endDate := current.EndDate
	if payload.EndDate != nil {
		endDate, err = parseOptionalDate(payload.EndDate)
		if err != nil {
			writeError(c, http.StatusBadRequest, codeValidation, "end_date must be YYYY-MM-DD")
			return
		}
	}
	active := current.Active
	if payload.Active != nil {
		active = *payload.Active
	}

	if _, err := a.db.Exec(
		c.Request.Context(),
		`UPDATE medications SET
			name = $2, dosage = $3, frequency = $4, start_date = $5, end_date = $6,
			prescribed_by = $7, purpose = $8, active = $9, notes = $10
		 WHERE id = $1`,
		recordID,
		stringOr(payload.Name, current.Name),
		stringOr(payload.Dosage, current.Dosage),
		stringOr(payload.Frequency, current.Frequency),
		startDate,
		endDate,
		optionalOr(payload.PrescribedBy, current.PrescribedBy),
		optionalOr(payload.Purpose, current.Purpose),
		active,
		optionalOr(payload.Notes, current.Notes),
	); err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to update medication")
		return
	}

	a.respondWithMedication(c, recordID, http.StatusOK)
}

func (a *App) deleteMedication(c *gin.Context) {
	tag, err := a.db.Exec(c.Request.Context(), `DELETE FROM medications WHERE id = $1`, c.Param("id"))
	if err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to delete medication")
		return
	}
	if tag.RowsAffected() == 0 {
		writeError(c, http.StatusNotFound, codeNotFound, "Medication not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Medication deleted"})
}

func (a *App) loadMedication(c *gin.Context, recordID string) (medicationRecord, error) {
	rec := medicationRecord{}
	err := a.db.QueryRow(
		c.Request.Context(),
		`SELECT `+medicationColumns+` FROM medications WHERE id = $1`,
		recordID,
	).Scan(
		&rec.ID,
		&rec.PetID,
		&rec.Name,
		&rec.Dosage,
		&rec.Frequency,
		&rec.StartDate,
		&rec.EndDate,
		&rec.PrescribedBy,
		&rec.Purpose,
		&rec.Active,
		&rec.Notes,
		&rec.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(c, http.StatusNotFound, codeNotFound, "Medication not found")
		return medicationRecord{}, err
	}
	if err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to load medication")
		return medicationRecord{}, err
	}
	return rec, nil
}

func (a *App) respondWithMedication(c *gin.Context, recordID string, status int) {
	rec, err := a.loadMedication(c, recordID)
	if err != nil {
		return
	}
	c.JSON(status, medicationJSON(rec))
}
