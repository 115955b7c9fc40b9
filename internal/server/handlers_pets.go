package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
)

func (a *App) listPets(c *gin.Context) {
	rows, err := a.db.Query(c.Request.Context(), `SELECT `+petColumns+` FROM pets ORDER BY name ASC`)
	if err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to list pets")
		return
	}
	defer rows.Close()

	pets := make([]gin.H, 0)
	for rows.Next() {
		pet := petRecord{}
		if err := rows.Scan(
			&pet.ID,
			&pet.Name,
			&pet.Species,
			&pet.Breed,
			&pet.DateOfBirth,
			&pet.Gender,
			&pet.Color,
			&pet.MicrochipID,
			&pet.PhotoURL,
			&pet.Notes,
			&pet.CreatedAt,
			&pet.UpdatedAt,
		); err != nil {
			writeError(c, http.StatusInternalServerError, codeInternal, "Failed to list pets")
			return
		}
		pets = append(pets, petJSON(pet))
	}
	if rows.Err() != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to list pets")
		return
	}

	c.JSON(http.StatusOK, pets)
}

// getPet returns the pet with all child record collections, the shape the
// detail screen renders from. Unlike the AI context, nothing is bounded here
// and weight history is oldest-first for charting.
func (a *App) getPet(c *gin.Context) {
	petID := c.Param("id")
	ctx := c.Request.Context()

	pet, err := a.loadPet(ctx, a.db, petID)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(c, http.StatusNotFound, codeNotFound, "Pet not found")
		return
	}
	if err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to load pet")
		return
	}

	rows, err := a.db.Query(ctx, `SELECT `+vaccinationColumns+` FROM vaccinations WHERE pet_id = $1 ORDER BY date_administered DESC`, petID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to load pet records")
		return
	}
	vaccinations, err := collectVaccinations(rows)
	if err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to load pet records")
		return
	}

	rows, err = a.db.Query(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE pet_id = $1 ORDER BY date DESC`, petID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to load pet records")
		return
	}
	appointments, err := collectAppointments(rows)
	if err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to load pet records")
		return
	}

	rows, err = a.db.Query(ctx, `SELECT `+weightColumns+` FROM weight_records WHERE pet_id = $1 ORDER BY recorded_at ASC`, petID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to load pet records")
		return
	}
	weights, err := collectWeightRecords(rows)
	if err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to load pet records")
		return
	}

	rows, err = a.db.Query(ctx, `SELECT `+medicationColumns+` FROM medications WHERE pet_id = $1 ORDER BY start_date DESC`, petID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to load pet records")
		return
	}
	medications, err := collectMedications(rows)
	if err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to load pet records")
		return
	}

	rows, err = a.db.Query(ctx, `SELECT `+conditionColumns+` FROM health_conditions WHERE pet_id = $1 ORDER BY diagnosed_date DESC NULLS LAST`, petID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to load pet records")
		return
	}
	conditions, err := collectConditions(rows)
	if err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to load pet records")
		return
	}

	response := petJSON(pet)
	response["vaccinations"] = mapToJSON(vaccinations, vaccinationJSON)
	response["appointments"] = mapToJSON(appointments, appointmentJSON)
	response["weightRecords"] = mapToJSON(weights, weightRecordJSON)
	response["medications"] = mapToJSON(medications, medicationJSON)
	response["conditions"] = mapToJSON(conditions, conditionJSON)

	c.JSON(http.StatusOK, response)
}

func mapToJSON[T any](records []T, shape func(T) gin.H) []gin.H {
	result := make([]gin.H, 0, len(records))
	for _, rec := range records {
		result = append(result, shape(rec))
	}
	return result
}

func (a *App) createPet(c *gin.Context) {
	var payload petWriteRequest
	if !mustJSON(c, &payload) {
		return
	}

	name := strings.TrimSpace(derefString(payload.Name))
	species := strings.TrimSpace(derefString(payload.Species))
	if name == "" || species == "" {
		writeError(c, http.StatusBadRequest, codeValidation, "Name and species are required")
		return
	}

	dateOfBirth, err := parseOptionalDate(payload.DateOfBirth)
	if err != nil {
		writeError(c, http.StatusBadRequest, codeValidation, "date_of_birth must be YYYY-MM-DD")
		return
	}

	petID := newID()
	if _, err := a.db.Exec(
		c.Request.Context(),
		`INSERT INTO pets (id, name, species, breed, date_of_birth, gender, color, microchip_id, photo_url, notes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())`,
		petID,
		name,
		species,
		optionalOr(payload.Breed, nil),
		dateOfBirth,
		optionalOr(payload.Gender, nil),
		optionalOr(payload.Color, nil),
		optionalOr(payload.MicrochipID, nil),
		optionalOr(payload.PhotoURL, nil),
		optionalOr(payload.Notes, nil),
	); err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to create pet")
		return
	}

	pet, err := a.loadPet(c.Request.Context(), a.db, petID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to load pet")
		return
	}
	c.JSON(http.StatusCreated, petJSON(pet))
}

func (a *App) updatePet(c *gin.Context) {
	petID := c.Param("id")
	ctx := c.Request.Context()

	current, err := a.loadPet(ctx, a.db, petID)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(c, http.StatusNotFound, codeNotFound, "Pet not found")
		return
	}
	if err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to load pet")
		return
	}

	var payload petWriteRequest
	if !mustJSON(c, &payload) {
		return
	}

	dateOfBirth := current.DateOfBirth
	if payload.DateOfBirth != nil {
		dateOfBirth, err = parseOptionalDate(payload.DateOfBirth)
		if err != nil {
			writeError(c, http.StatusBadRequest, codeValidation, "date_of_birth must be YYYY-MM-DD")
			return
		}
	}

	if _, err := a.db.Exec(
		ctx,
		`UPDATE pets SET
			name = $2, species = $3, breed = $4, date_of_birth = $5, gender = $6,
			color = $7, microchip_id = $8, photo_url = $9, notes = $10,
			updated_at = NOW()
		 WHERE id = $1`,
		petID,
		stringOr(payload.Name, current.Name),
		stringOr(payload.Species, current.Species),
		optionalOr(payload.Breed, current.Breed),
		dateOfBirth,
		optionalOr(payload.Gender, current.Gender),
		optionalOr(payload.Color, current.Color),
		optionalOr(payload.MicrochipID, current.MicrochipID),
		optionalOr(payload.PhotoURL, current.PhotoURL),
		optionalOr(payload.Notes, current.Notes),
	); err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to update pet")
		return
	}

	pet, err := a.loadPet(ctx, a.db, petID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to load pet")
		return
	}
	c.JSON(http.StatusOK, petJSON(pet))
}

func (a *App) deletePet(c *gin.Context) {
	tag, err := a.db.Exec(c.Request.Context(), `DELETE FROM pets WHERE id = $1`, c.Param("id"))
	if err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to delete pet")
		return
	}
	if tag.RowsAffected() == 0 {
		writeError(c, http.StatusNotFound, codeNotFound, "Pet not found")
		return
	}
	// Child records go with the pet via ON DELETE CASCADE.
	c.JSON(http.StatusOK, gin.H{"message": "Pet deleted successfully"})
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
