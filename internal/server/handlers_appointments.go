package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
)

const appointmentWithPetColumns = `a.id, a.pet_id, a.title, a.appointment_type, a.date, a.time,
	a.vet_name, a.clinic_name, a.notes, a.status, a.created_at, p.name, p.species`

type appointmentWithPet struct {
	appointmentRecord
	PetName    string
	PetSpecies string
}

func collectAppointmentsWithPet(rows pgx.Rows) ([]appointmentWithPet, error) {
	defer rows.Close()
	result := make([]appointmentWithPet, 0)
	for rows.Next() {
		rec := appointmentWithPet{}
		if err := rows.Scan(
			&rec.ID,
			&rec.PetID,
			&rec.Title,
			&rec.AppointmentType,
			&rec.Date,
			&rec.Time,
			&rec.VetName,
			&rec.ClinicName,
			&rec.Notes,
			&rec.Status,
			&rec.CreatedAt,
			&rec.PetName,
			&rec.PetSpecies,
		); err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

func appointmentWithPetJSON(rec appointmentWithPet) gin.H {
	payload := appointmentJSON(rec.appointmentRecord)
	payload["pet_name"] = rec.PetName
	payload["pet_species"] = rec.PetSpecies
	return payload
}

func (a *App) listAppointments(c *gin.Context) {
	rows, err := a.db.Query(
		c.Request.Context(),
		`SELECT `+appointmentWithPetColumns+`
		 FROM appointments a JOIN pets p ON a.pet_id = p.id
		 ORDER BY a.date ASC, a.time ASC NULLS LAST`,
	)
	if err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to list appointments")
		return
	}
	records, err := collectAppointmentsWithPet(rows)
	if err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to list appointments")
		return
	}
	c.JSON(http.StatusOK, mapToJSON(records, appointmentWithPetJSON))
}

func (a *App) listUpcomingAppointments(c *gin.Context) {
	rows, err := a.db.Query(
		c.Request.Context(),
		`SELECT `+appointmentWithPetColumns+`
		 FROM appointments a JOIN pets p ON a.pet_id = p.id
		 WHERE a.date >= $1 AND a.status = 'scheduled'
		 ORDER BY a.date ASC, a.time ASC NULLS LAST
		 LIMIT 10`,
		time.Now().UTC().Format("2006-01-02"),
	)
	if err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to list appointments")
		return
	}
	records, err := collectAppointmentsWithPet(rows)
	if err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to list appointments")
		return
	}
	c.JSON(http.StatusOK, mapToJSON(records, appointmentWithPetJSON))
}

func (a *App) listAppointmentsForPet(c *gin.Context) {
	rows, err := a.db.Query(
		c.Request.Context(),
		`SELECT `+appointmentColumns+` FROM appointments WHERE pet_id = $1 ORDER BY date DESC`,
		c.Param("petId"),
	)
	if err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to list appointments")
		return
	}
	records, err := collectAppointments(rows)
	if err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to list appointments")
		return
	}
	c.JSON(http.StatusOK, mapToJSON(records, appointmentJSON))
}

func (a *App) createAppointment(c *gin.Context) {
	var payload appointmentWriteRequest
	if !mustJSON(c, &payload) {
		return
	}

	petID := strings.TrimSpace(payload.PetID)
	title := strings.TrimSpace(derefString(payload.Title))
	appointmentType := strings.TrimSpace(derefString(payload.AppointmentType))
	if petID == "" || title == "" || appointmentType == "" || payload.Date == nil {
		writeError(c, http.StatusBadRequest, codeValidation, "pet_id, title, appointment_type, and date are required")
		return
	}
	date, err := parseDate(*payload.Date)
	if err != nil {
		writeError(c, http.StatusBadRequest, codeValidation, "date must be YYYY-MM-DD")
		return
	}

	status := strings.TrimSpace(derefString(payload.Status))
	if status == "" {
		status = "scheduled"
	}

	recordID := newID()
	if _, err := a.db.Exec(
		c.Request.Context(),
		`INSERT INTO appointments (id, pet_id, title, appointment_type, date, time, vet_name, clinic_name, notes, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())`,
		recordID,
		petID,
		title,
		appointmentType,
		date,
		optionalOr(payload.Time, nil),
		optionalOr(payload.VetName, nil),
		optionalOr(payload.ClinicName, nil),
		optionalOr(payload.Notes, nil),
		status,
	); err != nil {
		if isForeignKeyViolation(err) {
			writeError(c, http.StatusNotFound, codeNotFound, "Pet not found")
			return
		}
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to create appointment")
		return
	}

	a.respondWithAppointment(c, recordID, http.StatusCreated)
}

func (a *App) updateAppointment(c *gin.Context) {
	recordID := c.Param("id")

	current, err := a.loadAppointment(c, recordID)
	if err != nil {
		return
	}

	var payload appointmentWriteRequest
	if !mustJSON(c, &payload) {
		return
	}

	date := current.Date
	if payload.Date != nil {
		date, err = parseDate(*payload.Date)
		if err != nil {
			writeError(c, http.StatusBadRequest, codeValidation, "date must be YYYY-MM-DD")
			return
		}
	}

	if _, err := a.db.Exec(
		c.Request.Context(),
		`UPDATE appointments SET
			title = $2, appointment_type = $3, date = $4, time = $5,
			vet_name = $6, clinic_name = $7, notes = $8, status = $9
		 WHERE id = $1`,
		recordID,
		stringOr(payload.Title, current.Title),
		stringOr(payload.AppointmentType, current.AppointmentType),
		date,
		optionalOr(payload.Time, current.Time),
		optionalOr(payload.VetName, current.VetName),
		optionalOr(payload.ClinicName, current.ClinicName),
		optionalOr(payload.Notes, current.Notes),
		stringOr(payload.Status, current.Status),
	); err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to update appointment")
		return
	}

	a.respondWithAppointment(c, recordID, http.StatusOK)
}

func (a *App) deleteAppointment(c *gin.Context) {
	tag, err := a.db.Exec(c.Request.Context(), `DELETE FROM appointments WHERE id = $1`, c.Param("id"))
	if err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to delete appointment")
		return
	}
	if tag.RowsAffected() == 0 {
		writeError(c, http.StatusNotFound, codeNotFound, "Appointment not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Appointment deleted"})
}

func (a *App) loadAppointment(c *gin.Context, recordID string) (appointmentRecord, error) {
	rec := appointmentRecord{}
	err := a.db.QueryRow(
		c.Request.Context(),
		`SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`,
		recordID,
	).Scan(
		&rec.ID,
		&rec.PetID,
		&rec.Title,
		&rec.AppointmentType,
		&rec.Date,
		&rec.Time,
		&rec.VetName,
		&rec.ClinicName,
		&rec.Notes,
		&rec.Status,
		&rec.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(c, http.StatusNotFound, codeNotFound, "Appointment not found")
		return appointmentRecord{}, err
	}
	if err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to load appointment")
		return appointmentRecord{}, err
	}
	return rec, nil
}

func (a *App) respondWithAppointment(c *gin.Context, recordID string, status int) {
	rec, err := a.loadAppointment(c, recordID)
	if err != nil {
		return
	}
	c.JSON(status, appointmentJSON(rec))
}
