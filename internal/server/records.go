package server

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
)

type petRecord struct {
	ID          string
	Name        string
	Species     string
	Breed       *string
	DateOfBirth *time.Time
	Gender      *string
	Color       *string
	MicrochipID *string
	PhotoURL    *string
	Notes       *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type vaccinationRecord struct {
	ID               string
	PetID            string
	VaccineName      string
	DateAdministered time.Time
	NextDueDate      *time.Time
	AdministeredBy   *string
	BatchNumber      *string
	Notes            *string
	CreatedAt        time.Time
}

type appointmentRecord struct {
	ID              string
	PetID           string
	Title           string
	AppointmentType string
	Date            time.Time
	Time            *string
	VetName         *string
	ClinicName      *string
	Notes           *string
	Status          string
	CreatedAt       time.Time
}

type weightRecordRow struct {
	ID         string
	PetID      string
	Weight     float64
	Unit       string
	RecordedAt time.Time
	Notes      *string
	CreatedAt  time.Time
}

type medicationRecord struct {
	ID           string
	PetID        string
	Name         string
	Dosage       string
	Frequency    string
	StartDate    time.Time
	EndDate      *time.Time
	PrescribedBy *string
	Purpose      *string
	Active       bool
	Notes        *string
	CreatedAt    time.Time
}

type conditionRecord struct {
	ID            string
	PetID         string
	ConditionName string
	DiagnosedDate *time.Time
	DiagnosedBy   *string
	Severity      *string
	Status        string
	Treatment     *string
	Notes         *string
	CreatedAt     time.Time
}

const petColumns = `id, name, species, breed, date_of_birth, gender, color, microchip_id, photo_url, notes, created_at, updated_at`

func scanPet(row pgx.Row) (petRecord, error) {
	pet := petRecord{}
	err := row.Scan(
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
	)
	return pet, err
}

func (a *App) loadPet(ctx context.Context, q dbQuerier, petID string) (petRecord, error) {
	return scanPet(q.QueryRow(ctx, `SELECT `+petColumns+` FROM pets WHERE id = $1`, petID))
}

const vaccinationColumns = `id, pet_id, vaccine_name, date_administered, next_due_date, administered_by, batch_number, notes, created_at`

func collectVaccinations(rows pgx.Rows) ([]vaccinationRecord, error) {
	defer rows.Close()
	result := make([]vaccinationRecord, 0)
	for rows.Next() {
		rec := vaccinationRecord{}
		if err := rows.Scan(
			&rec.ID,
			&rec.PetID,
			&rec.VaccineName,
			&rec.DateAdministered,
			&rec.NextDueDate,
			&rec.AdministeredBy,
			&rec.BatchNumber,
			&rec.Notes,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

const appointmentColumns = `id, pet_id, title, appointment_type, date, time, vet_name, clinic_name, notes, status, created_at`

func collectAppointments(rows pgx.Rows) ([]appointmentRecord, error) {
	defer rows.Close()
	result := make([]appointmentRecord, 0)
	for rows.Next() {
		rec := appointmentRecord{}
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
		); err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

const weightColumns = `id, pet_id, weight, unit, recorded_at, notes, created_at`

func collectWeightRecords(rows pgx.Rows) ([]weightRecordRow, error) {
	defer rows.Close()
	result := make([]weightRecordRow, 0)
	for rows.Next() {
		rec := weightRecordRow{}
		if err := rows.Scan(
			&rec.ID,
			&rec.PetID,
			&rec.Weight,
			&rec.Unit,
			&rec.RecordedAt,
			&rec.Notes,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

const medicationColumns = `id, pet_id, name, dosage, frequency, start_date, end_date, prescribed_by, purpose, active, notes, created_at`

func collectMedications(rows pgx.Rows) ([]medicationRecord, error) {
	defer rows.Close()
	result := make([]medicationRecord, 0)
	for rows.Next() {
		rec := medicationRecord{}
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
		); err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

const conditionColumns = `id, pet_id, condition_name, diagnosed_date, diagnosed_by, severity, status, treatment, notes, created_at`

func collectConditions(rows pgx.Rows) ([]conditionRecord, error) {
	defer rows.Close()
	result := make([]conditionRecord, 0)
	for rows.Next() {
		rec := conditionRecord{}
		if err := rows.Scan(
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
		); err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

func petJSON(pet petRecord) gin.H {
	return gin.H{
		"id":            pet.ID,
		"name":          pet.Name,
		"species":       pet.Species,
		"breed":         nullableString(pet.Breed),
		"date_of_birth": formatOptionalDate(pet.DateOfBirth),
		"gender":        nullableString(pet.Gender),
		"color":         nullableString(pet.Color),
		"microchip_id":  nullableString(pet.MicrochipID),
		"photo_url":     nullableString(pet.PhotoURL),
		"notes":         nullableString(pet.Notes),
		"created_at":    pet.CreatedAt.UTC(),
		"updated_at":    pet.UpdatedAt.UTC(),
	}
}

func vaccinationJSON(rec vaccinationRecord) gin.H {
	return gin.H{
		"id":                rec.ID,
		"pet_id":            rec.PetID,
		"vaccine_name":      rec.VaccineName,
		"date_administered": formatDate(rec.DateAdministered),
		"next_due_date":     formatOptionalDate(rec.NextDueDate),
		"administered_by":   nullableString(rec.AdministeredBy),
		"batch_number":      nullableString(rec.BatchNumber),
		"notes":             nullableString(rec.Notes),
		"created_at":        rec.CreatedAt.UTC(),
	}
}

func appointmentJSON(rec appointmentRecord) gin.H {
	return gin.H{
		"id":               rec.ID,
		"pet_id":           rec.PetID,
		"title":            rec.Title,
		"appointment_type": rec.AppointmentType,
		"date":             formatDate(rec.Date),
		"time":             nullableString(rec.Time),
		"vet_name":         nullableString(rec.VetName),
		"clinic_name":      nullableString(rec.ClinicName),
		"notes":            nullableString(rec.Notes),
		"status":           rec.Status,
		"created_at":       rec.CreatedAt.UTC(),
	}
}

func weightRecordJSON(rec weightRecordRow) gin.H {
	return gin.H{
		"id":          rec.ID,
		"pet_id":      rec.PetID,
		"weight":      rec.Weight,
		"unit":        rec.Unit,
		"recorded_at": formatDate(rec.RecordedAt),
		"notes":       nullableString(rec.Notes),
		"created_at":  rec.CreatedAt.UTC(),
	}
}

func medicationJSON(rec medicationRecord) gin.H {
	return gin.H{
		"id":            rec.ID,
		"pet_id":        rec.PetID,
		"name":          rec.Name,
		"dosage":        rec.Dosage,
		"frequency":     rec.Frequency,
		"start_date":    formatDate(rec.StartDate),
		"end_date":      formatOptionalDate(rec.EndDate),
		"prescribed_by": nullableString(rec.PrescribedBy),
		"purpose":       nullableString(rec.Purpose),
		"active":        rec.Active,
		"notes":         nullableString(rec.Notes),
		"created_at":    rec.CreatedAt.UTC(),
	}
}

func conditionJSON(rec conditionRecord) gin.H {
	return gin.H{
		"id":             rec.ID,
		"pet_id":         rec.PetID,
		"condition_name": rec.ConditionName,
		"diagnosed_date": formatOptionalDate(rec.DiagnosedDate),
		"diagnosed_by":   nullableString(rec.DiagnosedBy),
		"severity":       nullableString(rec.Severity),
		"status":         rec.Status,
		"treatment":      nullableString(rec.Treatment),
		"notes":          nullableString(rec.Notes),
		"created_at":     rec.CreatedAt.UTC(),
	}
}
