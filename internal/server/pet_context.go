package server

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
)

// aiContextRecentLimit bounds appointments and weight history in the AI
// context. The plain CRUD listings stay unbounded; the prompt does not.
const aiContextRecentLimit = 5

type petRecordSet struct {
	Pet               petRecord
	Vaccinations      []vaccinationRecord
	Medications       []medicationRecord
	ActiveMedications []medicationRecord
	Appointments      []appointmentRecord
	Conditions        []conditionRecord
	Weights           []weightRecordRow
}

// loadPetRecordSet fetches one pet with the record windows the AI context
// needs. Returns pgx.ErrNoRows when the pet does not exist.
func (a *App) loadPetRecordSet(ctx context.Context, petID string) (petRecordSet, error) {
	pet, err := a.loadPet(ctx, a.db, petID)
	if err != nil {
		return petRecordSet{}, err
	}

	set := petRecordSet{Pet: pet}

	rows, err := a.db.Query(
		ctx,
		`SELECT `+vaccinationColumns+` FROM vaccinations WHERE pet_id = $1 ORDER BY date_administered DESC`,
		petID,
	)
	if err != nil {
		return petRecordSet{}, err
	}
	if set.Vaccinations, err = collectVaccinations(rows); err != nil {
		return petRecordSet{}, err
	}

	rows, err = a.db.Query(
		ctx,
		`SELECT `+medicationColumns+` FROM medications WHERE pet_id = $1 ORDER BY start_date DESC`,
		petID,
	)
	if err != nil {
		return petRecordSet{}, err
	}
	if set.Medications, err = collectMedications(rows); err != nil {
		return petRecordSet{}, err
	}
	for _, med := range set.Medications {
		if med.Active {
			set.ActiveMedications = append(set.ActiveMedications, med)
		}
	}

	rows, err = a.db.Query(
		ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE pet_id = $1 ORDER BY date DESC LIMIT $2`,
		petID,
		aiContextRecentLimit,
	)
	if err != nil {
		return petRecordSet{}, err
	}
	if set.Appointments, err = collectAppointments(rows); err != nil {
		return petRecordSet{}, err
	}

	rows, err = a.db.Query(
		ctx,
		`SELECT `+conditionColumns+` FROM health_conditions WHERE pet_id = $1 ORDER BY diagnosed_date DESC NULLS LAST`,
		petID,
	)
	if err != nil {
		return petRecordSet{}, err
	}
	if set.Conditions, err = collectConditions(rows); err != nil {
		return petRecordSet{}, err
	}

	rows, err = a.db.Query(
		ctx,
		`SELECT `+weightColumns+` FROM weight_records WHERE pet_id = $1 ORDER BY recorded_at DESC LIMIT $2`,
		petID,
		aiContextRecentLimit,
	)
	if err != nil {
		return petRecordSet{}, err
	}
	if set.Weights, err = collectWeightRecords(rows); err != nil {
		return petRecordSet{}, err
	}

	return set, nil
}

// petAge renders an age like "3 year(s) old" or "7 month(s) old". Both the
// year and month branches apply the same day-of-month rollover: a birthday
// later this month has not happened yet.
func petAge(dateOfBirth, now time.Time) string {
	years := now.Year() - dateOfBirth.Year()
	monthDiff := int(now.Month()) - int(dateOfBirth.Month())
	if monthDiff < 0 || (monthDiff == 0 && now.Day() < dateOfBirth.Day()) {
		years--
	}
	if years > 0 {
		return fmt.Sprintf("%d year(s) old", years)
	}

	months := (int(now.Month()) - int(dateOfBirth.Month()) + 12) % 12
	if now.Day() < dateOfBirth.Day() {
		months = (months + 11) % 12
	}
	return fmt.Sprintf("%d month(s) old", months)
}

// vaccineStatus classifies a next-due date against the current time.
// Due today counts as zero days out, so today is "due soon", not overdue.
func vaccineStatus(nextDue *time.Time, now time.Time) string {
	if nextDue == nil {
		return "no due date"
	}
	daysUntil := int(math.Ceil(nextDue.Sub(now).Hours() / 24))
	if daysUntil < 0 {
		return "OVERDUE"
	}
	if daysUntil <= 30 {
		return "due soon"
	}
	return "up to date"
}

// renderPetContext turns a record set into the natural-language document the
// LLM receives. Section order is fixed and construction is deterministic:
// the same record set at the same instant renders byte-identical text.
func renderPetContext(set petRecordSet, now time.Time) string {
	lines := []string{}

	pet := set.Pet
	lines = append(lines, "**Pet Profile:**")
	lines = append(lines, "- Name: "+pet.Name)
	lines = append(lines, "- Species: "+pet.Species)
	if pet.Breed != nil {
		lines = append(lines, "- Breed: "+*pet.Breed)
	}
	if pet.DateOfBirth != nil {
		lines = append(lines, fmt.Sprintf("- Age: %s (born %s)", petAge(*pet.DateOfBirth, now), formatDate(*pet.DateOfBirth)))
	}
	if pet.Gender != nil {
		lines = append(lines, "- Gender: "+*pet.Gender)
	}
	if pet.Color != nil {
		lines = append(lines, "- Color: "+*pet.Color)
	}
	if pet.Notes != nil {
		lines = append(lines, "- Notes: "+*pet.Notes)
	}

	if len(set.Vaccinations) > 0 {
		lines = append(lines, fmt.Sprintf("\n**Vaccinations (%d total):**", len(set.Vaccinations)))
		for _, v := range set.Vaccinations {
			entry := fmt.Sprintf("- %s: administered %s", v.VaccineName, formatDate(v.DateAdministered))
			if v.NextDueDate != nil {
				entry += fmt.Sprintf(", next due %s [%s]", formatDate(*v.NextDueDate), vaccineStatus(v.NextDueDate, now))
			}
			lines = append(lines, entry)
		}
	} else {
		lines = append(lines, "\n**Vaccinations:** None recorded")
	}

	if len(set.ActiveMedications) > 0 {
		lines = append(lines, "\n**Active Medications:**")
		for _, m := range set.ActiveMedications {
			entry := fmt.Sprintf("- %s: %s, %s", m.Name, m.Dosage, m.Frequency)
			if m.Purpose != nil {
				entry += fmt.Sprintf(" (for: %s)", *m.Purpose)
			}
			if m.PrescribedBy != nil {
				entry += " — prescribed by " + *m.PrescribedBy
			}
			lines = append(lines, entry)
		}
	} else {
		lines = append(lines, "\n**Active Medications:** None")
	}

	if len(set.Appointments) > 0 {
		lines = append(lines, "\n**Recent/Upcoming Appointments:**")
		for _, ap := range set.Appointments {
			entry := "- " + ap.Title
			if ap.AppointmentType != "" {
				entry += fmt.Sprintf(" (%s)", ap.AppointmentType)
			}
			entry += ": " + formatDate(ap.Date)
			if ap.Time != nil {
				entry += " at " + *ap.Time
			}
			entry += " — " + ap.Status
			if ap.VetName != nil {
				entry += " with " + *ap.VetName
			}
			if ap.ClinicName != nil {
				entry += " at " + *ap.ClinicName
			}
			lines = append(lines, entry)
		}
	} else {
		lines = append(lines, "\n**Appointments:** None recorded")
	}

	if len(set.Conditions) > 0 {
		lines = append(lines, "\n**Health Conditions:**")
		for _, cond := range set.Conditions {
			entry := "- " + cond.ConditionName
			if cond.Severity != nil {
				entry += fmt.Sprintf(" (%s severity)", *cond.Severity)
			}
			entry += ": " + cond.Status
			if cond.Treatment != nil {
				entry += " — Treatment: " + *cond.Treatment
			}
			if cond.DiagnosedBy != nil {
				entry += " — Diagnosed by: " + *cond.DiagnosedBy
			}
			lines = append(lines, entry)
		}
	} else {
		lines = append(lines, "\n**Health Conditions:** None recorded")
	}

	if len(set.Weights) > 0 {
		lines = append(lines, "\n**Recent Weight Records:**")
		for _, w := range set.Weights {
			entry := fmt.Sprintf("- %s %s on %s", formatWeight(w.Weight), w.Unit, formatDate(w.RecordedAt))
			if w.Notes != nil {
				entry += fmt.Sprintf(" (%s)", *w.Notes)
			}
			lines = append(lines, entry)
		}
	} else {
		lines = append(lines, "\n**Weight Records:** None recorded")
	}

	return strings.Join(lines, "\n")
}

func formatWeight(value float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", value), "0"), ".")
}
