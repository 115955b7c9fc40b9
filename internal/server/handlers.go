package server

type createOrFindUserRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type petWriteRequest struct {
	Name        *string `json:"name"`
	Species     *string `json:"species"`
	Breed       *string `json:"breed"`
	DateOfBirth *string `json:"date_of_birth"`
	Gender      *string `json:"gender"`
	Color       *string `json:"color"`
	MicrochipID *string `json:"microchip_id"`
	PhotoURL    *string `json:"photo_url"`
	Notes       *string `json:"notes"`
}

type vaccinationWriteRequest struct {
	PetID            string  `json:"pet_id"`
	VaccineName      *string `json:"vaccine_name"`
	DateAdministered *string `json:"date_administered"`
	NextDueDate      *string `json:"next_due_date"`
	AdministeredBy   *string `json:"administered_by"`
	BatchNumber      *string `json:"batch_number"`
	Notes            *string `json:"notes"`
}

type appointmentWriteRequest struct {
	PetID           string  `json:"pet_id"`
	Title           *string `json:"title"`
	AppointmentType *string `json:"appointment_type"`
	Date            *string `json:"date"`
	Time            *string `json:"time"`
	VetName         *string `json:"vet_name"`
	ClinicName      *string `json:"clinic_name"`
	Notes           *string `json:"notes"`
	Status          *string `json:"status"`
}

type weightRecordWriteRequest struct {
	PetID      string   `json:"pet_id"`
	Weight     *float64 `json:"weight"`
	Unit       *string  `json:"unit"`
	RecordedAt *string  `json:"recorded_at"`
	Notes      *string  `json:"notes"`
}

type medicationWriteRequest struct {
	PetID        string  `json:"pet_id"`
	Name         *string `json:"name"`
	Dosage       *string `json:"dosage"`
	Frequency    *string `json:"frequency"`
	StartDate    *string `json:"start_date"`
	EndDate      *string `json:"end_date"`
	PrescribedBy *string `json:"prescribed_by"`
	Purpose      *string `json:"purpose"`
	Active       *bool   `json:"active"`
	Notes        *string `json:"notes"`
}

type conditionWriteRequest struct {
	PetID         string  `json:"pet_id"`
	ConditionName *string `json:"condition_name"`
	DiagnosedDate *string `json:"diagnosed_date"`
	DiagnosedBy   *string `json:"diagnosed_by"`
	Severity      *string `json:"severity"`
	Status        *string `json:"status"`
	Treatment     *string `json:"treatment"`
	Notes         *string `json:"notes"`
}

type checkoutRequest struct {
	UserID string `json:"userId"`
}

type billingPortalRequest struct {
	UserID string `json:"userId"`
}

type chatRequest struct {
	PetID   string     `json:"pet_id"`
	Message string     `json:"message"`
	History []ChatTurn `json:"history"`
}
