package medrecord

import (
	"time"

	"github.com/google/uuid"
)

type Record struct {
	ID              uuid.UUID `json:"id"`
	PatientID       uuid.UUID `json:"patient_id"`
	DoctorID        uuid.UUID `json:"doctor_id"`
	Diagnosis       string    `json:"diagnosis,omitempty"`
	Treatment       string    `json:"treatment,omitempty"`
	Medications     string    `json:"medications,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	Allergies       string    `json:"allergies,omitempty"`
	ChronicDiseases string    `json:"chronic_diseases,omitempty"`
	RecordedAt      time.Time `json:"recorded_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
