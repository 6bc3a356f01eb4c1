package directory

import (
	"time"

	"github.com/google/uuid"
)

type Patient struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	Phone     *string   `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	Age       int       `json:"age,omitempty"`
	BloodType string    `json:"blood_type,omitempty"`
	Gender    string    `json:"gender,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Doctor struct {
	ID                uuid.UUID `json:"id"`
	FirstName         string    `json:"first_name"`
	LastName          string    `json:"last_name"`
	Email             string    `json:"email"`
	Phone             *string   `json:"phone,omitempty"`
	Specialization    string    `json:"specialization,omitempty"`
	LicenseNumber     string    `json:"license_number,omitempty"`
	Department        string    `json:"department,omitempty"`
	YearsOfExperience int       `json:"years_of_experience"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (d *Doctor) FullName() string {
	return d.FirstName + " " + d.LastName
}

func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}
