package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound  = errors.New("patient not found")
	ErrDoctorNotFound   = errors.New("doctor not found")
	ErrDuplicatePatient = errors.New("patient with this email or phone already exists")
	ErrDuplicateDoctor  = errors.New("doctor with this email already exists")
	ErrInvalidInput     = errors.New("first name, last name and email are required")
)

// Repository contains all DB interactions needed by the directory service.
type Repository interface {
	CreatePatient(ctx context.Context, p *Patient) (*Patient, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetPatientByEmail(ctx context.Context, email string) (*Patient, error)
	ListPatients(ctx context.Context, limit, offset int) ([]Patient, error)
	UpdatePatient(ctx context.Context, p *Patient) (*Patient, error)
	DeletePatient(ctx context.Context, id uuid.UUID) error

	CreateDoctor(ctx context.Context, d *Doctor) (*Doctor, error)
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetDoctorByEmail(ctx context.Context, email string) (*Doctor, error)
	ListDoctors(ctx context.Context, limit, offset int) ([]Doctor, error)
	ListDoctorsBySpecialization(ctx context.Context, specialization string) ([]Doctor, error)
	ListDoctorsByDepartment(ctx context.Context, department string) ([]Doctor, error)
	UpdateDoctor(ctx context.Context, d *Doctor) (*Doctor, error)
	DeleteDoctor(ctx context.Context, id uuid.UUID) error
}
