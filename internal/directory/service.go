package directory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medflowhq/hospital-booking/internal/cache"
)

// Service exposes patient and doctor lookups and CRUD. Reads by ID go through
// the Redis cache; every write invalidates the affected entry.
type Service struct {
	repo   Repository
	cache  *cache.Cache
	logger zerolog.Logger
}

func NewService(repo Repository, c *cache.Cache, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		cache:  c,
		logger: logger.With().Str("component", "directory").Logger(),
	}
}

func patientKey(id uuid.UUID) string { return "patient:" + id.String() }
func doctorKey(id uuid.UUID) string  { return "doctor:" + id.String() }

// Patients

func (s *Service) CreatePatient(ctx context.Context, p *Patient) (*Patient, error) {
	if p.FirstName == "" || p.LastName == "" || p.Email == "" {
		return nil, ErrInvalidInput
	}

	if existing, err := s.repo.GetPatientByEmail(ctx, p.Email); err == nil && existing != nil {
		return nil, ErrDuplicatePatient
	}

	created, err := s.repo.CreatePatient(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("create patient: %w", err)
	}

	s.logger.Info().Stringer("patient_id", created.ID).Msg("patient created")
	return created, nil
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	var cached Patient
	if err := s.cache.Get(ctx, patientKey(id), &cached); err == nil {
		return &cached, nil
	}

	p, err := s.repo.GetPatientByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, patientKey(id), p)
	return p, nil
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]Patient, error) {
	limit, offset = clampPage(limit, offset)
	return s.repo.ListPatients(ctx, limit, offset)
}

func (s *Service) UpdatePatient(ctx context.Context, p *Patient) (*Patient, error) {
	if _, err := s.repo.GetPatientByID(ctx, p.ID); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdatePatient(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("update patient: %w", err)
	}

	s.cache.Delete(ctx, patientKey(p.ID))
	s.logger.Info().Stringer("patient_id", p.ID).Msg("patient updated")
	return updated, nil
}

func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeletePatient(ctx, id); err != nil {
		return err
	}
	s.cache.Delete(ctx, patientKey(id))
	s.logger.Info().Stringer("patient_id", id).Msg("patient deleted")
	return nil
}

// Doctors

func (s *Service) CreateDoctor(ctx context.Context, d *Doctor) (*Doctor, error) {
	if d.FirstName == "" || d.LastName == "" || d.Email == "" {
		return nil, ErrInvalidInput
	}

	if existing, err := s.repo.GetDoctorByEmail(ctx, d.Email); err == nil && existing != nil {
		return nil, ErrDuplicateDoctor
	}

	created, err := s.repo.CreateDoctor(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("create doctor: %w", err)
	}

	s.logger.Info().Stringer("doctor_id", created.ID).Msg("doctor created")
	return created, nil
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	var cached Doctor
	if err := s.cache.Get(ctx, doctorKey(id), &cached); err == nil {
		return &cached, nil
	}

	d, err := s.repo.GetDoctorByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, doctorKey(id), d)
	return d, nil
}

func (s *Service) ListDoctors(ctx context.Context, limit, offset int) ([]Doctor, error) {
	limit, offset = clampPage(limit, offset)
	return s.repo.ListDoctors(ctx, limit, offset)
}

func (s *Service) ListDoctorsBySpecialization(ctx context.Context, specialization string) ([]Doctor, error) {
	return s.repo.ListDoctorsBySpecialization(ctx, specialization)
}

func (s *Service) ListDoctorsByDepartment(ctx context.Context, department string) ([]Doctor, error) {
	return s.repo.ListDoctorsByDepartment(ctx, department)
}

func (s *Service) UpdateDoctor(ctx context.Context, d *Doctor) (*Doctor, error) {
	if _, err := s.repo.GetDoctorByID(ctx, d.ID); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateDoctor(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("update doctor: %w", err)
	}

	s.cache.Delete(ctx, doctorKey(d.ID))
	s.logger.Info().Stringer("doctor_id", d.ID).Msg("doctor updated")
	return updated, nil
}

func (s *Service) DeleteDoctor(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteDoctor(ctx, id); err != nil {
		return err
	}
	s.cache.Delete(ctx, doctorKey(id))
	s.logger.Info().Stringer("doctor_id", id).Msg("doctor deleted")
	return nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
