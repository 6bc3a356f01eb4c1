package medrecord

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medflowhq/hospital-booking/internal/directory"
)

// Directory validates the parties referenced by a record.
type Directory interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*directory.Patient, error)
	GetDoctor(ctx context.Context, id uuid.UUID) (*directory.Doctor, error)
}

type Service struct {
	repo   Repository
	dir    Directory
	logger zerolog.Logger
}

func NewService(repo Repository, dir Directory, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		dir:    dir,
		logger: logger.With().Str("component", "medrecord").Logger(),
	}
}

func (s *Service) Create(ctx context.Context, rec *Record) (*Record, error) {
	if _, err := s.dir.GetPatient(ctx, rec.PatientID); err != nil {
		return nil, err
	}
	if _, err := s.dir.GetDoctor(ctx, rec.DoctorID); err != nil {
		return nil, err
	}

	created, err := s.repo.Create(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("create medical record: %w", err)
	}

	s.logger.Info().
		Stringer("record_id", created.ID).
		Stringer("patient_id", created.PatientID).
		Msg("medical record created")
	return created, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Record, error) {
	if _, err := s.dir.GetPatient(ctx, patientID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) Update(ctx context.Context, rec *Record) (*Record, error) {
	if _, err := s.repo.GetByID(ctx, rec.ID); err != nil {
		return nil, err
	}

	updated, err := s.repo.Update(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("update medical record: %w", err)
	}

	s.logger.Info().Stringer("record_id", rec.ID).Msg("medical record updated")
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Stringer("record_id", id).Msg("medical record deleted")
	return nil
}
