package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medflowhq/hospital-booking/internal/directory"
)

// Directory resolves the two parties of a booking. Lookups are unlocked,
// idempotent reads; their not-found errors are surfaced to callers verbatim.
type Directory interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*directory.Patient, error)
	GetDoctor(ctx context.Context, id uuid.UUID) (*directory.Doctor, error)
}

// Notifier receives appointment events after they are durably committed.
// Implementations must be best-effort; a failed notification never fails the
// operation that triggered it.
type Notifier interface {
	AppointmentBooked(ctx context.Context, appt *Appointment)
	AppointmentCancelled(ctx context.Context, appt *Appointment)
	StatusChanged(ctx context.Context, appt *Appointment, from Status)
	ReminderDue(ctx context.Context, appt *Appointment)
}

type Service struct {
	repo     Repository
	dir      Directory
	notifier Notifier
	logger   zerolog.Logger
	maxDaily int
	now      func() time.Time
}

func NewService(repo Repository, dir Directory, notifier Notifier, maxDaily int, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		dir:      dir,
		notifier: notifier,
		logger:   logger.With().Str("component", "booking").Logger(),
		maxDaily: maxDaily,
		now:      time.Now,
	}
}

// WithClock overrides the service's time source. Tests use this to pin "now".
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Book reserves an appointment between a patient and a doctor.
//
// Validation order matters and short-circuits: patient existence, doctor
// existence, future time, patient overlap (±1h), doctor overlap (±30m),
// daily capacity. The overlap and capacity checks plus the insert run inside
// a single transaction holding the per-doctor advisory lock, so two
// concurrent requests for the same doctor cannot both pass the checks. A
// concurrent booking for the same patient but a different doctor is only
// caught by the advisory patient-side read; that asymmetry is intentional.
func (s *Service) Book(ctx context.Context, patientID, doctorID uuid.UUID, at time.Time, reason, notes string) (*Appointment, error) {
	if _, err := s.dir.GetPatient(ctx, patientID); err != nil {
		return nil, err
	}
	if _, err := s.dir.GetDoctor(ctx, doctorID); err != nil {
		return nil, err
	}

	if !at.After(s.now()) {
		return nil, ErrInvalidBookingTime
	}

	var created *Appointment

	err := s.repo.WithDoctorLock(ctx, doctorID, func(q TxQueries) error {
		patientConflicts, err := q.FindPatientOverlap(ctx, patientID, at.Add(-PatientWindow), at.Add(PatientWindow))
		if err != nil {
			return fmt.Errorf("check patient conflicts: %w", err)
		}
		if len(patientConflicts) > 0 {
			return ErrPatientConflict
		}

		doctorConflicts, err := q.FindDoctorOverlap(ctx, doctorID, at.Add(-DoctorWindow), at.Add(DoctorWindow))
		if err != nil {
			return fmt.Errorf("check doctor conflicts: %w", err)
		}
		if len(doctorConflicts) > 0 {
			return ErrDoctorConflict
		}

		dayStart := startOfDay(at)
		count, err := q.CountDoctorDay(ctx, doctorID, dayStart, dayStart.Add(24*time.Hour))
		if err != nil {
			return fmt.Errorf("count daily appointments: %w", err)
		}
		if count >= s.maxDaily {
			return ErrCapacityExceeded
		}

		appt := &Appointment{
			ID:          uuid.New(),
			PatientID:   patientID,
			DoctorID:    doctorID,
			ScheduledAt: at,
			Status:      StatusScheduled,
			Reason:      reason,
			Notes:       notes,
		}

		created, err = q.CreateAppointment(ctx, appt)
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}

		return q.InsertEvent(ctx, s.newEvent(created.ID, EventAppointmentBooked, map[string]any{
			"patient_id":   patientID.String(),
			"doctor_id":    doctorID.String(),
			"scheduled_at": at,
		}))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Stringer("appointment_id", created.ID).
		Stringer("patient_id", patientID).
		Stringer("doctor_id", doctorID).
		Time("scheduled_at", at).
		Msg("appointment booked")

	if s.notifier != nil {
		s.notifier.AppointmentBooked(ctx, created)
	}
	return created, nil
}

// GetAppointment retrieves an appointment by ID.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetAppointmentByID(ctx, id)
}

// ListAppointments returns appointments ordered by scheduled time, newest first.
func (s *Service) ListAppointments(ctx context.Context, limit, offset int) ([]Appointment, error) {
	limit, offset = clampPage(limit, offset)
	return s.repo.ListAppointments(ctx, limit, offset)
}

// ListByPatient verifies the patient exists, then returns their appointments.
func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	if _, err := s.dir.GetPatient(ctx, patientID); err != nil {
		return nil, err
	}
	limit, offset = clampPage(limit, offset)
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

// ListByDoctor verifies the doctor exists, then returns their appointments.
func (s *Service) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]Appointment, error) {
	if _, err := s.dir.GetDoctor(ctx, doctorID); err != nil {
		return nil, err
	}
	limit, offset = clampPage(limit, offset)
	return s.repo.ListByDoctor(ctx, doctorID, limit, offset)
}

// UpdateStatus sets the appointment to any recognized status label. There is
// no forward-only state machine here; CANCELLED has the dedicated Cancel
// operation with its idempotency guard, everything else is set as asked.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, label string) (*Appointment, error) {
	status, err := ParseStatus(label)
	if err != nil {
		return nil, err
	}

	current, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	from := current.Status

	updated, err := s.repo.SetStatus(ctx, id, status)
	if err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventStatusChanged, map[string]any{
		"from": from,
		"to":   status,
	})
	s.logger.Info().
		Stringer("appointment_id", id).
		Str("from", string(from)).
		Str("to", string(status)).
		Msg("appointment status updated")

	if s.notifier != nil {
		s.notifier.StatusChanged(ctx, updated, from)
	}
	return updated, nil
}

// Cancel sets the appointment to CANCELLED. It fails with ErrAlreadyCancelled
// when the appointment is already cancelled; no other precondition applies.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	cancelled, err := s.repo.CancelIfActive(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// No active row matched: either it does not exist, or it is
			// already cancelled. Distinguish the two.
			if existing, getErr := s.repo.GetAppointmentByID(ctx, id); getErr == nil && existing.Status == StatusCancelled {
				return nil, ErrAlreadyCancelled
			}
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	s.logEvent(ctx, cancelled.ID, EventAppointmentCancelled, map[string]any{
		"scheduled_at": cancelled.ScheduledAt,
	})
	s.logger.Info().Stringer("appointment_id", id).Msg("appointment cancelled")

	if s.notifier != nil {
		s.notifier.AppointmentCancelled(ctx, cancelled)
	}
	return cancelled, nil
}

// SendDueReminders publishes a reminder for every SCHEDULED or CONFIRMED
// appointment starting within the window and marks it so the next run skips
// it. Called periodically by the reminder worker.
func (s *Service) SendDueReminders(ctx context.Context, window time.Duration) (int, error) {
	now := s.now()

	due, err := s.repo.FindDueReminders(ctx, now, now.Add(window), 500)
	if err != nil {
		return 0, fmt.Errorf("find due reminders: %w", err)
	}

	sent := 0
	for i := range due {
		appt := &due[i]
		if s.notifier != nil {
			s.notifier.ReminderDue(ctx, appt)
		}
		if err := s.repo.MarkReminderSent(ctx, appt.ID, now); err != nil {
			s.logger.Error().Err(err).Stringer("appointment_id", appt.ID).Msg("failed to mark reminder sent")
			continue
		}
		s.logEvent(ctx, appt.ID, EventReminderSent, map[string]any{
			"scheduled_at": appt.ScheduledAt,
		})
		sent++
	}

	return sent, nil
}

func (s *Service) newEvent(appointmentID uuid.UUID, eventType string, payload map[string]any) Event {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	apptID := appointmentID

	return Event{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	ev := s.newEvent(appointmentID, eventType, payload)
	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Error().Err(err).
			Str("event_type", eventType).
			Stringer("appointment_id", appointmentID).
			Msg("failed to insert appointment event")
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
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
