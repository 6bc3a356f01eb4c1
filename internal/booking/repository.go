package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TxQueries are the reads and writes available inside the doctor-locked
// booking transaction. They observe only committed state plus the
// transaction's own writes.
type TxQueries interface {
	// FindPatientOverlap returns non-cancelled appointments for the patient
	// whose scheduled time falls within [start, end].
	FindPatientOverlap(ctx context.Context, patientID uuid.UUID, start, end time.Time) ([]Appointment, error)
	// FindDoctorOverlap is the doctor-side equivalent.
	FindDoctorOverlap(ctx context.Context, doctorID uuid.UUID, start, end time.Time) ([]Appointment, error)
	// CountDoctorDay counts the doctor's non-cancelled appointments with
	// scheduled time in [dayStart, dayEnd).
	CountDoctorDay(ctx context.Context, doctorID uuid.UUID, dayStart, dayEnd time.Time) (int, error)
	CreateAppointment(ctx context.Context, a *Appointment) (*Appointment, error)
	InsertEvent(ctx context.Context, ev Event) error
}

// Repository contains all DB interactions needed by the booking service.
type Repository interface {
	// WithDoctorLock runs fn inside a transaction that holds an exclusive
	// lock keyed by doctor id. A second booking for the same doctor blocks
	// until the first commits or rolls back, then re-reads committed state.
	// fn returning an error rolls the transaction back.
	WithDoctorLock(ctx context.Context, doctorID uuid.UUID, fn func(q TxQueries) error) error

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListAppointments(ctx context.Context, limit, offset int) ([]Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]Appointment, error)

	// SetStatus sets the status unconditionally.
	SetStatus(ctx context.Context, id uuid.UUID, to Status) (*Appointment, error)
	// CancelIfActive sets CANCELLED only when the current status is not
	// already CANCELLED; ErrAppointmentNotFound when no row qualifies.
	CancelIfActive(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// Reminder worker support.
	FindDueReminders(ctx context.Context, from, until time.Time, limit int) ([]Appointment, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error

	InsertEvent(ctx context.Context, ev Event) error
}
