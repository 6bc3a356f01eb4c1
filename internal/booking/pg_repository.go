package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const appointmentColumns = `id, patient_id, doctor_id, scheduled_at, status,
	COALESCE(reason, ''), COALESCE(notes, ''), reminder_sent_at, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.ScheduledAt,
		&a.Status,
		&a.Reason,
		&a.Notes,
		&a.ReminderSentAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

// isTransient reports whether err is a lock/serialization abort that the
// caller may retry: deadlock_detected, lock_not_available,
// serialization_failure.
func isTransient(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01", "55P03":
		return true
	}
	return false
}

// WithDoctorLock serializes the whole check-then-act booking sequence per
// doctor. The advisory lock is transaction-scoped, so it is released by
// commit and rollback alike and cannot leak on a crashed connection.
func (r *PgRepository) WithDoctorLock(ctx context.Context, doctorID uuid.UUID, fn func(q TxQueries) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin booking tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, doctorID.String()); err != nil {
		if isTransient(err) {
			return fmt.Errorf("%w: %v", ErrTransientUnavailable, err)
		}
		return fmt.Errorf("acquire doctor lock: %w", err)
	}

	if err := fn(&txQueries{tx: tx}); err != nil {
		if isTransient(err) {
			return fmt.Errorf("%w: %v", ErrTransientUnavailable, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		if isTransient(err) {
			return fmt.Errorf("%w: %v", ErrTransientUnavailable, err)
		}
		return fmt.Errorf("commit booking tx: %w", err)
	}
	return nil
}

type txQueries struct {
	tx pgx.Tx
}

func (q *txQueries) FindPatientOverlap(ctx context.Context, patientID uuid.UUID, start, end time.Time) ([]Appointment, error) {
	rows, err := q.tx.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		  AND scheduled_at BETWEEN $2 AND $3
		  AND status <> 'CANCELLED'
		ORDER BY scheduled_at
	`, patientID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (q *txQueries) FindDoctorOverlap(ctx context.Context, doctorID uuid.UUID, start, end time.Time) ([]Appointment, error) {
	rows, err := q.tx.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		  AND scheduled_at BETWEEN $2 AND $3
		  AND status <> 'CANCELLED'
		ORDER BY scheduled_at
	`, doctorID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (q *txQueries) CountDoctorDay(ctx context.Context, doctorID uuid.UUID, dayStart, dayEnd time.Time) (int, error) {
	var count int
	err := q.tx.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM appointments
		WHERE doctor_id = $1
		  AND scheduled_at >= $2
		  AND scheduled_at < $3
		  AND status <> 'CANCELLED'
	`, doctorID, dayStart, dayEnd).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (q *txQueries) CreateAppointment(ctx context.Context, a *Appointment) (*Appointment, error) {
	row := q.tx.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, scheduled_at, status, reason, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), now(), now())
		RETURNING `+appointmentColumns+`
	`, a.ID, a.PatientID, a.DoctorID, a.ScheduledAt, a.Status, a.Reason, a.Notes)

	return scanAppointment(row)
}

func (q *txQueries) InsertEvent(ctx context.Context, ev Event) error {
	return insertEvent(ctx, q.tx, ev)
}

// Plain (non-locked) reads and lifecycle updates.

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListAppointments(ctx context.Context, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		ORDER BY scheduled_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY scheduled_at DESC
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *PgRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		ORDER BY scheduled_at DESC
		LIMIT $2 OFFSET $3
	`, doctorID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *PgRepository) SetStatus(ctx context.Context, id uuid.UUID, to Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns+`
	`, id, to)

	return scanAppointment(row)
}

func (r *PgRepository) CancelIfActive(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'CANCELLED',
		    updated_at = now()
		WHERE id = $1
		  AND status <> 'CANCELLED'
		RETURNING `+appointmentColumns+`
	`, id)

	return scanAppointment(row)
}

func (r *PgRepository) FindDueReminders(ctx context.Context, from, until time.Time, limit int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE scheduled_at >= $1
		  AND scheduled_at < $2
		  AND status IN ('SCHEDULED', 'CONFIRMED')
		  AND reminder_sent_at IS NULL
		ORDER BY scheduled_at
		LIMIT $3
	`, from, until, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *PgRepository) MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET reminder_sent_at = $2
		WHERE id = $1
	`, id, at)
	return err
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev Event) error {
	return insertEvent(ctx, r.pool, ev)
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertEvent(ctx context.Context, db execer, ev Event) error {
	_, err := db.Exec(ctx, `
		INSERT INTO appointment_events (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert appointment event: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
