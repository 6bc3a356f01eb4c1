package medrecord

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const recordColumns = `id, patient_id, doctor_id,
	COALESCE(diagnosis, ''), COALESCE(treatment, ''), COALESCE(medications, ''),
	COALESCE(notes, ''), COALESCE(allergies, ''), COALESCE(chronic_diseases, ''),
	recorded_at, updated_at`

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record

	err := row.Scan(
		&rec.ID,
		&rec.PatientID,
		&rec.DoctorID,
		&rec.Diagnosis,
		&rec.Treatment,
		&rec.Medications,
		&rec.Notes,
		&rec.Allergies,
		&rec.ChronicDiseases,
		&rec.RecordedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	return &rec, nil
}

func (r *PgRepository) Create(ctx context.Context, rec *Record) (*Record, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO medical_records (id, patient_id, doctor_id, diagnosis, treatment, medications, notes, allergies, chronic_diseases, recorded_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''), now(), now())
		RETURNING `+recordColumns+`
	`, id, rec.PatientID, rec.DoctorID, rec.Diagnosis, rec.Treatment, rec.Medications, rec.Notes, rec.Allergies, rec.ChronicDiseases)

	return scanRecord(row)
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+recordColumns+`
		FROM medical_records
		WHERE id = $1
	`, id)
	return scanRecord(row)
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Record, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+recordColumns+`
		FROM medical_records
		WHERE patient_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rec)
	}
	return result, rows.Err()
}

func (r *PgRepository) Update(ctx context.Context, rec *Record) (*Record, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE medical_records
		SET diagnosis = NULLIF($2, ''),
		    treatment = NULLIF($3, ''),
		    medications = NULLIF($4, ''),
		    notes = NULLIF($5, ''),
		    allergies = NULLIF($6, ''),
		    chronic_diseases = NULLIF($7, ''),
		    updated_at = now()
		WHERE id = $1
		RETURNING `+recordColumns+`
	`, rec.ID, rec.Diagnosis, rec.Treatment, rec.Medications, rec.Notes, rec.Allergies, rec.ChronicDiseases)

	return scanRecord(row)
}

func (r *PgRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM medical_records WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}
