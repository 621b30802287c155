package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Originnnn/appointment/internal/calendar"
	"github.com/Originnnn/appointment/internal/db"
)

const activeSlotIndex = "appointments_active_slot_uniq"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

const appointmentColumns = `appointment_id, patient_id, doctor_id, appointment_date, appointment_time, status, note, created_at, updated_at`

const detailSelect = `
	SELECT a.appointment_id, a.patient_id, a.doctor_id, a.appointment_date, a.appointment_time,
	       a.status, a.note, a.created_at, a.updated_at,
	       p.full_name, p.phone, d.full_name, d.specialty
	FROM appointments a
	JOIN patients p ON p.patient_id = a.patient_id
	JOIN doctors d ON d.doctor_id = a.doctor_id`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.Date,
		&a.Time,
		&a.Status,
		&a.Note,
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

func scanDetail(row pgx.Row, extra ...any) (*AppointmentDetail, error) {
	var d AppointmentDetail

	dest := []any{
		&d.ID,
		&d.PatientID,
		&d.DoctorID,
		&d.Date,
		&d.Time,
		&d.Status,
		&d.Note,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.PatientName,
		&d.PatientPhone,
		&d.DoctorName,
		&d.DoctorSpecialty,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	return &d, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func collectDetails(rows pgx.Rows) ([]AppointmentDetail, error) {
	defer rows.Close()

	var result []AppointmentDetail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func mapWriteErr(err error) error {
	if db.IsUniqueViolation(err, activeSlotIndex) {
		return ErrActiveSlotConflict
	}
	return err
}

func statusStrings(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// Interface methods

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE appointment_id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListActiveForSlot(ctx context.Context, doctorID uuid.UUID, date calendar.Date, at calendar.TimeOfDay) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		  AND appointment_date = $2
		  AND appointment_time = $3
		  AND status = ANY($4)
	`, doctorID, string(date), string(at), statusStrings(ActiveStatuses))
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) CreatePending(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (appointment_id, patient_id, doctor_id, appointment_date, appointment_time, status, note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'pending', $6, now(), now())
		RETURNING `+appointmentColumns+`
	`, a.ID, a.PatientID, a.DoctorID, string(a.Date), string(a.Time), a.Note)

	created, err := scanAppointment(row)
	if err != nil {
		return mapWriteErr(err)
	}
	*a = *created
	return nil
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE appointment_id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, string(to), string(from))

	a, err := scanAppointment(row)
	if err != nil {
		return nil, mapWriteErr(err)
	}
	return a, nil
}

func (r *PgRepository) ForceStatus(ctx context.Context, id uuid.UUID, to Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE appointment_id = $1
		RETURNING `+appointmentColumns+`
	`, id, string(to))

	a, err := scanAppointment(row)
	if err != nil {
		return nil, mapWriteErr(err)
	}
	return a, nil
}

func (r *PgRepository) CompleteWithRecord(ctx context.Context, id uuid.UUID, rec *MedicalRecord) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'completed',
		    updated_at = now()
		WHERE appointment_id = $1
		  AND status = 'confirmed'
		RETURNING `+appointmentColumns+`
	`, id)
	a, err := scanAppointment(row)
	if err != nil {
		return nil, err
	}

	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	rec.AppointmentID = id

	err = tx.QueryRow(ctx, `
		INSERT INTO medical_records (record_id, appointment_id, diagnosis, treatment, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING created_at
	`, rec.ID, rec.AppointmentID, rec.Diagnosis, rec.Treatment).Scan(&rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert medical record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return a, nil
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]AppointmentDetail, error) {
	rows, err := r.pool.Query(ctx, detailSelect+`
		WHERE a.patient_id = $1
		ORDER BY a.appointment_date, a.appointment_time
	`, patientID)
	if err != nil {
		return nil, err
	}
	return collectDetails(rows)
}

func (r *PgRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]AppointmentDetail, error) {
	rows, err := r.pool.Query(ctx, detailSelect+`
		WHERE a.doctor_id = $1
		ORDER BY a.appointment_date, a.appointment_time
	`, doctorID)
	if err != nil {
		return nil, err
	}
	return collectDetails(rows)
}

func (r *PgRepository) ListRecordsByPatient(ctx context.Context, patientID uuid.UUID) ([]PatientRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.appointment_id, a.patient_id, a.doctor_id, a.appointment_date, a.appointment_time,
		       a.status, a.note, a.created_at, a.updated_at,
		       p.full_name, p.phone, d.full_name, d.specialty,
		       m.record_id, m.diagnosis, m.treatment, m.created_at
		FROM appointments a
		JOIN patients p ON p.patient_id = a.patient_id
		JOIN doctors d ON d.doctor_id = a.doctor_id
		JOIN medical_records m ON m.appointment_id = a.appointment_id
		WHERE a.patient_id = $1
		  AND a.status = 'completed'
		ORDER BY a.appointment_date DESC, a.appointment_time DESC
	`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []PatientRecord
	for rows.Next() {
		var rec MedicalRecord
		d, err := scanDetail(rows, &rec.ID, &rec.Diagnosis, &rec.Treatment, &rec.CreatedAt)
		if err != nil {
			return nil, err
		}
		rec.AppointmentID = d.ID
		result = append(result, PatientRecord{AppointmentDetail: *d, Record: rec})
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) FindPendingBefore(ctx context.Context, date calendar.Date) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'pending'
		  AND appointment_date < $1
	`, string(date))
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
