package schedule

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Originnnn/appointment/internal/calendar"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const blockColumns = `schedule_id, doctor_id, work_date, start_time, end_time, created_at, updated_at`

func scanBlock(row pgx.Row) (*Block, error) {
	var b Block
	err := row.Scan(
		&b.ID,
		&b.DoctorID,
		&b.WorkDate,
		&b.StartTime,
		&b.EndTime,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBlockNotFound
		}
		return nil, err
	}
	return &b, nil
}

func collectBlocks(rows pgx.Rows) ([]Block, error) {
	defer rows.Close()

	var result []Block
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) Create(ctx context.Context, b *Block) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}

	return r.pool.QueryRow(ctx, `
		INSERT INTO working_schedules (schedule_id, doctor_id, work_date, start_time, end_time, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		RETURNING created_at, updated_at
	`, b.ID, b.DoctorID, string(b.WorkDate), string(b.StartTime), string(b.EndTime)).Scan(&b.CreatedAt, &b.UpdatedAt)
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Block, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+blockColumns+`
		FROM working_schedules
		WHERE schedule_id = $1
	`, id)
	return scanBlock(row)
}

func (r *PgRepository) Update(ctx context.Context, b *Block) error {
	err := r.pool.QueryRow(ctx, `
		UPDATE working_schedules
		SET work_date = $2,
		    start_time = $3,
		    end_time = $4,
		    updated_at = now()
		WHERE schedule_id = $1
		RETURNING updated_at
	`, b.ID, string(b.WorkDate), string(b.StartTime), string(b.EndTime)).Scan(&b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrBlockNotFound
	}
	return err
}

func (r *PgRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM working_schedules WHERE schedule_id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBlockNotFound
	}
	return nil
}

func (r *PgRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Block, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+blockColumns+`
		FROM working_schedules
		WHERE doctor_id = $1
		ORDER BY work_date, start_time
	`, doctorID)
	if err != nil {
		return nil, err
	}
	return collectBlocks(rows)
}

func (r *PgRepository) ListByDoctorAndDate(ctx context.Context, doctorID uuid.UUID, date calendar.Date) ([]Block, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+blockColumns+`
		FROM working_schedules
		WHERE doctor_id = $1 AND work_date = $2
		ORDER BY start_time
	`, doctorID, string(date))
	if err != nil {
		return nil, err
	}
	return collectBlocks(rows)
}
