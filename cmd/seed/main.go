package main

import (
	"context"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Originnnn/appointment/internal/calendar"
	"github.com/Originnnn/appointment/internal/config"
	"github.com/Originnnn/appointment/internal/db"
	"github.com/Originnnn/appointment/internal/logger"
)

const (
	doctorCount   = 20
	patientCount  = 2000
	scheduleDays  = 14
	patientsBatch = 500
)

var specialties = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

// Two blocks per working day; they leave a lunch gap.
var dailyBlocks = [][2]string{
	{"08:00", "11:30"},
	{"13:30", "17:00"},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("config load error: " + err.Error())
	}

	log := logger.Must(cfg.Env).Named("seed")
	defer func() { _ = log.Sync() }()
	log.Info("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	if cfg.AutoMigrate {
		migrator, err := db.NewMigrator(pool, log)
		if err != nil {
			log.Fatal("migrator setup", zap.Error(err))
		}
		err = migrator.Up(context.Background())
		_ = migrator.Close()
		if err != nil {
			log.Fatal("migrate", zap.Error(err))
		}
	}

	faker := gofakeit.New(uint64(time.Now().UnixNano()))
	today := calendar.SystemClock{Location: cfg.Location}.Today()

	doctorIDs, err := seedDoctors(context.Background(), pool, faker, doctorCount, log)
	if err != nil {
		log.Fatal("seed doctors", zap.Error(err))
	}
	if err := seedSchedules(context.Background(), pool, faker, doctorIDs, today, log); err != nil {
		log.Fatal("seed schedules", zap.Error(err))
	}
	if err := seedPatients(context.Background(), pool, faker, patientCount, log); err != nil {
		log.Fatal("seed patients", zap.Error(err))
	}

	log.Info("seed complete", zap.String("sample_doctor_id", doctorIDs[0].String()))
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, count int, log *zap.Logger) ([]uuid.UUID, error) {
	log.Info("seeding doctors", zap.Int("count", count))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		spec := specialties[faker.Number(0, len(specialties)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO doctors (doctor_id, full_name, specialty, phone, description)
			VALUES ($1, $2, $3, $4, $5)
		`, id, "Dr. "+faker.Name(), spec, faker.Phone(), faker.Sentence(12))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Info("doctors seeded")
	return ids, nil
}

// seedSchedules gives every doctor blocks on most of the next scheduleDays
// days. Some days are skipped so "doctor not working" is reachable.
func seedSchedules(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, doctorIDs []uuid.UUID, today calendar.Date, log *zap.Logger) error {
	log.Info("seeding working schedules", zap.Int("doctors", len(doctorIDs)), zap.Int("days", scheduleDays))

	batch := &pgx.Batch{}
	for _, doctorID := range doctorIDs {
		for d := 0; d < scheduleDays; d++ {
			if faker.Number(0, 6) == 0 {
				continue
			}
			date := today.AddDays(d)
			for _, b := range dailyBlocks {
				batch.Queue(`
					INSERT INTO working_schedules (schedule_id, doctor_id, work_date, start_time, end_time)
					VALUES ($1, $2, $3, $4, $5)
				`, uuid.New(), doctorID, date.String(), b[0], b[1])
			}
		}
	}

	if err := pool.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}

	log.Info("working schedules seeded", zap.Int("blocks", batch.Len()))
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, count int, log *zap.Logger) error {
	log.Info("seeding patients", zap.Int("count", count))

	for offset := 0; offset < count; offset += patientsBatch {
		end := offset + patientsBatch
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO patients (patient_id, full_name, phone, email)
				VALUES ($1, $2, $3, $4)
			`, uuid.New(), faker.Name(), faker.Phone(), faker.Email())
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Info("patients seeded", zap.Int("done", end), zap.Int("total", count))
	}

	return nil
}
