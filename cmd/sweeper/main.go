package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Originnnn/appointment/internal/appointment"
	"github.com/Originnnn/appointment/internal/calendar"
	"github.com/Originnnn/appointment/internal/config"
	"github.com/Originnnn/appointment/internal/db"
	"github.com/Originnnn/appointment/internal/logger"
	redisclient "github.com/Originnnn/appointment/internal/redis"
	"github.com/Originnnn/appointment/internal/schedule"
)

// sweeper cancels pending appointments whose date has passed unconfirmed.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("config load error: " + err.Error())
	}

	log := logger.Must(cfg.Env).Named("sweeper")
	defer func() { _ = log.Sync() }()

	log.Info("sweeper starting up",
		zap.String("env", cfg.Env),
		zap.Duration("interval", cfg.WorkerInterval),
		zap.String("clinic_timezone", cfg.Location.String()))

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	log.Info("connected to Postgres")

	clock := calendar.SystemClock{Location: cfg.Location}
	schedules := schedule.NewManager(schedule.NewPgRepository(pgPool), clock, log)
	// The sweeper never books, so it takes no slot lock.
	svc := appointment.NewService(appointment.NewPgRepository(pgPool), schedules, noLock{}, clock, cfg, log)

	// Run once at startup
	runOnce(rootCtx, svc, log)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info("shutdown signal received, stopping sweeper")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, log)
		}
	}
}

func runOnce(ctx context.Context, svc *appointment.Service, log *zap.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	n, err := svc.CancelStalePending(runCtx)
	if err != nil {
		log.Error("sweep failed", zap.Error(err))
		return
	}
	log.Info("sweep complete", zap.Int("cancelled", n), zap.Duration("took", time.Since(start)))
}

type noLock struct{}

func (noLock) WithSlotLock(context.Context, string, func(context.Context) error) error {
	return errors.New("sweeper does not book appointments")
}

var _ redisclient.Locker = noLock{}
