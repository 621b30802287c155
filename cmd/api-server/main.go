package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Originnnn/appointment/internal/api"
	"github.com/Originnnn/appointment/internal/appointment"
	"github.com/Originnnn/appointment/internal/calendar"
	"github.com/Originnnn/appointment/internal/chat"
	"github.com/Originnnn/appointment/internal/config"
	"github.com/Originnnn/appointment/internal/db"
	"github.com/Originnnn/appointment/internal/directory"
	"github.com/Originnnn/appointment/internal/logger"
	redisclient "github.com/Originnnn/appointment/internal/redis"
	"github.com/Originnnn/appointment/internal/schedule"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("config load error: " + err.Error())
	}

	log := logger.Must(cfg.Env)
	defer func() { _ = log.Sync() }()

	log.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("status_transitions", string(cfg.Transitions)),
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

	if cfg.AutoMigrate {
		migrator, err := db.NewMigrator(pgPool, log)
		if err != nil {
			log.Fatal("migrator setup error", zap.Error(err))
		}
		err = migrator.Up(rootCtx)
		_ = migrator.Close()
		if err != nil {
			log.Fatal("migration error", zap.Error(err))
		}
	}

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(rootCtx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Fatal("redis connection error", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn("error closing redis", zap.Error(err))
		}
	}()
	log.Info("connected to Redis", zap.String("addr", cfg.RedisAddr))

	clock := calendar.SystemClock{Location: cfg.Location}

	dirSvc := directory.NewService(directory.NewPgRepository(pgPool), log.Named("directory"))
	schedules := schedule.NewManager(schedule.NewPgRepository(pgPool), clock, log.Named("schedule"))
	appts := appointment.NewService(
		appointment.NewPgRepository(pgPool),
		schedules,
		redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL),
		clock,
		cfg,
		log.Named("appointment"),
	)
	channel := chat.NewChannel(chat.NewPgRepository(pgPool), redisclient.NewChatBroker(rdb, log.Named("broker")), log.Named("chat"))

	router := api.NewRouter(api.RouterConfig{
		Directory:    dirSvc,
		Schedules:    schedules,
		Appointments: appts,
		Chat:         channel,
		Health:       api.NewHealthHandler(pgPool, api.RedisPinger(rdb), cfg.Env, version),
		Logger:       log.Named("http"),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-rootCtx.Done():
	case err := <-serveErr:
		if err != nil {
			log.Error("http server error", zap.Error(err))
		}
	}

	log.Info("shutting down api-server", zap.Duration("timeout", cfg.ShutdownTimeout))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
