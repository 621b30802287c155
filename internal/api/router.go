package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Originnnn/appointment/internal/appointment"
	"github.com/Originnnn/appointment/internal/chat"
	"github.com/Originnnn/appointment/internal/directory"
	"github.com/Originnnn/appointment/internal/identity"
	"github.com/Originnnn/appointment/internal/schedule"
)

type DirectoryService interface {
	ListDoctors(ctx context.Context) []directory.Doctor
	GetDoctor(ctx context.Context, id uuid.UUID) (*directory.Doctor, error)
	Resolve(ctx context.Context, role identity.Role, id uuid.UUID) (identity.Principal, error)
}

type ScheduleService interface {
	CreateBlock(ctx context.Context, actor identity.Principal, in schedule.BlockInput) (*schedule.Block, error)
	UpdateBlock(ctx context.Context, actor identity.Principal, id uuid.UUID, in schedule.BlockInput) (*schedule.Block, error)
	DeleteBlock(ctx context.Context, actor identity.Principal, id uuid.UUID) error
	ListBlocks(ctx context.Context, doctorID uuid.UUID) ([]schedule.Block, error)
}

type AppointmentService interface {
	BookAppointment(ctx context.Context, actor identity.Principal, req appointment.BookingRequest) (*appointment.Appointment, error)
	SetAppointmentStatus(ctx context.Context, actor identity.Principal, id uuid.UUID, to appointment.Status) (*appointment.Appointment, error)
	CompleteAppointment(ctx context.Context, actor identity.Principal, id uuid.UUID, diagnosis, treatment string) (*appointment.Appointment, *appointment.MedicalRecord, error)
	GetAppointment(ctx context.Context, actor identity.Principal, id uuid.UUID) (*appointment.Appointment, error)
	ListAppointments(ctx context.Context, actor identity.Principal) ([]appointment.AppointmentDetail, error)
	MedicalRecords(ctx context.Context, actor identity.Principal) ([]appointment.PatientRecord, error)
}

type RouterConfig struct {
	Directory    DirectoryService
	Schedules    ScheduleService
	Appointments AppointmentService
	Chat         *chat.Channel
	Health       *HealthHandler
	Logger       *zap.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.Liveness)
		r.Get("/health/ready", cfg.Health.Readiness)
	}

	// Public directory, used by the booking form.
	r.Get("/doctors", listDoctorsHandler(cfg.Directory))
	r.Get("/doctors/{id}", getDoctorHandler(cfg.Directory))
	r.Get("/doctors/{id}/schedules", listBlocksHandler(cfg.Schedules))

	r.Group(func(r chi.Router) {
		r.Use(ActorMiddleware(cfg.Directory, cfg.Logger))

		r.Post("/schedules", createBlockHandler(cfg.Schedules))
		r.Put("/schedules/{id}", updateBlockHandler(cfg.Schedules))
		r.Delete("/schedules/{id}", deleteBlockHandler(cfg.Schedules))

		r.Post("/appointments", bookAppointmentHandler(cfg.Appointments))
		r.Get("/appointments", listAppointmentsHandler(cfg.Appointments))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Appointments))
		r.Patch("/appointments/{id}/status", setStatusHandler(cfg.Appointments))
		r.Post("/appointments/{id}/complete", completeAppointmentHandler(cfg.Appointments))

		r.Get("/medical-records", medicalRecordsHandler(cfg.Appointments))

		r.Get("/conversations/{id}/messages", historyHandler(cfg.Chat))
		r.Post("/conversations/{id}/messages", postMessageHandler(cfg.Chat))
		r.Get("/conversations/{id}/ws", chatSocketHandler(cfg.Chat, cfg.Logger))
	})

	return r
}
