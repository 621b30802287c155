package appointment

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/Originnnn/appointment/internal/calendar"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	// ErrActiveSlotConflict is returned when a write would leave two active
	// appointments on the same doctor, date and time.
	ErrActiveSlotConflict = errors.New("slot already has an active appointment")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// For conflict checks
	ListActiveForSlot(ctx context.Context, doctorID uuid.UUID, date calendar.Date, at calendar.TimeOfDay) ([]Appointment, error)

	// Creation and updates
	CreatePending(ctx context.Context, a *Appointment) error
	// UpdateStatus moves id from -> to and returns ErrAppointmentNotFound when
	// the row is missing or no longer in from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)
	// ForceStatus writes to regardless of the current status.
	ForceStatus(ctx context.Context, id uuid.UUID, to Status) (*Appointment, error)
	// CompleteWithRecord moves a confirmed appointment to completed and stores
	// its medical record in one transaction.
	CompleteWithRecord(ctx context.Context, id uuid.UUID, rec *MedicalRecord) (*Appointment, error)

	// Dashboards
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]AppointmentDetail, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]AppointmentDetail, error)
	ListRecordsByPatient(ctx context.Context, patientID uuid.UUID) ([]PatientRecord, error)

	// Sweeper
	FindPendingBefore(ctx context.Context, date calendar.Date) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
