package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Originnnn/appointment/internal/calendar"
	"github.com/Originnnn/appointment/internal/config"
	"github.com/Originnnn/appointment/internal/identity"
	redisclient "github.com/Originnnn/appointment/internal/redis"
	"github.com/Originnnn/appointment/internal/schedule"
	"github.com/Originnnn/appointment/internal/store"
)

const (
	EventAppointmentBooked        = "APPOINTMENT_BOOKED"
	EventAppointmentStatusChanged = "APPOINTMENT_STATUS_CHANGED"
	EventAppointmentCompleted     = "APPOINTMENT_COMPLETED"
	EventAppointmentStaleCancel   = "APPOINTMENT_STALE_CANCELLED"
)

var (
	ErrIncompleteRequest   = errors.New("doctor, date and time are required")
	ErrMalformedRequest    = errors.New("booking request is malformed")
	ErrPastDate            = errors.New("cannot book an appointment in the past")
	ErrDoctorNotWorking    = errors.New("doctor is not working on this date")
	ErrTimeOutsideSchedule = errors.New("time is outside the doctor's working hours")
	ErrSlotAlreadyTaken    = errors.New("slot is already booked, please choose another time")
	ErrSlotBeingBooked     = fmt.Errorf("%w: another booking for this slot is in progress", ErrSlotAlreadyTaken)

	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrUnknownStatus           = errors.New("unknown appointment status")
	ErrMissingDiagnosis        = errors.New("diagnosis is required")
)

// BlockSource supplies a doctor's working-hour blocks for one date.
type BlockSource interface {
	BlocksForDate(ctx context.Context, doctorID uuid.UUID, date calendar.Date) ([]schedule.Block, error)
}

// BookingRequest is the raw form a patient submits.
type BookingRequest struct {
	DoctorID string
	Date     string
	Time     string
	Note     string
}

type Service struct {
	repo   Repository
	blocks BlockSource
	locker redisclient.Locker
	clock  calendar.Clock
	mode   config.TransitionMode
	logger *zap.Logger
}

func NewService(repo Repository, blocks BlockSource, locker redisclient.Locker, clock calendar.Clock, cfg config.Config, logger *zap.Logger) *Service {
	mode := cfg.Transitions
	if mode == "" {
		mode = config.TransitionsStrict
	}
	return &Service{
		repo:   repo,
		blocks: blocks,
		locker: locker,
		clock:  clock,
		mode:   mode,
		logger: logger,
	}
}

// BookAppointment runs the booking checks in order and stops at the first
// failure: incomplete request, past date, doctor not working, time outside
// every block, slot already taken. Only then is a pending appointment
// inserted.
//
// The conflict check and the insert run under a Redis slot lock, and the
// appointments table carries a partial unique index over active rows, so two
// concurrent bookers of one slot cannot both succeed. Either guard surfaces
// as ErrSlotAlreadyTaken.
func (s *Service) BookAppointment(ctx context.Context, actor identity.Principal, req BookingRequest) (*Appointment, error) {
	if !actor.IsPatient() {
		return nil, identity.ErrForbidden
	}

	doctorID, date, at, err := s.parseBooking(req)
	if err != nil {
		return nil, err
	}

	blocks, err := s.blocks.BlocksForDate(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, ErrDoctorNotWorking
	}
	if !schedule.IsBookable(blocks, at) {
		return nil, ErrTimeOutsideSchedule
	}

	var created *Appointment

	critical := func(lockCtx context.Context) error {
		existing, err := s.repo.ListActiveForSlot(lockCtx, doctorID, date, at)
		if err != nil {
			return store.ReadFailure("check slot conflict", err)
		}
		if len(existing) > 0 {
			return ErrSlotAlreadyTaken
		}

		appt := &Appointment{
			PatientID: actor.ID,
			DoctorID:  doctorID,
			Date:      date,
			Time:      at,
			Status:    StatusPending,
			Note:      req.Note,
		}
		if err := s.repo.CreatePending(lockCtx, appt); err != nil {
			if errors.Is(err, ErrActiveSlotConflict) {
				return ErrSlotAlreadyTaken
			}
			return store.WriteFailure("create appointment", err)
		}

		created = appt
		s.logEvent(lockCtx, appt.ID, EventAppointmentBooked, map[string]any{
			"patient_id": actor.ID.String(),
			"doctor_id":  doctorID.String(),
			"date":       date.String(),
			"time":       at.String(),
		})
		return nil
	}

	err = s.locker.WithSlotLock(ctx, redisclient.SlotKey(doctorID, date.String(), at.String()), critical)
	switch {
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		return nil, ErrSlotBeingBooked
	case errors.Is(err, redisclient.ErrLockUnavailable):
		// The unique index still holds the invariant without the lock.
		s.logger.Warn("slot lock unavailable, booking without it", zap.Error(err))
		err = critical(ctx)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("appointment booked",
		zap.String("appointment_id", created.ID.String()),
		zap.String("patient_id", actor.ID.String()),
		zap.String("doctor_id", doctorID.String()),
		zap.String("date", date.String()),
		zap.String("time", at.String()))

	return created, nil
}

// parseBooking validates the raw request. The past-date rule is checked as
// soon as the date is known, before the other fields are parsed.
func (s *Service) parseBooking(req BookingRequest) (uuid.UUID, calendar.Date, calendar.TimeOfDay, error) {
	doctorRaw := strings.TrimSpace(req.DoctorID)
	dateRaw := strings.TrimSpace(req.Date)
	timeRaw := strings.TrimSpace(req.Time)
	if doctorRaw == "" || dateRaw == "" || timeRaw == "" {
		return uuid.Nil, "", "", ErrIncompleteRequest
	}

	date, err := calendar.ParseDate(dateRaw)
	if err != nil {
		return uuid.Nil, "", "", fmt.Errorf("%w: %w", ErrMalformedRequest, err)
	}
	if date.Before(s.clock.Today()) {
		return uuid.Nil, "", "", ErrPastDate
	}

	at, err := calendar.ParseTimeOfDay(timeRaw)
	if err != nil {
		return uuid.Nil, "", "", fmt.Errorf("%w: %w", ErrMalformedRequest, err)
	}
	doctorID, err := uuid.Parse(doctorRaw)
	if err != nil {
		return uuid.Nil, "", "", fmt.Errorf("%w: doctor id: %w", ErrMalformedRequest, err)
	}

	return doctorID, date, at, nil
}

// SetAppointmentStatus moves an appointment to a new status on behalf of one
// of its stakeholders. Only the doctor confirms; either side may cancel a
// pending appointment, only the patient a confirmed one. In strict mode the
// source status must allow the move; in permissive mode the status is
// written as requested, matching clients that never checked the current
// state. Completion always goes through CompleteAppointment so the medical
// record is written with it.
func (s *Service) SetAppointmentStatus(ctx context.Context, actor identity.Principal, id uuid.UUID, to Status) (*Appointment, error) {
	if _, err := ParseStatus(string(to)); err != nil {
		return nil, err
	}
	if to == StatusCompleted {
		return nil, fmt.Errorf("%w: completing requires a medical record", ErrInvalidStatusTransition)
	}

	appt, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeStatus(actor, appt, to, s.mode == config.TransitionsStrict); err != nil {
		return nil, err
	}

	var updated *Appointment
	if s.mode == config.TransitionsPermissive {
		updated, err = s.repo.ForceStatus(ctx, id, to)
	} else {
		if !CanTransition(appt.Status, to) {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, appt.Status, to)
		}
		updated, err = s.repo.UpdateStatus(ctx, id, appt.Status, to)
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, fmt.Errorf("%w: appointment changed while updating", ErrInvalidStatusTransition)
		}
	}
	if err != nil {
		if errors.Is(err, ErrActiveSlotConflict) {
			return nil, ErrSlotAlreadyTaken
		}
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, store.WriteFailure("update appointment status", err)
	}

	s.logEvent(ctx, id, EventAppointmentStatusChanged, map[string]any{
		"from":  string(appt.Status),
		"to":    string(to),
		"actor": string(actor.Role),
	})
	s.logger.Info("appointment status changed",
		zap.String("appointment_id", id.String()),
		zap.String("from", string(appt.Status)),
		zap.String("to", string(to)),
		zap.String("actor_role", string(actor.Role)))

	return updated, nil
}

func (s *Service) ConfirmAppointment(ctx context.Context, actor identity.Principal, id uuid.UUID) (*Appointment, error) {
	return s.SetAppointmentStatus(ctx, actor, id, StatusConfirmed)
}

func (s *Service) CancelAppointment(ctx context.Context, actor identity.Principal, id uuid.UUID) (*Appointment, error) {
	return s.SetAppointmentStatus(ctx, actor, id, StatusCancelled)
}

// CompleteAppointment records the doctor's diagnosis and treatment and
// closes a confirmed appointment.
func (s *Service) CompleteAppointment(ctx context.Context, actor identity.Principal, id uuid.UUID, diagnosis, treatment string) (*Appointment, *MedicalRecord, error) {
	diagnosis = strings.TrimSpace(diagnosis)
	if diagnosis == "" {
		return nil, nil, ErrMissingDiagnosis
	}

	appt, err := s.load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !actor.Is(identity.RoleDoctor, appt.DoctorID) {
		return nil, nil, identity.ErrForbidden
	}
	if appt.Status != StatusConfirmed {
		return nil, nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, appt.Status, StatusCompleted)
	}

	rec := &MedicalRecord{Diagnosis: diagnosis, Treatment: strings.TrimSpace(treatment)}
	updated, err := s.repo.CompleteWithRecord(ctx, id, rec)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, nil, fmt.Errorf("%w: appointment changed while completing", ErrInvalidStatusTransition)
		}
		return nil, nil, store.WriteFailure("complete appointment", err)
	}

	s.logEvent(ctx, id, EventAppointmentCompleted, map[string]any{
		"record_id": rec.ID.String(),
	})

	return updated, rec, nil
}

// GetAppointment returns an appointment to one of its two stakeholders.
func (s *Service) GetAppointment(ctx context.Context, actor identity.Principal, id uuid.UUID) (*Appointment, error) {
	appt, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isStakeholder(actor, appt) {
		return nil, identity.ErrForbidden
	}
	return appt, nil
}

// ListAppointments returns the actor's own appointments ordered by date and time.
func (s *Service) ListAppointments(ctx context.Context, actor identity.Principal) ([]AppointmentDetail, error) {
	var (
		list []AppointmentDetail
		err  error
	)
	switch actor.Role {
	case identity.RolePatient:
		list, err = s.repo.ListByPatient(ctx, actor.ID)
	case identity.RoleDoctor:
		list, err = s.repo.ListByDoctor(ctx, actor.ID)
	default:
		return nil, identity.ErrForbidden
	}
	if err != nil {
		return nil, store.ReadFailure("list appointments", err)
	}
	if list == nil {
		list = []AppointmentDetail{}
	}
	return list, nil
}

// MedicalRecords lists a patient's completed appointments that carry a
// record, newest first.
func (s *Service) MedicalRecords(ctx context.Context, actor identity.Principal) ([]PatientRecord, error) {
	if !actor.IsPatient() {
		return nil, identity.ErrForbidden
	}
	records, err := s.repo.ListRecordsByPatient(ctx, actor.ID)
	if err != nil {
		return nil, store.ReadFailure("list medical records", err)
	}
	if records == nil {
		records = []PatientRecord{}
	}
	return records, nil
}

// CancelStalePending cancels pending appointments whose date has already
// passed without the doctor confirming. It is called by the sweeper.
func (s *Service) CancelStalePending(ctx context.Context) (int, error) {
	today := s.clock.Today()
	stale, err := s.repo.FindPendingBefore(ctx, today)
	if err != nil {
		return 0, store.ReadFailure("find stale pending appointments", err)
	}

	cancelled := 0
	for _, appt := range stale {
		_, err := s.repo.UpdateStatus(ctx, appt.ID, StatusPending, StatusCancelled)
		if err != nil {
			if !errors.Is(err, ErrAppointmentNotFound) {
				s.logger.Warn("failed to cancel stale appointment",
					zap.String("appointment_id", appt.ID.String()),
					zap.Error(err))
			}
			continue
		}
		cancelled++
		s.logEvent(ctx, appt.ID, EventAppointmentStaleCancel, map[string]any{
			"date":  appt.Date.String(),
			"today": today.String(),
		})
	}

	return cancelled, nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, store.ReadFailure("load appointment", err)
	}
	return appt, nil
}

func isStakeholder(actor identity.Principal, appt *Appointment) bool {
	return actor.Is(identity.RolePatient, appt.PatientID) || actor.Is(identity.RoleDoctor, appt.DoctorID)
}

// authorizeStatus checks who may request a move to. In strict mode a
// confirmed appointment can only be cancelled by its patient.
func authorizeStatus(actor identity.Principal, appt *Appointment, to Status, strict bool) error {
	if !isStakeholder(actor, appt) {
		return identity.ErrForbidden
	}
	if to != StatusCancelled && !actor.IsDoctor() {
		return identity.ErrForbidden
	}
	if strict && to == StatusCancelled && appt.Status == StatusConfirmed && !actor.IsPatient() {
		return identity.ErrForbidden
	}
	return nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("failed to marshal event payload", zap.String("event_type", eventType), zap.Error(err))
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Warn("failed to insert event log",
			zap.String("event_type", eventType),
			zap.String("appointment_id", appointmentID.String()),
			zap.Error(err))
	}
}
