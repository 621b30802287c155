package schedule

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Originnnn/appointment/internal/calendar"
	"github.com/Originnnn/appointment/internal/identity"
	"github.com/Originnnn/appointment/internal/store"
)

var (
	ErrIncompleteBlock  = errors.New("work date, start time and end time are required")
	ErrInvalidTimeRange = errors.New("end time must be after start time")
	ErrPastWorkDate     = errors.New("cannot add a working block in the past")
)

// BlockInput is the raw form a doctor submits.
type BlockInput struct {
	WorkDate  string
	StartTime string
	EndTime   string
}

// Manager owns a doctor's working-hour blocks. Overlap between blocks is
// allowed and never checked.
type Manager struct {
	repo   Repository
	clock  calendar.Clock
	logger *zap.Logger
}

func NewManager(repo Repository, clock calendar.Clock, logger *zap.Logger) *Manager {
	return &Manager{repo: repo, clock: clock, logger: logger}
}

func (m *Manager) CreateBlock(ctx context.Context, actor identity.Principal, in BlockInput) (*Block, error) {
	if !actor.IsDoctor() {
		return nil, identity.ErrForbidden
	}

	date, start, end, err := parseBlock(in)
	if err != nil {
		return nil, err
	}
	// Only new blocks are held to the past-date rule.
	if date.Before(m.clock.Today()) {
		return nil, ErrPastWorkDate
	}

	b := &Block{
		DoctorID:  actor.ID,
		WorkDate:  date,
		StartTime: start,
		EndTime:   end,
	}
	if err := m.repo.Create(ctx, b); err != nil {
		return nil, store.WriteFailure("create working block", err)
	}

	m.logger.Info("working block created",
		zap.String("schedule_id", b.ID.String()),
		zap.String("doctor_id", actor.ID.String()),
		zap.String("work_date", date.String()),
		zap.String("start_time", start.String()),
		zap.String("end_time", end.String()))

	return b, nil
}

func (m *Manager) UpdateBlock(ctx context.Context, actor identity.Principal, id uuid.UUID, in BlockInput) (*Block, error) {
	b, err := m.ownedBlock(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	date, start, end, err := parseBlock(in)
	if err != nil {
		return nil, err
	}

	b.WorkDate, b.StartTime, b.EndTime = date, start, end
	if err := m.repo.Update(ctx, b); err != nil {
		if errors.Is(err, ErrBlockNotFound) {
			return nil, err
		}
		return nil, store.WriteFailure("update working block", err)
	}

	m.logger.Info("working block updated", zap.String("schedule_id", id.String()))
	return b, nil
}

func (m *Manager) DeleteBlock(ctx context.Context, actor identity.Principal, id uuid.UUID) error {
	if _, err := m.ownedBlock(ctx, actor, id); err != nil {
		return err
	}

	if err := m.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrBlockNotFound) {
			return err
		}
		return store.WriteFailure("delete working block", err)
	}

	m.logger.Info("working block deleted", zap.String("schedule_id", id.String()))
	return nil
}

func (m *Manager) ListBlocks(ctx context.Context, doctorID uuid.UUID) ([]Block, error) {
	blocks, err := m.repo.ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, store.ReadFailure("list working blocks", err)
	}
	return blocks, nil
}

// BlocksForDate returns the doctor's blocks on one date in start order.
func (m *Manager) BlocksForDate(ctx context.Context, doctorID uuid.UUID, date calendar.Date) ([]Block, error) {
	blocks, err := m.repo.ListByDoctorAndDate(ctx, doctorID, date)
	if err != nil {
		return nil, store.ReadFailure("list working blocks for date", err)
	}
	return blocks, nil
}

func (m *Manager) ownedBlock(ctx context.Context, actor identity.Principal, id uuid.UUID) (*Block, error) {
	if !actor.IsDoctor() {
		return nil, identity.ErrForbidden
	}

	b, err := m.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrBlockNotFound) {
			return nil, err
		}
		return nil, store.ReadFailure("load working block", err)
	}
	if b.DoctorID != actor.ID {
		return nil, identity.ErrForbidden
	}
	return b, nil
}

func parseBlock(in BlockInput) (calendar.Date, calendar.TimeOfDay, calendar.TimeOfDay, error) {
	workDate := strings.TrimSpace(in.WorkDate)
	startTime := strings.TrimSpace(in.StartTime)
	endTime := strings.TrimSpace(in.EndTime)
	if workDate == "" || startTime == "" || endTime == "" {
		return "", "", "", ErrIncompleteBlock
	}

	date, err := calendar.ParseDate(workDate)
	if err != nil {
		return "", "", "", err
	}
	start, err := calendar.ParseTimeOfDay(startTime)
	if err != nil {
		return "", "", "", err
	}
	end, err := calendar.ParseTimeOfDay(endTime)
	if err != nil {
		return "", "", "", err
	}

	if end <= start {
		return "", "", "", ErrInvalidTimeRange
	}
	return date, start, end, nil
}
