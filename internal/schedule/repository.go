package schedule

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/Originnnn/appointment/internal/calendar"
)

var ErrBlockNotFound = errors.New("working schedule block not found")

// Repository contains all DB interactions needed by the schedule manager.
type Repository interface {
	Create(ctx context.Context, b *Block) error
	GetByID(ctx context.Context, id uuid.UUID) (*Block, error)
	Update(ctx context.Context, b *Block) error
	Delete(ctx context.Context, id uuid.UUID) error

	// Ordered by work_date then start_time.
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Block, error)
	ListByDoctorAndDate(ctx context.Context, doctorID uuid.UUID, date calendar.Date) ([]Block, error)
}
