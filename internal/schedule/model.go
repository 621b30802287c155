package schedule

import (
	"time"

	"github.com/google/uuid"

	"github.com/Originnnn/appointment/internal/calendar"
)

// Block is one working-hour window a doctor declared for a date. Blocks of
// the same doctor and date may overlap.
type Block struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	WorkDate  calendar.Date
	StartTime calendar.TimeOfDay
	EndTime   calendar.TimeOfDay
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Contains reports whether t falls inside the block. Both ends are
// inclusive: a booking exactly at EndTime is accepted.
func (b Block) Contains(t calendar.TimeOfDay) bool {
	return b.StartTime <= t && t <= b.EndTime
}

// IsBookable reports whether any block for the date contains t. No blocks
// means the doctor is not working that date.
func IsBookable(blocks []Block, t calendar.TimeOfDay) bool {
	for _, b := range blocks {
		if b.Contains(t) {
			return true
		}
	}
	return false
}
