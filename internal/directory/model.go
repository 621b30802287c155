package directory

import (
	"time"

	"github.com/google/uuid"
)

type Patient struct {
	ID        uuid.UUID
	FullName  string
	Phone     *string
	Email     *string
	CreatedAt time.Time
}

type Doctor struct {
	ID          uuid.UUID
	FullName    string
	Specialty   *string
	Phone       *string
	Description *string
	CreatedAt   time.Time
}
