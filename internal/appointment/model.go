package appointment

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Originnnn/appointment/internal/calendar"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// ActiveStatuses are the statuses that occupy a doctor's slot.
var ActiveStatuses = []Status{StatusPending, StatusConfirmed}

// transitions lists the legal targets per source status. Cancelled and
// completed have no entry; they are terminal.
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCancelled, StatusCompleted},
}

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return st, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
}

func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusConfirmed
}

func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// CanTransition reports whether from -> to is an edge of the status machine.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Appointment struct {
	ID        uuid.UUID
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	Date      calendar.Date
	Time      calendar.TimeOfDay
	Status    Status
	Note      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type MedicalRecord struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	Diagnosis     string
	Treatment     string
	CreatedAt     time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// AppointmentDetail is an appointment joined with the counterpart's
// display fields, as shown on dashboards.
type AppointmentDetail struct {
	Appointment
	PatientName     string
	PatientPhone    *string
	DoctorName      string
	DoctorSpecialty *string
}

// PatientRecord is a completed appointment with its medical record.
type PatientRecord struct {
	AppointmentDetail
	Record MedicalRecord
}
