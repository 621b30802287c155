package chat

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Originnnn/appointment/internal/identity"
)

var ErrInvalidConversation = errors.New("invalid conversation id")

// Message is immutable once stored. ID is assigned by the store and breaks
// ties between messages sharing a CreatedAt.
type Message struct {
	ID             int64
	ConversationID string
	SenderType     identity.Role
	SenderID       uuid.UUID
	SenderName     string
	Text           string
	CreatedAt      time.Time
}

// Before orders messages by CreatedAt, then ID.
func (m Message) Before(other Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID < other.ID
}

// ConversationID derives the conversation key for a patient and doctor pair.
// Both sides compute the same value so they share one channel.
func ConversationID(patientID, doctorID uuid.UUID) string {
	return fmt.Sprintf("patient:%s:doctor:%s", patientID, doctorID)
}

func ParseConversationID(s string) (patientID, doctorID uuid.UUID, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 4 || parts[0] != "patient" || parts[2] != "doctor" {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidConversation, s)
	}
	if patientID, err = uuid.Parse(parts[1]); err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: patient id: %w", ErrInvalidConversation, err)
	}
	if doctorID, err = uuid.Parse(parts[3]); err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: doctor id: %w", ErrInvalidConversation, err)
	}
	// Reject non-canonical spellings so one pair never maps to two channels.
	if ConversationID(patientID, doctorID) != s {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: %q is not canonical", ErrInvalidConversation, s)
	}
	return patientID, doctorID, nil
}

// Participant reports whether p is one of the two parties of the conversation.
func Participant(p identity.Principal, conversationID string) (bool, error) {
	patientID, doctorID, err := ParseConversationID(conversationID)
	if err != nil {
		return false, err
	}
	return p.Is(identity.RolePatient, patientID) || p.Is(identity.RoleDoctor, doctorID), nil
}
