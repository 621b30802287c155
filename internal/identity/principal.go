// Package identity describes the actor behind a request. A Principal is
// resolved and verified against the directory at the HTTP boundary and then
// handed explicitly to every service call that needs to know who is acting.
package identity

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

var (
	ErrForbidden   = errors.New("actor is not allowed to perform this action")
	ErrUnknownRole = errors.New("unknown role")
)

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RolePatient, RoleDoctor:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

// Principal is a verified actor. Patient and doctor ids live in separate id
// spaces, so identity is always the (Role, ID) pair.
type Principal struct {
	Role Role
	ID   uuid.UUID
	Name string
}

func (p Principal) IsPatient() bool { return p.Role == RolePatient }

func (p Principal) IsDoctor() bool { return p.Role == RoleDoctor }

// Is reports whether p is the given actor. Matching on ID alone is not enough.
func (p Principal) Is(role Role, id uuid.UUID) bool {
	return p.Role == role && p.ID == id
}
