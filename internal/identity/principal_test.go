package identity

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestParseRole(t *testing.T) {
	if r, err := ParseRole("doctor"); err != nil || r != RoleDoctor {
		t.Fatalf("ParseRole(doctor) = %q, %v", r, err)
	}
	if _, err := ParseRole("admin"); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("ParseRole(admin) err = %v, want ErrUnknownRole", err)
	}
}

func TestPrincipalIs_RequiresRoleAndID(t *testing.T) {
	id := uuid.New()
	p := Principal{Role: RolePatient, ID: id}

	if !p.Is(RolePatient, id) {
		t.Fatal("expected match on same role and id")
	}
	if p.Is(RoleDoctor, id) {
		t.Fatal("same id under a different role must not match")
	}
	if p.Is(RolePatient, uuid.New()) {
		t.Fatal("different id must not match")
	}
}
