package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Originnnn/appointment/internal/identity"
	"github.com/Originnnn/appointment/internal/store"
)

var ErrUnknownActor = errors.New("actor does not exist")

type Service struct {
	repo   Repository
	logger *zap.Logger
}

func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// ListDoctors never fails: the doctor list is decoration for booking
// forms, so a read error degrades to an empty list.
func (s *Service) ListDoctors(ctx context.Context) []Doctor {
	doctors, err := s.repo.ListDoctors(ctx)
	if err != nil {
		s.logger.Warn("list doctors failed, returning empty directory", zap.Error(err))
		return []Doctor{}
	}
	if doctors == nil {
		return []Doctor{}
	}
	return doctors
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, err := s.repo.GetDoctorByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, store.ReadFailure("load doctor", err)
	}
	return d, nil
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := s.repo.GetPatientByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, store.ReadFailure("load patient", err)
	}
	return p, nil
}

// Resolve verifies that the claimed actor exists and returns it as a
// Principal carrying its display name.
func (s *Service) Resolve(ctx context.Context, role identity.Role, id uuid.UUID) (identity.Principal, error) {
	switch role {
	case identity.RolePatient:
		p, err := s.GetPatient(ctx, id)
		if err != nil {
			return identity.Principal{}, resolveErr(err, ErrPatientNotFound)
		}
		return identity.Principal{Role: role, ID: p.ID, Name: p.FullName}, nil
	case identity.RoleDoctor:
		d, err := s.GetDoctor(ctx, id)
		if err != nil {
			return identity.Principal{}, resolveErr(err, ErrDoctorNotFound)
		}
		return identity.Principal{Role: role, ID: d.ID, Name: d.FullName}, nil
	default:
		return identity.Principal{}, fmt.Errorf("%w: %q", identity.ErrUnknownRole, role)
	}
}

func resolveErr(err, notFound error) error {
	if errors.Is(err, notFound) {
		return fmt.Errorf("%w: %w", ErrUnknownActor, err)
	}
	return err
}
