package repository

import (
	"context"

	"github.com/curaview/patient-portal/internal/domain"
)

type PatientRepository interface {
	Create(ctx context.Context, p *domain.Patient) (*domain.Patient, error)
	FindByID(ctx context.Context, id string) (*domain.Patient, error)
	FindByEmail(ctx context.Context, email string) (*domain.Patient, error)
	// UpdateProfile writes the non-credential fields (names, username,
	// birthdate, gender). Email, phone and password only change through
	// the token repository's transactional ConsumeAndMutate.
	UpdateProfile(ctx context.Context, p *domain.Patient) (*domain.Patient, error)
}
