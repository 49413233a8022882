package repository

import (
	"context"

	"github.com/curaview/patient-portal/internal/domain"
)

// PatientMutation edits a patient row inside a transaction. Returning an
// error aborts the whole ConsumeAndMutate unit.
type PatientMutation func(p *domain.Patient) error

type TokenRepository interface {
	Create(ctx context.Context, t *domain.AuthToken) error

	// FindSession looks a session token up by exact raw byte match and
	// returns it together with its owner. Returns domain.ErrTokenInvalid
	// when no row matches.
	FindSession(ctx context.Context, value []byte) (*domain.AuthToken, *domain.Patient, error)

	// FindDelivery looks a delivery token up by its stored hash and scope
	// kind. Returns domain.ErrTokenInvalid when no row matches.
	FindDelivery(ctx context.Context, valueHash []byte, kind domain.ScopeKind) (*domain.AuthToken, *domain.Patient, error)

	// ConsumeAndMutate applies mutate to the patient row and deletes the
	// patient's tokens for the given scopes in one transaction. A nil
	// scopes slice deletes every token (full revocation). On any error
	// neither the row nor the token set changes.
	ConsumeAndMutate(ctx context.Context, patientID string, mutate PatientMutation, scopes []domain.TokenScope) (*domain.Patient, error)

	// DeleteSession removes one session token by exact value (logout).
	DeleteSession(ctx context.Context, value []byte) error

	// DeleteAll removes every token for the patient regardless of scope.
	DeleteAll(ctx context.Context, patientID string) error

	// DeleteExpired removes tokens already past their scope's validity
	// window. Only used by maintenance; verification never relies on it.
	DeleteExpired(ctx context.Context) (int64, error)
}
