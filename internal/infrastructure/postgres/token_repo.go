package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/curaview/patient-portal/internal/domain"
	"github.com/curaview/patient-portal/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TokenRepository struct {
	pool *pgxpool.Pool
}

func NewTokenRepository(pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{pool: pool}
}

func (r *TokenRepository) Create(ctx context.Context, t *domain.AuthToken) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO auth_tokens (patient_id, value, scope, sent_to, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		t.PatientID, t.Value, t.Scope.String(), t.SentTo, t.CreatedAt,
	)
	if err != nil {
		// (value, scope) is unique; with 32 random bytes a violation means
		// something is wrong upstream, not a retryable collision.
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

func (r *TokenRepository) FindSession(ctx context.Context, value []byte) (*domain.AuthToken, *domain.Patient, error) {
	query := `
		SELECT t.id, t.patient_id, t.value, t.scope, t.sent_to, t.created_at,
		       p.id, p.email, p.hashed_password, p.first_name, p.last_name,
		       p.username, p.phone, p.birth_date, p.gender, p.confirmed_at,
		       p.created_at, p.updated_at
		FROM auth_tokens t
		JOIN patients p ON p.id = t.patient_id
		WHERE t.value = $1 AND t.scope = $2`

	return scanTokenWithPatient(r.pool.QueryRow(ctx, query, value, domain.SessionScope().String()))
}

func (r *TokenRepository) FindDelivery(ctx context.Context, valueHash []byte, kind domain.ScopeKind) (*domain.AuthToken, *domain.Patient, error) {
	// split_part strips the ":<dest>" payload so change tokens can be
	// found without knowing their destination up front.
	query := `
		SELECT t.id, t.patient_id, t.value, t.scope, t.sent_to, t.created_at,
		       p.id, p.email, p.hashed_password, p.first_name, p.last_name,
		       p.username, p.phone, p.birth_date, p.gender, p.confirmed_at,
		       p.created_at, p.updated_at
		FROM auth_tokens t
		JOIN patients p ON p.id = t.patient_id
		WHERE t.value = $1 AND split_part(t.scope, ':', 1) = $2`

	return scanTokenWithPatient(r.pool.QueryRow(ctx, query, valueHash, string(kind)))
}

// ConsumeAndMutate runs the mutation and the token deletion as one
// transaction — a crash can never leave a stale, still-valid token for an
// operation that already happened.
func (r *TokenRepository) ConsumeAndMutate(ctx context.Context, patientID string, mutate repository.PatientMutation, scopes []domain.TokenScope) (*domain.Patient, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	row := tx.QueryRow(ctx,
		`SELECT `+patientColumns+` FROM patients WHERE id = $1 FOR UPDATE`,
		patientID)
	p, err := scanPatient(row)
	if err != nil {
		return nil, err
	}

	if err = mutate(p); err != nil {
		return nil, err
	}

	row = tx.QueryRow(ctx, `
		UPDATE patients
		SET    email           = $2,
		       hashed_password = $3,
		       phone           = $4,
		       confirmed_at    = $5,
		       updated_at      = NOW()
		WHERE id = $1
		RETURNING `+patientColumns,
		p.ID, p.Email, p.HashedPassword, p.Phone, p.ConfirmedAt)

	updated, err := scanPatient(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			err = domain.ErrEmailTaken
		}
		return nil, err
	}

	if scopes == nil {
		_, err = tx.Exec(ctx,
			`DELETE FROM auth_tokens WHERE patient_id = $1`, patientID)
	} else {
		strs := make([]string, len(scopes))
		for i, s := range scopes {
			strs[i] = s.String()
		}
		_, err = tx.Exec(ctx,
			`DELETE FROM auth_tokens WHERE patient_id = $1 AND scope = ANY($2)`,
			patientID, strs)
	}
	if err != nil {
		return nil, fmt.Errorf("delete tokens: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return updated, nil
}

func (r *TokenRepository) DeleteSession(ctx context.Context, value []byte) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM auth_tokens WHERE value = $1 AND scope = $2`,
		value, domain.SessionScope().String())
	if err != nil {
		return fmt.Errorf("delete session token: %w", err)
	}
	return nil
}

func (r *TokenRepository) DeleteAll(ctx context.Context, patientID string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM auth_tokens WHERE patient_id = $1`, patientID)
	if err != nil {
		return fmt.Errorf("delete tokens: %w", err)
	}
	return nil
}

// DeleteExpired removes rows already past their scope window. The interval
// literals mirror TokenScope.Validity.
func (r *TokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM auth_tokens
		WHERE (scope = 'session'        AND created_at < NOW() - INTERVAL '60 days')
		   OR (scope = 'confirm'        AND created_at < NOW() - INTERVAL '7 days')
		   OR (scope = 'reset_password' AND created_at < NOW() - INTERVAL '1 day')
		   OR (scope LIKE 'change:%'    AND created_at < NOW() - INTERVAL '7 days')`)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanTokenWithPatient(row pgx.Row) (*domain.AuthToken, *domain.Patient, error) {
	var (
		t        domain.AuthToken
		p        domain.Patient
		scopeStr string
	)
	err := row.Scan(
		&t.ID, &t.PatientID, &t.Value, &scopeStr, &t.SentTo, &t.CreatedAt,
		&p.ID, &p.Email, &p.HashedPassword, &p.FirstName, &p.LastName,
		&p.Username, &p.Phone, &p.BirthDate, &p.Gender, &p.ConfirmedAt,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, domain.ErrTokenInvalid
		}
		return nil, nil, fmt.Errorf("scan token: %w", err)
	}
	t.Scope, err = domain.ParseScope(scopeStr)
	if err != nil {
		return nil, nil, err
	}
	return &t, &p, nil
}
