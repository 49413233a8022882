package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/curaview/patient-portal/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const patientColumns = `id, email, hashed_password, first_name, last_name,
	       username, phone, birth_date, gender, confirmed_at,
	       created_at, updated_at`

type PatientRepository struct {
	pool *pgxpool.Pool
}

func NewPatientRepository(pool *pgxpool.Pool) *PatientRepository {
	return &PatientRepository{pool: pool}
}

func (r *PatientRepository) Create(ctx context.Context, p *domain.Patient) (*domain.Patient, error) {
	query := `
		INSERT INTO patients (
			email, hashed_password, first_name, last_name,
			username, phone, birth_date, gender
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + patientColumns

	row := r.pool.QueryRow(ctx, query,
		strings.ToLower(p.Email),
		p.HashedPassword,
		p.FirstName,
		p.LastName,
		p.Username,
		p.Phone,
		p.BirthDate,
		p.Gender,
	)

	created, err := scanPatient(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrEmailTaken
		}
		return nil, err
	}
	return created, nil
}

func (r *PatientRepository) FindByID(ctx context.Context, id string) (*domain.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE id = $1`
	return scanPatient(r.pool.QueryRow(ctx, query, id))
}

func (r *PatientRepository) FindByEmail(ctx context.Context, email string) (*domain.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE email = lower($1)`
	return scanPatient(r.pool.QueryRow(ctx, query, email))
}

func (r *PatientRepository) UpdateProfile(ctx context.Context, p *domain.Patient) (*domain.Patient, error) {
	query := `
		UPDATE patients
		SET    first_name = $2,
		       last_name  = $3,
		       username   = $4,
		       birth_date = $5,
		       gender     = $6,
		       updated_at = NOW()
		WHERE id = $1
		RETURNING ` + patientColumns

	row := r.pool.QueryRow(ctx, query,
		p.ID, p.FirstName, p.LastName, p.Username, p.BirthDate, p.Gender)
	return scanPatient(row)
}

func scanPatient(row pgx.Row) (*domain.Patient, error) {
	var p domain.Patient
	err := row.Scan(
		&p.ID, &p.Email, &p.HashedPassword, &p.FirstName, &p.LastName,
		&p.Username, &p.Phone, &p.BirthDate, &p.Gender, &p.ConfirmedAt,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPatientNotFound
		}
		return nil, fmt.Errorf("scan patient: %w", err)
	}
	return &p, nil
}
