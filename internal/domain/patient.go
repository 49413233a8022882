package domain

import (
	"errors"
	"time"
)

var (
	ErrPatientNotFound    = errors.New("patient not found")
	ErrEmailTaken         = errors.New("email is already taken")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = errors.New("password must be between 8 and 72 characters")
)

// Patient is the portal's identity record. Email is unique
// (case-insensitive, lowercased before storage). ConfirmedAt stays nil
// until the account confirmation link is used.
type Patient struct {
	ID             string
	Email          string
	HashedPassword string
	FirstName      string
	LastName       string
	Username       string
	Phone          string
	BirthDate      *time.Time
	Gender         string
	ConfirmedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (p *Patient) Confirmed() bool {
	return p.ConfirmedAt != nil
}
