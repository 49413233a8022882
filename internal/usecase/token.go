package usecase

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/curaview/patient-portal/internal/domain"
	"github.com/curaview/patient-portal/internal/metrics"
	"github.com/curaview/patient-portal/internal/repository"
)

const tokenBytes = 32

// TokenAuthority issues and verifies every credential the portal hands
// out. Session tokens are stored raw (exact-match lookup over the cookie
// channel); anything delivered by email is stored as a SHA-256 so a
// database leak cannot produce usable links.
type TokenAuthority struct {
	tokens repository.TokenRepository
	now    func() time.Time
}

func NewTokenAuthority(tokens repository.TokenRepository) *TokenAuthority {
	return &TokenAuthority{tokens: tokens, now: time.Now}
}

// IssueSessionToken returns the raw bytes for the caller to place in the
// session cookie. No expiry is recorded; age is checked at verification.
func (a *TokenAuthority) IssueSessionToken(ctx context.Context, patient *domain.Patient) ([]byte, error) {
	raw := make([]byte, tokenBytes)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	t := &domain.AuthToken{
		PatientID: patient.ID,
		Value:     raw,
		Scope:     domain.SessionScope(),
		CreatedAt: a.now(),
	}
	if err := a.tokens.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("store session token: %w", err)
	}
	metrics.TokensIssuedTotal.WithLabelValues(string(domain.ScopeSession)).Inc()
	return raw, nil
}

// IssueDeliveryToken persists the hash and returns the URL-safe encoding
// of the raw bytes for embedding in an emailed link. destination is the
// patient's contact field at issuance; if it changes before the link is
// used, verification fails.
func (a *TokenAuthority) IssueDeliveryToken(ctx context.Context, patient *domain.Patient, scope domain.TokenScope, destination string) (string, error) {
	raw := make([]byte, tokenBytes)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	sum := sha256.Sum256(raw)

	t := &domain.AuthToken{
		PatientID: patient.ID,
		Value:     sum[:],
		Scope:     scope,
		SentTo:    destination,
		CreatedAt: a.now(),
	}
	if err := a.tokens.Create(ctx, t); err != nil {
		return "", fmt.Errorf("store delivery token: %w", err)
	}
	metrics.TokensIssuedTotal.WithLabelValues(string(scope.Kind())).Inc()
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// VerifySessionToken returns the token's owner. It does not consume the
// token — sessions stay valid until logout, credential change, or the
// 60-day window runs out.
func (a *TokenAuthority) VerifySessionToken(ctx context.Context, raw []byte) (*domain.Patient, error) {
	t, p, err := a.tokens.FindSession(ctx, raw)
	if err != nil {
		return nil, err
	}
	if a.now().After(t.ExpiresAt()) {
		return nil, domain.ErrTokenInvalid
	}
	return p, nil
}

// VerifyDeliveryToken decodes, hashes and looks the token up, then checks
// age and destination drift. Every failure mode except a storage error
// comes back as the same domain.ErrTokenInvalid — callers can't tell an
// expired link from one that never existed. The caller is responsible for
// consuming the returned token.
func (a *TokenAuthority) VerifyDeliveryToken(ctx context.Context, encoded string, kind domain.ScopeKind) (*domain.Patient, *domain.AuthToken, error) {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		// Malformed input never reaches storage.
		return nil, nil, domain.ErrTokenInvalid
	}
	sum := sha256.Sum256(raw)

	t, p, err := a.tokens.FindDelivery(ctx, sum[:], kind)
	if err != nil {
		return nil, nil, err
	}
	if a.now().After(t.ExpiresAt()) {
		return nil, nil, domain.ErrTokenInvalid
	}
	if t.SentTo != currentDestination(t, p) {
		return nil, nil, domain.ErrTokenInvalid
	}
	return p, t, nil
}

// InvalidateAll revokes every outstanding credential for the patient —
// all sessions and all pending links.
func (a *TokenAuthority) InvalidateAll(ctx context.Context, patientID string) error {
	return a.tokens.DeleteAll(ctx, patientID)
}

// currentDestination picks the patient field the token's sent_to snapshot
// must still match. Change tokens for a phone payload guard the phone
// field; everything else guards the email.
func currentDestination(t *domain.AuthToken, p *domain.Patient) string {
	if t.Scope.Kind() == domain.ScopeChange && !strings.Contains(t.Scope.Destination(), "@") {
		return p.Phone
	}
	return p.Email
}
