package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrTokenInvalid covers every non-storage verification failure: unknown,
// expired, destination drift, malformed input. Callers must not be able to
// tell which one happened.
var ErrTokenInvalid = errors.New("token is invalid or expired")

type ScopeKind string

const (
	ScopeSession       ScopeKind = "session"
	ScopeConfirm       ScopeKind = "confirm"
	ScopeResetPassword ScopeKind = "reset_password"
	ScopeChange        ScopeKind = "change"
)

// TokenScope tags a token with the workflow it belongs to. Change scopes
// carry the destination being changed to; the string form
// ("change:<dest>") only exists at the storage boundary.
type TokenScope struct {
	kind ScopeKind
	dest string
}

func SessionScope() TokenScope       { return TokenScope{kind: ScopeSession} }
func ConfirmScope() TokenScope       { return TokenScope{kind: ScopeConfirm} }
func ResetPasswordScope() TokenScope { return TokenScope{kind: ScopeResetPassword} }

// ChangeScope tags a contact-change token. dest is the new email or phone
// the change link will apply when confirmed.
func ChangeScope(dest string) TokenScope {
	return TokenScope{kind: ScopeChange, dest: dest}
}

// ParseScope is the inverse of String. Used when scanning tokens back out
// of storage.
func ParseScope(s string) (TokenScope, error) {
	if dest, ok := strings.CutPrefix(s, string(ScopeChange)+":"); ok {
		if dest == "" {
			return TokenScope{}, fmt.Errorf("parse scope %q: empty destination", s)
		}
		return ChangeScope(dest), nil
	}
	switch ScopeKind(s) {
	case ScopeSession, ScopeConfirm, ScopeResetPassword:
		return TokenScope{kind: ScopeKind(s)}, nil
	}
	return TokenScope{}, fmt.Errorf("parse scope %q: unknown kind", s)
}

func (s TokenScope) Kind() ScopeKind { return s.kind }

// Destination returns the change payload; empty for every other kind.
func (s TokenScope) Destination() string { return s.dest }

func (s TokenScope) String() string {
	if s.kind == ScopeChange {
		return string(ScopeChange) + ":" + s.dest
	}
	return string(s.kind)
}

// Validity is the age window checked at verification time, not issuance.
func (s TokenScope) Validity() time.Duration {
	switch s.kind {
	case ScopeSession:
		return 60 * 24 * time.Hour
	case ScopeResetPassword:
		return 24 * time.Hour
	default: // confirm, change
		return 7 * 24 * time.Hour
	}
}

// AuthToken is one issued credential. Value holds the raw random bytes for
// session tokens (exact-match lookup over the cookie channel) and the
// SHA-256 of the raw bytes for everything delivered out-of-band. SentTo
// snapshots the patient's contact field at issuance so stale links die
// when the contact info changes.
type AuthToken struct {
	ID        string
	PatientID string
	Value     []byte
	Scope     TokenScope
	SentTo    string
	CreatedAt time.Time
}

// ExpiresAt is derived; nothing is stored per-row.
func (t *AuthToken) ExpiresAt() time.Time {
	return t.CreatedAt.Add(t.Scope.Validity())
}
