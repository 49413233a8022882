package domain_test

import (
	"testing"
	"time"

	"github.com/curaview/patient-portal/internal/domain"
)

func TestParseScope_RoundTrips(t *testing.T) {
	scopes := []domain.TokenScope{
		domain.SessionScope(),
		domain.ConfirmScope(),
		domain.ResetPasswordScope(),
		domain.ChangeScope("new@example.com"),
		domain.ChangeScope("+15550109999"),
	}
	for _, s := range scopes {
		parsed, err := domain.ParseScope(s.String())
		if err != nil {
			t.Errorf("ParseScope(%q): %v", s.String(), err)
			continue
		}
		if parsed != s {
			t.Errorf("ParseScope(%q) = %+v, want %+v", s.String(), parsed, s)
		}
	}
}

func TestParseScope_RejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "admin", "change:", "session:extra"} {
		if _, err := domain.ParseScope(s); err == nil {
			t.Errorf("ParseScope(%q) accepted", s)
		}
	}
}

func TestChangeScope_CarriesDestination(t *testing.T) {
	s := domain.ChangeScope("new@example.com")
	if s.Kind() != domain.ScopeChange {
		t.Errorf("kind = %s", s.Kind())
	}
	if s.Destination() != "new@example.com" {
		t.Errorf("destination = %q", s.Destination())
	}
	if s.String() != "change:new@example.com" {
		t.Errorf("string form = %q", s.String())
	}
	if domain.ConfirmScope().Destination() != "" {
		t.Error("non-change scope has a destination")
	}
}

func TestValidityWindows(t *testing.T) {
	tests := []struct {
		scope domain.TokenScope
		want  time.Duration
	}{
		{domain.SessionScope(), 60 * 24 * time.Hour},
		{domain.ConfirmScope(), 7 * 24 * time.Hour},
		{domain.ResetPasswordScope(), 24 * time.Hour},
		{domain.ChangeScope("new@example.com"), 7 * 24 * time.Hour},
	}
	for _, tt := range tests {
		if got := tt.scope.Validity(); got != tt.want {
			t.Errorf("%s validity = %v, want %v", tt.scope, got, tt.want)
		}
	}
}

func TestAuthToken_ExpiresAt(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	token := &domain.AuthToken{Scope: domain.ResetPasswordScope(), CreatedAt: created}
	if got, want := token.ExpiresAt(), created.Add(24*time.Hour); !got.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", got, want)
	}
}
