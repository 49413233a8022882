package middleware_test

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/curaview/patient-portal/internal/domain"
	"github.com/curaview/patient-portal/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeVerifier struct {
	verify func(ctx context.Context, raw []byte) (*domain.Patient, error)
}

func (f *fakeVerifier) VerifySessionToken(ctx context.Context, raw []byte) (*domain.Patient, error) {
	return f.verify(ctx, raw)
}

func newProtectedRouter(v *fakeVerifier) *gin.Engine {
	r := gin.New()
	r.GET("/me", middleware.SessionAuth(v), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"email": middleware.Patient(c).Email})
	})
	return r
}

func sessionRequest(cookieValue string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if cookieValue != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: cookieValue})
	}
	return req
}

func TestSessionAuth_MissingCookie(t *testing.T) {
	r := newProtectedRouter(&fakeVerifier{
		verify: func(context.Context, []byte) (*domain.Patient, error) {
			t.Fatal("verifier called without a cookie")
			return nil, nil
		},
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, sessionRequest(""))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestSessionAuth_MalformedCookie(t *testing.T) {
	r := newProtectedRouter(&fakeVerifier{
		verify: func(context.Context, []byte) (*domain.Patient, error) {
			t.Fatal("verifier called with undecodable cookie")
			return nil, nil
		},
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, sessionRequest("!not-base64url!"))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestSessionAuth_InvalidToken(t *testing.T) {
	r := newProtectedRouter(&fakeVerifier{
		verify: func(context.Context, []byte) (*domain.Patient, error) {
			return nil, domain.ErrTokenInvalid
		},
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, sessionRequest(base64.RawURLEncoding.EncodeToString([]byte("some-token"))))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestSessionAuth_StorageErrorIsNot401(t *testing.T) {
	r := newProtectedRouter(&fakeVerifier{
		verify: func(context.Context, []byte) (*domain.Patient, error) {
			return nil, errors.New("connection refused")
		},
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, sessionRequest(base64.RawURLEncoding.EncodeToString([]byte("some-token"))))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestSessionAuth_ValidCookie(t *testing.T) {
	raw := []byte("0123456789abcdef0123456789abcdef")
	var seen []byte
	r := newProtectedRouter(&fakeVerifier{
		verify: func(_ context.Context, got []byte) (*domain.Patient, error) {
			seen = got
			return &domain.Patient{ID: "patient-1", Email: "ada@example.com"}, nil
		},
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, sessionRequest(base64.RawURLEncoding.EncodeToString(raw)))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if string(seen) != string(raw) {
		t.Error("verifier did not receive the decoded cookie bytes")
	}
	if body := w.Body.String(); !strings.Contains(body, "ada@example.com") {
		t.Errorf("handler did not see the patient: %s", body)
	}
}
