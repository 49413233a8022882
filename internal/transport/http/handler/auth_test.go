package handler_test

import (
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/curaview/patient-portal/internal/domain"
	"github.com/curaview/patient-portal/internal/transport/http/handler"
	"github.com/curaview/patient-portal/internal/transport/http/middleware"
	"github.com/curaview/patient-portal/internal/usecase"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeAuthUsecase struct {
	register             func(ctx context.Context, input usecase.RegisterInput) (*domain.Patient, error)
	login                func(ctx context.Context, email, password string) ([]byte, *domain.Patient, error)
	logout               func(ctx context.Context, raw []byte) error
	deliverConfirmation  func(ctx context.Context, email string) error
	confirmAccount       func(ctx context.Context, token string) (*domain.Patient, error)
	deliverPasswordReset func(ctx context.Context, email string) error
	resetPassword        func(ctx context.Context, token, password string) (*domain.Patient, error)
}

func (f *fakeAuthUsecase) Register(ctx context.Context, input usecase.RegisterInput) (*domain.Patient, error) {
	return f.register(ctx, input)
}

func (f *fakeAuthUsecase) Login(ctx context.Context, email, password string) ([]byte, *domain.Patient, error) {
	return f.login(ctx, email, password)
}

func (f *fakeAuthUsecase) Logout(ctx context.Context, raw []byte) error {
	return f.logout(ctx, raw)
}

func (f *fakeAuthUsecase) DeliverConfirmation(ctx context.Context, email string) error {
	return f.deliverConfirmation(ctx, email)
}

func (f *fakeAuthUsecase) ConfirmAccount(ctx context.Context, token string) (*domain.Patient, error) {
	return f.confirmAccount(ctx, token)
}

func (f *fakeAuthUsecase) DeliverPasswordReset(ctx context.Context, email string) error {
	return f.deliverPasswordReset(ctx, email)
}

func (f *fakeAuthUsecase) ResetPassword(ctx context.Context, token, password string) (*domain.Patient, error) {
	return f.resetPassword(ctx, token, password)
}

func newAuthRouter(fake *fakeAuthUsecase) *gin.Engine {
	h := handler.NewAuthHandler(fake, discard, false)
	r := gin.New()
	auth := r.Group("/auth")
	auth.POST("/register", h.Register)
	auth.POST("/login", h.Login)
	auth.DELETE("/logout", h.Logout)
	auth.GET("/confirm", h.Confirm)
	auth.POST("/confirm/resend", h.ResendConfirmation)
	auth.POST("/reset-password/request", h.RequestPasswordReset)
	auth.POST("/reset-password", h.ResetPassword)
	return r
}

func doJSON(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.SessionCookie {
			return c
		}
	}
	return nil
}

func TestRegister_Created(t *testing.T) {
	var gotInput usecase.RegisterInput
	r := newAuthRouter(&fakeAuthUsecase{
		register: func(_ context.Context, input usecase.RegisterInput) (*domain.Patient, error) {
			gotInput = input
			return &domain.Patient{ID: "patient-1", Email: input.Email}, nil
		},
	})

	w := doJSON(r, http.MethodPost, "/auth/register",
		`{"email":"ada@example.com","password":"a-long-password","first_name":"Ada","last_name":"Nilsen"}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	if gotInput.Email != "ada@example.com" || gotInput.Password != "a-long-password" {
		t.Errorf("usecase got %+v", gotInput)
	}
	if strings.Contains(w.Body.String(), "password") {
		t.Error("response leaks password fields")
	}
}

func TestRegister_EmailTaken(t *testing.T) {
	r := newAuthRouter(&fakeAuthUsecase{
		register: func(context.Context, usecase.RegisterInput) (*domain.Patient, error) {
			return nil, domain.ErrEmailTaken
		},
	})

	w := doJSON(r, http.MethodPost, "/auth/register",
		`{"email":"ada@example.com","password":"a-long-password","first_name":"Ada","last_name":"Nilsen"}`)

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestRegister_WeakPasswordAndBadBody(t *testing.T) {
	r := newAuthRouter(&fakeAuthUsecase{
		register: func(context.Context, usecase.RegisterInput) (*domain.Patient, error) {
			return nil, domain.ErrWeakPassword
		},
	})

	w := doJSON(r, http.MethodPost, "/auth/register",
		`{"email":"ada@example.com","password":"short","first_name":"Ada","last_name":"Nilsen"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("weak password: status = %d, want 400", w.Code)
	}

	w = doJSON(r, http.MethodPost, "/auth/register", `{"email":"not-an-email"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad body: status = %d, want 400", w.Code)
	}
}

func TestLogin_SetsSessionCookie(t *testing.T) {
	raw := []byte("0123456789abcdef0123456789abcdef")
	r := newAuthRouter(&fakeAuthUsecase{
		login: func(_ context.Context, email, password string) ([]byte, *domain.Patient, error) {
			return raw, &domain.Patient{ID: "patient-1", Email: email}, nil
		},
	})

	w := doJSON(r, http.MethodPost, "/auth/login",
		`{"email":"ada@example.com","password":"a-long-password"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	cookie := sessionCookie(t, w)
	if cookie == nil {
		t.Fatal("no session cookie set")
	}
	if cookie.Value != base64.RawURLEncoding.EncodeToString(raw) {
		t.Error("cookie is not the base64url of the raw token")
	}
	if !cookie.HttpOnly {
		t.Error("session cookie is not HttpOnly")
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	r := newAuthRouter(&fakeAuthUsecase{
		login: func(context.Context, string, string) ([]byte, *domain.Patient, error) {
			return nil, nil, domain.ErrInvalidCredentials
		},
	})

	w := doJSON(r, http.MethodPost, "/auth/login",
		`{"email":"ada@example.com","password":"wrong-password"}`)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if sessionCookie(t, w) != nil {
		t.Error("session cookie set on failed login")
	}
}

func TestLogout_DeletesTokenAndClearsCookie(t *testing.T) {
	raw := []byte("0123456789abcdef0123456789abcdef")
	var deleted []byte
	r := newAuthRouter(&fakeAuthUsecase{
		logout: func(_ context.Context, got []byte) error {
			deleted = got
			return nil
		},
	})

	req := httptest.NewRequest(http.MethodDelete, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{
		Name:  middleware.SessionCookie,
		Value: base64.RawURLEncoding.EncodeToString(raw),
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if string(deleted) != string(raw) {
		t.Error("usecase did not receive the decoded session token")
	}
	cookie := sessionCookie(t, w)
	if cookie == nil || cookie.MaxAge >= 0 {
		t.Error("session cookie was not cleared")
	}
}

func TestLogout_NoCookieStill204(t *testing.T) {
	r := newAuthRouter(&fakeAuthUsecase{
		logout: func(context.Context, []byte) error {
			t.Fatal("logout called without a cookie")
			return nil
		},
	})

	req := httptest.NewRequest(http.MethodDelete, "/auth/logout", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
}

func TestConfirm_TokenOutcomes(t *testing.T) {
	r := newAuthRouter(&fakeAuthUsecase{
		confirmAccount: func(_ context.Context, token string) (*domain.Patient, error) {
			if token == "good" {
				return &domain.Patient{ID: "patient-1", Email: "ada@example.com"}, nil
			}
			return nil, domain.ErrTokenInvalid
		},
	})

	w := doJSON(r, http.MethodGet, "/auth/confirm?token=good", "")
	if w.Code != http.StatusOK {
		t.Errorf("valid token: status = %d, want 200", w.Code)
	}

	w = doJSON(r, http.MethodGet, "/auth/confirm?token=bad", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("invalid token: status = %d, want 401", w.Code)
	}

	w = doJSON(r, http.MethodGet, "/auth/confirm", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("missing token: status = %d, want 401", w.Code)
	}
}

func TestResendConfirmation_AlwaysOK(t *testing.T) {
	r := newAuthRouter(&fakeAuthUsecase{
		deliverConfirmation: func(context.Context, string) error {
			return domain.ErrPatientNotFound
		},
	})

	w := doJSON(r, http.MethodPost, "/auth/confirm/resend", `{"email":"nobody@example.com"}`)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 even for unknown email", w.Code)
	}
}

func TestRequestPasswordReset_AlwaysOK(t *testing.T) {
	r := newAuthRouter(&fakeAuthUsecase{
		deliverPasswordReset: func(context.Context, string) error {
			return domain.ErrPatientNotFound
		},
	})

	w := doJSON(r, http.MethodPost, "/auth/reset-password/request", `{"email":"nobody@example.com"}`)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 even for unknown email", w.Code)
	}
}

func TestResetPassword_Outcomes(t *testing.T) {
	r := newAuthRouter(&fakeAuthUsecase{
		resetPassword: func(_ context.Context, token, password string) (*domain.Patient, error) {
			switch {
			case token != "good":
				return nil, domain.ErrTokenInvalid
			case len(password) < 8:
				return nil, domain.ErrWeakPassword
			default:
				return &domain.Patient{ID: "patient-1"}, nil
			}
		},
	})

	w := doJSON(r, http.MethodPost, "/auth/reset-password", `{"token":"good","password":"new-password-1"}`)
	if w.Code != http.StatusOK {
		t.Errorf("valid: status = %d, want 200", w.Code)
	}

	w = doJSON(r, http.MethodPost, "/auth/reset-password", `{"token":"stale","password":"new-password-1"}`)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("invalid token: status = %d, want 401", w.Code)
	}

	w = doJSON(r, http.MethodPost, "/auth/reset-password", `{"token":"good","password":"short"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("weak password: status = %d, want 400", w.Code)
	}
}
