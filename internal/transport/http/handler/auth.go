package handler

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/curaview/patient-portal/internal/domain"
	"github.com/curaview/patient-portal/internal/transport/http/middleware"
	"github.com/curaview/patient-portal/internal/usecase"
	"github.com/gin-gonic/gin"
)

const sessionCookieMaxAge = 60 * 24 * int(time.Hour/time.Second)

// authUsecaser is the subset of AccountUsecase the handler needs.
// Defined here (point of use) so tests can inject a fake.
type authUsecaser interface {
	Register(ctx context.Context, input usecase.RegisterInput) (*domain.Patient, error)
	Login(ctx context.Context, email, password string) ([]byte, *domain.Patient, error)
	Logout(ctx context.Context, raw []byte) error
	DeliverConfirmation(ctx context.Context, email string) error
	ConfirmAccount(ctx context.Context, token string) (*domain.Patient, error)
	DeliverPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password string) (*domain.Patient, error)
}

type AuthHandler struct {
	account       authUsecaser
	logger        *slog.Logger
	secureCookies bool
}

func NewAuthHandler(account authUsecaser, logger *slog.Logger, secureCookies bool) *AuthHandler {
	return &AuthHandler{
		account:       account,
		logger:        logger.With("component", "auth_handler"),
		secureCookies: secureCookies,
	}
}

type registerRequest struct {
	Email     string     `json:"email" binding:"required,email"`
	Password  string     `json:"password" binding:"required"`
	FirstName string     `json:"first_name" binding:"required"`
	LastName  string     `json:"last_name" binding:"required"`
	Username  string     `json:"username"`
	Phone     string     `json:"phone"`
	BirthDate *time.Time `json:"birth_date"`
	Gender    string     `json:"gender"`
}

// POST /auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	patient, err := h.account.Register(c.Request.Context(), usecase.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Username:  req.Username,
		Phone:     req.Phone,
		BirthDate: req.BirthDate,
		Gender:    req.Gender,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEmailTaken):
			c.JSON(http.StatusConflict, gin.H{"error": errEmailTaken})
		case errors.Is(err, domain.ErrWeakPassword):
			c.JSON(http.StatusBadRequest, gin.H{"error": errWeakPassword})
		default:
			h.logger.ErrorContext(c.Request.Context(), "register", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		}
		return
	}

	c.JSON(http.StatusCreated, toPatientResponse(patient))
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// POST /auth/login
// Sets the session cookie on success. Unknown email and wrong password
// are indistinguishable.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	raw, patient, err := h.account.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": errInvalidCredentials})
			return
		}
		h.logger.ErrorContext(c.Request.Context(), "login", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	h.setSessionCookie(c, raw)
	c.JSON(http.StatusOK, toPatientResponse(patient))
}

// DELETE /auth/logout
// Deletes the presented session token and clears the cookie. Always 204;
// a missing or garbage cookie is not an error worth reporting.
func (h *AuthHandler) Logout(c *gin.Context) {
	if cookie, err := c.Cookie(middleware.SessionCookie); err == nil {
		if raw, decErr := base64.RawURLEncoding.DecodeString(cookie); decErr == nil {
			if err := h.account.Logout(c.Request.Context(), raw); err != nil {
				h.logger.ErrorContext(c.Request.Context(), "logout", "error", err)
			}
		}
	}

	h.clearSessionCookie(c)
	c.Status(http.StatusNoContent)
}

type emailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// POST /auth/confirm/resend
// Always returns 200 to avoid revealing whether the email exists or is
// already confirmed.
func (h *AuthHandler) ResendConfirmation(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.account.DeliverConfirmation(c.Request.Context(), req.Email); err != nil {
		h.logger.ErrorContext(c.Request.Context(), "resend confirmation", "error", err)
	}

	c.Status(http.StatusOK)
}

// GET /auth/confirm?token=<encoded>
func (h *AuthHandler) Confirm(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errTokenInvalid})
		return
	}

	patient, err := h.account.ConfirmAccount(c.Request.Context(), token)
	if err != nil {
		if errors.Is(err, domain.ErrTokenInvalid) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": errTokenInvalid})
			return
		}
		h.logger.ErrorContext(c.Request.Context(), "confirm account", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	c.JSON(http.StatusOK, toPatientResponse(patient))
}

// POST /auth/reset-password/request
// Always returns 200 regardless of whether the email exists.
func (h *AuthHandler) RequestPasswordReset(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.account.DeliverPasswordReset(c.Request.Context(), req.Email); err != nil {
		h.logger.ErrorContext(c.Request.Context(), "request password reset", "error", err)
	}

	c.Status(http.StatusOK)
}

type resetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// POST /auth/reset-password
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	patient, err := h.account.ResetPassword(c.Request.Context(), req.Token, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrTokenInvalid):
			c.JSON(http.StatusUnauthorized, gin.H{"error": errTokenInvalid})
		case errors.Is(err, domain.ErrWeakPassword):
			c.JSON(http.StatusBadRequest, gin.H{"error": errWeakPassword})
		default:
			h.logger.ErrorContext(c.Request.Context(), "reset password", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		}
		return
	}

	c.JSON(http.StatusOK, toPatientResponse(patient))
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, raw []byte) {
	setSessionCookie(c, raw, h.secureCookies)
}

func (h *AuthHandler) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, "", -1, "/", "", h.secureCookies, true)
}

func setSessionCookie(c *gin.Context, raw []byte, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie,
		base64.RawURLEncoding.EncodeToString(raw),
		sessionCookieMaxAge, "/", "", secure, true)
}
