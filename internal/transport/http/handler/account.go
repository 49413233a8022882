package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/curaview/patient-portal/internal/domain"
	"github.com/curaview/patient-portal/internal/transport/http/middleware"
	"github.com/curaview/patient-portal/internal/usecase"
	"github.com/gin-gonic/gin"
)

// settingsUsecaser is the subset of AccountUsecase behind the
// session-protected routes.
type settingsUsecaser interface {
	UpdatePassword(ctx context.Context, patient *domain.Patient, currentPassword, newPassword string) (*domain.Patient, error)
	StartSession(ctx context.Context, patient *domain.Patient) ([]byte, error)
	DeliverEmailChange(ctx context.Context, patient *domain.Patient, newEmail, currentPassword string) error
	DeliverPhoneChange(ctx context.Context, patient *domain.Patient, newPhone, currentPassword string) error
	ConfirmContactChange(ctx context.Context, patient *domain.Patient, token string) (*domain.Patient, error)
	UpdateProfile(ctx context.Context, patient *domain.Patient, input usecase.ProfileInput) (*domain.Patient, error)
}

type AccountHandler struct {
	account       settingsUsecaser
	logger        *slog.Logger
	secureCookies bool
}

func NewAccountHandler(account settingsUsecaser, logger *slog.Logger, secureCookies bool) *AccountHandler {
	return &AccountHandler{
		account:       account,
		logger:        logger.With("component", "account_handler"),
		secureCookies: secureCookies,
	}
}

// GET /account/me
func (h *AccountHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, toPatientResponse(middleware.Patient(c)))
}

type updatePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// PUT /account/password
// Rotating the password revokes every token for the patient, including
// the session that made this request, so a fresh session cookie is set.
func (h *AccountHandler) UpdatePassword(c *gin.Context) {
	var req updatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	patient, err := h.account.UpdatePassword(c.Request.Context(),
		middleware.Patient(c), req.CurrentPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{"error": errInvalidCredentials})
		case errors.Is(err, domain.ErrWeakPassword):
			c.JSON(http.StatusBadRequest, gin.H{"error": errWeakPassword})
		default:
			h.logger.ErrorContext(c.Request.Context(), "update password", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		}
		return
	}

	raw, err := h.account.StartSession(c.Request.Context(), patient)
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "renew session", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	setSessionCookie(c, raw, h.secureCookies)
	c.JSON(http.StatusOK, toPatientResponse(patient))
}

type changeEmailRequest struct {
	NewEmail        string `json:"new_email" binding:"required,email"`
	CurrentPassword string `json:"current_password" binding:"required"`
}

// POST /account/email
// Sends the confirmation link to the new address; nothing changes until
// the link is used.
func (h *AccountHandler) RequestEmailChange(c *gin.Context) {
	var req changeEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.account.DeliverEmailChange(c.Request.Context(),
		middleware.Patient(c), req.NewEmail, req.CurrentPassword)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{"error": errInvalidCredentials})
		case errors.Is(err, domain.ErrEmailTaken):
			c.JSON(http.StatusConflict, gin.H{"error": errEmailTaken})
		default:
			h.logger.ErrorContext(c.Request.Context(), "request email change", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		}
		return
	}

	c.Status(http.StatusOK)
}

type changePhoneRequest struct {
	NewPhone        string `json:"new_phone" binding:"required,e164"`
	CurrentPassword string `json:"current_password" binding:"required"`
}

// POST /account/phone
func (h *AccountHandler) RequestPhoneChange(c *gin.Context) {
	var req changePhoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.account.DeliverPhoneChange(c.Request.Context(),
		middleware.Patient(c), req.NewPhone, req.CurrentPassword)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": errInvalidCredentials})
			return
		}
		h.logger.ErrorContext(c.Request.Context(), "request phone change", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	c.Status(http.StatusOK)
}

type confirmChangeRequest struct {
	Token string `json:"token" binding:"required"`
}

// POST /account/email/confirm and /account/phone/confirm
// One handler for both: the token's own payload says which field changes.
func (h *AccountHandler) ConfirmContactChange(c *gin.Context) {
	var req confirmChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	patient, err := h.account.ConfirmContactChange(c.Request.Context(),
		middleware.Patient(c), req.Token)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrTokenInvalid):
			c.JSON(http.StatusUnauthorized, gin.H{"error": errTokenInvalid})
		case errors.Is(err, domain.ErrEmailTaken):
			c.JSON(http.StatusConflict, gin.H{"error": errEmailTaken})
		default:
			h.logger.ErrorContext(c.Request.Context(), "confirm contact change", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		}
		return
	}

	c.JSON(http.StatusOK, toPatientResponse(patient))
}

type updateProfileRequest struct {
	FirstName string     `json:"first_name" binding:"required"`
	LastName  string     `json:"last_name" binding:"required"`
	Username  string     `json:"username"`
	BirthDate *time.Time `json:"birth_date"`
	Gender    string     `json:"gender"`
}

// PUT /account/profile
func (h *AccountHandler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	patient, err := h.account.UpdateProfile(c.Request.Context(),
		middleware.Patient(c), usecase.ProfileInput{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Username:  req.Username,
			BirthDate: req.BirthDate,
			Gender:    req.Gender,
		})
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "update profile", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	c.JSON(http.StatusOK, toPatientResponse(patient))
}
