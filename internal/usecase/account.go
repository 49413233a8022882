package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/curaview/patient-portal/internal/domain"
	"github.com/curaview/patient-portal/internal/email"
	"github.com/curaview/patient-portal/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// AccountUsecase drives registration, login and the settings flows. Every
// credential-touching mutation goes through the token repository's
// transactional ConsumeAndMutate so a consumed link can never be replayed.
type AccountUsecase struct {
	patients  repository.PatientRepository
	tokens    repository.TokenRepository
	authority *TokenAuthority
	email     email.Sender
	baseURL   string
}

func NewAccountUsecase(patients repository.PatientRepository, tokens repository.TokenRepository, authority *TokenAuthority, sender email.Sender, baseURL string) *AccountUsecase {
	return &AccountUsecase{
		patients:  patients,
		tokens:    tokens,
		authority: authority,
		email:     sender,
		baseURL:   baseURL,
	}
}

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Username  string
	Phone     string
	BirthDate *time.Time
	Gender    string
}

// Register creates the patient and emails the confirmation link.
func (u *AccountUsecase) Register(ctx context.Context, input RegisterInput) (*domain.Patient, error) {
	if err := validatePassword(input.Password); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	patient, err := u.patients.Create(ctx, &domain.Patient{
		Email:          input.Email,
		HashedPassword: string(hash),
		FirstName:      input.FirstName,
		LastName:       input.LastName,
		Username:       input.Username,
		Phone:          input.Phone,
		BirthDate:      input.BirthDate,
		Gender:         input.Gender,
	})
	if err != nil {
		return nil, err
	}

	if err := u.sendConfirmation(ctx, patient); err != nil {
		return nil, err
	}
	return patient, nil
}

// Login checks the password and issues a fresh session token. Unknown
// email and wrong password return the same error.
func (u *AccountUsecase) Login(ctx context.Context, emailAddr, password string) ([]byte, *domain.Patient, error) {
	patient, err := u.patients.FindByEmail(ctx, emailAddr)
	if err != nil {
		if err == domain.ErrPatientNotFound {
			return nil, nil, domain.ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("find patient: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(patient.HashedPassword), []byte(password)); err != nil {
		return nil, nil, domain.ErrInvalidCredentials
	}

	raw, err := u.authority.IssueSessionToken(ctx, patient)
	if err != nil {
		return nil, nil, err
	}
	return raw, patient, nil
}

// StartSession issues a fresh session token for an already-authenticated
// patient, e.g. right after a password change revoked everything.
func (u *AccountUsecase) StartSession(ctx context.Context, patient *domain.Patient) ([]byte, error) {
	return u.authority.IssueSessionToken(ctx, patient)
}

// Logout deletes exactly one session token. Other sessions stay valid.
func (u *AccountUsecase) Logout(ctx context.Context, raw []byte) error {
	return u.tokens.DeleteSession(ctx, raw)
}

// DeliverConfirmation re-sends the confirmation link. Already-confirmed
// and unknown accounts are not distinguishable to the caller; the handler
// replies 200 either way.
func (u *AccountUsecase) DeliverConfirmation(ctx context.Context, emailAddr string) error {
	patient, err := u.patients.FindByEmail(ctx, emailAddr)
	if err != nil {
		return fmt.Errorf("find patient: %w", err)
	}
	if patient.Confirmed() {
		return nil
	}
	return u.sendConfirmation(ctx, patient)
}

// ConfirmAccount verifies a confirm token, stamps confirmed_at and burns
// the patient's confirm tokens in the same transaction.
func (u *AccountUsecase) ConfirmAccount(ctx context.Context, encoded string) (*domain.Patient, error) {
	patient, _, err := u.authority.VerifyDeliveryToken(ctx, encoded, domain.ScopeConfirm)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	return u.tokens.ConsumeAndMutate(ctx, patient.ID, func(p *domain.Patient) error {
		if p.ConfirmedAt == nil {
			p.ConfirmedAt = &now
		}
		return nil
	}, []domain.TokenScope{domain.ConfirmScope()})
}

// DeliverPasswordReset emails a reset link valid for one day.
func (u *AccountUsecase) DeliverPasswordReset(ctx context.Context, emailAddr string) error {
	patient, err := u.patients.FindByEmail(ctx, emailAddr)
	if err != nil {
		return fmt.Errorf("find patient: %w", err)
	}

	token, err := u.authority.IssueDeliveryToken(ctx, patient, domain.ResetPasswordScope(), patient.Email)
	if err != nil {
		return err
	}

	link := u.baseURL + "/auth/reset-password?token=" + token
	body := fmt.Sprintf(
		`<p>We received a request to reset your portal password. The link below is valid for 1 day:</p><p><a href="%s">%s</a></p><p>If you didn't request this, you can ignore this email.</p>`,
		link, link,
	)
	if err := u.email.Send(ctx, patient.Email, "Reset your password", body); err != nil {
		return fmt.Errorf("send reset email: %w", err)
	}
	return nil
}

// ResetPassword consumes the reset token, sets the new password and
// revokes every outstanding token — sessions included — in one
// transaction.
func (u *AccountUsecase) ResetPassword(ctx context.Context, encoded, newPassword string) (*domain.Patient, error) {
	if err := validatePassword(newPassword); err != nil {
		return nil, err
	}
	patient, _, err := u.authority.VerifyDeliveryToken(ctx, encoded, domain.ScopeResetPassword)
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	return u.tokens.ConsumeAndMutate(ctx, patient.ID, func(p *domain.Patient) error {
		p.HashedPassword = string(hash)
		return nil
	}, nil)
}

// UpdatePassword is the logged-in variant of ResetPassword: same full
// revocation, gated on the current password instead of a token.
func (u *AccountUsecase) UpdatePassword(ctx context.Context, patient *domain.Patient, currentPassword, newPassword string) (*domain.Patient, error) {
	if err := bcrypt.CompareHashAndPassword([]byte(patient.HashedPassword), []byte(currentPassword)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if err := validatePassword(newPassword); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	return u.tokens.ConsumeAndMutate(ctx, patient.ID, func(p *domain.Patient) error {
		p.HashedPassword = string(hash)
		return nil
	}, nil)
}

// DeliverEmailChange emails a confirmation link to the NEW address. The
// token's scope carries the new address; sent_to snapshots the current one
// so the link dies if the account email changes in the meantime.
func (u *AccountUsecase) DeliverEmailChange(ctx context.Context, patient *domain.Patient, newEmail, currentPassword string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(patient.HashedPassword), []byte(currentPassword)); err != nil {
		return domain.ErrInvalidCredentials
	}
	newEmail = strings.ToLower(newEmail)
	if newEmail == patient.Email {
		return domain.ErrEmailTaken
	}

	token, err := u.authority.IssueDeliveryToken(ctx, patient, domain.ChangeScope(newEmail), patient.Email)
	if err != nil {
		return err
	}

	link := u.baseURL + "/account/email/confirm?token=" + token
	body := fmt.Sprintf(
		`<p>Confirm your new portal email address by clicking the link below (valid for 7 days):</p><p><a href="%s">%s</a></p>`,
		link, link,
	)
	if err := u.email.Send(ctx, newEmail, "Confirm your new email address", body); err != nil {
		return fmt.Errorf("send email change: %w", err)
	}
	return nil
}

// DeliverPhoneChange works like DeliverEmailChange but guards the phone
// field. The link goes to the account email; there is no SMS transport.
func (u *AccountUsecase) DeliverPhoneChange(ctx context.Context, patient *domain.Patient, newPhone, currentPassword string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(patient.HashedPassword), []byte(currentPassword)); err != nil {
		return domain.ErrInvalidCredentials
	}

	token, err := u.authority.IssueDeliveryToken(ctx, patient, domain.ChangeScope(newPhone), patient.Phone)
	if err != nil {
		return err
	}

	link := u.baseURL + "/account/phone/confirm?token=" + token
	body := fmt.Sprintf(
		`<p>Confirm your new phone number %s by clicking the link below (valid for 7 days):</p><p><a href="%s">%s</a></p>`,
		newPhone, link, link,
	)
	if err := u.email.Send(ctx, patient.Email, "Confirm your new phone number", body); err != nil {
		return fmt.Errorf("send phone change: %w", err)
	}
	return nil
}

// ConfirmContactChange applies a change token's payload to the email or
// phone field and burns the token transactionally. The token must belong
// to the logged-in patient.
func (u *AccountUsecase) ConfirmContactChange(ctx context.Context, patient *domain.Patient, encoded string) (*domain.Patient, error) {
	owner, token, err := u.authority.VerifyDeliveryToken(ctx, encoded, domain.ScopeChange)
	if err != nil {
		return nil, err
	}
	if owner.ID != patient.ID {
		return nil, domain.ErrTokenInvalid
	}

	dest := token.Scope.Destination()
	return u.tokens.ConsumeAndMutate(ctx, patient.ID, func(p *domain.Patient) error {
		if strings.Contains(dest, "@") {
			p.Email = dest
		} else {
			p.Phone = dest
		}
		return nil
	}, []domain.TokenScope{token.Scope})
}

type ProfileInput struct {
	FirstName string
	LastName  string
	Username  string
	BirthDate *time.Time
	Gender    string
}

func (u *AccountUsecase) UpdateProfile(ctx context.Context, patient *domain.Patient, input ProfileInput) (*domain.Patient, error) {
	patient.FirstName = input.FirstName
	patient.LastName = input.LastName
	patient.Username = input.Username
	patient.BirthDate = input.BirthDate
	patient.Gender = input.Gender
	return u.patients.UpdateProfile(ctx, patient)
}

func (u *AccountUsecase) sendConfirmation(ctx context.Context, patient *domain.Patient) error {
	token, err := u.authority.IssueDeliveryToken(ctx, patient, domain.ConfirmScope(), patient.Email)
	if err != nil {
		return err
	}

	link := u.baseURL + "/auth/confirm?token=" + token
	body := fmt.Sprintf(
		`<p>Welcome! Confirm your patient portal account by clicking the link below (valid for 7 days):</p><p><a href="%s">%s</a></p>`,
		link, link,
	)
	if err := u.email.Send(ctx, patient.Email, "Confirm your account", body); err != nil {
		return fmt.Errorf("send confirmation: %w", err)
	}
	return nil
}

// bcrypt silently truncates past 72 bytes, so cap it there.
func validatePassword(pw string) error {
	if len(pw) < 8 || len(pw) > 72 {
		return domain.ErrWeakPassword
	}
	return nil
}
