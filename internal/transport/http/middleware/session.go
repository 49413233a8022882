package middleware

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/curaview/patient-portal/internal/domain"
	"github.com/curaview/patient-portal/internal/metrics"
	"github.com/gin-gonic/gin"
)

// SessionCookie holds the base64url-encoded raw session token. The token
// is stored raw server-side and matched byte-for-byte, so the cookie is
// the only copy of the credential.
const SessionCookie = "portal_session"

const errUnauthorized = "Unauthorized"

// patientKey is the gin context key the session middleware stores the
// authenticated patient under.
const patientKey = "patient"

// sessionVerifier is the subset of usecase.TokenAuthority the middleware
// needs. Defined here (point of use) so tests can inject a fake.
type sessionVerifier interface {
	VerifySessionToken(ctx context.Context, raw []byte) (*domain.Patient, error)
}

// SessionAuth verifies the session cookie and stores the patient in the
// gin context. Missing, malformed, unknown and expired cookies all get
// the same 401.
func SessionAuth(authority sessionVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, err := c.Cookie(SessionCookie)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
			return
		}

		raw, err := base64.RawURLEncoding.DecodeString(cookie)
		if err != nil {
			metrics.SessionVerificationsTotal.WithLabelValues("invalid").Inc()
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
			return
		}

		patient, err := authority.VerifySessionToken(c.Request.Context(), raw)
		if err != nil {
			if errors.Is(err, domain.ErrTokenInvalid) {
				metrics.SessionVerificationsTotal.WithLabelValues("invalid").Inc()
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
				return
			}
			metrics.SessionVerificationsTotal.WithLabelValues("error").Inc()
			c.AbortWithStatusJSON(http.StatusInternalServerError,
				gin.H{"error": "Internal server error"})
			return
		}

		metrics.SessionVerificationsTotal.WithLabelValues("valid").Inc()
		c.Set(patientKey, patient)
		c.Next()
	}
}

// Patient returns the authenticated patient set by SessionAuth. Nil when
// the middleware has not run.
func Patient(c *gin.Context) *domain.Patient {
	p, _ := c.Get(patientKey)
	patient, _ := p.(*domain.Patient)
	return patient
}
