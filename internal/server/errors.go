package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	authdomain "github.com/equipqr/equipqr/internal/auth/domain"
	billingdomain "github.com/equipqr/equipqr/internal/billing/domain"
	"github.com/equipqr/equipqr/internal/checkout"
	eqdomain "github.com/equipqr/equipqr/internal/equipment/domain"
	"github.com/equipqr/equipqr/internal/featureaccess"
	orgdomain "github.com/equipqr/equipqr/internal/organization/domain"
	"github.com/equipqr/equipqr/internal/session"
	subdomain "github.com/equipqr/equipqr/internal/subscription/domain"
	teamdomain "github.com/equipqr/equipqr/internal/team/domain"
	"github.com/equipqr/equipqr/internal/webhook"
	wodomain "github.com/equipqr/equipqr/internal/workorder/domain"
)

// statusFor maps domain errors onto HTTP status codes. Anything
// unmapped is a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, authdomain.ErrInvalidCredentials),
		errors.Is(err, authdomain.ErrInvalidSession),
		errors.Is(err, authdomain.ErrSessionExpired):
		return http.StatusUnauthorized

	case errors.Is(err, orgdomain.ErrForbidden),
		errors.Is(err, teamdomain.ErrForbidden),
		errors.Is(err, eqdomain.ErrForbidden),
		errors.Is(err, wodomain.ErrForbidden),
		errors.Is(err, checkout.ErrForbidden):
		return http.StatusForbidden

	case errors.Is(err, orgdomain.ErrOrganizationNotFound),
		errors.Is(err, orgdomain.ErrMemberNotFound),
		errors.Is(err, orgdomain.ErrInviteNotFound),
		errors.Is(err, teamdomain.ErrTeamNotFound),
		errors.Is(err, teamdomain.ErrMemberNotFound),
		errors.Is(err, eqdomain.ErrEquipmentNotFound),
		errors.Is(err, wodomain.ErrWorkOrderNotFound),
		errors.Is(err, subdomain.ErrSubscriptionNotFound),
		errors.Is(err, billingdomain.ErrExemptionNotFound),
		errors.Is(err, session.ErrOrganizationNotFound):
		return http.StatusNotFound

	case errors.Is(err, orgdomain.ErrAlreadyMember),
		errors.Is(err, teamdomain.ErrAlreadyMember),
		errors.Is(err, authdomain.ErrEmailTaken):
		return http.StatusConflict

	case errors.Is(err, wodomain.ErrInvalidTransition):
		return http.StatusConflict

	case errors.Is(err, orgdomain.ErrInvalidRole),
		errors.Is(err, orgdomain.ErrInvalidName),
		errors.Is(err, orgdomain.ErrInvalidEmail),
		errors.Is(err, orgdomain.ErrLastOwner),
		errors.Is(err, teamdomain.ErrInvalidRole),
		errors.Is(err, eqdomain.ErrInvalidStatus),
		errors.Is(err, wodomain.ErrUnknownStatus),
		errors.Is(err, billingdomain.ErrInvalidScope),
		errors.Is(err, featureaccess.ErrInvalidFeatureKey),
		errors.Is(err, checkout.ErrInvalidSeats),
		errors.Is(err, authdomain.ErrWeakPassword),
		errors.Is(err, session.ErrNoOrganizations),
		errors.Is(err, webhook.ErrMalformedEvent):
		return http.StatusBadRequest

	case errors.Is(err, webhook.ErrInvalidSignature),
		errors.Is(err, webhook.ErrSignatureExpired):
		return http.StatusUnauthorized

	default:
		return http.StatusInternalServerError
	}
}

// abortWithError writes the mapped status and a stable error code.
func abortWithError(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{"error": err.Error()}
	if status == http.StatusInternalServerError {
		body = gin.H{"error": "internal_error"}
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}
