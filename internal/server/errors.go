package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	accountdomain "github.com/webloom/entitled/internal/account/domain"
	auditdomain "github.com/webloom/entitled/internal/audit/domain"
	entitlementdomain "github.com/webloom/entitled/internal/entitlement/domain"
	paymentdomain "github.com/webloom/entitled/internal/payment/domain"
	"github.com/webloom/entitled/internal/plan"
	"github.com/webloom/entitled/pkg/db"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

// ErrorHandlingMiddleware maps domain sentinel errors onto HTTP statuses
// after the handler chain has run.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, paymentdomain.ErrMalformedEvent):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "malformed_event",
			Message: "malformed event",
		}
	case errors.Is(err, paymentdomain.ErrEventInFlight):
		return http.StatusConflict, errorPayload{
			Type:    "event_in_flight",
			Message: "event is being processed",
		}
	case db.IsDuplicateKeyErr(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case errors.Is(err, ErrServiceUnavailable), db.IsUnavailableErr(err):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, accountdomain.ErrInvalidAccount),
		errors.Is(err, accountdomain.ErrUnknownCounter),
		errors.Is(err, plan.ErrUnknownPlan),
		errors.Is(err, entitlementdomain.ErrUnknownAction),
		errors.Is(err, paymentdomain.ErrInvalidSignature),
		errors.Is(err, auditdomain.ErrInvalidPageToken),
		errors.Is(err, auditdomain.ErrInvalidAction):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, accountdomain.ErrAccountNotFound),
		errors.Is(err, paymentdomain.ErrProviderNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func classifyErrorForLog(err error) string {
	switch {
	case err == nil:
		return ""
	case isValidationError(err):
		return "validation_error"
	case isNotFoundError(err):
		return "not_found"
	case errors.Is(err, paymentdomain.ErrMalformedEvent):
		return "malformed_event"
	case errors.Is(err, ErrServiceUnavailable), db.IsUnavailableErr(err):
		return "service_unavailable"
	default:
		return "internal_error"
	}
}
