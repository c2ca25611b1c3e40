package server

import (
	"errors"
	"net/http"

	billingdomain "github.com/campushq/paycore/internal/billing/domain"
	gwdomain "github.com/campushq/paycore/internal/gateway/domain"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var ErrInvalidRequest = errors.New("invalid_request")

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

// mapError keeps callback rejections deliberately vague: a caller probing
// the webhook endpoint learns only that the request was rejected.
func mapError(err error) (int, errorPayload) {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, gwdomain.ErrInvalidPayload),
		errors.Is(err, gwdomain.ErrInvalidSignature),
		errors.Is(err, gwdomain.ErrUnknownCorrelation):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_request",
			Message: "invalid request",
		}
	case errors.Is(err, gwdomain.ErrGatewayNotFound),
		errors.Is(err, billingdomain.ErrPlanNotFound),
		errors.Is(err, billingdomain.ErrTenantNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, billingdomain.ErrPlanInactive):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "plan is not active",
		}
	case errors.Is(err, gwdomain.ErrGatewayUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "payment network unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}
