package api

import (
	"errors"
	"net/http"

	"campaign-payments/internal/response"
	"campaign-payments/internal/services"

	"github.com/gin-gonic/gin"
)

// statusForError maps service errors onto HTTP status codes
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound, "Transaction not found"
	case errors.Is(err, services.ErrCampaignNotFound):
		return http.StatusNotFound, "Campaign not found"
	case errors.Is(err, services.ErrInvalidRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, services.ErrRateLimited):
		return http.StatusTooManyRequests, "Please wait before starting another payment"
	case errors.Is(err, services.ErrGatewayRejected):
		return http.StatusUnprocessableEntity, "Payment was rejected by the gateway"
	case errors.Is(err, services.ErrGatewayUnavailable):
		return http.StatusServiceUnavailable, "Payment gateway unavailable, try again shortly"
	case errors.Is(err, services.ErrForgedCallback):
		return http.StatusConflict, "Payment could not be verified"
	default:
		return http.StatusInternalServerError, "Internal error"
	}
}

func writeError(c *gin.Context, err error) {
	statusCode, message := statusForError(err)
	_ = c.Error(err)
	response.ErrorJSON(c, statusCode, message)
}
