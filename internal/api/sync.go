package api

import (
	"net/http"

	"campaign-payments/internal/middleware"
	"campaign-payments/internal/response"

	"github.com/gin-gonic/gin"
)

// SyncPayments runs the reconciliation sweep for the calling operator
// POST /api/admin/payments/sync
func (h *Handler) SyncPayments(c *gin.Context) {
	operator, ok := middleware.OperatorFromContext(c)
	if !ok {
		response.ErrorJSON(c, http.StatusUnauthorized, "Missing operator")
		return
	}

	result, err := h.syncer.SyncPending(c.Request.Context(), operator)
	if err != nil {
		writeError(c, err)
		return
	}

	response.SuccessJSON(c, result)
}
