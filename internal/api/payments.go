package api

import (
	"context"
	"errors"
	"net/http"

	"campaign-payments/internal/response"
	"campaign-payments/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// InitializePaymentRequest represents initialize payment request
type InitializePaymentRequest struct {
	CampaignSlug string `json:"campaign_slug" binding:"required"`
	Email        string `json:"email" binding:"required,email"`
	Quantity     int    `json:"quantity" binding:"required,min=1"`
	ContestantID *uint  `json:"contestant_id"`
	PayerName    string `json:"payer_name"`
}

// InitializePayment opens a payment for a campaign
// POST /api/payments/initialize
func (h *Handler) InitializePayment(c *gin.Context) {
	var req InitializePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorJSON(c, http.StatusBadRequest, "Invalid request format: "+err.Error())
		return
	}

	out, err := h.payments.Initialize(c.Request.Context(), services.InitializeInput{
		CampaignSlug: req.CampaignSlug,
		Email:        req.Email,
		PayerName:    req.PayerName,
		Quantity:     req.Quantity,
		ContestantID: req.ContestantID,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	response.SuccessJSON(c, out)
}

// GetPaymentStatus returns the current view of a transaction; clients poll it
// GET /api/payments/:reference/status
func (h *Handler) GetPaymentStatus(c *gin.Context) {
	view, err := h.status.GetStatus(c.Request.Context(), c.Param("reference"))
	if err != nil {
		writeError(c, err)
		return
	}

	response.SuccessJSON(c, view)
}

// ConfirmPayment is the client-driven confirmation path. The client calls it
// after returning from the payment page or while polling.
// POST /api/payments/:reference/confirm
func (h *Handler) ConfirmPayment(c *gin.Context) {
	reference := c.Param("reference")

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.confirmTimeout)
	defer cancel()

	_, confirmErr := h.confirmer.Confirm(ctx, reference)
	if confirmErr != nil && !errors.Is(confirmErr, services.ErrFulfillmentFailed) {
		h.logger.Warn("client confirm failed",
			zap.String("reference", reference),
			zap.Error(confirmErr))
		writeError(c, confirmErr)
		return
	}

	view, err := h.status.GetStatus(c.Request.Context(), reference)
	if err != nil {
		writeError(c, err)
		return
	}

	if confirmErr != nil {
		// Payment confirmed, fulfillment retried later
		response.StatusJSON(c, http.StatusAccepted, "Payment confirmed, fulfillment pending", view)
		return
	}
	response.SuccessJSON(c, view)
}
