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

// PaystackWebhook receives gateway events. Once the payload is authentic and
// well formed it always answers 200, whatever Confirm returned, so the
// gateway does not retry a legitimately failed payment forever; anything
// left pending is picked up by the reconciliation sweep.
// POST /api/webhooks/paystack
func (h *Handler) PaystackWebhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil || len(body) == 0 {
		response.ErrorJSON(c, http.StatusBadRequest, "Empty request body")
		return
	}

	if err := h.verifier.Verify(body, c.GetHeader(services.PaystackSignatureHeader)); err != nil {
		h.logger.Warn("rejected webhook", zap.String("client_ip", c.ClientIP()), zap.Error(err))
		response.ErrorJSON(c, http.StatusUnauthorized, "Signature verification failed")
		return
	}

	event, err := services.ParseWebhookEvent(body)
	if err != nil {
		h.logger.Warn("malformed webhook", zap.Error(err))
		response.ErrorJSON(c, http.StatusBadRequest, "Invalid webhook payload")
		return
	}

	reference := event.Data.Reference
	if reference == "" {
		h.logger.Info("webhook without reference ignored", zap.String("event", event.Event))
		response.SuccessJSON(c, gin.H{"received": true})
		return
	}

	ctx := c.Request.Context()
	if h.replay != nil {
		seen, err := h.replay.Seen(ctx, event.ReplayKey())
		if err != nil {
			h.logger.Warn("replay guard unavailable", zap.Error(err))
		} else if seen {
			h.logger.Info("duplicate webhook delivery",
				zap.String("event", event.Event),
				zap.String("reference", reference))
			response.SuccessJSON(c, gin.H{"received": true, "duplicate": true})
			return
		}
	}

	confirmCtx, cancel := context.WithTimeout(ctx, h.confirmTimeout)
	defer cancel()

	txn, err := h.confirmer.Confirm(confirmCtx, reference)
	switch {
	case errors.Is(err, services.ErrNotFound):
		h.logger.Warn("webhook for unknown reference",
			zap.String("event", event.Event),
			zap.String("reference", reference))
	case err != nil:
		h.logger.Error("webhook confirm failed",
			zap.String("event", event.Event),
			zap.String("reference", reference),
			zap.Error(err))
	default:
		h.logger.Info("webhook processed",
			zap.String("event", event.Event),
			zap.String("reference", reference),
			zap.String("status", string(txn.Status)))
		if h.replay != nil && txn.Status.IsTerminal() && !txn.NeedsFulfillment() {
			if err := h.replay.Remember(ctx, event.ReplayKey()); err != nil {
				h.logger.Warn("failed to record webhook delivery", zap.Error(err))
			}
		}
	}

	response.SuccessJSON(c, gin.H{"received": true})
}
