package api

import (
	"context"
	"time"

	"campaign-payments/internal/middleware"
	"campaign-payments/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// PaymentInitializer opens payment attempts
type PaymentInitializer interface {
	Initialize(ctx context.Context, in services.InitializeInput) (*services.InitializeOutput, error)
}

// StatusReader answers status polls
type StatusReader interface {
	GetStatus(ctx context.Context, reference string) (*services.StatusView, error)
}

// PendingSyncer runs the reconciliation sweep
type PendingSyncer interface {
	SyncPending(ctx context.Context, op services.Operator) (*services.SyncResult, error)
}

// WebhookVerifier authenticates gateway webhooks
type WebhookVerifier interface {
	Verify(body []byte, signature string) error
}

// Handler serves the payment API
type Handler struct {
	payments       PaymentInitializer
	status         StatusReader
	confirmer      services.Confirmer
	syncer         PendingSyncer
	verifier       WebhookVerifier
	replay         services.ReplayGuard
	confirmTimeout time.Duration
	logger         *zap.Logger
}

// HandlerDeps groups the collaborators of Handler
type HandlerDeps struct {
	Payments       PaymentInitializer
	Status         StatusReader
	Confirmer      services.Confirmer
	Syncer         PendingSyncer
	Verifier       WebhookVerifier
	Replay         services.ReplayGuard // optional
	ConfirmTimeout time.Duration
	Logger         *zap.Logger
}

// NewHandler creates the API handler
func NewHandler(deps HandlerDeps) *Handler {
	timeout := deps.ConfirmTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		payments:       deps.Payments,
		status:         deps.Status,
		confirmer:      deps.Confirmer,
		syncer:         deps.Syncer,
		verifier:       deps.Verifier,
		replay:         deps.Replay,
		confirmTimeout: timeout,
		logger:         logger,
	}
}

// SetupRoutes sets up all routes
func SetupRoutes(r *gin.Engine, h *Handler, operatorSecret string) {
	api := r.Group("/api")
	{
		// Client API (no authentication, references are unguessable)
		payments := api.Group("/payments")
		{
			payments.POST("/initialize", h.InitializePayment)
			payments.GET("/:reference/status", h.GetPaymentStatus)
			payments.POST("/:reference/confirm", h.ConfirmPayment)
		}

		// Gateway webhooks (authenticated by signature)
		webhooks := api.Group("/webhooks")
		{
			webhooks.POST("/paystack", h.PaystackWebhook)
		}

		// Operator routes
		admin := api.Group("/admin")
		admin.Use(middleware.OperatorAuthMiddleware(operatorSecret))
		{
			admin.POST("/payments/sync", h.SyncPayments)
		}
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "campaign-payments",
		})
	})
}
