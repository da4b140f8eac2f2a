package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"campaign-payments/internal/api"
	"campaign-payments/internal/config"
	"campaign-payments/internal/database"
	"campaign-payments/internal/middleware"
	"campaign-payments/internal/services"
	"campaign-payments/pkg/logging"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// systemOperator runs the scheduled sweep across every campaign
var systemOperator = services.Operator{ID: "system", Role: services.RoleAdmin}

func main() {
	// Initialize configuration
	if err := config.InitConfig(); err != nil {
		log.Fatal("Failed to initialize config:", err)
	}
	cfg := config.AppConfig

	// Initialize logging
	logger, err := logging.InitLogging(cfg.Mode, cfg.ServiceName)
	if err != nil {
		log.Fatal("Failed to initialize logging:", err)
	}
	defer logging.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.Connect(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	if err := database.AutoMigrate(db); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}
	if !cfg.IsRelease() {
		if err := database.SeedDemoData(db); err != nil {
			logger.Warn("Failed to seed demo data", zap.Error(err))
		}
	}

	rdb, err := database.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	defer database.Close(db, rdb)

	ledger := database.NewLedger(db)
	directory := services.NewDirectoryService(db)
	gateway := services.NewPaystackClient(cfg.PaystackBaseURL, cfg.PaystackSecretKey)

	var notifiers []services.FulfillmentNotifier
	if cfg.BrevoAPIKey != "" {
		notifiers = append(notifiers, services.NewReceiptMailer(cfg.BrevoAPIKey, cfg.BrevoFromEmail, cfg.BrevoFromName, directory, logger))
	}
	if cfg.FulfillmentWebhookURL != "" {
		notifiers = append(notifiers, services.NewWebhookNotifier(cfg.FulfillmentWebhookURL, cfg.FulfillmentWebhookSecret, logger))
	}

	replayTTL := time.Duration(cfg.ReplayTTLHours) * time.Hour
	var (
		replay  services.ReplayGuard
		limiter services.RateLimiter
	)
	if rdb != nil {
		redisService := services.NewRedisService(rdb, replayTTL, time.Duration(cfg.InitRateLimitSeconds)*time.Second)
		replay = redisService
		limiter = redisService
	} else {
		memory := services.NewReplayProtection(replayTTL, logger)
		defer memory.Stop()
		replay = memory
	}

	confirmation := services.NewConfirmationService(ledger, gateway, logger, notifiers...)
	syncer := services.NewSyncService(ledger, confirmation, cfg.SweepConcurrency, logger)

	handler := api.NewHandler(api.HandlerDeps{
		Payments:       services.NewPaymentService(ledger, directory, gateway, limiter, cfg.PaystackCallbackURL, logger),
		Status:         services.NewStatusService(ledger, directory),
		Confirmer:      confirmation,
		Syncer:         syncer,
		Verifier:       services.NewSignatureVerifier(cfg.PaystackSecretKey),
		Replay:         replay,
		ConfirmTimeout: time.Duration(cfg.ConfirmTimeoutSeconds) * time.Second,
		Logger:         logger,
	})

	// Set Gin mode
	gin.SetMode(cfg.Mode)

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(logger))

	// Setup routes
	api.SetupRoutes(r, handler, cfg.OperatorJWTSecret)

	sweepsDone := make(chan struct{})
	if cfg.SweepIntervalMinutes > 0 {
		go func() {
			defer close(sweepsDone)
			syncer.Run(ctx, systemOperator, time.Duration(cfg.SweepIntervalMinutes)*time.Minute)
		}()
	} else {
		close(sweepsDone)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}

	// A running sweep may still fulfill and notify
	<-sweepsDone

	// Let in-flight receipts and fulfillment webhooks finish
	confirmation.Wait()
}
