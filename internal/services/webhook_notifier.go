package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"campaign-payments/internal/models"

	"go.uber.org/zap"
)

// WebhookNotifier posts fulfillment events to an operator backend
type WebhookNotifier struct {
	callbackURL string
	secret      string
	retryDelays []time.Duration
	httpClient  *http.Client
	logger      *zap.Logger
}

// NewWebhookNotifier creates a new webhook notifier
func NewWebhookNotifier(callbackURL, secret string, logger *zap.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		callbackURL: callbackURL,
		secret:      secret,
		retryDelays: []time.Duration{1 * time.Second, 5 * time.Second, 30 * time.Second},
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// FulfillmentPayload is the body sent to the operator backend
type FulfillmentPayload struct {
	Event        string `json:"event"`
	Reference    string `json:"reference"`
	CampaignID   uint   `json:"campaign_id"`
	CampaignType string `json:"campaign_type"`
	ContestantID *uint  `json:"contestant_id,omitempty"`
	Quantity     int    `json:"quantity"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Email        string `json:"email"`
	FulfilledAt  string `json:"fulfilled_at"`
	Timestamp    string `json:"timestamp"`
}

// NotifyFulfilled sends a payment.fulfilled event, retrying on failure
func (wn *WebhookNotifier) NotifyFulfilled(ctx context.Context, txn *models.Transaction) error {
	payload := FulfillmentPayload{
		Event:        "payment.fulfilled",
		Reference:    txn.Reference,
		CampaignID:   txn.CampaignID,
		CampaignType: string(txn.CampaignType),
		ContestantID: txn.ContestantID,
		Quantity:     txn.Quantity,
		Amount:       txn.Amount,
		Currency:     txn.Currency,
		Email:        txn.Email,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	}
	if txn.FulfilledAt != nil {
		payload.FulfilledAt = txn.FulfilledAt.Format(time.RFC3339)
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= len(wn.retryDelays); attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(wn.retryDelays[attempt-1]):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = wn.send(ctx, jsonData)
		if lastErr == nil {
			wn.logger.Info("fulfillment webhook delivered",
				zap.String("reference", txn.Reference),
				zap.Int("attempt", attempt+1))
			return nil
		}

		wn.logger.Warn("fulfillment webhook attempt failed",
			zap.String("reference", txn.Reference),
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr))
	}

	return fmt.Errorf("webhook delivery failed after %d attempts: %w", len(wn.retryDelays)+1, lastErr)
}

// send sends a single webhook request
func (wn *WebhookNotifier) send(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wn.callbackURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "CampaignPayments-Webhook/1.0")
	if wn.secret != "" {
		req.Header.Set("X-Signature", wn.generateSignature(body))
	}

	resp, err := wn.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return nil
}

// generateSignature generates HMAC-SHA256 signature for webhook payload
func (wn *WebhookNotifier) generateSignature(payload []byte) string {
	h := hmac.New(sha256.New, []byte(wn.secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
