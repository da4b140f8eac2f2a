package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"campaign-payments/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWebhookNotifier(t *testing.T) {
	fulfilledAt := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	txn := &models.Transaction{
		Reference:    "TKT_1",
		CampaignID:   7,
		CampaignType: models.CampaignTypeTicket,
		Quantity:     3,
		Amount:       1500,
		Currency:     "NGN",
		Email:        "fan@example.com",
		FulfilledAt:  &fulfilledAt,
	}

	t.Run("Given a reachable backend When notifying Then a signed payload is posted", func(t *testing.T) {
		var payload FulfillmentPayload
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(r.Body)
			assert.NoError(t, err)

			mac := hmac.New(sha256.New, []byte("hook-secret"))
			mac.Write(body)
			assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), r.Header.Get("X-Signature"))
			assert.NoError(t, json.Unmarshal(body, &payload))
			w.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		notifier := NewWebhookNotifier(server.URL, "hook-secret", zap.NewNop())
		require.NoError(t, notifier.NotifyFulfilled(context.Background(), txn))

		assert.Equal(t, "payment.fulfilled", payload.Event)
		assert.Equal(t, "TKT_1", payload.Reference)
		assert.Equal(t, 3, payload.Quantity)
		assert.Equal(t, "2024-05-01T10:00:00Z", payload.FulfilledAt)
	})

	t.Run("Given a backend that fails once When notifying Then the delivery is retried", func(t *testing.T) {
		var attempts atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if attempts.Add(1) == 1 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		notifier := NewWebhookNotifier(server.URL, "", zap.NewNop())
		notifier.retryDelays = []time.Duration{time.Millisecond, time.Millisecond}

		require.NoError(t, notifier.NotifyFulfilled(context.Background(), txn))
		assert.Equal(t, int32(2), attempts.Load())
	})

	t.Run("Given a backend that always fails When notifying Then the last error is returned", func(t *testing.T) {
		var attempts atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		notifier := NewWebhookNotifier(server.URL, "", zap.NewNop())
		notifier.retryDelays = []time.Duration{time.Millisecond}

		err := notifier.NotifyFulfilled(context.Background(), txn)
		assert.ErrorContains(t, err, "503")
		assert.Equal(t, int32(2), attempts.Load())
	})
}
