package services

import (
	"context"
	"testing"

	"campaign-payments/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("Given an unknown reference When polling Then not found is returned", func(t *testing.T) {
		env := newTestEnv(t)
		status := NewStatusService(env.store, env.directory)

		_, err := status.GetStatus(ctx, "REF-NOPE")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Given a confirmed payment awaiting fulfillment When polling Then it is still reported pending", func(t *testing.T) {
		env := newTestEnv(t)
		status := NewStatusService(env.store, env.directory)
		txn := env.createPending(t, env.tickets, "REF-HALFWAY", 2)
		env.settleAtGateway(txn, ProviderSuccess)
		env.store.failFulfillment(txn.Reference, true)

		_, err := env.confirmation.Confirm(ctx, txn.Reference)
		require.ErrorIs(t, err, ErrFulfillmentFailed)

		view, err := status.GetStatus(ctx, txn.Reference)
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, view.Status)
		assert.Equal(t, models.StatusSuccess, view.PaymentStatus)
		assert.False(t, view.Fulfilled)
		assert.Equal(t, env.tickets.Title, view.CampaignTitle)
	})

	t.Run("Given a fulfilled payment When polling Then it is reported successful", func(t *testing.T) {
		env := newTestEnv(t)
		status := NewStatusService(env.store, env.directory)
		txn := env.createPending(t, env.votes, "REF-DONE", 2)
		env.settleAtGateway(txn, ProviderSuccess)

		_, err := env.confirmation.Confirm(ctx, txn.Reference)
		require.NoError(t, err)
		calls := env.gateway.verifyCalls.Load()

		view, err := status.GetStatus(ctx, txn.Reference)
		require.NoError(t, err)
		assert.Equal(t, models.StatusSuccess, view.Status)
		assert.True(t, view.Fulfilled)
		assert.Equal(t, 2, view.Quantity)
		assert.Equal(t, models.CampaignTypeVote, view.CampaignType)
		require.NotNil(t, view.PaidAt)
		assert.True(t, gatewayPaidAt.Equal(*view.PaidAt))
		assert.Equal(t, calls, env.gateway.verifyCalls.Load())
	})
}
