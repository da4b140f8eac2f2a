package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"campaign-payments/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConfirm(t *testing.T) {
	ctx := context.Background()

	t.Run("Given a ticket purchase of 3 paid at the gateway When confirming Then tickets are issued once", func(t *testing.T) {
		env := newTestEnv(t)
		payments := NewPaymentService(env.store, env.directory, env.gateway, nil, "", zap.NewNop())

		out, err := payments.Initialize(ctx, InitializeInput{
			CampaignSlug: env.tickets.Slug,
			Email:        "fan@example.com",
			Quantity:     3,
		})
		require.NoError(t, err)
		env.settleAtGateway(env.reload(t, out.Reference), ProviderSuccess)

		txn, err := env.confirmation.Confirm(ctx, out.Reference)
		require.NoError(t, err)
		assert.Equal(t, models.StatusSuccess, txn.Status)
		assert.NotNil(t, txn.VerifiedAt)
		assert.NotNil(t, txn.FulfilledAt)
		require.NotNil(t, txn.PaidAt)
		assert.True(t, gatewayPaidAt.Equal(*txn.PaidAt))
		assert.Equal(t, int64(1), env.issuanceCount(t, out.Reference))

		var issuance models.TicketIssuance
		require.NoError(t, env.db.Where("reference = ?", out.Reference).First(&issuance).Error)
		assert.Equal(t, 3, issuance.Quantity)

		env.confirmation.Wait()
		assert.Equal(t, int32(1), env.notifier.calls.Load())
	})

	t.Run("Given a settled transaction When confirming again Then the gateway is not called", func(t *testing.T) {
		env := newTestEnv(t)
		txn := env.createPending(t, env.tickets, "REF-REPEAT", 2)
		env.settleAtGateway(txn, ProviderSuccess)

		first, err := env.confirmation.Confirm(ctx, txn.Reference)
		require.NoError(t, err)
		calls := env.gateway.verifyCalls.Load()

		second, err := env.confirmation.Confirm(ctx, txn.Reference)
		require.NoError(t, err)
		assert.Equal(t, calls, env.gateway.verifyCalls.Load())
		assert.Equal(t, first.Status, second.Status)
		assert.Equal(t, first.FulfilledAt.Unix(), second.FulfilledAt.Unix())
		assert.Equal(t, int64(1), env.issuanceCount(t, txn.Reference))
	})

	t.Run("Given 50 concurrent confirms When the payment succeeded Then exactly one fulfillment is written", func(t *testing.T) {
		env := newTestEnv(t)
		txn := env.createPending(t, env.votes, "REF-RACE", 4)
		env.settleAtGateway(txn, ProviderSuccess)

		const callers = 50
		var wg sync.WaitGroup
		results := make([]*models.Transaction, callers)
		errs := make([]error, callers)
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], errs[i] = env.confirmation.Confirm(ctx, txn.Reference)
			}(i)
		}
		wg.Wait()

		for i := 0; i < callers; i++ {
			require.NoError(t, errs[i])
			assert.Equal(t, models.StatusSuccess, results[i].Status)
			assert.NotNil(t, results[i].FulfilledAt)
		}
		assert.Equal(t, int64(1), env.tallyCount(t, txn.Reference))

		env.confirmation.Wait()
		assert.Equal(t, int32(1), env.notifier.calls.Load())
	})

	t.Run("Given a terminal transaction When the gateway later reports otherwise Then it is unchanged", func(t *testing.T) {
		env := newTestEnv(t)
		txn := env.createPending(t, env.tickets, "REF-FAILED", 1)
		env.settleAtGateway(txn, ProviderFailed)

		failed, err := env.confirmation.Confirm(ctx, txn.Reference)
		require.NoError(t, err)
		require.Equal(t, models.StatusFailed, failed.Status)

		env.settleAtGateway(txn, ProviderSuccess)
		calls := env.gateway.verifyCalls.Load()

		again, err := env.confirmation.Confirm(ctx, txn.Reference)
		require.NoError(t, err)
		assert.Equal(t, models.StatusFailed, again.Status)
		assert.Nil(t, again.FulfilledAt)
		assert.Equal(t, calls, env.gateway.verifyCalls.Load())
		assert.Equal(t, int64(0), env.issuanceCount(t, txn.Reference))
	})

	t.Run("Given the gateway has not settled When confirming Then the transaction stays pending", func(t *testing.T) {
		env := newTestEnv(t)
		pending := env.createPending(t, env.tickets, "REF-PENDING", 1)
		unknown := env.createPending(t, env.tickets, "REF-UNKNOWN", 1)
		env.gateway.set(unknown.Reference, ProviderUnknown, 0, "")

		for _, ref := range []string{pending.Reference, unknown.Reference} {
			txn, err := env.confirmation.Confirm(ctx, ref)
			require.NoError(t, err)
			assert.Equal(t, models.StatusPending, txn.Status)
			assert.Nil(t, env.reload(t, ref).VerifiedAt)
		}
	})

	t.Run("Given an abandoned payment When confirming Then nothing is fulfilled", func(t *testing.T) {
		env := newTestEnv(t)
		txn := env.createPending(t, env.votes, "REF-ABANDONED", 5)
		env.settleAtGateway(txn, ProviderAbandoned)

		got, err := env.confirmation.Confirm(ctx, txn.Reference)
		require.NoError(t, err)
		assert.Equal(t, models.StatusAbandoned, got.Status)
		assert.Nil(t, got.FulfilledAt)
		assert.Equal(t, int64(0), env.tallyCount(t, txn.Reference))
	})

	t.Run("Given an unknown reference When confirming Then not found is returned", func(t *testing.T) {
		env := newTestEnv(t)

		txn, err := env.confirmation.Confirm(ctx, "REF-NOPE")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Nil(t, txn)
		assert.Equal(t, int32(0), env.gateway.verifyCalls.Load())
	})

	t.Run("Given the gateway is down When confirming Then the error is retryable and nothing changes", func(t *testing.T) {
		env := newTestEnv(t)
		txn := env.createPending(t, env.tickets, "REF-DOWN", 1)
		env.gateway.fail(txn.Reference, fmt.Errorf("%w: connection reset", ErrGatewayUnavailable))

		got, err := env.confirmation.Confirm(ctx, txn.Reference)
		assert.ErrorIs(t, err, ErrGatewayUnavailable)
		require.NotNil(t, got)
		assert.Equal(t, models.StatusPending, env.reload(t, txn.Reference).Status)
	})

	t.Run("Given a verified amount that differs When confirming Then it is treated as forged", func(t *testing.T) {
		env := newTestEnv(t)
		txn := env.createPending(t, env.tickets, "REF-SHORT", 3)
		env.gateway.set(txn.Reference, ProviderSuccess, toMinorUnits(txn.Amount)-100, txn.Currency)

		_, err := env.confirmation.Confirm(ctx, txn.Reference)
		assert.ErrorIs(t, err, ErrIntegrity)
		assert.ErrorIs(t, err, ErrForgedCallback)
		assert.Equal(t, models.StatusPending, env.reload(t, txn.Reference).Status)
		assert.Equal(t, int64(0), env.issuanceCount(t, txn.Reference))
	})

	t.Run("Given a verified currency that differs When confirming Then it is treated as forged", func(t *testing.T) {
		env := newTestEnv(t)
		txn := env.createPending(t, env.tickets, "REF-USD", 1)
		env.gateway.set(txn.Reference, ProviderSuccess, toMinorUnits(txn.Amount), "USD")

		_, err := env.confirmation.Confirm(ctx, txn.Reference)
		assert.ErrorIs(t, err, ErrIntegrity)
		assert.Equal(t, models.StatusPending, env.reload(t, txn.Reference).Status)
	})

	t.Run("Given fulfillment storage fails When confirming Then the payment stays confirmed and a later confirm heals it", func(t *testing.T) {
		env := newTestEnv(t)
		txn := env.createPending(t, env.tickets, "REF-HEAL", 2)
		env.settleAtGateway(txn, ProviderSuccess)
		env.store.failFulfillment(txn.Reference, true)

		got, err := env.confirmation.Confirm(ctx, txn.Reference)
		assert.ErrorIs(t, err, ErrFulfillmentFailed)
		require.NotNil(t, got)
		assert.Equal(t, models.StatusSuccess, got.Status)
		assert.Nil(t, got.FulfilledAt)
		assert.Equal(t, int64(0), env.issuanceCount(t, txn.Reference))

		env.store.failFulfillment(txn.Reference, false)
		calls := env.gateway.verifyCalls.Load()

		healed, err := env.confirmation.Confirm(ctx, txn.Reference)
		require.NoError(t, err)
		assert.NotNil(t, healed.FulfilledAt)
		assert.Equal(t, int64(1), env.issuanceCount(t, txn.Reference))
		assert.Equal(t, calls, env.gateway.verifyCalls.Load())
	})
}

func TestCheckIntegrity(t *testing.T) {
	txn := &models.Transaction{Reference: "REF", Amount: 1500, Currency: "NGN"}

	t.Run("Given matching amount and currency in another case When checking Then it passes", func(t *testing.T) {
		assert.NoError(t, checkIntegrity(txn, &Verification{AmountMinor: 150000, Currency: "ngn"}))
	})

	t.Run("Given an overpayment When checking Then it fails", func(t *testing.T) {
		assert.ErrorIs(t, checkIntegrity(txn, &Verification{AmountMinor: 150001, Currency: "NGN"}), ErrIntegrity)
	})
}
