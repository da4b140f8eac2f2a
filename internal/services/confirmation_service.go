package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"campaign-payments/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TransactionStore is the ledger as seen by the payment services.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, txn *models.Transaction) error
	GetTransaction(ctx context.Context, reference string) (*models.Transaction, error)
	SettleTransaction(ctx context.Context, reference string, status models.TransactionStatus, gatewayResponse string, paidAt *time.Time, at time.Time) (bool, error)
	RecordFulfillment(ctx context.Context, reference string, at time.Time) (bool, error)
	ListUnsettled(ctx context.Context, ownerID string, afterID uint, limit int) ([]models.Transaction, error)
}

// FulfillmentNotifier is told about each freshly applied fulfillment.
// Notifications are best effort and never affect ledger state.
type FulfillmentNotifier interface {
	NotifyFulfilled(ctx context.Context, txn *models.Transaction) error
}

const notifyTimeout = 2 * time.Minute

// ConfirmationService drives a transaction from pending to a terminal status
// and applies its fulfillment exactly once. Webhooks, client confirms and the
// reconciliation sweep all funnel through Confirm.
type ConfirmationService struct {
	store     TransactionStore
	gateway   Gateway
	notifiers []FulfillmentNotifier
	logger    *zap.Logger
	now       func() time.Time
	wg        sync.WaitGroup
}

// NewConfirmationService creates a new confirmation service
func NewConfirmationService(store TransactionStore, gateway Gateway, logger *zap.Logger, notifiers ...FulfillmentNotifier) *ConfirmationService {
	return &ConfirmationService{
		store:     store,
		gateway:   gateway,
		notifiers: notifiers,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Confirm reconciles reference with the gateway and returns the current
// transaction. It is safe to call concurrently and repeatedly: a terminal
// transaction is returned unchanged without contacting the gateway, and a
// confirmed one missing its fulfillment only has the fulfillment retried.
//
// The gateway call happens before any row is touched; the only critical
// section is the pending-guarded status update inside the ledger.
func (s *ConfirmationService) Confirm(ctx context.Context, reference string) (*models.Transaction, error) {
	txn, err := s.load(ctx, reference)
	if err != nil {
		return nil, err
	}

	if txn.NeedsFulfillment() {
		return s.fulfill(ctx, txn)
	}
	if txn.Status.IsTerminal() {
		confirmationsTotal.WithLabelValues("already_settled").Inc()
		return txn, nil
	}

	verification, err := s.verify(ctx, reference)
	if err != nil {
		confirmationsTotal.WithLabelValues("gateway_error").Inc()
		s.logger.Warn("payment verification failed",
			zap.String("reference", reference),
			zap.Error(err))
		return txn, fmt.Errorf("verify %s: %w", reference, err)
	}

	switch verification.Status {
	case ProviderSuccess:
		if err := checkIntegrity(txn, verification); err != nil {
			confirmationsTotal.WithLabelValues("integrity_error").Inc()
			s.logger.Error("verified payment does not match transaction",
				zap.String("reference", reference),
				zap.Int64("expected_amount_minor", toMinorUnits(txn.Amount)),
				zap.Int64("verified_amount_minor", verification.AmountMinor),
				zap.String("expected_currency", txn.Currency),
				zap.String("verified_currency", verification.Currency))
			return txn, err
		}
		return s.settle(ctx, txn, models.StatusSuccess, verification)
	case ProviderFailed:
		return s.settle(ctx, txn, models.StatusFailed, verification)
	case ProviderAbandoned:
		return s.settle(ctx, txn, models.StatusAbandoned, verification)
	default:
		confirmationsTotal.WithLabelValues("still_pending").Inc()
		s.logger.Debug("payment not yet confirmable",
			zap.String("reference", reference),
			zap.String("provider_status", string(verification.Status)))
		return txn, nil
	}
}

// Wait blocks until in-flight notifications have finished.
func (s *ConfirmationService) Wait() {
	s.wg.Wait()
}

func (s *ConfirmationService) verify(ctx context.Context, reference string) (*Verification, error) {
	timer := prometheus.NewTimer(gatewayDuration.WithLabelValues("verify"))
	defer timer.ObserveDuration()
	return s.gateway.Verify(ctx, reference)
}

func (s *ConfirmationService) load(ctx context.Context, reference string) (*models.Transaction, error) {
	txn, err := s.store.GetTransaction(ctx, reference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, reference)
		}
		return nil, fmt.Errorf("failed to load transaction %s: %w", reference, err)
	}
	return txn, nil
}

// settle records the terminal status. Whoever loses the race simply reloads
// the winner's result.
func (s *ConfirmationService) settle(ctx context.Context, txn *models.Transaction, status models.TransactionStatus, verification *Verification) (*models.Transaction, error) {
	settled, err := s.store.SettleTransaction(ctx, txn.Reference, status, verification.GatewayResponse, verification.PaidAt, s.now())
	if err != nil {
		confirmationsTotal.WithLabelValues("storage_error").Inc()
		return txn, fmt.Errorf("failed to settle transaction %s: %w", txn.Reference, err)
	}

	current, err := s.load(ctx, txn.Reference)
	if err != nil {
		return txn, err
	}

	if settled {
		confirmationsTotal.WithLabelValues(string(status)).Inc()
		s.logger.Info("transaction settled",
			zap.String("reference", txn.Reference),
			zap.String("status", string(status)),
			zap.Timep("paid_at", verification.PaidAt),
			zap.String("gateway_response", verification.GatewayResponse))
	} else {
		confirmationsTotal.WithLabelValues("settled_concurrently").Inc()
		s.logger.Debug("transaction already settled by a concurrent confirm",
			zap.String("reference", txn.Reference),
			zap.String("status", string(current.Status)))
	}

	if current.NeedsFulfillment() {
		return s.fulfill(ctx, current)
	}
	return current, nil
}

// fulfill applies the ticket issuance or vote tally. A storage failure leaves
// the payment confirmed with fulfilled_at unset for the next attempt.
func (s *ConfirmationService) fulfill(ctx context.Context, txn *models.Transaction) (*models.Transaction, error) {
	applied, err := s.store.RecordFulfillment(ctx, txn.Reference, s.now())
	if err != nil {
		fulfillmentsTotal.WithLabelValues(string(txn.CampaignType), "failed").Inc()
		s.logger.Error("fulfillment failed",
			zap.String("reference", txn.Reference),
			zap.String("campaign_type", string(txn.CampaignType)),
			zap.Error(err))
		return txn, fmt.Errorf("%w: %s: %v", ErrFulfillmentFailed, txn.Reference, err)
	}

	current, err := s.load(ctx, txn.Reference)
	if err != nil {
		return txn, err
	}

	if !applied {
		fulfillmentsTotal.WithLabelValues(string(txn.CampaignType), "duplicate").Inc()
		return current, nil
	}

	fulfillmentsTotal.WithLabelValues(string(txn.CampaignType), "applied").Inc()
	s.logger.Info("fulfillment applied",
		zap.String("reference", current.Reference),
		zap.String("campaign_type", string(current.CampaignType)),
		zap.Uint("campaign_id", current.CampaignID),
		zap.Int("quantity", current.Quantity))
	s.notify(current)
	return current, nil
}

// notify fans the fulfillment out to notifiers in the background
func (s *ConfirmationService) notify(txn *models.Transaction) {
	for _, notifier := range s.notifiers {
		s.wg.Add(1)
		go func(n FulfillmentNotifier) {
			defer s.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
			defer cancel()
			if err := n.NotifyFulfilled(ctx, txn); err != nil {
				s.logger.Warn("fulfillment notification failed",
					zap.String("reference", txn.Reference),
					zap.Error(err))
			}
		}(notifier)
	}
}

// checkIntegrity rejects a success whose amount or currency differs from
// what was recorded at initialization.
func checkIntegrity(txn *models.Transaction, v *Verification) error {
	if v.AmountMinor != toMinorUnits(txn.Amount) || !strings.EqualFold(v.Currency, txn.Currency) {
		return fmt.Errorf("%w: %s: expected %d %s, verified %d %s", ErrIntegrity,
			txn.Reference, toMinorUnits(txn.Amount), txn.Currency, v.AmountMinor, v.Currency)
	}
	return nil
}
