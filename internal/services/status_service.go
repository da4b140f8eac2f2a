package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"campaign-payments/internal/models"

	"gorm.io/gorm"
)

// StatusView is the client-facing projection of a transaction.
type StatusView struct {
	Reference     string                   `json:"reference"`
	Status        models.TransactionStatus `json:"status"`
	PaymentStatus models.TransactionStatus `json:"payment_status"`
	Fulfilled     bool                     `json:"fulfilled"`
	Amount        int64                    `json:"amount"`
	Currency      string                   `json:"currency"`
	Quantity      int                      `json:"quantity"`
	CampaignTitle string                   `json:"campaign_title"`
	CampaignType  models.CampaignType      `json:"campaign_type"`
	PaidAt        *time.Time               `json:"paid_at,omitempty"`
	VerifiedAt    *time.Time               `json:"verified_at,omitempty"`
	FulfilledAt   *time.Time               `json:"fulfilled_at,omitempty"`
}

// StatusService answers status polls. It never mutates and never calls the gateway.
type StatusService struct {
	store     TransactionStore
	directory Directory
}

// NewStatusService creates a new status service
func NewStatusService(store TransactionStore, directory Directory) *StatusService {
	return &StatusService{store: store, directory: directory}
}

// GetStatus loads the view for reference
func (s *StatusService) GetStatus(ctx context.Context, reference string) (*StatusView, error) {
	txn, err := s.store.GetTransaction(ctx, reference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, reference)
		}
		return nil, fmt.Errorf("failed to load transaction %s: %w", reference, err)
	}

	view := NewStatusView(txn)

	campaign, err := s.directory.GetCampaign(ctx, txn.CampaignID)
	if err != nil && !errors.Is(err, ErrCampaignNotFound) {
		return nil, fmt.Errorf("failed to load campaign %d: %w", txn.CampaignID, err)
	}
	if campaign != nil {
		view.CampaignTitle = campaign.Title
	}
	return view, nil
}

// NewStatusView projects txn for clients. A confirmed payment is reported as
// pending until its fulfillment has been applied, so a client never shows
// tickets or votes that were not issued.
func NewStatusView(txn *models.Transaction) *StatusView {
	status := txn.Status
	if txn.NeedsFulfillment() {
		status = models.StatusPending
	}
	return &StatusView{
		Reference:     txn.Reference,
		Status:        status,
		PaymentStatus: txn.Status,
		Fulfilled:     txn.FulfilledAt != nil,
		Amount:        txn.Amount,
		Currency:      txn.Currency,
		Quantity:      txn.Quantity,
		CampaignType:  txn.CampaignType,
		PaidAt:        txn.PaidAt,
		VerifiedAt:    txn.VerifiedAt,
		FulfilledAt:   txn.FulfilledAt,
	}
}
