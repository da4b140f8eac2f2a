package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"campaign-payments/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotConfirmed is returned when fulfillment is attempted for a transaction
// whose payment has not been confirmed.
var ErrNotConfirmed = errors.New("transaction payment is not confirmed")

// Ledger gives access to the transaction and fulfillment tables. Status,
// verified_at, fulfilled_at and fulfillment rows are only written through
// SettleTransaction and RecordFulfillment.
type Ledger struct {
	db *gorm.DB
}

// NewLedger creates a ledger over db
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// CreateTransaction inserts a new pending transaction
func (l *Ledger) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	if txn.Status != models.StatusPending {
		return fmt.Errorf("new transaction must be pending, got %q", txn.Status)
	}
	return l.db.WithContext(ctx).Create(txn).Error
}

// GetTransaction loads a transaction by reference. It returns
// gorm.ErrRecordNotFound when the reference is unknown.
func (l *Ledger) GetTransaction(ctx context.Context, reference string) (*models.Transaction, error) {
	var txn models.Transaction
	err := l.db.WithContext(ctx).Where("reference = ?", reference).First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// SettleTransaction moves a pending transaction into a terminal status. The
// update only matches while the row is still pending, so of several
// concurrent callers exactly one observes settled == true.
func (l *Ledger) SettleTransaction(ctx context.Context, reference string, status models.TransactionStatus, gatewayResponse string, paidAt *time.Time, at time.Time) (bool, error) {
	if !status.IsTerminal() {
		return false, fmt.Errorf("cannot settle transaction into %q", status)
	}

	result := l.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("reference = ? AND status = ?", reference, models.StatusPending).
		Updates(map[string]interface{}{
			"status":           status,
			"verified_at":      at,
			"paid_at":          paidAt,
			"gateway_response": gatewayResponse,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// RecordFulfillment writes the ticket issuance or vote tally for a confirmed
// transaction and stamps fulfilled_at, in one database transaction. It returns
// applied == false when the fulfillment already existed.
func (l *Ledger) RecordFulfillment(ctx context.Context, reference string, at time.Time) (bool, error) {
	applied := false

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 锁定交易行，防止并发履约
		var txn models.Transaction
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("reference = ?", reference).
			First(&txn).Error; err != nil {
			return err
		}

		if txn.Status != models.StatusSuccess {
			return ErrNotConfirmed
		}
		if txn.FulfilledAt != nil {
			return nil
		}

		inserted, err := insertFulfillment(tx, &txn, at)
		if err != nil {
			return err
		}
		applied = inserted

		return tx.Model(&models.Transaction{}).
			Where("reference = ? AND fulfilled_at IS NULL", reference).
			Update("fulfilled_at", at).Error
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

// insertFulfillment inserts the row selected by the transaction's campaign
// type. A conflict on reference means another caller already fulfilled it.
func insertFulfillment(tx *gorm.DB, txn *models.Transaction, at time.Time) (bool, error) {
	var row interface{}

	switch txn.CampaignType {
	case models.CampaignTypeTicket:
		row = &models.TicketIssuance{
			Reference:  txn.Reference,
			CampaignID: txn.CampaignID,
			Quantity:   txn.Quantity,
			IssuedAt:   at,
		}
	case models.CampaignTypeVote:
		if txn.ContestantID == nil {
			return false, fmt.Errorf("vote transaction %s has no contestant", txn.Reference)
		}
		row = &models.VoteTally{
			Reference:    txn.Reference,
			CampaignID:   txn.CampaignID,
			ContestantID: *txn.ContestantID,
			Votes:        txn.Quantity,
			CreatedAt:    at,
		}
	default:
		return false, fmt.Errorf("unknown campaign type %q for transaction %s", txn.CampaignType, txn.Reference)
	}

	result := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "reference"}},
		DoNothing: true,
	}).Create(row)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ListUnsettled returns one page of transactions the reconciliation sweep must
// look at: pending ones and confirmed ones still missing their fulfillment,
// with id greater than afterID, in id order. A non-empty ownerID limits the
// result to campaigns owned by that operator.
func (l *Ledger) ListUnsettled(ctx context.Context, ownerID string, afterID uint, limit int) ([]models.Transaction, error) {
	query := l.db.WithContext(ctx).
		Where("(status = ? OR (status = ? AND fulfilled_at IS NULL))", models.StatusPending, models.StatusSuccess).
		Where("id > ?", afterID)

	if ownerID != "" {
		owned := l.db.Model(&models.Campaign{}).Select("id").Where("owner_id = ?", ownerID)
		query = query.Where("campaign_id IN (?)", owned)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var transactions []models.Transaction
	err := query.Order("id ASC").Find(&transactions).Error
	return transactions, err
}
