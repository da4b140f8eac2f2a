package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"campaign-payments/internal/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RoleAdmin operators reconcile every campaign, not only their own.
const RoleAdmin = "admin"

// Operator is the authenticated caller of an operator-only operation.
type Operator struct {
	ID   string
	Role string
}

// IsAdmin reports whether the operator may act across all campaigns
func (o Operator) IsAdmin() bool {
	return o.Role == RoleAdmin
}

// Confirmer confirms one reference.
type Confirmer interface {
	Confirm(ctx context.Context, reference string) (*models.Transaction, error)
}

// SyncResult summarizes a reconciliation sweep.
type SyncResult struct {
	Checked int `json:"checked"`
	// Updated counts references whose status or fulfillment changed between
	// listing and confirming, including changes made by a concurrent webhook
	// or client confirm.
	Updated int      `json:"updated"`
	Errors  []string `json:"errors"`
}

// SyncService is the reconciliation sweep: the backstop for lost or delayed
// webhooks and for fulfillments that failed after payment was confirmed.
type SyncService struct {
	store       TransactionStore
	confirmer   Confirmer
	concurrency int
	batchSize   int
	logger      *zap.Logger
}

// NewSyncService creates a new sync service. concurrency bounds the number
// of references confirmed in parallel.
func NewSyncService(store TransactionStore, confirmer Confirmer, concurrency int, logger *zap.Logger) *SyncService {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &SyncService{
		store:       store,
		confirmer:   confirmer,
		concurrency: concurrency,
		batchSize:   1000,
		logger:      logger,
	}
}

// SyncPending confirms every unsettled transaction visible to op. One
// reference failing never stops the others; failures are reported per
// reference in the result.
func (s *SyncService) SyncPending(ctx context.Context, op Operator) (*SyncResult, error) {
	if op.ID == "" {
		return nil, fmt.Errorf("%w: operator is required", ErrInvalidRequest)
	}

	ownerID := op.ID
	if op.IsAdmin() {
		ownerID = ""
	}

	result := &SyncResult{Errors: []string{}}
	var mu sync.Mutex

	// Keyset paging: rows that stay pending never hide newer ones.
	var afterID uint
	for {
		transactions, err := s.store.ListUnsettled(ctx, ownerID, afterID, s.batchSize)
		if err != nil {
			return nil, fmt.Errorf("failed to list unsettled transactions: %w", err)
		}
		if len(transactions) == 0 {
			break
		}
		result.Checked += len(transactions)
		afterID = transactions[len(transactions)-1].ID

		var g errgroup.Group
		g.SetLimit(s.concurrency)

		for i := range transactions {
			before := transactions[i]
			g.Go(func() error {
				after, err := s.confirmer.Confirm(ctx, before.Reference)

				mu.Lock()
				defer mu.Unlock()
				if after != nil && transitioned(&before, after) {
					result.Updated++
				}
				if err != nil {
					result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", before.Reference, err))
				}
				return nil
			})
		}
		_ = g.Wait()

		if len(transactions) < s.batchSize || ctx.Err() != nil {
			break
		}
	}

	sort.Strings(result.Errors)
	sweepTransitionsTotal.Add(float64(result.Updated))
	sweepErrorsTotal.Add(float64(len(result.Errors)))

	s.logger.Info("reconciliation sweep finished",
		zap.String("operator_id", op.ID),
		zap.Bool("all_campaigns", op.IsAdmin()),
		zap.Int("checked", result.Checked),
		zap.Int("updated", result.Updated),
		zap.Int("errors", len(result.Errors)))

	return result, nil
}

// Run sweeps as op every interval until ctx is done. It returns only after
// an in-flight sweep has finished.
func (s *SyncService) Run(ctx context.Context, op Operator, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SyncPending(ctx, op); err != nil {
				s.logger.Error("scheduled reconciliation failed", zap.Error(err))
			}
		}
	}
}

// transitioned reports a status change or a newly applied fulfillment
func transitioned(before, after *models.Transaction) bool {
	if before.Status != after.Status {
		return true
	}
	return before.FulfilledAt == nil && after.FulfilledAt != nil
}
