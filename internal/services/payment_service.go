package services

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"campaign-payments/internal/models"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// RateLimiter throttles repeated payment attempts for the same key.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// InitializeInput is a client's request to pay for a campaign.
type InitializeInput struct {
	CampaignSlug string
	Email        string
	PayerName    string
	Quantity     int
	ContestantID *uint
}

// InitializeOutput tells the client how to complete payment.
type InitializeOutput struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
}

// PaymentService opens payment attempts with the gateway
type PaymentService struct {
	store       TransactionStore
	directory   Directory
	gateway     Gateway
	limiter     RateLimiter
	callbackURL string
	logger      *zap.Logger
}

// NewPaymentService creates a new payment service. limiter may be nil.
func NewPaymentService(store TransactionStore, directory Directory, gateway Gateway, limiter RateLimiter, callbackURL string, logger *zap.Logger) *PaymentService {
	return &PaymentService{
		store:       store,
		directory:   directory,
		gateway:     gateway,
		limiter:     limiter,
		callbackURL: callbackURL,
		logger:      logger,
	}
}

// Initialize validates the purchase against the campaign, opens the payment
// with the gateway and records the pending transaction.
func (s *PaymentService) Initialize(ctx context.Context, in InitializeInput) (*InitializeOutput, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}

	campaign, err := s.directory.GetCampaignBySlug(ctx, in.CampaignSlug)
	if err != nil {
		return nil, err
	}

	if err := s.validatePurchase(ctx, campaign, in); err != nil {
		return nil, err
	}

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, fmt.Sprintf("%d:%s", campaign.ID, email))
		if err != nil {
			// Rate limiting is advisory; keep selling when Redis is down.
			s.logger.Warn("rate limiter unavailable", zap.Error(err))
		} else if !allowed {
			return nil, ErrRateLimited
		}
	}

	reference := newReference(campaign.Type)
	amount := campaign.UnitAmount * int64(in.Quantity)

	metadata := map[string]interface{}{
		"campaign_id":   campaign.ID,
		"campaign_type": campaign.Type,
		"quantity":      in.Quantity,
	}
	if in.ContestantID != nil {
		metadata["contestant_id"] = *in.ContestantID
	}

	timer := prometheus.NewTimer(gatewayDuration.WithLabelValues("initialize"))
	result, err := s.gateway.Initialize(ctx, InitializeRequest{
		Reference:   reference,
		Email:       email,
		AmountMinor: toMinorUnits(amount),
		Currency:    campaign.Currency,
		CallbackURL: s.callbackURL,
		Metadata:    metadata,
	})
	timer.ObserveDuration()
	if err != nil {
		s.logger.Error("gateway initialize failed",
			zap.String("reference", reference),
			zap.String("campaign", campaign.Slug),
			zap.Error(err))
		return nil, err
	}

	txn := &models.Transaction{
		Reference:        reference,
		Provider:         s.gateway.Name(),
		CampaignID:       campaign.ID,
		CampaignType:     campaign.Type,
		ContestantID:     in.ContestantID,
		Status:           models.StatusPending,
		Amount:           amount,
		Currency:         campaign.Currency,
		Quantity:         in.Quantity,
		Email:            email,
		PayerName:        strings.TrimSpace(in.PayerName),
		AuthorizationURL: result.AuthorizationURL,
		AccessCode:       result.AccessCode,
	}
	if err := s.store.CreateTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("failed to record transaction %s: %w", reference, err)
	}

	s.logger.Info("payment initialized",
		zap.String("reference", reference),
		zap.String("campaign", campaign.Slug),
		zap.String("campaign_type", string(campaign.Type)),
		zap.Int("quantity", in.Quantity),
		zap.Int64("amount", amount),
		zap.String("currency", campaign.Currency))

	return &InitializeOutput{
		Reference:        reference,
		AuthorizationURL: result.AuthorizationURL,
		AccessCode:       result.AccessCode,
		Amount:           amount,
		Currency:         campaign.Currency,
	}, nil
}

func (s *PaymentService) validatePurchase(ctx context.Context, campaign *models.Campaign, in InitializeInput) error {
	if in.Quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", ErrInvalidRequest)
	}
	if in.Quantity > campaign.MaxPerTxn {
		return fmt.Errorf("%w: quantity %d exceeds the maximum of %d per transaction", ErrInvalidRequest, in.Quantity, campaign.MaxPerTxn)
	}

	switch campaign.Type {
	case models.CampaignTypeTicket:
		if in.ContestantID != nil {
			return fmt.Errorf("%w: ticket campaigns do not take a contestant", ErrInvalidRequest)
		}
	case models.CampaignTypeVote:
		if in.ContestantID == nil {
			return fmt.Errorf("%w: contestant_id is required for vote campaigns", ErrInvalidRequest)
		}
		exists, err := s.directory.ContestantExists(ctx, campaign.ID, *in.ContestantID)
		if err != nil {
			return fmt.Errorf("failed to look up contestant: %w", err)
		}
		if !exists {
			return fmt.Errorf("%w: contestant %d is not part of this campaign", ErrInvalidRequest, *in.ContestantID)
		}
	default:
		return fmt.Errorf("%w: campaign %s has unsupported type %q", ErrInvalidRequest, campaign.Slug, campaign.Type)
	}
	return nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: invalid email address", ErrInvalidRequest)
	}
	return email, nil
}

// newReference builds a gateway reference, prefixed by campaign type
func newReference(campaignType models.CampaignType) string {
	prefix := "TKT"
	if campaignType == models.CampaignTypeVote {
		prefix = "VOT"
	}
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
