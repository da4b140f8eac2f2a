package services

import (
	"context"
	"fmt"

	"campaign-payments/internal/models"

	brevo "github.com/getbrevo/brevo-go/lib"
	"go.uber.org/zap"
)

// ReceiptMailer emails the payer once their tickets or votes are issued
type ReceiptMailer struct {
	client    *brevo.APIClient
	directory Directory
	fromEmail string
	fromName  string
	logger    *zap.Logger
}

// NewReceiptMailer creates a Brevo-backed receipt mailer
func NewReceiptMailer(apiKey, fromEmail, fromName string, directory Directory, logger *zap.Logger) *ReceiptMailer {
	cfg := brevo.NewConfiguration()
	cfg.AddDefaultHeader("api-key", apiKey)

	return &ReceiptMailer{
		client:    brevo.NewAPIClient(cfg),
		directory: directory,
		fromEmail: fromEmail,
		fromName:  fromName,
		logger:    logger,
	}
}

// NotifyFulfilled sends the receipt
func (m *ReceiptMailer) NotifyFulfilled(ctx context.Context, txn *models.Transaction) error {
	campaign, err := m.directory.GetCampaign(ctx, txn.CampaignID)
	if err != nil {
		return fmt.Errorf("failed to load campaign for receipt: %w", err)
	}

	subject, text := receiptContent(campaign, txn)

	_, _, err = m.client.TransactionalEmailsApi.SendTransacEmail(ctx, brevo.SendSmtpEmail{
		Sender: &brevo.SendSmtpEmailSender{
			Name:  m.fromName,
			Email: m.fromEmail,
		},
		To: []brevo.SendSmtpEmailTo{
			{Email: txn.Email, Name: txn.PayerName},
		},
		Subject:     subject,
		HtmlContent: "<p>" + text + "</p>",
		TextContent: text,
	})
	if err != nil {
		return fmt.Errorf("brevo send failed: %w", err)
	}

	m.logger.Info("receipt sent",
		zap.String("reference", txn.Reference),
		zap.String("campaign", campaign.Slug))
	return nil
}

func receiptContent(campaign *models.Campaign, txn *models.Transaction) (string, string) {
	unit := "ticket(s)"
	if txn.CampaignType == models.CampaignTypeVote {
		unit = "vote(s)"
	}
	subject := fmt.Sprintf("Your %s receipt - %s", campaign.Title, txn.Reference)
	text := fmt.Sprintf("Payment of %d %s confirmed. %d %s recorded for %s. Reference: %s.",
		txn.Amount, txn.Currency, txn.Quantity, unit, campaign.Title, txn.Reference)
	return subject, text
}
