package services

import (
	"context"
	"strings"
	"time"
)

// ProviderStatus is the gateway's authoritative view of a transaction,
// narrowed to the states this service acts on.
type ProviderStatus string

const (
	ProviderSuccess   ProviderStatus = "success"
	ProviderFailed    ProviderStatus = "failed"
	ProviderAbandoned ProviderStatus = "abandoned"
	ProviderPending   ProviderStatus = "pending"
	ProviderUnknown   ProviderStatus = "unknown"
)

// ParseProviderStatus maps a raw gateway status string onto ProviderStatus.
// Unrecognized values become ProviderUnknown rather than a guess.
func ParseProviderStatus(raw string) ProviderStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "success":
		return ProviderSuccess
	case "failed":
		return ProviderFailed
	case "abandoned":
		return ProviderAbandoned
	case "pending", "ongoing", "processing", "queued":
		return ProviderPending
	default:
		return ProviderUnknown
	}
}

// InitializeRequest describes a payment to open with the gateway.
type InitializeRequest struct {
	Reference   string
	Email       string
	AmountMinor int64
	Currency    string
	CallbackURL string
	Metadata    map[string]interface{}
}

// InitializeResult is what the client needs to complete payment: a hosted
// page URL, or the access code for the inline popup.
type InitializeResult struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
}

// Verification is the gateway's answer for one reference.
type Verification struct {
	Reference       string
	Status          ProviderStatus
	AmountMinor     int64
	Currency        string
	GatewayResponse string
	PaidAt          *time.Time
}

// Gateway is the payment provider. Implementations hold no state.
type Gateway interface {
	Name() string
	Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error)
	Verify(ctx context.Context, reference string) (*Verification, error)
}

// toMinorUnits converts major currency units into the gateway's subunits.
// Every currency the gateway settles in uses 100 subunits.
func toMinorUnits(amount int64) int64 {
	return amount * 100
}
