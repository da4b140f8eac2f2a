package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const paystackProvider = "paystack"

// PaystackClient talks to the Paystack transaction API.
type PaystackClient struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

// NewPaystackClient creates a new Paystack client
func NewPaystackClient(baseURL, secretKey string) *PaystackClient {
	return &PaystackClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// paystackEnvelope is the common response wrapper
type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type paystackInitializeRequest struct {
	Email       string                 `json:"email"`
	Amount      int64                  `json:"amount"`
	Currency    string                 `json:"currency"`
	Reference   string                 `json:"reference"`
	CallbackURL string                 `json:"callback_url,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

type paystackVerifyData struct {
	Reference       string `json:"reference"`
	Status          string `json:"status"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	GatewayResponse string `json:"gateway_response"`
	PaidAt          string `json:"paid_at"`
}

// Name identifies the provider on stored transactions
func (p *PaystackClient) Name() string {
	return paystackProvider
}

// Initialize opens a transaction on Paystack under our reference
func (p *PaystackClient) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	body := paystackInitializeRequest{
		Email:       req.Email,
		Amount:      req.AmountMinor,
		Currency:    req.Currency,
		Reference:   req.Reference,
		CallbackURL: req.CallbackURL,
		Metadata:    req.Metadata,
	}

	statusCode, envelope, err := p.do(ctx, http.MethodPost, "/transaction/initialize", body)
	if err != nil {
		return nil, err
	}
	if statusCode >= 500 {
		return nil, &GatewayError{StatusCode: statusCode, Message: envelope.Message, kind: ErrGatewayUnavailable}
	}
	if statusCode >= 400 || !envelope.Status {
		return nil, &GatewayError{StatusCode: statusCode, Message: envelope.Message, kind: ErrGatewayRejected}
	}

	var result InitializeResult
	if err := json.Unmarshal(envelope.Data, &result); err != nil {
		return nil, fmt.Errorf("%w: failed to parse initialize response: %v", ErrGatewayUnavailable, err)
	}
	if result.Reference == "" {
		result.Reference = req.Reference
	}
	return &result, nil
}

// Verify fetches the authoritative status for reference. A reference the
// gateway has no record of yields ProviderUnknown, not an error; every other
// failure is ErrGatewayUnavailable.
func (p *PaystackClient) Verify(ctx context.Context, reference string) (*Verification, error) {
	statusCode, envelope, err := p.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil)
	if err != nil {
		return nil, err
	}

	switch {
	case statusCode >= 500:
		return nil, &GatewayError{StatusCode: statusCode, Message: envelope.Message, kind: ErrGatewayUnavailable}
	case statusCode == http.StatusNotFound,
		statusCode == http.StatusBadRequest && strings.Contains(strings.ToLower(envelope.Message), "not found"):
		return &Verification{Reference: reference, Status: ProviderUnknown, GatewayResponse: envelope.Message}, nil
	case statusCode >= 400:
		// Throttling or a bad secret key; the payment itself is not at fault.
		return nil, &GatewayError{StatusCode: statusCode, Message: envelope.Message, kind: ErrGatewayUnavailable}
	}

	var data paystackVerifyData
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return &Verification{Reference: reference, Status: ProviderUnknown, GatewayResponse: envelope.Message}, nil
	}
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: failed to parse verify response: %v", ErrGatewayUnavailable, err)
	}

	verification := &Verification{
		Reference:       reference,
		Status:          ParseProviderStatus(data.Status),
		AmountMinor:     data.Amount,
		Currency:        strings.ToUpper(data.Currency),
		GatewayResponse: data.GatewayResponse,
	}
	if data.Reference != "" && data.Reference != reference {
		// Never trust a verification for someone else's reference.
		verification.Status = ProviderUnknown
	}
	if data.PaidAt != "" {
		if paidAt, err := time.Parse(time.RFC3339, data.PaidAt); err == nil {
			verification.PaidAt = &paidAt
		}
	}
	return verification, nil
}

// do sends one authenticated request and decodes the envelope. Transport and
// decoding failures are reported as ErrGatewayUnavailable.
func (p *PaystackClient) do(ctx context.Context, method, path string, payload interface{}) (int, *paystackEnvelope, error) {
	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.secretKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: failed to read response: %v", ErrGatewayUnavailable, err)
	}

	var envelope paystackEnvelope
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &envelope); err != nil {
			if resp.StatusCode >= 500 {
				return resp.StatusCode, &paystackEnvelope{Message: http.StatusText(resp.StatusCode)}, nil
			}
			return 0, nil, fmt.Errorf("%w: failed to parse response: %v", ErrGatewayUnavailable, err)
		}
	}
	return resp.StatusCode, &envelope, nil
}
