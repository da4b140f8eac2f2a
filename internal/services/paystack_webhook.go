package services

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// PaystackSignatureHeader carries the HMAC of the raw webhook body
const PaystackSignatureHeader = "X-Paystack-Signature"

// WebhookEvent is the part of a gateway webhook this service reads. The
// status inside it is never trusted; Confirm verifies with the gateway.
type WebhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
	} `json:"data"`
}

// ReplayKey identifies one delivery of this event for replay protection
func (e *WebhookEvent) ReplayKey() string {
	return e.Event + ":" + e.Data.Reference
}

// SignatureVerifier authenticates inbound gateway webhooks
type SignatureVerifier struct {
	secret []byte
}

// NewSignatureVerifier creates a verifier keyed by the gateway secret key
func NewSignatureVerifier(secret string) *SignatureVerifier {
	return &SignatureVerifier{secret: []byte(secret)}
}

// Verify checks the hex HMAC-SHA512 signature of body
func (v *SignatureVerifier) Verify(body []byte, signature string) error {
	if len(v.secret) == 0 {
		return fmt.Errorf("%w: webhook secret not configured", ErrForgedCallback)
	}
	if signature == "" {
		return fmt.Errorf("%w: missing %s header", ErrForgedCallback, PaystackSignatureHeader)
	}

	expected := v.Sign(body)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature)))) {
		return fmt.Errorf("%w: signature mismatch", ErrForgedCallback)
	}
	return nil
}

// Sign returns the hex HMAC-SHA512 of body
func (v *SignatureVerifier) Sign(body []byte) string {
	h := hmac.New(sha512.New, v.secret)
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// ParseWebhookEvent decodes an authenticated webhook body
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("%w: malformed webhook payload: %v", ErrInvalidRequest, err)
	}
	if event.Event == "" {
		return nil, fmt.Errorf("%w: webhook payload has no event", ErrInvalidRequest)
	}
	return &event, nil
}
