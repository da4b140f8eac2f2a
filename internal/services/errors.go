package services

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned for a reference that was never initialized here.
	ErrNotFound = errors.New("transaction not found")

	// ErrGatewayUnavailable marks transient gateway failures; safe to retry.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	// ErrGatewayRejected marks a permanent rejection of the request by the gateway.
	ErrGatewayRejected = errors.New("payment gateway rejected request")

	// ErrFulfillmentFailed is a storage error while writing the fulfillment.
	// The payment stays confirmed and the next Confirm or sweep retries.
	ErrFulfillmentFailed = errors.New("fulfillment failed")

	// ErrForgedCallback is an unauthenticated or inconsistent gateway callback.
	ErrForgedCallback = errors.New("forged callback")

	// ErrIntegrity means the verified amount or currency disagrees with the
	// recorded transaction.
	ErrIntegrity = fmt.Errorf("%w: verified payment does not match transaction", ErrForgedCallback)

	ErrInvalidRequest   = errors.New("invalid request")
	ErrCampaignNotFound = errors.New("campaign not found")
	ErrRateLimited      = errors.New("too many payment attempts")
)

// GatewayError carries the HTTP status and message returned by the gateway.
type GatewayError struct {
	StatusCode int
	Message    string
	kind       error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%v: status %d: %s", e.kind, e.StatusCode, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.kind
}
