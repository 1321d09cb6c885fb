// Package provider defines the payment provider surface the escrow core
// consumes: capture, transfer, and refund, each under an idempotency key so
// provider-side retries never double-execute a money movement.
package provider

import (
	"context"
	"fmt"
)

// Result is the provider's answer to a money movement.
type Result struct {
	// Reference is the provider-side id of the transfer/refund/charge.
	Reference string
	// Confirmed is true when the provider settled the movement
	// synchronously. When false the movement is in flight and a webhook
	// callback will confirm or fail it later.
	Confirmed bool
}

// Client is a payment provider.
type Client interface {
	// Capture completes the authorization for a payment, moving funds into
	// escrow.
	Capture(ctx context.Context, paymentRef string, idempotencyKey string) (*Result, error)
	// Transfer moves amount (in the currency's minor unit) to a connected
	// account (the realtor's payout destination).
	Transfer(ctx context.Context, destination string, amount int64, currency string, idempotencyKey string) (*Result, error)
	// Refund returns amount from a captured payment to the guest.
	Refund(ctx context.Context, paymentRef string, amount int64, idempotencyKey string) (*Result, error)
}

// Error is a classified provider failure. Transient failures (timeouts,
// connection resets, provider 5xx) are retried; rejections (invalid
// authorization, insufficient funds) are not.
type Error struct {
	Op        string
	Code      string
	Message   string
	Transient bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider %s failed: %s (%s)", e.Op, e.Message, e.Code)
}

// Retryable satisfies the retry package's classification interface.
func (e *Error) Retryable() bool { return e.Transient }

// IdempotencyKey derives the provider idempotency key for one leg of one
// booking. Deriving it from (bookingId, eventType) means a retried leg
// reuses the key and the provider executes the movement at most once.
func IdempotencyKey(bookingID, eventType string) string {
	return bookingID + ":" + eventType
}
