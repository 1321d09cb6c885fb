package provider

import (
	"context"
	"errors"

	"github.com/stayzen/stayzen/internal/circuitbreaker"
	"github.com/stayzen/stayzen/internal/retry"
)

// BreakerClient wraps a Client with a per-operation circuit breaker. When a
// provider endpoint degrades, its circuit trips and calls fail fast with a
// transient error, so release sweeps finish quickly and the affected legs
// are retried on a later sweep.
//
// Only infrastructure failures feed the circuit. A rejection (declined
// card, invalid destination) is the provider answering normally and must
// not trip the breaker.
type BreakerClient struct {
	inner   Client
	breaker *circuitbreaker.Breaker
}

// WithBreaker wraps client with a circuit breaker.
func WithBreaker(client Client, breaker *circuitbreaker.Breaker) *BreakerClient {
	return &BreakerClient{inner: client, breaker: breaker}
}

func (c *BreakerClient) Capture(ctx context.Context, paymentRef string, idempotencyKey string) (*Result, error) {
	return c.call("capture", func() (*Result, error) {
		return c.inner.Capture(ctx, paymentRef, idempotencyKey)
	})
}

func (c *BreakerClient) Transfer(ctx context.Context, destination string, amount int64, currency string, idempotencyKey string) (*Result, error) {
	return c.call("transfer", func() (*Result, error) {
		return c.inner.Transfer(ctx, destination, amount, currency, idempotencyKey)
	})
}

func (c *BreakerClient) Refund(ctx context.Context, paymentRef string, amount int64, idempotencyKey string) (*Result, error) {
	return c.call("refund", func() (*Result, error) {
		return c.inner.Refund(ctx, paymentRef, amount, idempotencyKey)
	})
}

func (c *BreakerClient) call(op string, fn func() (*Result, error)) (*Result, error) {
	var res *Result
	var callErr error

	err := c.breaker.Do(op, func() error {
		res, callErr = fn()
		if callErr != nil && retry.IsRetryable(callErr) {
			return callErr
		}
		// Rejections pass through without counting against the circuit.
		return nil
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return nil, &Error{
			Op:        op,
			Code:      "circuit_open",
			Message:   "provider " + op + " endpoint is degraded, failing fast",
			Transient: true,
		}
	}
	return res, callErr
}
