package provider

import (
	"context"
	"errors"
	"net/http"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
)

// StripeClient implements Client against Stripe's API. All calls pass an
// idempotency key so Stripe dedupes retried requests server-side.
type StripeClient struct {
	api *client.API
}

// NewStripeClient builds a StripeClient with the given secret key.
func NewStripeClient(apiKey string) *StripeClient {
	api := &client.API{}
	api.Init(apiKey, nil)
	return &StripeClient{api: api}
}

func (s *StripeClient) Capture(ctx context.Context, paymentRef string, idempotencyKey string) (*Result, error) {
	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx
	params.IdempotencyKey = stripe.String(idempotencyKey)

	pi, err := s.api.PaymentIntents.Capture(paymentRef, params)
	if err != nil {
		return nil, classify("capture", err)
	}
	return &Result{
		Reference: pi.ID,
		Confirmed: pi.Status == stripe.PaymentIntentStatusSucceeded,
	}, nil
}

func (s *StripeClient) Transfer(ctx context.Context, destination string, amount int64, currency string, idempotencyKey string) (*Result, error) {
	params := &stripe.TransferParams{
		Amount:      stripe.Int64(amount),
		Currency:    stripe.String(currency),
		Destination: stripe.String(destination),
	}
	params.Context = ctx
	params.IdempotencyKey = stripe.String(idempotencyKey)

	tr, err := s.api.Transfers.New(params)
	if err != nil {
		return nil, classify("transfer", err)
	}
	// Transfers between Stripe accounts settle synchronously.
	return &Result{Reference: tr.ID, Confirmed: true}, nil
}

func (s *StripeClient) Refund(ctx context.Context, paymentRef string, amount int64, idempotencyKey string) (*Result, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentRef),
		Amount:        stripe.Int64(amount),
	}
	params.Context = ctx
	params.IdempotencyKey = stripe.String(idempotencyKey)

	rf, err := s.api.Refunds.New(params)
	if err != nil {
		return nil, classify("refund", err)
	}
	return &Result{
		Reference: rf.ID,
		Confirmed: rf.Status == stripe.RefundStatusSucceeded,
	}, nil
}

// classify maps a Stripe error onto our Error, marking connection problems
// and provider-side 5xx as transient.
func classify(op string, err error) error {
	var se *stripe.Error
	if !errors.As(err, &se) {
		// Transport-level failure before Stripe answered.
		return &Error{Op: op, Code: "connection", Message: err.Error(), Transient: true}
	}
	// stripe-go v81 no longer defines ErrorTypeAPIConnection; compare against
	// the literal value it had ("api_connection_error").
	transient := se.Type == stripe.ErrorType("api_connection_error") ||
		se.HTTPStatusCode == http.StatusTooManyRequests ||
		se.HTTPStatusCode >= http.StatusInternalServerError
	return &Error{
		Op:        op,
		Code:      string(se.Code),
		Message:   se.Msg,
		Transient: transient,
	}
}
