// Package payment models the money side of a booking: the captured payment
// record, its status lifecycle, and derived views over a guest's payments.
package payment

import (
	"context"
	"errors"
	"time"
)

var ErrPaymentNotFound = errors.New("payment not found")

// Provider identifies the payment processor a payment was captured with.
type Provider string

const (
	ProviderStripe   Provider = "stripe"   // card processor
	ProviderPaystack Provider = "paystack" // regional mobile-money/card processor
)

// Status represents the state of a booking's payment.
type Status string

const (
	StatusInitiated         Status = "initiated"          // checkout started, capture not complete
	StatusHeld              Status = "held"               // funds captured and escrowed
	StatusPartiallyReleased Status = "partially_released" // some release legs confirmed
	StatusSettled           Status = "settled"            // all release legs confirmed
	StatusRefunded          Status = "refunded"           // room fee returned to guest
	StatusFailed            Status = "failed"             // capture never completed
)

// IsConfirmed reports whether a single status means the money is secured.
// HELD, PARTIALLY_RELEASED, and SETTLED all count: an in-flight release does
// not make a guest's payment any less confirmed.
func IsConfirmed(s Status) bool {
	switch s {
	case StatusHeld, StatusPartiallyReleased, StatusSettled:
		return true
	}
	return false
}

// Confirmed reports whether either the booking's cached status or the live
// payment record's status shows the payment as confirmed. Both are checked
// because the cache and the live record can transiently disagree while a
// release sequence is running.
func Confirmed(cached, live Status) bool {
	return IsConfirmed(cached) || IsConfirmed(live)
}

// IsTerminal reports whether no further state transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusSettled || s == StatusRefunded || s == StatusFailed
}

// Payment is the per-booking payment record (1:1 with a booking in the
// common case).
type Payment struct {
	ID        string    `json:"id"`
	BookingID string    `json:"bookingId"`
	GuestID   string    `json:"guestId"`
	Provider  Provider  `json:"provider"`
	Status    Status    `json:"status"`
	Metadata  Metadata  `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store persists payment records.
type Store interface {
	Create(ctx context.Context, p *Payment) error
	Get(ctx context.Context, id string) (*Payment, error)
	GetByBooking(ctx context.Context, bookingID string) (*Payment, error)
	ListByGuest(ctx context.Context, guestID string, limit int) ([]*Payment, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
}
