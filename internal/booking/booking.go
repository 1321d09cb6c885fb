// Package booking holds the booking aggregate consumed by the escrow core:
// the stay itself, its cached payment status, and the release-relevant money
// amounts. Property CRUD and search live elsewhere; this package only knows
// what the release engine needs.
package booking

import (
	"context"
	"errors"
	"time"

	"github.com/stayzen/stayzen/internal/payment"
)

var ErrBookingNotFound = errors.New("booking not found")

// Booking is the aggregate root for a stay.
type Booking struct {
	ID         string `json:"id"`
	PropertyID string `json:"propertyId"`
	GuestID    string `json:"guestId"`

	CheckIn  time.Time `json:"checkIn"`
	CheckOut time.Time `json:"checkOut"`

	// PaymentStatus is a denormalized cache of the ledger-derived state.
	// The ledger is the source of truth; this field is recomputed from it.
	PaymentStatus payment.Status `json:"paymentStatus"`

	// SpecialRequests is free text from the guest. It may also carry the
	// internal blocked-dates marker (see blocked.go).
	SpecialRequests string `json:"specialRequests,omitempty"`

	// Money amounts in the currency's minor unit.
	RoomFeeMinor      int64  `json:"roomFeeMinor"`
	DepositMinor      int64  `json:"depositMinor"`
	DepositClaimMinor int64  `json:"depositClaimMinor"` // portion of the deposit claimed by the realtor
	Currency          string `json:"currency"`

	// RealtorAccountID is the provider-side destination for realtor payouts.
	RealtorAccountID string `json:"realtorAccountId"`

	CancelledAt *time.Time `json:"cancelledAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Cancelled reports whether the guest cancelled the stay. Cancelled bookings
// go down the refund path instead of the release path.
func (b *Booking) Cancelled() bool {
	return b.CancelledAt != nil
}

// DueForRelease reports whether the release offset after checkout has
// elapsed and the booking still has money movements outstanding.
func (b *Booking) DueForRelease(now time.Time, offset time.Duration) bool {
	if b.PaymentStatus == payment.StatusSettled || b.PaymentStatus == payment.StatusRefunded {
		return false
	}
	return now.After(b.CheckOut.Add(offset))
}

// Store persists bookings.
type Store interface {
	Create(ctx context.Context, b *Booking) error
	Get(ctx context.Context, id string) (*Booking, error)
	Update(ctx context.Context, b *Booking) error
	UpdatePaymentStatus(ctx context.Context, id string, status payment.Status) error
	// ListDueForRelease returns bookings whose checkout plus the release
	// offset has elapsed and whose payment state is not yet settled/refunded.
	ListDueForRelease(ctx context.Context, now time.Time, offset time.Duration, limit int) ([]*Booking, error)
}
