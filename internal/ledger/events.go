// Package ledger is the append-only record of every money-moving action
// attempted or confirmed for a booking, and the state machine that derives
// the booking's payment status from it.
//
// The ledger is the source of truth: booking.paymentStatus is a cache
// recomputed from it. Rows are never mutated after creation; a correction is
// always a new row.
package ledger

import (
	"context"
	"errors"
	"time"
)

var ErrEventNotFound = errors.New("escrow event not found")

// EventType enumerates the money-moving actions recorded in the ledger.
// The spellings are wire-level identifiers shared with provider callbacks
// and operator tooling.
type EventType string

const (
	EventCapturePayment           EventType = "CAPTURE_PAYMENT"
	EventReleaseRoomFeeSplit      EventType = "RELEASE_ROOM_FEE_SPLIT"
	EventPayRealtorFromDeposit    EventType = "PAY_REALTOR_FROM_DEPOSIT"
	EventReleaseDepositToCustomer EventType = "RELEASE_DEPOSIT_TO_CUSTOMER"
	EventRefundRoomFeeToCustomer  EventType = "REFUND_ROOM_FEE_TO_CUSTOMER"
)

// ReleaseLegs are the legs that settle a completed stay, in execution order:
// room-fee split, then realtor payout from the deposit, then returning the
// remaining deposit to the guest.
var ReleaseLegs = []EventType{
	EventReleaseRoomFeeSplit,
	EventPayRealtorFromDeposit,
	EventReleaseDepositToCustomer,
}

// ProviderResponse holds the transfer confirmation flags for an event.
// An event with none of the flags set is a pending attempt.
type ProviderResponse struct {
	Confirmed bool   `json:"confirmed"`
	Failed    bool   `json:"failed"`
	Reversed  bool   `json:"reversed"`
	Reference string `json:"reference,omitempty"` // provider-side transfer/refund id
	Detail    string `json:"detail,omitempty"`    // failure or reversal detail
}

// Event is an immutable ledger row.
type Event struct {
	ID               int64            `json:"id"`
	BookingID        string           `json:"bookingId"`
	Type             EventType        `json:"eventType"`
	ProviderResponse ProviderResponse `json:"providerResponse"`
	CreatedAt        time.Time        `json:"createdAt"`
}

// Outcome classifies an event row for partitioning and metrics.
func (e *Event) Outcome() string {
	switch {
	case e.ProviderResponse.Reversed:
		return "reversed"
	case e.ProviderResponse.Failed:
		return "failed"
	case e.ProviderResponse.Confirmed:
		return "confirmed"
	default:
		return "pending"
	}
}

// Buckets partitions ledger rows by outcome.
type Buckets struct {
	Pending   []*Event `json:"pending"`
	Confirmed []*Event `json:"confirmed"`
	Failed    []*Event `json:"failed"`
	Reversed  []*Event `json:"reversed"`
}

// Partition splits events into pending / confirmed / failed / reversed.
func Partition(events []*Event) Buckets {
	var b Buckets
	for _, e := range events {
		switch e.Outcome() {
		case "reversed":
			b.Reversed = append(b.Reversed, e)
		case "failed":
			b.Failed = append(b.Failed, e)
		case "confirmed":
			b.Confirmed = append(b.Confirmed, e)
		default:
			b.Pending = append(b.Pending, e)
		}
	}
	return b
}

// Counters are the aggregate transfer counts exposed for operator health
// dashboards.
type Counters struct {
	Pending   int64 `json:"pending"`
	Confirmed int64 `json:"confirmed"`
	Failed    int64 `json:"failed"`
	Reversed  int64 `json:"reversed"`
}

// EventStore persists ledger rows. There is deliberately no update or delete:
// the ledger is append-only.
type EventStore interface {
	Append(ctx context.Context, e *Event) error
	// EventsFor returns a booking's events in append order. Order matters:
	// later events supersede earlier attempts of the same type.
	EventsFor(ctx context.Context, bookingID string) ([]*Event, error)
	Counters(ctx context.Context) (Counters, error)
}

// LegState is the current condition of one transfer leg, computed by
// scanning the booking's events for that type in append order.
type LegState struct {
	Attempted bool   // a pending attempt row exists
	Confirmed bool   // the leg is currently confirmed (not superseded by a reversal)
	Failed    bool   // the most recent resolution was a failure
	Reversed  bool   // the leg was reversed; requires operator action
	Reference string // provider reference from the confirming row
}

// Leg computes the current state of one transfer leg.
func Leg(events []*Event, t EventType) LegState {
	var s LegState
	for _, e := range events {
		if e.Type != t {
			continue
		}
		switch {
		case e.ProviderResponse.Reversed:
			// The leg goes back to its pre-release state.
			s.Confirmed = false
			s.Reversed = true
			s.Reference = ""
		case e.ProviderResponse.Failed:
			s.Failed = true
		case e.ProviderResponse.Confirmed:
			s.Confirmed = true
			s.Failed = false
			s.Reference = e.ProviderResponse.Reference
		default:
			s.Attempted = true
			s.Failed = false
		}
	}
	return s
}

// HasPendingAttempt reports whether type t has an attempt row with no later
// confirmation or failure, i.e. the row a provider callback would confirm.
func HasPendingAttempt(events []*Event, t EventType) bool {
	pending := false
	for _, e := range events {
		if e.Type != t {
			continue
		}
		switch {
		case e.ProviderResponse.Confirmed, e.ProviderResponse.Failed, e.ProviderResponse.Reversed:
			pending = false
		default:
			pending = true
		}
	}
	return pending
}
