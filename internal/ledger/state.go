package ledger

import (
	"context"
	"fmt"

	"github.com/stayzen/stayzen/internal/logging"
	"github.com/stayzen/stayzen/internal/metrics"
	"github.com/stayzen/stayzen/internal/payment"
	"github.com/stayzen/stayzen/internal/traces"
)

// DeriveStatus derives a booking's payment status from its ledger events,
// using the live payment record's status as the base. Only confirmed events
// drive transitions: pending attempts and failures never advance state, and
// a reversal puts the affected leg back to its pre-release state.
func DeriveStatus(base payment.Status, events []*Event) payment.Status {
	// A terminal record with no ledger history means the money moved outside
	// this service (e.g. a manual refund on the provider dashboard reconciled
	// at the record level). There is nothing to re-derive from, so it sticks.
	if len(events) == 0 && base.IsTerminal() {
		return base
	}

	if Leg(events, EventRefundRoomFeeToCustomer).Confirmed {
		return payment.StatusRefunded
	}

	captured := payment.IsConfirmed(base) || Leg(events, EventCapturePayment).Confirmed
	if !captured {
		// FAILED is reachable from INITIATED only: capture never completed.
		capture := Leg(events, EventCapturePayment)
		if base == payment.StatusFailed || (capture.Failed && !capture.Attempted) {
			return payment.StatusFailed
		}
		return payment.StatusInitiated
	}

	confirmed := 0
	for _, leg := range ReleaseLegs {
		if Leg(events, leg).Confirmed {
			confirmed++
		}
	}
	switch {
	case confirmed == len(ReleaseLegs):
		return payment.StatusSettled
	case confirmed > 0:
		return payment.StatusPartiallyReleased
	default:
		return payment.StatusHeld
	}
}

// StatusWriter updates a booking's cached payment status.
// Satisfied by booking.Store.
type StatusWriter interface {
	UpdatePaymentStatus(ctx context.Context, bookingID string, status payment.Status) error
}

// ReversalAlerter surfaces reversed transfers to operators.
type ReversalAlerter interface {
	ReversedTransfer(ctx context.Context, bookingID string, eventType string, detail string)
}

// StatusNotifier observes payment status transitions as they are written
// back. Implementations must not block.
type StatusNotifier interface {
	PaymentStatusChanged(ctx context.Context, bookingID string, from, to payment.Status)
}

// StateMachine re-derives payment status from the ledger and writes it back
// to the booking cache and the payment record. The ledger-derived value is
// authoritative; the cached field is eventually consistent.
type StateMachine struct {
	events   EventStore
	payments payment.Store
	bookings StatusWriter
	alerter  ReversalAlerter // optional
	notifier StatusNotifier  // optional
}

// NewStateMachine creates a state machine over the given stores.
func NewStateMachine(events EventStore, payments payment.Store, bookings StatusWriter) *StateMachine {
	return &StateMachine{
		events:   events,
		payments: payments,
		bookings: bookings,
	}
}

// WithAlerter adds an operator alert sink for reversed transfers.
func (sm *StateMachine) WithAlerter(a ReversalAlerter) *StateMachine {
	sm.alerter = a
	return sm
}

// WithNotifier adds an observer for payment status transitions.
func (sm *StateMachine) WithNotifier(n StatusNotifier) *StateMachine {
	sm.notifier = n
	return sm
}

// Recompute derives the booking's payment status from the ledger and writes
// it to both the booking cache and the payment record. Callers must hold the
// booking's job lock.
func (sm *StateMachine) Recompute(ctx context.Context, bookingID string) (payment.Status, error) {
	ctx, span := traces.StartSpan(ctx, "ledger.Recompute", traces.BookingID(bookingID))
	defer span.End()

	base := payment.StatusInitiated
	pay, err := sm.payments.GetByBooking(ctx, bookingID)
	if err == nil {
		base = pay.Status
	} else if err != payment.ErrPaymentNotFound {
		return "", fmt.Errorf("load payment for booking %s: %w", bookingID, err)
	}

	events, err := sm.events.EventsFor(ctx, bookingID)
	if err != nil {
		return "", fmt.Errorf("load events for booking %s: %w", bookingID, err)
	}

	status := DeriveStatus(base, events)
	span.SetAttributes(traces.PaymentStatus(string(status)))

	if err := sm.bookings.UpdatePaymentStatus(ctx, bookingID, status); err != nil {
		return status, fmt.Errorf("update booking status cache: %w", err)
	}
	if pay != nil && pay.Status != status {
		if err := sm.payments.UpdateStatus(ctx, pay.ID, status); err != nil {
			return status, fmt.Errorf("update payment status: %w", err)
		}
		if sm.notifier != nil {
			sm.notifier.PaymentStatusChanged(ctx, bookingID, pay.Status, status)
		}
	}

	logging.L(ctx).Debug("payment status recomputed",
		"booking_id", bookingID, "status", status)
	return status, nil
}

// ApplyReversal records an operator alert for a reversed transfer leg after
// the reversal event has been appended. Reversals are never auto-retried:
// they can stem from chargebacks or fraud intervention.
func (sm *StateMachine) ApplyReversal(ctx context.Context, ev *Event) {
	metrics.ReversedTransfersTotal.Inc()
	logging.L(ctx).Error("transfer reversed, operator action required",
		"booking_id", ev.BookingID, "event_type", ev.Type, "detail", ev.ProviderResponse.Detail)
	if sm.alerter != nil {
		sm.alerter.ReversedTransfer(ctx, ev.BookingID, string(ev.Type), ev.ProviderResponse.Detail)
	}
}
