// Package webhook reconciles asynchronous provider callbacks against the
// escrow ledger. A callback can confirm an in-flight transfer leg, report a
// failure, or reverse an earlier confirmation; everything inbound is recorded
// for audit regardless of whether it changed state.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stayzen/stayzen/internal/idgen"
	"github.com/stayzen/stayzen/internal/joblock"
	"github.com/stayzen/stayzen/internal/ledger"
	"github.com/stayzen/stayzen/internal/logging"
	"github.com/stayzen/stayzen/internal/metrics"
	"github.com/stayzen/stayzen/internal/pagination"
	"github.com/stayzen/stayzen/internal/traces"
)

// ErrBookingBusy means the booking's job lock is held (a release sweep is in
// progress). The handler answers 503 so the provider redelivers later.
var ErrBookingBusy = errors.New("booking busy, redeliver later")

// ErrBadCursor means the pagination cursor in a listing request is malformed.
var ErrBadCursor = errors.New("invalid pagination cursor")

// Reconciler applies provider callbacks to the ledger.
type Reconciler struct {
	verifier   Verifier
	deliveries DeliveryStore
	ledger     *ledger.Ledger
	states     *ledger.StateMachine
	locks      *joblock.Manager
	logger     *slog.Logger
}

func NewReconciler(verifier Verifier, deliveries DeliveryStore, l *ledger.Ledger, states *ledger.StateMachine, locks *joblock.Manager, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		verifier:   verifier,
		deliveries: deliveries,
		ledger:     l,
		states:     states,
		locks:      locks,
		logger:     logger.With("component", "webhook_reconciler"),
	}
}

// HandleCallback verifies, parses, and reconciles one inbound delivery.
// The returned Delivery always reflects what was recorded; the error is
// non-nil only for rejections and lock contention.
func (r *Reconciler) HandleCallback(ctx context.Context, raw []byte, signature string) (*Delivery, error) {
	ctx, span := traces.StartSpan(ctx, "webhook.handle_callback")
	defer span.End()

	d := &Delivery{
		ID:         idgen.WithPrefix("whd_"),
		ReceivedAt: time.Now(),
	}

	if err := r.verifier.Verify(raw, signature); err != nil {
		d.Outcome = OutcomeRejected
		d.Detail = "signature mismatch"
		r.record(ctx, d)
		return d, ErrBadSignature
	}

	cb, err := Parse(raw)
	if err != nil {
		d.Outcome = OutcomeRejected
		d.Detail = err.Error()
		r.record(ctx, d)
		return d, err
	}
	d.Provider = cb.Provider
	d.BookingID = cb.BookingID
	d.EventType = cb.EventType
	d.Kind = cb.Kind
	d.Reference = cb.Reference

	if cb.BookingID == "" || cb.EventType == "" {
		d.Outcome = OutcomeUnmatched
		d.Detail = "callback carries no booking correlation"
		r.record(ctx, d)
		return d, nil
	}
	ctx = logging.WithBookingID(ctx, cb.BookingID)

	// Reconciliation runs under the same lock as the release engine so a
	// sweep and a callback never interleave writes for one booking.
	handle, err := r.locks.Acquire(ctx, "release:"+cb.BookingID)
	if err != nil {
		if errors.Is(err, joblock.ErrLockHeld) {
			d.Outcome = OutcomeSkipped
			d.Detail = "booking locked"
			r.record(ctx, d)
			return d, ErrBookingBusy
		}
		return d, fmt.Errorf("acquire lock: %w", err)
	}
	defer func() {
		if err := r.locks.Release(ctx, handle); err != nil {
			r.logger.Warn("failed to release job lock", "key", handle.Key, "error", err)
		}
	}()

	if err := r.reconcile(ctx, cb, d); err != nil {
		// The attempt still leaves an audit row; the provider redelivers and
		// the next attempt reconciles from the ledger's actual state.
		d.Outcome = OutcomeSkipped
		d.Detail = err.Error()
		r.record(ctx, d)
		return d, err
	}
	r.record(ctx, d)
	return d, nil
}

func (r *Reconciler) reconcile(ctx context.Context, cb *Callback, d *Delivery) error {
	events, err := r.ledger.EventsFor(ctx, cb.BookingID)
	if err != nil {
		return fmt.Errorf("load events: %w", err)
	}
	typ := ledger.EventType(cb.EventType)
	leg := ledger.Leg(events, typ)

	switch cb.Kind {
	case KindConfirmed:
		switch {
		case leg.Confirmed:
			// Redelivery of a confirmation we already hold. Discard.
			d.Outcome = OutcomeDuplicate
		case ledger.HasPendingAttempt(events, typ):
			if err := r.apply(ctx, cb, ledger.ProviderResponse{
				Confirmed: true,
				Reference: cb.Reference,
			}); err != nil {
				return err
			}
			d.Outcome = OutcomeConfirmed
		default:
			// The provider confirmed something we never attempted. Record
			// for operator review, never write it into the ledger.
			d.Outcome = OutcomeUnmatched
			d.Detail = "no pending attempt for this leg"
		}

	case KindFailed:
		switch {
		case leg.Confirmed:
			d.Outcome = OutcomeUnmatched
			d.Detail = "failure reported for a confirmed leg"
		case ledger.HasPendingAttempt(events, typ):
			if err := r.apply(ctx, cb, ledger.ProviderResponse{
				Failed:    true,
				Reference: cb.Reference,
				Detail:    cb.Detail,
			}); err != nil {
				return err
			}
			d.Outcome = OutcomeConfirmed
		default:
			d.Outcome = OutcomeUnmatched
			d.Detail = "no pending attempt for this leg"
		}

	case KindReversed:
		switch {
		case leg.Reversed:
			d.Outcome = OutcomeDuplicate
		case leg.Confirmed:
			ev, err := r.ledger.Append(ctx, cb.BookingID, typ, ledger.ProviderResponse{
				Reversed:  true,
				Reference: cb.Reference,
				Detail:    cb.Detail,
			})
			if err != nil {
				return fmt.Errorf("append reversal: %w", err)
			}
			r.states.ApplyReversal(ctx, ev)
			if _, err := r.states.Recompute(ctx, cb.BookingID); err != nil {
				return fmt.Errorf("recompute: %w", err)
			}
			d.Outcome = OutcomeConfirmed
		default:
			d.Outcome = OutcomeUnmatched
			d.Detail = "reversal for a leg that was never confirmed"
		}

	default:
		d.Outcome = OutcomeUnmatched
		d.Detail = "unknown callback kind " + string(cb.Kind)
	}
	return nil
}

func (r *Reconciler) apply(ctx context.Context, cb *Callback, resp ledger.ProviderResponse) error {
	if _, err := r.ledger.Append(ctx, cb.BookingID, ledger.EventType(cb.EventType), resp); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	if _, err := r.states.Recompute(ctx, cb.BookingID); err != nil {
		return fmt.Errorf("recompute: %w", err)
	}
	return nil
}

// Deliveries returns the audit timeline for one booking.
func (r *Reconciler) Deliveries(ctx context.Context, bookingID, cursor string, limit int) ([]*Delivery, string, error) {
	before, err := pagination.Decode(cursor)
	if err != nil {
		return nil, "", ErrBadCursor
	}

	// Fetch one extra row to learn whether another page exists.
	deliveries, err := r.deliveries.ListByBooking(ctx, bookingID, before, limit+1)
	if err != nil {
		return nil, "", err
	}
	page, next, _ := pagination.ComputePage(deliveries, limit, func(d *Delivery) (time.Time, string) {
		return d.ReceivedAt, d.ID
	})
	return page, next, nil
}

func (r *Reconciler) record(ctx context.Context, d *Delivery) {
	metrics.WebhookCallbacksTotal.WithLabelValues(string(d.Outcome)).Inc()
	if err := r.deliveries.Record(ctx, d); err != nil {
		r.logger.Error("failed to record webhook delivery",
			"deliveryId", d.ID, "bookingId", d.BookingID, "error", err)
		return
	}
	logging.L(ctx).Info("webhook delivery recorded",
		"deliveryId", d.ID, "outcome", d.Outcome, "eventType", d.EventType)
}
