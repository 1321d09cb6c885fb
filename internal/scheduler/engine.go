// Package scheduler runs the escrow release engine: a periodic sweep that
// finds bookings past their release point and executes the outstanding money
// movements against the payment provider, one ledger leg at a time.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stayzen/stayzen/internal/booking"
	"github.com/stayzen/stayzen/internal/joblock"
	"github.com/stayzen/stayzen/internal/ledger"
	"github.com/stayzen/stayzen/internal/logging"
	"github.com/stayzen/stayzen/internal/metrics"
	"github.com/stayzen/stayzen/internal/payment"
	"github.com/stayzen/stayzen/internal/provider"
	"github.com/stayzen/stayzen/internal/retry"
	"github.com/stayzen/stayzen/internal/traces"
)

const (
	defaultBatchSize = 100

	// defaultCommissionBps is the platform's share of the room fee in basis
	// points. The remainder goes to the realtor in the room-fee split leg.
	defaultCommissionBps = 1000
)

// PayoutPolicy answers per-realtor payout terms. Implementations return the
// commission charged on the account's room fees and whether payouts to the
// account are currently held.
type PayoutPolicy interface {
	PayoutTerms(ctx context.Context, accountID string) (bps int64, hold bool, err error)
}

// Engine executes the release and refund sequences for due bookings.
type Engine struct {
	bookings  booking.Store
	payments  payment.Store
	ledger    *ledger.Ledger
	states    *ledger.StateMachine
	locks     *joblock.Manager
	client    provider.Client
	retryCfg  retry.Config
	offset    time.Duration
	batchSize int
	bps       int64
	terms     PayoutPolicy
	logger    *slog.Logger
}

// NewEngine builds a release engine. offset is the delay after checkout
// before a booking becomes due.
func NewEngine(bookings booking.Store, payments payment.Store, l *ledger.Ledger, states *ledger.StateMachine, locks *joblock.Manager, client provider.Client, offset time.Duration, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		bookings:  bookings,
		payments:  payments,
		ledger:    l,
		states:    states,
		locks:     locks,
		client:    client,
		retryCfg:  retry.DefaultConfig,
		offset:    offset,
		batchSize: defaultBatchSize,
		bps:       defaultCommissionBps,
		logger:    logger.With("component", "release_engine"),
	}
}

// WithRetryConfig overrides the provider call retry policy.
func (e *Engine) WithRetryConfig(cfg retry.Config) *Engine {
	e.retryCfg = cfg
	return e
}

// WithCommissionBps overrides the platform's room-fee share.
func (e *Engine) WithCommissionBps(bps int64) *Engine {
	e.bps = bps
	return e
}

// WithPayoutPolicy plugs in per-realtor payout terms. Accounts the policy
// does not know keep the platform default commission.
func (e *Engine) WithPayoutPolicy(p PayoutPolicy) *Engine {
	e.terms = p
	return e
}

// payoutTerms resolves the commission and hold flag for a booking's realtor
// account. Lookup failures fall back to the default commission rather than
// blocking the release.
func (e *Engine) payoutTerms(ctx context.Context, accountID string) (int64, bool) {
	if e.terms == nil {
		return e.bps, false
	}
	bps, hold, err := e.terms.PayoutTerms(ctx, accountID)
	if err != nil {
		e.logger.Debug("payout terms lookup failed, using defaults",
			"accountId", accountID, "error", err)
		return e.bps, false
	}
	return bps, hold
}

// Sweep processes every booking currently due for release. One booking's
// failure never aborts the sweep.
func (e *Engine) Sweep(ctx context.Context) {
	ctx, span := traces.StartSpan(ctx, "scheduler.sweep")
	defer span.End()

	metrics.SchedulerTicksTotal.Inc()

	due, err := e.bookings.ListDueForRelease(ctx, time.Now(), e.offset, e.batchSize)
	if err != nil {
		e.logger.Warn("failed to list due bookings", "error", err)
		return
	}
	metrics.SchedulerCandidates.Observe(float64(len(due)))
	if len(due) == 0 {
		return
	}
	e.logger.Debug("sweep found due bookings", "count", len(due))

	for _, b := range due {
		if ctx.Err() != nil {
			return
		}
		if err := e.ProcessBooking(ctx, b); err != nil {
			e.logger.Warn("release processing failed",
				"bookingId", b.ID, "error", err)
		}
	}
}

// ProcessBooking runs the release (or refund) sequence for one booking under
// its job lock. Contention is not an error: another worker is on it.
func (e *Engine) ProcessBooking(ctx context.Context, b *booking.Booking) error {
	ctx = logging.WithBookingID(ctx, b.ID)
	ctx, span := traces.StartSpan(ctx, "scheduler.process_booking", traces.BookingID(b.ID))
	defer span.End()

	handle, err := e.locks.Acquire(ctx, releaseLockKey(b.ID))
	if err != nil {
		if errors.Is(err, joblock.ErrLockHeld) {
			e.logger.Debug("booking locked by another worker", "bookingId", b.ID)
			return nil
		}
		return fmt.Errorf("acquire release lock: %w", err)
	}
	defer func() {
		if err := e.locks.Release(ctx, handle); err != nil {
			e.logger.Warn("failed to release job lock", "key", handle.Key, "error", err)
		}
	}()

	// Always fold whatever happened back into the cached status, even when a
	// leg failed partway.
	defer func() {
		if _, err := e.states.Recompute(ctx, b.ID); err != nil {
			e.logger.Warn("status recompute failed", "bookingId", b.ID, "error", err)
		}
	}()

	if b.Cancelled() {
		return e.refund(ctx, b)
	}
	return e.release(ctx, b)
}

// release runs the three settlement legs in order. A leg that fails stops the
// sequence; the booking stays partially released and is revisited on the next
// sweep.
func (e *Engine) release(ctx context.Context, b *booking.Booking) error {
	events, pay, err := e.loadState(ctx, b)
	if err != nil {
		return err
	}
	if !payment.Confirmed(b.PaymentStatus, pay.Status) {
		e.logger.Debug("payment not confirmed, skipping release",
			"bookingId", b.ID, "cached", b.PaymentStatus, "live", pay.Status)
		return nil
	}

	bps, hold := e.payoutTerms(ctx, b.RealtorAccountID)
	if hold {
		// The realtor is suspended. Funds stay in escrow and the booking is
		// revisited once payouts resume.
		e.logger.Info("payouts held for realtor, deferring release",
			"bookingId", b.ID, "realtorAccount", b.RealtorAccountID)
		return nil
	}

	ref := providerRef(pay, events)
	realtorShare := b.RoomFeeMinor * (10000 - bps) / 10000
	depositReturn := b.DepositMinor - b.DepositClaimMinor

	legs := []struct {
		typ    ledger.EventType
		amount int64
		call   func(key string) (*provider.Result, error)
	}{
		{ledger.EventReleaseRoomFeeSplit, realtorShare, func(key string) (*provider.Result, error) {
			return e.client.Transfer(ctx, b.RealtorAccountID, realtorShare, b.Currency, key)
		}},
		{ledger.EventPayRealtorFromDeposit, b.DepositClaimMinor, func(key string) (*provider.Result, error) {
			return e.client.Transfer(ctx, b.RealtorAccountID, b.DepositClaimMinor, b.Currency, key)
		}},
		{ledger.EventReleaseDepositToCustomer, depositReturn, func(key string) (*provider.Result, error) {
			return e.client.Refund(ctx, ref, depositReturn, key)
		}},
	}

	for _, leg := range legs {
		done, err := e.runLeg(ctx, b, events, leg.typ, leg.amount, leg.call)
		if err != nil {
			return err
		}
		if !done {
			// Awaiting asynchronous confirmation; later legs wait too.
			return nil
		}
		events, err = e.ledger.EventsFor(ctx, b.ID)
		if err != nil {
			return fmt.Errorf("reload events: %w", err)
		}
	}
	return nil
}

// refund returns the room fee to the guest for a cancelled booking.
func (e *Engine) refund(ctx context.Context, b *booking.Booking) error {
	events, pay, err := e.loadState(ctx, b)
	if err != nil {
		return err
	}
	if !payment.Confirmed(b.PaymentStatus, pay.Status) {
		e.logger.Debug("payment not confirmed, skipping refund", "bookingId", b.ID)
		return nil
	}

	ref := providerRef(pay, events)
	_, err = e.runLeg(ctx, b, events, ledger.EventRefundRoomFeeToCustomer, b.RoomFeeMinor,
		func(key string) (*provider.Result, error) {
			return e.client.Refund(ctx, ref, b.RoomFeeMinor, key)
		})
	return err
}

// runLeg executes one transfer leg if it is actionable. Returns done=true
// when the leg is confirmed (now or previously) and the sequence may advance.
func (e *Engine) runLeg(ctx context.Context, b *booking.Booking, events []*ledger.Event, typ ledger.EventType, amount int64, call func(key string) (*provider.Result, error)) (bool, error) {
	st := ledger.Leg(events, typ)
	switch {
	case st.Confirmed:
		return true, nil
	case st.Reversed:
		// Reversed legs need an operator decision; the engine never retries
		// them on its own.
		e.logger.Warn("leg reversed, awaiting operator action",
			"bookingId", b.ID, "eventType", typ)
		return false, nil
	case ledger.HasPendingAttempt(events, typ):
		e.logger.Debug("leg awaiting provider confirmation",
			"bookingId", b.ID, "eventType", typ)
		return false, nil
	}

	if amount <= 0 {
		// Nothing to move (e.g. no deposit claim). Record the leg as settled
		// so the sequence and the derived status stay uniform.
		_, err := e.ledger.Append(ctx, b.ID, typ, ledger.ProviderResponse{
			Confirmed: true,
			Detail:    "no amount due",
		})
		return err == nil, err
	}

	if _, err := e.ledger.Append(ctx, b.ID, typ, ledger.ProviderResponse{}); err != nil {
		return false, fmt.Errorf("append attempt: %w", err)
	}

	key := provider.IdempotencyKey(b.ID, string(typ))
	var res *provider.Result
	err := retry.Do(ctx, "provider."+string(typ), e.retryCfg, func() error {
		var callErr error
		res, callErr = call(key)
		return callErr
	})
	if err != nil {
		if _, appendErr := e.ledger.Append(ctx, b.ID, typ, ledger.ProviderResponse{
			Failed: true,
			Detail: err.Error(),
		}); appendErr != nil {
			e.logger.Error("failed to record leg failure",
				"bookingId", b.ID, "eventType", typ, "error", appendErr)
		}
		return false, fmt.Errorf("leg %s: %w", typ, err)
	}

	if !res.Confirmed {
		// Provider accepted the movement asynchronously; the webhook
		// reconciler confirms the pending row later.
		e.logger.Info("leg in flight", "bookingId", b.ID, "eventType", typ,
			"reference", res.Reference)
		return false, nil
	}

	if _, err := e.ledger.Append(ctx, b.ID, typ, ledger.ProviderResponse{
		Confirmed: true,
		Reference: res.Reference,
	}); err != nil {
		return false, fmt.Errorf("append confirmation: %w", err)
	}
	e.logger.Info("leg confirmed", "bookingId", b.ID, "eventType", typ,
		"amount", amount, "reference", res.Reference)
	return true, nil
}

func (e *Engine) loadState(ctx context.Context, b *booking.Booking) ([]*ledger.Event, *payment.Payment, error) {
	events, err := e.ledger.EventsFor(ctx, b.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("load events: %w", err)
	}
	pay, err := e.payments.GetByBooking(ctx, b.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("load payment: %w", err)
	}
	return events, pay, nil
}

// providerRef picks the provider-side reference refunds are issued against:
// the confirmed capture's reference when the ledger has one, otherwise the
// authorization token recorded at initiation.
func providerRef(p *payment.Payment, events []*ledger.Event) string {
	if capture := ledger.Leg(events, ledger.EventCapturePayment); capture.Confirmed && capture.Reference != "" {
		return capture.Reference
	}
	if tok, ok := p.Metadata.AuthorizationToken(); ok {
		return tok
	}
	return p.ID
}

func releaseLockKey(bookingID string) string {
	return "release:" + bookingID
}
