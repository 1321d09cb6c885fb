package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/stayzen/stayzen/internal/metrics"
)

// EventSink receives appended events, e.g. for the live operator feed.
type EventSink interface {
	EscrowEvent(e *Event)
}

// Ledger wraps an EventStore with instrumentation and an optional sink.
// All writes from the scheduler and the webhook reconciler go through it.
type Ledger struct {
	store EventStore
	sink  EventSink // optional
}

// New creates a ledger over the given store.
func New(store EventStore) *Ledger {
	return &Ledger{store: store}
}

// WithSink adds a sink notified after each successful append.
func (l *Ledger) WithSink(sink EventSink) *Ledger {
	l.sink = sink
	return l
}

// Append inserts a new immutable row and returns it. Ledger writes are not
// retried: if the append fails, the whole attempt fails and is redone at the
// next tick or callback.
func (l *Ledger) Append(ctx context.Context, bookingID string, t EventType, resp ProviderResponse) (*Event, error) {
	e := &Event{
		BookingID:        bookingID,
		Type:             t,
		ProviderResponse: resp,
		CreatedAt:        time.Now().UTC(),
	}
	if err := l.store.Append(ctx, e); err != nil {
		return nil, fmt.Errorf("append %s event for booking %s: %w", t, bookingID, err)
	}

	metrics.EscrowEventsTotal.WithLabelValues(string(t), e.Outcome()).Inc()
	if l.sink != nil {
		l.sink.EscrowEvent(e)
	}
	return e, nil
}

// EventsFor returns a booking's escrow event timeline in append order.
func (l *Ledger) EventsFor(ctx context.Context, bookingID string) ([]*Event, error) {
	return l.store.EventsFor(ctx, bookingID)
}

// Counters returns the aggregate transfer counts across all bookings.
func (l *Ledger) Counters(ctx context.Context) (Counters, error) {
	return l.store.Counters(ctx)
}
