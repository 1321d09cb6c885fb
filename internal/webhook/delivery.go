package webhook

import (
	"context"
	"time"

	"github.com/stayzen/stayzen/internal/pagination"
)

// Outcome records what the reconciler did with one inbound delivery.
type Outcome string

const (
	OutcomeConfirmed Outcome = "confirmed" // applied to the ledger
	OutcomeDuplicate Outcome = "duplicate" // already applied, discarded
	OutcomeUnmatched Outcome = "unmatched" // no corresponding ledger attempt, audit-only
	OutcomeRejected  Outcome = "rejected"  // bad signature or malformed payload
	OutcomeSkipped   Outcome = "skipped"   // not applied (lock held or write failed), provider should redeliver
)

// Delivery is the audit record for one inbound provider callback. Every
// delivery is recorded, including the ones that change nothing.
type Delivery struct {
	ID         string    `json:"id"`
	Provider   string    `json:"provider,omitempty"`
	BookingID  string    `json:"bookingId,omitempty"`
	EventType  string    `json:"eventType,omitempty"`
	Kind       Kind      `json:"kind,omitempty"`
	Reference  string    `json:"reference,omitempty"`
	Outcome    Outcome   `json:"outcome"`
	Detail     string    `json:"detail,omitempty"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// DeliveryStore persists the delivery audit trail.
type DeliveryStore interface {
	Record(ctx context.Context, d *Delivery) error
	// ListByBooking returns deliveries newest-first. A non-nil before cursor
	// restricts the listing to deliveries strictly older than the cursor.
	ListByBooking(ctx context.Context, bookingID string, before *pagination.Cursor, limit int) ([]*Delivery, error)
}
