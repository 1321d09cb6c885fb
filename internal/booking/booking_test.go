package booking

import (
	"context"
	"testing"
	"time"

	"github.com/stayzen/stayzen/internal/payment"
)

func TestDueForRelease(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	offset := 24 * time.Hour

	b := &Booking{
		CheckOut:      now.Add(-25 * time.Hour),
		PaymentStatus: payment.StatusHeld,
	}
	if !b.DueForRelease(now, offset) {
		t.Error("booking past checkout+offset with held payment should be due")
	}

	b.CheckOut = now.Add(-23 * time.Hour)
	if b.DueForRelease(now, offset) {
		t.Error("booking within the release offset should not be due")
	}

	b.CheckOut = now.Add(-48 * time.Hour)
	b.PaymentStatus = payment.StatusSettled
	if b.DueForRelease(now, offset) {
		t.Error("settled booking should never be due")
	}
	b.PaymentStatus = payment.StatusRefunded
	if b.DueForRelease(now, offset) {
		t.Error("refunded booking should never be due")
	}
}

func TestBlockedDatesMarker_Detection(t *testing.T) {
	cases := []struct {
		in         string
		detected   bool
		wantReason string
	}{
		{"[SYSTEM_BLOCKED_DATES] maintenance", true, "maintenance"},
		{"SYSTEM:BLOCKED_DATES maintenance", true, "maintenance"},
		{"SYSTEM:BLOCKED_DATES", true, ""},
		{"late arrival, please leave a key", false, ""},
		{"", false, ""},
	}
	for _, c := range cases {
		if got := IsBlockedDatesMarker(c.in); got != c.detected {
			t.Errorf("IsBlockedDatesMarker(%q) = %v, want %v", c.in, got, c.detected)
		}
		reason, ok := BlockedDatesReason(c.in)
		if ok != c.detected {
			t.Errorf("BlockedDatesReason(%q) ok = %v, want %v", c.in, ok, c.detected)
		}
		if reason != c.wantReason {
			t.Errorf("BlockedDatesReason(%q) = %q, want %q", c.in, reason, c.wantReason)
		}
	}
}

func TestBlockedDatesMarker_EmissionIsCanonical(t *testing.T) {
	marker := BlockedDatesMarker("maintenance")
	if marker != "[SYSTEM_BLOCKED_DATES] maintenance" {
		t.Errorf("emitted marker = %q, want canonical form", marker)
	}
	// Round trip: emitted markers must be detected.
	if !IsBlockedDatesMarker(marker) {
		t.Error("emitted marker not detected")
	}
	if reason, _ := BlockedDatesReason(marker); reason != "maintenance" {
		t.Errorf("round-tripped reason = %q", reason)
	}
}

func TestMemoryStore_ListDueForRelease(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	offset := time.Hour

	mk := func(id string, checkOut time.Time, status payment.Status) {
		err := store.Create(ctx, &Booking{
			ID:            id,
			CheckOut:      checkOut,
			PaymentStatus: status,
		})
		if err != nil {
			t.Fatalf("Create %s: %v", id, err)
		}
	}

	mk("overdue-old", now.Add(-72*time.Hour), payment.StatusHeld)
	mk("overdue-new", now.Add(-2*time.Hour), payment.StatusPartiallyReleased)
	mk("settled", now.Add(-72*time.Hour), payment.StatusSettled)
	mk("not-yet", now.Add(2*time.Hour), payment.StatusHeld)

	due, err := store.ListDueForRelease(ctx, now, offset, 10)
	if err != nil {
		t.Fatalf("ListDueForRelease: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("expected 2 due bookings, got %d", len(due))
	}
	// Oldest checkout first.
	if due[0].ID != "overdue-old" || due[1].ID != "overdue-new" {
		t.Errorf("unexpected order: %s, %s", due[0].ID, due[1].ID)
	}

	// Limit applies after ordering.
	due, _ = store.ListDueForRelease(ctx, now, offset, 1)
	if len(due) != 1 || due[0].ID != "overdue-old" {
		t.Errorf("limit should keep the oldest booking")
	}
}

func TestMemoryStore_UpdatePaymentStatus(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_ = store.Create(ctx, &Booking{ID: "b1", PaymentStatus: payment.StatusInitiated})
	if err := store.UpdatePaymentStatus(ctx, "b1", payment.StatusHeld); err != nil {
		t.Fatalf("UpdatePaymentStatus: %v", err)
	}
	b, _ := store.Get(ctx, "b1")
	if b.PaymentStatus != payment.StatusHeld {
		t.Errorf("status = %s, want held", b.PaymentStatus)
	}

	if err := store.UpdatePaymentStatus(ctx, "missing", payment.StatusHeld); err != ErrBookingNotFound {
		t.Errorf("expected ErrBookingNotFound, got %v", err)
	}
}
