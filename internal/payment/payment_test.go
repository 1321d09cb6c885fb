package payment

import (
	"context"
	"testing"
	"time"
)

func TestIsConfirmed(t *testing.T) {
	confirmed := []Status{StatusHeld, StatusPartiallyReleased, StatusSettled}
	for _, s := range confirmed {
		if !IsConfirmed(s) {
			t.Errorf("IsConfirmed(%s) = false, want true", s)
		}
	}

	unconfirmed := []Status{StatusInitiated, StatusRefunded, StatusFailed}
	for _, s := range unconfirmed {
		if IsConfirmed(s) {
			t.Errorf("IsConfirmed(%s) = true, want false", s)
		}
	}
}

func TestConfirmed_EitherFieldCounts(t *testing.T) {
	// The cached booking status and the live payment record can transiently
	// disagree during a release sequence. Confirmation via either counts.
	cases := []struct {
		cached, live Status
		want         bool
	}{
		{StatusInitiated, StatusInitiated, false},
		{StatusHeld, StatusInitiated, true},
		{StatusInitiated, StatusHeld, true},
		{StatusPartiallyReleased, StatusHeld, true},
		{StatusSettled, StatusSettled, true},
		{StatusFailed, StatusInitiated, false},
		{StatusRefunded, StatusRefunded, false},
	}
	for _, c := range cases {
		if got := Confirmed(c.cached, c.live); got != c.want {
			t.Errorf("Confirmed(%s, %s) = %v, want %v", c.cached, c.live, got, c.want)
		}
	}
}

func TestMetadataExtraction(t *testing.T) {
	m := Metadata{
		"authorization_code": "AUTH_x1",
		"last4":              "4242",
		"exp":                "12/27",
		"bank":               "GTBank",
		"reusable":           true,
	}

	if tok, ok := m.AuthorizationToken(); !ok || tok != "AUTH_x1" {
		t.Errorf("AuthorizationToken = %q, %v", tok, ok)
	}
	if last4, ok := m.Last4(); !ok || last4 != "4242" {
		t.Errorf("Last4 = %q, %v", last4, ok)
	}
	if !m.Reusable() {
		t.Error("Reusable = false, want true")
	}

	// Nothing may be assumed present.
	empty := Metadata{}
	if _, ok := empty.AuthorizationToken(); ok {
		t.Error("empty metadata should not yield an authorization token")
	}

	// Stripe-style payloads nest the token under an authorization object.
	// Refund legs are issued against this token, so extraction must work for
	// both the decoded-JSON map and the typed Metadata form.
	nested := Metadata{"authorization": map[string]interface{}{"token": "pi_123"}}
	if tok, ok := nested.AuthorizationToken(); !ok || tok != "pi_123" {
		t.Errorf("nested AuthorizationToken = %q, %v, want pi_123", tok, ok)
	}
	typed := Metadata{"authorization": Metadata{"payment_method": "pm_9"}}
	if tok, ok := typed.AuthorizationToken(); !ok || tok != "pm_9" {
		t.Errorf("typed nested AuthorizationToken = %q, %v, want pm_9", tok, ok)
	}
	hollow := Metadata{"authorization": map[string]interface{}{"token": ""}}
	if _, ok := hollow.AuthorizationToken(); ok {
		t.Error("empty nested token should be treated as absent")
	}
	if empty.Reusable() {
		t.Error("empty metadata should not be reusable")
	}

	// Malformed types are treated as absent.
	bad := Metadata{"last4": 4242, "reusable": 1}
	if _, ok := bad.Last4(); ok {
		t.Error("non-string last4 should be treated as absent")
	}
	if bad.Reusable() {
		t.Error("non-bool reusable should be treated as false")
	}
}

func TestSavedMethods_DedupeBySignature(t *testing.T) {
	payments := []*Payment{
		{ID: "p1", Provider: ProviderStripe, Metadata: Metadata{"fingerprint": "fp1", "last4": "4242"}},
		{ID: "p2", Provider: ProviderStripe, Metadata: Metadata{"fingerprint": "fp1", "last4": "4242"}},
		{ID: "p3", Provider: ProviderPaystack, Metadata: Metadata{"last4": "1881", "exp": "06/26", "bank": "GTBank"}},
		{ID: "p4", Provider: ProviderPaystack, Metadata: Metadata{"last4": "1881", "exp": "06/26", "bank": "GTBank"}},
		{ID: "p5", Provider: ProviderStripe, Metadata: Metadata{}}, // no identity, skipped
	}

	methods := SavedMethods(payments)
	if len(methods) != 2 {
		t.Fatalf("expected 2 deduplicated methods, got %d", len(methods))
	}

	// Earliest-seen summary wins per group.
	if methods[0].FirstSeen != "p1" {
		t.Errorf("first group FirstSeen = %s, want p1", methods[0].FirstSeen)
	}
	if methods[1].FirstSeen != "p3" {
		t.Errorf("second group FirstSeen = %s, want p3", methods[1].FirstSeen)
	}
	if methods[1].Bank != "GTBank" {
		t.Errorf("composite group Bank = %s, want GTBank", methods[1].Bank)
	}
}

func TestMemoryStore_CRUD(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	now := time.Now()
	p := &Payment{
		ID:        "pay1",
		BookingID: "b1",
		GuestID:   "g1",
		Provider:  ProviderStripe,
		Status:    StatusInitiated,
		Metadata:  Metadata{"last4": "4242"},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.Create(ctx, p); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := store.GetByBooking(ctx, "b1")
	if err != nil {
		t.Fatalf("GetByBooking: %v", err)
	}
	if got.ID != "pay1" {
		t.Errorf("got payment %s, want pay1", got.ID)
	}

	// Returned copy must not alias store state.
	got.Metadata["last4"] = "9999"
	again, _ := store.Get(ctx, "pay1")
	if last4, _ := again.Metadata.Last4(); last4 != "4242" {
		t.Error("store state mutated through returned copy")
	}

	if err := store.UpdateStatus(ctx, "pay1", StatusHeld); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	updated, _ := store.Get(ctx, "pay1")
	if updated.Status != StatusHeld {
		t.Errorf("status = %s, want held", updated.Status)
	}

	if _, err := store.Get(ctx, "missing"); err != ErrPaymentNotFound {
		t.Errorf("expected ErrPaymentNotFound, got %v", err)
	}
}
