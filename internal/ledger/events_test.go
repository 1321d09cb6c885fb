package ledger

import (
	"context"
	"testing"
)

func pendingEvent(booking string, t EventType) *Event {
	return &Event{BookingID: booking, Type: t}
}

func confirmedEvent(booking string, t EventType, ref string) *Event {
	return &Event{BookingID: booking, Type: t, ProviderResponse: ProviderResponse{Confirmed: true, Reference: ref}}
}

func failedEvent(booking string, t EventType) *Event {
	return &Event{BookingID: booking, Type: t, ProviderResponse: ProviderResponse{Failed: true, Detail: "rejected"}}
}

func reversedEvent(booking string, t EventType) *Event {
	return &Event{BookingID: booking, Type: t, ProviderResponse: ProviderResponse{Reversed: true, Detail: "chargeback"}}
}

func TestPartition(t *testing.T) {
	events := []*Event{
		pendingEvent("b1", EventReleaseRoomFeeSplit),
		confirmedEvent("b1", EventReleaseRoomFeeSplit, "tr_1"),
		failedEvent("b1", EventPayRealtorFromDeposit),
		reversedEvent("b1", EventReleaseRoomFeeSplit),
	}

	b := Partition(events)
	if len(b.Pending) != 1 || len(b.Confirmed) != 1 || len(b.Failed) != 1 || len(b.Reversed) != 1 {
		t.Fatalf("unexpected partition sizes: %d/%d/%d/%d",
			len(b.Pending), len(b.Confirmed), len(b.Failed), len(b.Reversed))
	}
}

func TestLeg_OrderMatters(t *testing.T) {
	// A confirmation supersedes an earlier attempt.
	events := []*Event{
		pendingEvent("b1", EventReleaseRoomFeeSplit),
		confirmedEvent("b1", EventReleaseRoomFeeSplit, "tr_1"),
	}
	leg := Leg(events, EventReleaseRoomFeeSplit)
	if !leg.Confirmed || leg.Reference != "tr_1" {
		t.Errorf("leg = %+v, want confirmed with reference", leg)
	}

	// A later reversal puts the leg back to its pre-release state.
	events = append(events, reversedEvent("b1", EventReleaseRoomFeeSplit))
	leg = Leg(events, EventReleaseRoomFeeSplit)
	if leg.Confirmed {
		t.Error("reversed leg must not count as confirmed")
	}
	if !leg.Reversed {
		t.Error("leg should be flagged reversed")
	}

	// Other types are untouched.
	if got := Leg(events, EventPayRealtorFromDeposit); got.Attempted || got.Confirmed {
		t.Errorf("unrelated leg state = %+v, want zero", got)
	}
}

func TestHasPendingAttempt(t *testing.T) {
	events := []*Event{pendingEvent("b1", EventReleaseRoomFeeSplit)}
	if !HasPendingAttempt(events, EventReleaseRoomFeeSplit) {
		t.Error("open attempt should be pending")
	}

	events = append(events, confirmedEvent("b1", EventReleaseRoomFeeSplit, "tr_1"))
	if HasPendingAttempt(events, EventReleaseRoomFeeSplit) {
		t.Error("confirmed attempt should no longer be pending")
	}

	// A fresh attempt after a failure re-opens the leg.
	events = append(events,
		failedEvent("b1", EventPayRealtorFromDeposit),
		pendingEvent("b1", EventPayRealtorFromDeposit),
	)
	if !HasPendingAttempt(events, EventPayRealtorFromDeposit) {
		t.Error("re-attempt after failure should be pending")
	}
}

func TestMemoryStore_AppendOnlyAndOrdered(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	first := pendingEvent("b1", EventReleaseRoomFeeSplit)
	second := confirmedEvent("b1", EventReleaseRoomFeeSplit, "tr_9")
	if err := store.Append(ctx, first); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := store.Append(ctx, second); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if first.ID == 0 || second.ID <= first.ID {
		t.Errorf("IDs must be assigned in append order: %d, %d", first.ID, second.ID)
	}

	events, err := store.EventsFor(ctx, "b1")
	if err != nil {
		t.Fatalf("EventsFor: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].ID != first.ID || events[1].ID != second.ID {
		t.Error("events not returned in append order")
	}

	// Mutating a returned row must not touch stored state.
	events[1].ProviderResponse.Confirmed = false
	again, _ := store.EventsFor(ctx, "b1")
	if !again[1].ProviderResponse.Confirmed {
		t.Error("stored event mutated through returned copy")
	}
}

func TestMemoryStore_Counters(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_ = store.Append(ctx, pendingEvent("b1", EventReleaseRoomFeeSplit))
	_ = store.Append(ctx, confirmedEvent("b1", EventReleaseRoomFeeSplit, "tr_1"))
	_ = store.Append(ctx, failedEvent("b2", EventCapturePayment))
	_ = store.Append(ctx, reversedEvent("b3", EventPayRealtorFromDeposit))

	c, err := store.Counters(ctx)
	if err != nil {
		t.Fatalf("Counters: %v", err)
	}
	want := Counters{Pending: 1, Confirmed: 1, Failed: 1, Reversed: 1}
	if c != want {
		t.Errorf("counters = %+v, want %+v", c, want)
	}
}
