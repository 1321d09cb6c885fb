package circuitbreaker

import (
	"errors"
	"sync"
	"testing"
	"time"
)

var errProvider = errors.New("provider unavailable")

func fail() error { return errProvider }
func ok() error   { return nil }

func TestDo_PassesThroughWhenClosed(t *testing.T) {
	b := New(3, 100*time.Millisecond)

	if err := b.Do("capture", ok); err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	if err := b.Do("capture", fail); !errors.Is(err, errProvider) {
		t.Fatalf("Do() error = %v, want provider error", err)
	}
}

func TestDo_TripsAfterThreshold(t *testing.T) {
	b := New(3, 100*time.Millisecond)

	// 2 failures = still closed
	_ = b.Do("capture", fail)
	_ = b.Do("capture", fail)
	if b.State("capture") != StateClosed {
		t.Fatal("should still be closed before threshold")
	}

	// 3rd failure = open
	_ = b.Do("capture", fail)
	if b.State("capture") != StateOpen {
		t.Fatalf("expected StateOpen, got %v", b.State("capture"))
	}

	// Open circuit rejects without invoking fn
	called := false
	err := b.Do("capture", func() error { called = true; return nil })
	if !errors.Is(err, ErrOpen) {
		t.Fatalf("Do() error = %v, want ErrOpen", err)
	}
	if called {
		t.Fatal("fn should not run while open")
	}
}

func TestDo_OpenToHalfOpenAfterDuration(t *testing.T) {
	b := New(2, 50*time.Millisecond)

	_ = b.Do("transfer", fail)
	_ = b.Do("transfer", fail)
	if b.State("transfer") != StateOpen {
		t.Fatal("should be open")
	}

	// Wait for open duration, then the probe goes through.
	time.Sleep(60 * time.Millisecond)

	probed := false
	blocked := false
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		// Second concurrent call while the probe is in flight is rejected.
		_ = b.Do("transfer", func() error {
			probed = true
			err := b.Do("transfer", func() error { return nil })
			blocked = errors.Is(err, ErrOpen)
			return nil
		})
	}()
	wg.Wait()

	if !probed {
		t.Fatal("probe should run in half-open")
	}
	if !blocked {
		t.Fatal("second call during probe should be rejected")
	}
}

func TestDo_ProbeSuccessCloses(t *testing.T) {
	b := New(2, 50*time.Millisecond)

	_ = b.Do("refund", fail)
	_ = b.Do("refund", fail)
	time.Sleep(60 * time.Millisecond)

	if err := b.Do("refund", ok); err != nil {
		t.Fatalf("probe error: %v", err)
	}
	if b.State("refund") != StateClosed {
		t.Fatalf("expected StateClosed after probe success, got %v", b.State("refund"))
	}
}

func TestDo_ProbeFailureReopens(t *testing.T) {
	b := New(2, 50*time.Millisecond)

	_ = b.Do("refund", fail)
	_ = b.Do("refund", fail)
	time.Sleep(60 * time.Millisecond)

	_ = b.Do("refund", fail) // probe fails
	if b.State("refund") != StateOpen {
		t.Fatalf("expected StateOpen after probe failure, got %v", b.State("refund"))
	}
}

func TestDo_SuccessResetsCounter(t *testing.T) {
	b := New(3, 100*time.Millisecond)

	_ = b.Do("capture", fail)
	_ = b.Do("capture", fail)
	_ = b.Do("capture", ok)

	// Counter was reset, one more failure must not trip.
	_ = b.Do("capture", fail)
	if b.State("capture") != StateClosed {
		t.Fatal("should still be closed after reset")
	}
}

func TestDo_IndependentKeys(t *testing.T) {
	b := New(2, 100*time.Millisecond)

	_ = b.Do("capture", fail)
	_ = b.Do("capture", fail)

	// capture is open, transfer is unaffected.
	if b.State("capture") != StateOpen {
		t.Fatal("capture should be open")
	}
	if err := b.Do("transfer", ok); err != nil {
		t.Fatalf("transfer should be closed: %v", err)
	}
}

func TestState_UnknownKeyIsClosed(t *testing.T) {
	b := New(2, 100*time.Millisecond)
	if b.State("unknown") != StateClosed {
		t.Fatalf("expected StateClosed for unknown key, got %v", b.State("unknown"))
	}
}

func TestOnTransitionCallback(t *testing.T) {
	b := New(2, 50*time.Millisecond)

	var mu sync.Mutex
	var transitions []struct{ from, to State }
	b.OnTransition(func(key string, from, to State) {
		mu.Lock()
		transitions = append(transitions, struct{ from, to State }{from, to})
		mu.Unlock()
	})

	_ = b.Do("capture", fail)
	_ = b.Do("capture", fail) // closed→open

	// Give goroutine time to run.
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(transitions) != 1 {
		t.Fatalf("expected 1 transition, got %d", len(transitions))
	}
	if transitions[0].from != StateClosed || transitions[0].to != StateOpen {
		t.Fatalf("expected closed→open, got %v→%v", transitions[0].from, transitions[0].to)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half_open"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}
