package joblock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestManager_AcquireAndRelease(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore(), time.Minute)

	h, err := m.Acquire(ctx, "b1")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	// Second acquisition for the same key fails fast.
	if _, err := m.Acquire(ctx, "b1"); !errors.Is(err, ErrLockHeld) {
		t.Fatalf("expected ErrLockHeld, got %v", err)
	}

	// Different key is unaffected.
	if _, err := m.Acquire(ctx, "b2"); err != nil {
		t.Fatalf("Acquire b2: %v", err)
	}

	if err := m.Release(ctx, h); err != nil {
		t.Fatalf("Release: %v", err)
	}
	// Release is idempotent.
	if err := m.Release(ctx, h); err != nil {
		t.Fatalf("second Release: %v", err)
	}
	if err := m.Release(ctx, nil); err != nil {
		t.Fatalf("nil Release: %v", err)
	}

	// Key is free again.
	if _, err := m.Acquire(ctx, "b1"); err != nil {
		t.Fatalf("re-Acquire: %v", err)
	}
}

func TestManager_MutualExclusionUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	const workers = 32
	var wg sync.WaitGroup
	var successes atomic.Int32

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m := NewManager(store, time.Minute)
			if _, err := m.Acquire(ctx, "contested"); err == nil {
				successes.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := successes.Load(); got != 1 {
		t.Fatalf("expected exactly 1 successful acquisition, got %d", got)
	}
}

func TestManager_ExpiredLockIsReplaced(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	m := NewManager(store, time.Minute)

	if _, err := m.AcquireTTL(ctx, "b1", 10*time.Millisecond); err != nil {
		t.Fatalf("AcquireTTL: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	// Expiry is evaluated lazily by the next acquirer; no sweeper needed.
	if _, err := m.Acquire(ctx, "b1"); err != nil {
		t.Fatalf("expected acquisition after expiry, got %v", err)
	}
}

func TestManager_ReleaseDoesNotStealTakenOverLock(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	first := NewManager(store, time.Minute)
	stale, err := first.AcquireTTL(ctx, "b1", 10*time.Millisecond)
	if err != nil {
		t.Fatalf("AcquireTTL: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	second := NewManager(store, time.Minute)
	if _, err := second.Acquire(ctx, "b1"); err != nil {
		t.Fatalf("takeover Acquire: %v", err)
	}

	// The stale holder's release must not free the new holder's lock.
	if err := first.Release(ctx, stale); err != nil {
		t.Fatalf("stale Release: %v", err)
	}
	if _, err := second.Acquire(ctx, "b1"); !errors.Is(err, ErrLockHeld) {
		t.Fatalf("new holder's lock was stolen: %v", err)
	}
}

func TestManager_ForceRelease(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore(), time.Minute)

	if _, err := m.Acquire(ctx, "stuck"); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := m.ForceRelease(ctx, "stuck"); err != nil {
		t.Fatalf("ForceRelease: %v", err)
	}
	if _, err := m.Acquire(ctx, "stuck"); err != nil {
		t.Fatalf("Acquire after force-release: %v", err)
	}

	if err := m.ForceRelease(ctx, "missing"); !errors.Is(err, ErrLockNotFound) {
		t.Fatalf("expected ErrLockNotFound, got %v", err)
	}
}

func TestMemoryStore_ListOnlyLiveLocks(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_ = store.TryAcquire(ctx, &Lock{Key: "live", Holder: "h1", AcquiredAt: time.Now(), TTL: time.Minute})
	_ = store.TryAcquire(ctx, &Lock{Key: "dead", Holder: "h1", AcquiredAt: time.Now().Add(-time.Hour), TTL: time.Minute})

	locks, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(locks) != 1 || locks[0].Key != "live" {
		t.Fatalf("expected only the live lock, got %+v", locks)
	}
}
