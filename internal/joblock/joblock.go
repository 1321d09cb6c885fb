// Package joblock provides time-bounded mutual exclusion per booking, so the
// scheduler and the webhook reconciler never process the same booking's
// financial actions concurrently.
//
// Acquisition is non-blocking: a busy booking is skipped this cycle, not
// queued. Every lock carries a TTL so a crashed holder cannot permanently
// starve a booking; liveness is computed lazily by whoever next attempts
// acquisition, never swept.
package joblock

import (
	"context"
	"errors"
	"time"

	"github.com/stayzen/stayzen/internal/idgen"
	"github.com/stayzen/stayzen/internal/metrics"
)

var (
	// ErrLockHeld means a live lock exists for the key. Not an error for
	// callers: skip this cycle rather than retrying immediately.
	ErrLockHeld = errors.New("lock already held")

	ErrLockNotFound = errors.New("lock not found")
)

// Lock is an ephemeral coordination record keyed by booking (or job) id.
type Lock struct {
	Key        string        `json:"key"`
	Holder     string        `json:"holder"`
	AcquiredAt time.Time     `json:"acquiredAt"`
	TTL        time.Duration `json:"ttl"`
}

// Live reports whether the lock is still held at the given time.
func (l *Lock) Live(now time.Time) bool {
	return now.Before(l.AcquiredAt.Add(l.TTL))
}

// ExpiresAt returns when the lock lapses without an explicit release.
func (l *Lock) ExpiresAt() time.Time {
	return l.AcquiredAt.Add(l.TTL)
}

// Handle identifies a held lock for release.
type Handle struct {
	Key    string
	Holder string
}

// Store persists locks. TryAcquire must fail with ErrLockHeld iff a live
// lock exists for the key; expired locks are replaced, not errors.
type Store interface {
	TryAcquire(ctx context.Context, lock *Lock) error
	// Release deletes the lock if held by holder. Idempotent: releasing a
	// lock that is gone (or taken over after expiry) is not an error.
	Release(ctx context.Context, key, holder string) error
	// ForceRelease deletes the lock regardless of holder.
	ForceRelease(ctx context.Context, key string) error
	// List returns currently live locks.
	List(ctx context.Context) ([]*Lock, error)
}

// Manager coordinates lock acquisition with a stable holder identity and
// instrumentation. One Manager is created at startup and passed by
// reference to the scheduler and the reconciler.
type Manager struct {
	store      Store
	holderID   string
	defaultTTL time.Duration
}

// NewManager creates a lock manager over the given store.
func NewManager(store Store, defaultTTL time.Duration) *Manager {
	if defaultTTL <= 0 {
		defaultTTL = 30 * time.Second
	}
	return &Manager{
		store:      store,
		holderID:   idgen.New(),
		defaultTTL: defaultTTL,
	}
}

// HolderID returns this process's holder identity.
func (m *Manager) HolderID() string {
	return m.holderID
}

// Acquire attempts to take the lock for key with the manager's default TTL.
// On contention it returns ErrLockHeld; callers skip the booking this cycle.
func (m *Manager) Acquire(ctx context.Context, key string) (*Handle, error) {
	return m.AcquireTTL(ctx, key, m.defaultTTL)
}

// AcquireTTL is Acquire with an explicit TTL.
func (m *Manager) AcquireTTL(ctx context.Context, key string, ttl time.Duration) (*Handle, error) {
	lock := &Lock{
		Key:        key,
		Holder:     m.holderID,
		AcquiredAt: time.Now(),
		TTL:        ttl,
	}
	if err := m.store.TryAcquire(ctx, lock); err != nil {
		if errors.Is(err, ErrLockHeld) {
			metrics.JobLocksTotal.WithLabelValues("contended").Inc()
		}
		return nil, err
	}
	metrics.JobLocksTotal.WithLabelValues("acquired").Inc()
	return &Handle{Key: key, Holder: m.holderID}, nil
}

// Release releases a held lock. Safe to call more than once.
func (m *Manager) Release(ctx context.Context, h *Handle) error {
	if h == nil {
		return nil
	}
	if err := m.store.Release(ctx, h.Key, h.Holder); err != nil {
		return err
	}
	metrics.JobLocksTotal.WithLabelValues("released").Inc()
	return nil
}

// ForceRelease deletes a lock regardless of holder. Administrative escape
// hatch for when a worker crashed mid-processing; the caller is responsible
// for the admin authorization check.
func (m *Manager) ForceRelease(ctx context.Context, key string) error {
	if err := m.store.ForceRelease(ctx, key); err != nil {
		return err
	}
	metrics.JobLocksTotal.WithLabelValues("force_released").Inc()
	return nil
}

// List returns currently live locks for operator visibility.
func (m *Manager) List(ctx context.Context) ([]*Lock, error) {
	return m.store.List(ctx)
}
