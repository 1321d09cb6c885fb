package joblock

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process lock store for single-instance deployments
// and tests.
type MemoryStore struct {
	locks map[string]*Lock
	mu    sync.Mutex
}

// NewMemoryStore creates a new in-memory lock store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		locks: make(map[string]*Lock),
	}
}

func (m *MemoryStore) TryAcquire(ctx context.Context, lock *Lock) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.locks[lock.Key]; ok && existing.Live(time.Now()) {
		return ErrLockHeld
	}
	cp := *lock
	m.locks[lock.Key] = &cp
	return nil
}

func (m *MemoryStore) Release(ctx context.Context, key, holder string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Only the holder may delete; a lock taken over after expiry stays.
	if existing, ok := m.locks[key]; ok && existing.Holder == holder {
		delete(m.locks, key)
	}
	return nil
}

func (m *MemoryStore) ForceRelease(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.locks[key]; !ok {
		return ErrLockNotFound
	}
	delete(m.locks, key)
	return nil
}

func (m *MemoryStore) List(ctx context.Context) ([]*Lock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var result []*Lock
	for _, l := range m.locks {
		if l.Live(now) {
			cp := *l
			result = append(result, &cp)
		}
	}
	return result, nil
}
