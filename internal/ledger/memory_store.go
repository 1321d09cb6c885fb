package ledger

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory event store for demo/development mode.
// Append order is preserved per booking.
type MemoryStore struct {
	events map[string][]*Event
	nextID int64
	mu     sync.RWMutex
}

// NewMemoryStore creates a new in-memory event store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events: make(map[string][]*Event),
		nextID: 1,
	}
}

func (m *MemoryStore) Append(ctx context.Context, e *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e.ID = m.nextID
	m.nextID++

	cp := *e
	m.events[e.BookingID] = append(m.events[e.BookingID], &cp)
	return nil
}

func (m *MemoryStore) EventsFor(ctx context.Context, bookingID string) ([]*Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored := m.events[bookingID]
	result := make([]*Event, len(stored))
	for i, e := range stored {
		cp := *e
		result[i] = &cp
	}
	return result, nil
}

func (m *MemoryStore) Counters(ctx context.Context) (Counters, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var c Counters
	for _, events := range m.events {
		for _, e := range events {
			switch e.Outcome() {
			case "reversed":
				c.Reversed++
			case "failed":
				c.Failed++
			case "confirmed":
				c.Confirmed++
			default:
				c.Pending++
			}
		}
	}
	return c, nil
}
