package webhook

import (
	"context"
	"sync"

	"github.com/stayzen/stayzen/internal/pagination"
)

// MemoryDeliveryStore is an in-memory DeliveryStore for tests and local
// development.
type MemoryDeliveryStore struct {
	mu         sync.RWMutex
	deliveries []*Delivery
}

func NewMemoryDeliveryStore() *MemoryDeliveryStore {
	return &MemoryDeliveryStore{}
}

func (m *MemoryDeliveryStore) Record(ctx context.Context, d *Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *d
	m.deliveries = append(m.deliveries, &cp)
	return nil
}

func (m *MemoryDeliveryStore) ListByBooking(ctx context.Context, bookingID string, before *pagination.Cursor, limit int) ([]*Delivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Delivery
	// Newest first.
	for i := len(m.deliveries) - 1; i >= 0; i-- {
		d := m.deliveries[i]
		if d.BookingID != bookingID {
			continue
		}
		if before != nil && !olderThan(d, before) {
			continue
		}
		cp := *d
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// olderThan reports whether d sorts strictly after the cursor in the
// newest-first ordering (received_at desc, id desc).
func olderThan(d *Delivery, c *pagination.Cursor) bool {
	if d.ReceivedAt.Before(c.CreatedAt) {
		return true
	}
	return d.ReceivedAt.Equal(c.CreatedAt) && d.ID < c.ID
}
