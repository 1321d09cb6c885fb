package webhook

import (
	"context"
	"database/sql"

	"github.com/stayzen/stayzen/internal/pagination"
)

// PostgresDeliveryStore persists the delivery audit trail in PostgreSQL.
type PostgresDeliveryStore struct {
	db *sql.DB
}

func NewPostgresDeliveryStore(db *sql.DB) *PostgresDeliveryStore {
	return &PostgresDeliveryStore{db: db}
}

func (p *PostgresDeliveryStore) Record(ctx context.Context, d *Delivery) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO webhook_deliveries (
			id, provider, booking_id, event_type, kind, reference, outcome, detail, received_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		d.ID, nullString(d.Provider), nullString(d.BookingID), nullString(d.EventType),
		nullString(string(d.Kind)), nullString(d.Reference),
		string(d.Outcome), nullString(d.Detail), d.ReceivedAt,
	)
	return err
}

func (p *PostgresDeliveryStore) ListByBooking(ctx context.Context, bookingID string, before *pagination.Cursor, limit int) ([]*Delivery, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, provider, booking_id, event_type, kind, reference, outcome, detail, received_at
		FROM webhook_deliveries
		WHERE booking_id = $1
		ORDER BY received_at DESC, id DESC
		LIMIT $2`
	args := []interface{}{bookingID, limit}
	if before != nil {
		query = `
		SELECT id, provider, booking_id, event_type, kind, reference, outcome, detail, received_at
		FROM webhook_deliveries
		WHERE booking_id = $1
		  AND (received_at, id) < ($2, $3)
		ORDER BY received_at DESC, id DESC
		LIMIT $4`
		args = []interface{}{bookingID, before.CreatedAt, before.ID, limit}
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Delivery
	for rows.Next() {
		var d Delivery
		var provider, booking, eventType, kind, reference, detail sql.NullString
		err := rows.Scan(&d.ID, &provider, &booking, &eventType, &kind,
			&reference, &d.Outcome, &detail, &d.ReceivedAt)
		if err != nil {
			return nil, err
		}
		d.Provider = provider.String
		d.BookingID = booking.String
		d.EventType = eventType.String
		d.Kind = Kind(kind.String)
		d.Reference = reference.String
		d.Detail = detail.String
		out = append(out, &d)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
