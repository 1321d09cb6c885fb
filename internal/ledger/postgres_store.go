package ledger

import (
	"context"
	"database/sql"
)

// PostgresStore persists ledger events in PostgreSQL. The table has no
// UPDATE path; immutability is enforced by only ever inserting.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed event store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Append(ctx context.Context, e *Event) error {
	return p.db.QueryRowContext(ctx, `
		INSERT INTO escrow_events (
			booking_id, event_type, confirmed, failed, reversed, reference, detail, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		e.BookingID, string(e.Type),
		e.ProviderResponse.Confirmed, e.ProviderResponse.Failed, e.ProviderResponse.Reversed,
		nullString(e.ProviderResponse.Reference), nullString(e.ProviderResponse.Detail),
		e.CreatedAt,
	).Scan(&e.ID)
}

func (p *PostgresStore) EventsFor(ctx context.Context, bookingID string) ([]*Event, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, booking_id, event_type, confirmed, failed, reversed, reference, detail, created_at
		FROM escrow_events
		WHERE booking_id = $1
		ORDER BY id`,
		bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var e Event
		var eventType string
		var reference, detail sql.NullString
		err := rows.Scan(&e.ID, &e.BookingID, &eventType,
			&e.ProviderResponse.Confirmed, &e.ProviderResponse.Failed, &e.ProviderResponse.Reversed,
			&reference, &detail, &e.CreatedAt)
		if err != nil {
			return nil, err
		}
		e.Type = EventType(eventType)
		e.ProviderResponse.Reference = reference.String
		e.ProviderResponse.Detail = detail.String
		events = append(events, &e)
	}
	return events, rows.Err()
}

func (p *PostgresStore) Counters(ctx context.Context) (Counters, error) {
	var c Counters
	err := p.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE NOT confirmed AND NOT failed AND NOT reversed),
			COUNT(*) FILTER (WHERE confirmed AND NOT reversed),
			COUNT(*) FILTER (WHERE failed AND NOT reversed),
			COUNT(*) FILTER (WHERE reversed)
		FROM escrow_events`,
	).Scan(&c.Pending, &c.Confirmed, &c.Failed, &c.Reversed)
	return c, err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
