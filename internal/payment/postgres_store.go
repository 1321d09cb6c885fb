package payment

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// PostgresStore persists payment records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed payment store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const paymentColumns = `id, booking_id, guest_id, provider, status, metadata, created_at, updated_at`

func (p *PostgresStore) Create(ctx context.Context, pay *Payment) error {
	metadataJSON, _ := json.Marshal(pay.Metadata)
	if pay.Metadata == nil {
		metadataJSON = []byte("{}")
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO payments (id, booking_id, guest_id, provider, status, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		pay.ID, pay.BookingID, pay.GuestID, string(pay.Provider), string(pay.Status),
		metadataJSON, pay.CreatedAt, pay.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Payment, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	pay, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return nil, ErrPaymentNotFound
	}
	return pay, err
}

func (p *PostgresStore) GetByBooking(ctx context.Context, bookingID string) (*Payment, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE booking_id = $1 ORDER BY created_at LIMIT 1`,
		bookingID)
	pay, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return nil, ErrPaymentNotFound
	}
	return pay, err
}

func (p *PostgresStore) ListByGuest(ctx context.Context, guestID string, limit int) ([]*Payment, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE guest_id = $1
		ORDER BY created_at
		LIMIT $2`,
		guestID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*Payment
	for rows.Next() {
		pay, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, pay)
	}
	return payments, rows.Err()
}

func (p *PostgresStore) UpdateStatus(ctx context.Context, id string, status Status) error {
	result, err := p.db.ExecContext(ctx,
		`UPDATE payments SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now(), id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPayment(row rowScanner) (*Payment, error) {
	var pay Payment
	var provider, status string
	var metadataJSON []byte

	err := row.Scan(&pay.ID, &pay.BookingID, &pay.GuestID, &provider, &status,
		&metadataJSON, &pay.CreatedAt, &pay.UpdatedAt)
	if err != nil {
		return nil, err
	}

	pay.Provider = Provider(provider)
	pay.Status = Status(status)
	if len(metadataJSON) > 0 {
		_ = json.Unmarshal(metadataJSON, &pay.Metadata)
	}
	return &pay, nil
}
