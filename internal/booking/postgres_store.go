package booking

import (
	"context"
	"database/sql"
	"time"

	"github.com/stayzen/stayzen/internal/payment"
)

// PostgresStore persists bookings in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed booking store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const bookingColumns = `id, property_id, guest_id, check_in, check_out, payment_status,
		       special_requests, room_fee_minor, deposit_minor, deposit_claim_minor,
		       currency, realtor_account_id, cancelled_at, created_at, updated_at`

func (p *PostgresStore) Create(ctx context.Context, b *Booking) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO bookings (
			id, property_id, guest_id, check_in, check_out, payment_status,
			special_requests, room_fee_minor, deposit_minor, deposit_claim_minor,
			currency, realtor_account_id, cancelled_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		b.ID, b.PropertyID, b.GuestID, b.CheckIn, b.CheckOut, string(b.PaymentStatus),
		nullString(b.SpecialRequests), b.RoomFeeMinor, b.DepositMinor, b.DepositClaimMinor,
		b.Currency, b.RealtorAccountID, nullTime(b.CancelledAt), b.CreatedAt, b.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Booking, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, ErrBookingNotFound
	}
	return b, err
}

func (p *PostgresStore) Update(ctx context.Context, b *Booking) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE bookings SET
			payment_status = $1, special_requests = $2, deposit_claim_minor = $3,
			cancelled_at = $4, updated_at = $5
		WHERE id = $6`,
		string(b.PaymentStatus), nullString(b.SpecialRequests), b.DepositClaimMinor,
		nullTime(b.CancelledAt), b.UpdatedAt, b.ID,
	)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func (p *PostgresStore) UpdatePaymentStatus(ctx context.Context, id string, status payment.Status) error {
	result, err := p.db.ExecContext(ctx,
		`UPDATE bookings SET payment_status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now(), id)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func (p *PostgresStore) ListDueForRelease(ctx context.Context, now time.Time, offset time.Duration, limit int) ([]*Booking, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE check_out + $1::interval < $2
		  AND payment_status NOT IN ('settled', 'refunded')
		ORDER BY check_out
		LIMIT $3`,
		offset.String(), now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(row rowScanner) (*Booking, error) {
	var b Booking
	var status string
	var specialRequests sql.NullString
	var cancelledAt sql.NullTime

	err := row.Scan(&b.ID, &b.PropertyID, &b.GuestID, &b.CheckIn, &b.CheckOut, &status,
		&specialRequests, &b.RoomFeeMinor, &b.DepositMinor, &b.DepositClaimMinor,
		&b.Currency, &b.RealtorAccountID, &cancelledAt, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}

	b.PaymentStatus = payment.Status(status)
	b.SpecialRequests = specialRequests.String
	if cancelledAt.Valid {
		t := cancelledAt.Time
		b.CancelledAt = &t
	}
	return &b, nil
}

func requireRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrBookingNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
