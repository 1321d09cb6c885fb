package realtor

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/lib/pq"
)

// PostgresStore persists realtors in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed realtor store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, r *Realtor) error {
	settingsJSON, err := json.Marshal(r.Settings)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO realtors (id, name, slug, plan, account_id, status, settings, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.ID, r.Name, r.Slug, string(r.Plan), r.AccountID, string(r.Status),
		settingsJSON, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrSlugTaken
		}
		return err
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Realtor, error) {
	return p.scanRealtor(p.db.QueryRowContext(ctx, `
		SELECT id, name, slug, plan, account_id, status, settings, created_at, updated_at
		FROM realtors WHERE id = $1`, id))
}

func (p *PostgresStore) GetBySlug(ctx context.Context, slug string) (*Realtor, error) {
	return p.scanRealtor(p.db.QueryRowContext(ctx, `
		SELECT id, name, slug, plan, account_id, status, settings, created_at, updated_at
		FROM realtors WHERE slug = $1`, slug))
}

func (p *PostgresStore) GetByAccount(ctx context.Context, accountID string) (*Realtor, error) {
	return p.scanRealtor(p.db.QueryRowContext(ctx, `
		SELECT id, name, slug, plan, account_id, status, settings, created_at, updated_at
		FROM realtors WHERE account_id = $1`, accountID))
}

func (p *PostgresStore) Update(ctx context.Context, r *Realtor) error {
	settingsJSON, err := json.Marshal(r.Settings)
	if err != nil {
		return err
	}
	result, err := p.db.ExecContext(ctx, `
		UPDATE realtors SET name = $1, slug = $2, plan = $3, account_id = $4, status = $5,
			settings = $6, updated_at = $7
		WHERE id = $8`,
		r.Name, r.Slug, string(r.Plan), r.AccountID, string(r.Status),
		settingsJSON, r.UpdatedAt, r.ID,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrSlugTaken
		}
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrRealtorNotFound
	}
	return nil
}

func (p *PostgresStore) scanRealtor(row *sql.Row) (*Realtor, error) {
	r := &Realtor{}
	var (
		plan, status string
		accountID    sql.NullString
		settingsJSON []byte
	)
	err := row.Scan(&r.ID, &r.Name, &r.Slug, &plan, &accountID, &status, &settingsJSON,
		&r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrRealtorNotFound
	}
	if err != nil {
		return nil, err
	}
	r.Plan = Plan(plan)
	r.Status = Status(status)
	if accountID.Valid {
		r.AccountID = accountID.String
	}
	if len(settingsJSON) > 0 {
		_ = json.Unmarshal(settingsJSON, &r.Settings)
	}
	return r, nil
}

var _ Store = (*PostgresStore)(nil)
