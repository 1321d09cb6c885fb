package joblock

import (
	"context"
	"database/sql"
	"time"
)

// PostgresStore persists locks in PostgreSQL. Acquisition relies on the
// primary key plus a conditional upsert: an expired row is taken over in the
// same statement, so expiry needs no sweeper.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed lock store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) TryAcquire(ctx context.Context, lock *Lock) error {
	result, err := p.db.ExecContext(ctx, `
		INSERT INTO job_locks (key, holder, acquired_at, ttl_ms)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE
		SET holder = EXCLUDED.holder,
		    acquired_at = EXCLUDED.acquired_at,
		    ttl_ms = EXCLUDED.ttl_ms
		WHERE job_locks.acquired_at + make_interval(secs => job_locks.ttl_ms / 1000.0) <= $3`,
		lock.Key, lock.Holder, lock.AcquiredAt, lock.TTL.Milliseconds(),
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrLockHeld
	}
	return nil
}

func (p *PostgresStore) Release(ctx context.Context, key, holder string) error {
	_, err := p.db.ExecContext(ctx,
		`DELETE FROM job_locks WHERE key = $1 AND holder = $2`, key, holder)
	return err
}

func (p *PostgresStore) ForceRelease(ctx context.Context, key string) error {
	result, err := p.db.ExecContext(ctx, `DELETE FROM job_locks WHERE key = $1`, key)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrLockNotFound
	}
	return nil
}

func (p *PostgresStore) List(ctx context.Context) ([]*Lock, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT key, holder, acquired_at, ttl_ms
		FROM job_locks
		WHERE acquired_at + make_interval(secs => ttl_ms / 1000.0) > $1
		ORDER BY acquired_at`,
		time.Now())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locks []*Lock
	for rows.Next() {
		var l Lock
		var ttlMs int64
		if err := rows.Scan(&l.Key, &l.Holder, &l.AcquiredAt, &ttlMs); err != nil {
			return nil, err
		}
		l.TTL = time.Duration(ttlMs) * time.Millisecond
		locks = append(locks, &l)
	}
	return locks, rows.Err()
}
