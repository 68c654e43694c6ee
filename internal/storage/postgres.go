package storage

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool used by Postgres.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres stores values in the client_state table:
//
//	CREATE TABLE client_state (
//		key         TEXT PRIMARY KEY,
//		value       JSONB NOT NULL,
//		update_time TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type Postgres struct {
	db DB
}

func NewPostgres(db DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	const stmt = `SELECT value FROM client_state WHERE key = $1;`

	var b []byte
	err := p.db.QueryRow(ctx, stmt, key).Scan(&b)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(key)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: postgres get %s: %w", key, err)
	}

	return b, nil
}

func (p *Postgres) Set(ctx context.Context, key string, value []byte) error {
	const stmt = `
INSERT INTO client_state (key, value, update_time)
VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, update_time = EXCLUDED.update_time;`

	if _, err := p.db.Exec(ctx, stmt, key, value); err != nil {
		return fmt.Errorf("storage: postgres set %s: %w", key, err)
	}

	return nil
}

func (p *Postgres) Delete(ctx context.Context, key string) error {
	const stmt = `DELETE FROM client_state WHERE key = $1;`

	if _, err := p.db.Exec(ctx, stmt, key); err != nil {
		return fmt.Errorf("storage: postgres delete %s: %w", key, err)
	}

	return nil
}
