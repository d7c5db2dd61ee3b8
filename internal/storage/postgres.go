package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/example/tablebook/internal/db"
)

// Postgres keeps slots in the client_state table created by
// internal/migrate.
type Postgres struct {
	db *db.DB
}

func NewPostgres(d *db.DB) *Postgres {
	return &Postgres{db: d}
}

func (p *Postgres) Get(ctx context.Context, key string) (string, error) {
	var v string
	err := db.WrapNotFound(p.db.QueryRow(ctx, `SELECT value FROM client_state WHERE key = $1`, key).Scan(&v))
	if db.IsNotFound(err) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("storage: get %s: %w", key, err)
	}
	return v, nil
}

func (p *Postgres) Set(ctx context.Context, key, value string) error {
	_, err := p.db.Exec(ctx, `INSERT INTO client_state (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`, key, value)
	if err != nil {
		return fmt.Errorf("storage: set %s: %w", key, err)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, key string) error {
	if _, err := p.db.Exec(ctx, `DELETE FROM client_state WHERE key = $1`, key); err != nil {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	return nil
}

// Prune removes slots not written since before and returns how many
// were removed.
func (p *Postgres) Prune(ctx context.Context, before time.Time) (int64, error) {
	n, err := p.db.Exec(ctx, `DELETE FROM client_state WHERE updated_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("storage: prune: %w", err)
	}
	return n, nil
}
