package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS dashboard_storage (
  sid        TEXT        NOT NULL,
  key        TEXT        NOT NULL,
  value      TEXT        NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  PRIMARY KEY (sid, key)
)`

type PostgresBackend struct {
	pool *pgxpool.Pool
}

var _ Backend = (*PostgresBackend)(nil)

func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func NewPostgresBackend(pool *pgxpool.Pool) *PostgresBackend {
	return &PostgresBackend{pool: pool}
}

// EnsureSchema creates the storage table when missing.
func (b *PostgresBackend) EnsureSchema(ctx context.Context) error {
	_, err := b.pool.Exec(ctx, schema)
	return errors.Wrap(err, "create dashboard_storage")
}

func (b *PostgresBackend) Get(ctx context.Context, sid, key string) (string, bool, error) {
	var value string
	err := b.pool.QueryRow(ctx, `SELECT value FROM dashboard_storage WHERE sid = $1 AND key = $2`, sid, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "select dashboard_storage")
	}
	return value, true, nil
}

func (b *PostgresBackend) SetMany(ctx context.Context, sid string, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	now := time.Now().UTC()
	return b.withTx(ctx, func(tx pgx.Tx) error {
		for key, value := range values {
			if _, err := tx.Exec(ctx, `
        INSERT INTO dashboard_storage (sid, key, value, updated_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (sid, key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
      `, sid, key, value, now); err != nil {
				return errors.Wrap(err, "upsert dashboard_storage")
			}
		}
		return nil
	})
}

func (b *PostgresBackend) Delete(ctx context.Context, sid string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := b.pool.Exec(ctx, `DELETE FROM dashboard_storage WHERE sid = $1 AND key = ANY($2)`, sid, keys)
	return errors.Wrap(err, "delete dashboard_storage")
}

func (b *PostgresBackend) Ping(ctx context.Context) error {
	return b.pool.Ping(ctx)
}

func (b *PostgresBackend) Close() error {
	b.pool.Close()
	return nil
}

func (b *PostgresBackend) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := b.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}
