package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type DB struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, connString string) (*DB, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

func (db *DB) Close() {
	db.Pool.Close()
}

const schema = `
	CREATE TABLE IF NOT EXISTS push_subscriptions (
		id          TEXT PRIMARY KEY,
		user_id     TEXT NOT NULL DEFAULT '',
		endpoint    TEXT UNIQUE NOT NULL,
		p256dh      TEXT NOT NULL,
		auth        TEXT NOT NULL,
		device_name TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS notification_dispatches (
		id         TEXT PRIMARY KEY,
		type       TEXT NOT NULL,
		tag        TEXT NOT NULL,
		order_id   TEXT NOT NULL DEFAULT '',
		audience   TEXT NOT NULL,
		recipients INT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_push_subscriptions_user_id ON push_subscriptions(user_id);
	CREATE INDEX IF NOT EXISTS idx_notification_dispatches_created_at ON notification_dispatches(created_at);
	CREATE INDEX IF NOT EXISTS idx_notification_dispatches_order_id ON notification_dispatches(order_id);
`

func (db *DB) Migrate(ctx context.Context) error {
	_, err := db.Pool.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
