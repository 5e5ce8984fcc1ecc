package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lupppig/deliverynotify/internal/domain"
	"github.com/lupppig/deliverynotify/internal/store"
)

type SubscriptionStore struct {
	db *DB
}

func NewSubscriptionStore(db *DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

// Upsert stores the registration. Re-subscribing the same endpoint
// refreshes its keys and owner instead of adding a row.
func (s *SubscriptionStore) Upsert(ctx context.Context, sub *domain.PushSubscription) error {
	query := `
		INSERT INTO push_subscriptions (id, user_id, endpoint, p256dh, auth, device_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (endpoint) DO UPDATE
		SET user_id = EXCLUDED.user_id,
			p256dh = EXCLUDED.p256dh,
			auth = EXCLUDED.auth,
			device_name = EXCLUDED.device_name
		RETURNING id, created_at
	`

	err := s.db.Pool.QueryRow(ctx, query,
		sub.ID,
		sub.UserID,
		sub.Endpoint,
		sub.Keys.P256dh,
		sub.Keys.Auth,
		sub.DeviceName,
		sub.CreatedAt,
	).Scan(&sub.ID, &sub.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: subscription id already used", store.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to save subscription: %w", err)
	}
	return nil
}

func (s *SubscriptionStore) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	tag, err := s.db.Pool.Exec(ctx, `DELETE FROM push_subscriptions WHERE endpoint = $1`, endpoint)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ListByAudience resolves an audience to registrations. Subscriptions are
// not linked to orders, so an order audience resolves to none here.
func (s *SubscriptionStore) ListByAudience(ctx context.Context, audience domain.Audience) ([]*domain.PushSubscription, error) {
	query := `
		SELECT id, user_id, endpoint, p256dh, auth, device_name, created_at
		FROM push_subscriptions
	`
	var args []any
	switch audience.Kind {
	case domain.AudienceUser:
		query += ` WHERE user_id = $1`
		args = append(args, audience.ID)
	case domain.AudienceOrder:
		return nil, nil
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*domain.PushSubscription
	for rows.Next() {
		var sub domain.PushSubscription
		err := rows.Scan(
			&sub.ID,
			&sub.UserID,
			&sub.Endpoint,
			&sub.Keys.P256dh,
			&sub.Keys.Auth,
			&sub.DeviceName,
			&sub.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, &sub)
	}
	return subs, rows.Err()
}
