package postgres

import (
	"context"
	"fmt"

	"github.com/lupppig/deliverynotify/internal/domain"
)

type DispatchStore struct {
	db *DB
}

func NewDispatchStore(db *DB) *DispatchStore {
	return &DispatchStore{db: db}
}

func (s *DispatchStore) Create(ctx context.Context, d *domain.Dispatch) error {
	query := `
		INSERT INTO notification_dispatches (id, type, tag, order_id, audience, recipients, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.db.Pool.Exec(ctx, query,
		d.ID,
		d.Type,
		d.Tag,
		d.OrderID,
		d.Audience,
		d.Recipients,
		d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record dispatch: %w", err)
	}
	return nil
}

func (s *DispatchStore) ListRecent(ctx context.Context, limit int) ([]*domain.Dispatch, error) {
	query := `
		SELECT id, type, tag, order_id, audience, recipients, created_at
		FROM notification_dispatches
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := s.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query dispatches: %w", err)
	}
	defer rows.Close()

	var out []*domain.Dispatch
	for rows.Next() {
		var d domain.Dispatch
		err := rows.Scan(
			&d.ID,
			&d.Type,
			&d.Tag,
			&d.OrderID,
			&d.Audience,
			&d.Recipients,
			&d.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan dispatch: %w", err)
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}
