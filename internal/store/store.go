package store

import (
	"context"
	"errors"

	"github.com/lupppig/deliverynotify/internal/domain"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// SubscriptionStore holds one row per device push registration, keyed by
// endpoint.
type SubscriptionStore interface {
	Upsert(ctx context.Context, sub *domain.PushSubscription) error
	DeleteByEndpoint(ctx context.Context, endpoint string) error
	ListByAudience(ctx context.Context, audience domain.Audience) ([]*domain.PushSubscription, error)
}

type DispatchStore interface {
	Create(ctx context.Context, d *domain.Dispatch) error
	ListRecent(ctx context.Context, limit int) ([]*domain.Dispatch, error)
}
