// Package memory holds process-local stores used when no database is
// configured and in tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/lupppig/deliverynotify/internal/domain"
	"github.com/lupppig/deliverynotify/internal/store"
)

type SubscriptionStore struct {
	mu   sync.RWMutex
	subs map[string]domain.PushSubscription
}

func NewSubscriptionStore() *SubscriptionStore {
	return &SubscriptionStore{subs: make(map[string]domain.PushSubscription)}
}

func (s *SubscriptionStore) Upsert(ctx context.Context, sub *domain.PushSubscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.subs[sub.Endpoint]; ok {
		sub.ID = prev.ID
		sub.CreatedAt = prev.CreatedAt
	}
	s.subs[sub.Endpoint] = *sub
	return nil
}

func (s *SubscriptionStore) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[endpoint]; !ok {
		return store.ErrNotFound
	}
	delete(s.subs, endpoint)
	return nil
}

func (s *SubscriptionStore) ListByAudience(ctx context.Context, audience domain.Audience) ([]*domain.PushSubscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.PushSubscription
	for _, sub := range s.subs {
		switch audience.Kind {
		case domain.AudienceUser:
			if sub.UserID != audience.ID {
				continue
			}
		case domain.AudienceOrder:
			continue
		}
		sub := sub
		out = append(out, &sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type DispatchStore struct {
	mu         sync.RWMutex
	dispatches []domain.Dispatch
}

func NewDispatchStore() *DispatchStore {
	return &DispatchStore{}
}

func (s *DispatchStore) Create(ctx context.Context, d *domain.Dispatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatches = append(s.dispatches, *d)
	return nil
}

// ListRecent returns the newest dispatches first.
func (s *DispatchStore) ListRecent(ctx context.Context, limit int) ([]*domain.Dispatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Dispatch
	for i := len(s.dispatches) - 1; i >= 0 && len(out) < limit; i-- {
		d := s.dispatches[i]
		out = append(out, &d)
	}
	return out, nil
}
