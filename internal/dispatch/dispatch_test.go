package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lupppig/deliverynotify/internal/broker"
	"github.com/lupppig/deliverynotify/internal/domain"
	"github.com/lupppig/deliverynotify/internal/events"
	"github.com/lupppig/deliverynotify/internal/store/memory"
)

type mockPublisher struct {
	mu       sync.Mutex
	err      error
	messages []broker.Message
}

func (p *mockPublisher) Publish(ctx context.Context, msg broker.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, msg)
	return nil
}

func (p *mockPublisher) Close() error { return nil }

func TestDispatchFansOut(t *testing.T) {
	pub := &mockPublisher{}
	hub := events.NewHub()
	live := &events.Subscriber{ID: "tab", UserID: "u1", Items: make(chan events.Item, 1)}
	hub.Subscribe(live)

	subs := memory.NewSubscriptionStore()
	ctx := context.Background()
	require.NoError(t, subs.Upsert(ctx, &domain.PushSubscription{UserID: "u1", Endpoint: "e1"}))
	require.NoError(t, subs.Upsert(ctx, &domain.PushSubscription{UserID: "u2", Endpoint: "e2"}))
	log := memory.NewDispatchStore()

	d := NewDispatcher(pub, hub, subs, log)
	d.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	event := domain.DeliveryEvent{Type: domain.EventDriverApproaching, OrderID: "CMD001", ETA: domain.Minutes(3)}
	rec, err := d.Dispatch(ctx, Request{Event: event, Audience: domain.Audience{Kind: domain.AudienceUser, ID: "u1"}})
	require.NoError(t, err)

	assert.Equal(t, "driver_approaching-CMD001", rec.Tag)
	assert.Equal(t, "user:u1", rec.Audience)
	assert.Equal(t, 2, rec.Recipients)

	require.Len(t, pub.messages, 1)
	assert.Equal(t, "notifications.push.user.u1", pub.messages[0].Subject)
	assert.Equal(t, rec.ID, pub.messages[0].ID, "dispatch id is the broker dedup key")
	var sent domain.DeliveryEvent
	require.NoError(t, json.Unmarshal(pub.messages[0].Data, &sent))
	assert.Equal(t, 3, *sent.ETA)

	item := <-live.Items
	assert.Equal(t, events.KindEvent, item.Kind)
	assert.Equal(t, "CMD001", item.Event.OrderID)

	recent, _ := log.ListRecent(ctx, 10)
	require.Len(t, recent, 1)
	assert.Equal(t, rec.ID, recent[0].ID)
}

func TestDispatchPublishFailure(t *testing.T) {
	pub := &mockPublisher{err: errors.New("nats down")}
	log := memory.NewDispatchStore()
	d := NewDispatcher(pub, events.NewHub(), nil, log)

	_, err := d.Dispatch(context.Background(), Request{Event: domain.DeliveryEvent{Type: domain.EventPromotion, PromoID: "P1"}})
	assert.Error(t, err)

	recent, _ := log.ListRecent(context.Background(), 10)
	assert.Empty(t, recent)
}

func TestDispatchWithoutBroker(t *testing.T) {
	d := NewDispatcher(nil, nil, nil, nil)
	rec, err := d.Dispatch(context.Background(), Request{Event: domain.DeliveryEvent{Type: domain.EventChatMessage, ChatID: "c1"}})
	require.NoError(t, err)
	assert.Equal(t, "all", rec.Audience)
	assert.Equal(t, 0, rec.Recipients)
}
