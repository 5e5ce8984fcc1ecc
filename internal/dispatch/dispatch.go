package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lupppig/deliverynotify/internal/broker"
	"github.com/lupppig/deliverynotify/internal/classify"
	"github.com/lupppig/deliverynotify/internal/domain"
	"github.com/lupppig/deliverynotify/internal/events"
	"github.com/lupppig/deliverynotify/internal/logging"
	"github.com/lupppig/deliverynotify/internal/metrics"
	"github.com/lupppig/deliverynotify/internal/store"
)

type Request struct {
	Event    domain.DeliveryEvent
	Audience domain.Audience
}

// Dispatcher sends a delivery event down both delivery paths: the broker
// feeds background agents, the hub feeds foreground clients.
type Dispatcher struct {
	publisher     broker.Publisher
	hub           *events.Hub
	subscriptions store.SubscriptionStore
	dispatches    store.DispatchStore
	now           func() time.Time
}

func NewDispatcher(publisher broker.Publisher, hub *events.Hub, subs store.SubscriptionStore, dispatches store.DispatchStore) *Dispatcher {
	return &Dispatcher{
		publisher:     publisher,
		hub:           hub,
		subscriptions: subs,
		dispatches:    dispatches,
		now:           time.Now,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*domain.Dispatch, error) {
	tag := classify.Tag(req.Event)
	ctx = logging.WithOrderID(logging.WithTag(ctx, tag), req.Event.OrderID)
	logger := logging.FromContext(ctx)

	data, err := json.Marshal(req.Event)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}

	id := uuid.New().String()
	if d.publisher != nil {
		if err := d.publisher.Publish(ctx, broker.PushMessage(id, req.Audience, data)); err != nil {
			metrics.Dispatches.WithLabelValues("failed").Inc()
			logger.Error("failed to publish push", slog.String("code", "BROKER_ERROR"), slog.Any("error", err))
			return nil, err
		}
	}

	now := d.now()
	live := 0
	if d.hub != nil {
		live = d.hub.Publish(events.EventItem(req.Event, req.Audience, now))
	}

	devices := 0
	if d.subscriptions != nil {
		subs, err := d.subscriptions.ListByAudience(ctx, req.Audience)
		if err != nil {
			logger.Warn("could not count subscribed devices", slog.String("code", "DB_ERROR"), slog.Any("error", err))
		}
		devices = len(subs)
	}

	rec := &domain.Dispatch{
		ID:         id,
		Type:       req.Event.Type,
		Tag:        tag,
		OrderID:    req.Event.OrderID,
		Audience:   req.Audience.String(),
		Recipients: devices + live,
		CreatedAt:  now,
	}
	if d.dispatches != nil {
		if err := d.dispatches.Create(ctx, rec); err != nil {
			logger.Warn("failed to record dispatch", slog.String("code", "DB_ERROR"), slog.Any("error", err))
		}
	}

	metrics.Dispatches.WithLabelValues("sent").Inc()
	logger.Info("notification dispatched",
		slog.String("code", "DISPATCH_SENT"),
		slog.String("type", string(req.Event.Type)),
		slog.String("audience", rec.Audience),
		slog.Int("devices", devices),
		slog.Int("live", live),
	)
	return rec, nil
}
