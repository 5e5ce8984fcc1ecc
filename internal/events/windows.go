package events

import (
	"context"
	"time"

	"github.com/lupppig/deliverynotify/internal/domain"
)

// Windows treats live feed clients as app windows: a client showing a route
// can be focused, and opening a route asks the user's clients to open it.
type Windows struct {
	hub    *Hub
	userID string
}

func NewWindows(hub *Hub, userID string) *Windows {
	return &Windows{hub: hub, userID: userID}
}

func (w *Windows) Focus(ctx context.Context, url string) (bool, error) {
	id, ok := w.hub.FindByRoute(w.userID, url)
	if !ok {
		return false, nil
	}
	return w.hub.SendTo(id, Item{Kind: KindNavigate, URL: url, At: time.Now()}), nil
}

func (w *Windows) Open(ctx context.Context, url string) error {
	audience := domain.Audience{Kind: domain.AudienceAll}
	if w.userID != "" {
		audience = domain.Audience{Kind: domain.AudienceUser, ID: w.userID}
	}
	w.hub.Publish(Item{Kind: KindOpen, URL: url, Audience: audience, At: time.Now()})
	return nil
}
