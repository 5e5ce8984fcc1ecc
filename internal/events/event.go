package events

import (
	"time"

	"github.com/lupppig/deliverynotify/internal/domain"
)

type Kind string

const (
	KindEvent    Kind = "event"
	KindNavigate Kind = "navigate"
	KindOpen     Kind = "open"
)

// Item is one message on the live feed: a delivery event for foreground
// toasts, or a navigation request from the background agent.
type Item struct {
	Kind     Kind                  `json:"kind"`
	Event    *domain.DeliveryEvent `json:"event,omitempty"`
	URL      string                `json:"url,omitempty"`
	Audience domain.Audience       `json:"-"`
	At       time.Time             `json:"at"`
}

func EventItem(e domain.DeliveryEvent, audience domain.Audience, at time.Time) Item {
	return Item{Kind: KindEvent, Event: &e, Audience: audience, At: at}
}

func (i Item) orderID() string {
	if i.Event == nil {
		return ""
	}
	return i.Event.OrderID
}
