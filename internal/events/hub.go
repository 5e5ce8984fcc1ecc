package events

import (
	"sort"
	"sync"

	"github.com/lupppig/deliverynotify/internal/domain"
)

type Subscriber struct {
	ID      string
	UserID  string // Filter by user (empty = anonymous, sees "all" only)
	OrderID string // Filter by order (empty = all)
	Route   string // Page the client currently shows
	Items   chan Item
}

type SubscriberInfo struct {
	ID      string `json:"id"`
	UserID  string `json:"userId,omitempty"`
	OrderID string `json:"orderId,omitempty"`
	Route   string `json:"route,omitempty"`
}

type Hub struct {
	subscribers map[string]*Subscriber
	mu          sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]*Subscriber),
	}
}

func (h *Hub) Subscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers[sub.ID] = sub
}

func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subscribers[id]; ok {
		close(sub.Items)
		delete(h.subscribers, id)
	}
}

// Publish fans the item out to every matching subscriber and returns how
// many received it.
func (h *Hub) Publish(item Item) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, sub := range h.subscribers {
		if !matches(sub, item) {
			continue
		}
		select {
		case sub.Items <- item:
			delivered++
		default:
			// Non-blocking: skip if subscriber buffer is full
		}
	}
	return delivered
}

// SendTo delivers to one subscriber regardless of filters.
func (h *Hub) SendTo(id string, item Item) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sub, ok := h.subscribers[id]
	if !ok {
		return false
	}
	select {
	case sub.Items <- item:
		return true
	default:
		return false
	}
}

func (h *Hub) SetRoute(id, route string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub, ok := h.subscribers[id]
	if ok {
		sub.Route = route
	}
	return ok
}

// FindByRoute returns a subscriber showing route, restricted to userID
// when it is set.
func (h *Hub) FindByRoute(userID, route string) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.subscribers))
	for id, sub := range h.subscribers {
		if sub.Route == route && (userID == "" || sub.UserID == userID) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return "", false
	}
	sort.Strings(ids)
	return ids[0], true
}

func matches(sub *Subscriber, item Item) bool {
	if sub.OrderID != "" && item.Kind == KindEvent && sub.OrderID != item.orderID() {
		return false
	}
	switch item.Audience.Kind {
	case "", domain.AudienceAll:
		return true
	case domain.AudienceUser:
		return sub.UserID == item.Audience.ID
	case domain.AudienceOrder:
		return sub.OrderID == item.Audience.ID
	default:
		return false
	}
}

func (h *Hub) Subscribers() []SubscriberInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]SubscriberInfo, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		out = append(out, SubscriberInfo{ID: sub.ID, UserID: sub.UserID, OrderID: sub.OrderID, Route: sub.Route})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
