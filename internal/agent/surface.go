package agent

import (
	"context"
	"sync"
	"time"

	"github.com/lupppig/deliverynotify/internal/domain"
)

// Displayed is a notification currently on the platform surface.
type Displayed struct {
	Notification domain.ClassifiedNotification `json:"notification"`
	ShownAt      time.Time                     `json:"shownAt"`
	Shows        int                           `json:"shows"`
}

// Surface is the platform notification tray. Showing a notification whose
// tag is already displayed replaces it.
type Surface interface {
	Show(ctx context.Context, n domain.ClassifiedNotification) error
	Get(tag string) (Displayed, bool)
	Close(tag string) bool
	List() []Displayed
}

// Windows are the open app windows the agent can focus or spawn.
type Windows interface {
	Focus(ctx context.Context, url string) (bool, error)
	Open(ctx context.Context, url string) error
}

type CloseEvent struct {
	Tag      string           `json:"tag"`
	Type     domain.EventType `json:"type,omitempty"`
	OrderID  string           `json:"orderId,omitempty"`
	ClosedAt time.Time        `json:"closedAt"`
}

// Analytics receives close reports. Failures are ignored by the agent.
type Analytics interface {
	ReportClose(ctx context.Context, e CloseEvent) error
}

type MemorySurface struct {
	mu    sync.Mutex
	now   func() time.Time
	order []string
	shown map[string]Displayed
}

func NewMemorySurface() *MemorySurface {
	return &MemorySurface{
		now:   time.Now,
		shown: make(map[string]Displayed),
	}
}

func (s *MemorySurface) Show(ctx context.Context, n domain.ClassifiedNotification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := Displayed{Notification: n, ShownAt: s.now(), Shows: 1}
	if prev, ok := s.shown[n.Tag]; ok {
		d.Shows = prev.Shows + 1
		s.unlink(n.Tag)
	}
	s.shown[n.Tag] = d
	s.order = append(s.order, n.Tag)
	return nil
}

func (s *MemorySurface) Get(tag string) (Displayed, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.shown[tag]
	return d, ok
}

func (s *MemorySurface) Close(tag string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shown[tag]; !ok {
		return false
	}
	delete(s.shown, tag)
	s.unlink(tag)
	return true
}

// List returns displayed notifications, most recently shown last.
func (s *MemorySurface) List() []Displayed {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Displayed, 0, len(s.order))
	for _, tag := range s.order {
		out = append(out, s.shown[tag])
	}
	return out
}

func (s *MemorySurface) unlink(tag string) {
	for i, t := range s.order {
		if t == tag {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}
