// Package toast is the foreground delivery path: classified notifications
// shown in-page while the app is open. All operations are synchronous and
// never block on I/O.
package toast

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lupppig/deliverynotify/internal/classify"
	"github.com/lupppig/deliverynotify/internal/domain"
	"github.com/lupppig/deliverynotify/internal/metrics"
	"github.com/lupppig/deliverynotify/internal/route"
	"github.com/lupppig/deliverynotify/internal/settings"
)

// MaxButtons is how many action buttons a toast renders.
const MaxButtons = 2

var (
	ErrNotFound      = errors.New("toast not found")
	ErrUnknownAction = errors.New("action not offered by toast")
)

type Cue string

const (
	CueUrgent  Cue = "urgent"
	CueChat    Cue = "chat"
	CueDefault Cue = "default"
)

func CueFor(t domain.EventType) Cue {
	switch t {
	case domain.EventDriverApproaching, domain.EventDriverArrived:
		return CueUrgent
	case domain.EventChatMessage:
		return CueChat
	default:
		return CueDefault
	}
}

// Feedback plays the audio cue and vibration for a new toast.
type Feedback interface {
	Play(cue Cue)
	Vibrate(pattern []int)
}

type Config struct {
	Capacity     int
	DedupWindow  time.Duration
	Duration     time.Duration
	ChatDuration time.Duration
}

func DefaultConfig() Config {
	return Config{
		Capacity:     3,
		DedupWindow:  30 * time.Second,
		Duration:     6 * time.Second,
		ChatDuration: 4 * time.Second,
	}
}

type Toast struct {
	ID           string
	Notification domain.ClassifiedNotification
	ReceivedAt   time.Time
	AutoClose    bool
	Duration     time.Duration
}

// Buttons returns the actions rendered on the toast.
func (t Toast) Buttons() []domain.Action {
	if len(t.Notification.Actions) > MaxButtons {
		return t.Notification.Actions[:MaxButtons]
	}
	return t.Notification.Actions
}

func (t Toast) expired(now time.Time) bool {
	return t.AutoClose && !now.Before(t.ReceivedAt.Add(t.Duration))
}

type Queue struct {
	mu       sync.Mutex
	cfg      Config
	toasts   []Toast
	seen     map[string]time.Time
	settings domain.NotificationSettings
	feedback Feedback
	now      func() time.Time
}

type Option func(*Queue)

func WithFeedback(f Feedback) Option {
	return func(q *Queue) { q.feedback = f }
}

func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

func WithSettings(s domain.NotificationSettings) Option {
	return func(q *Queue) { q.settings = s }
}

func NewQueue(cfg Config, opts ...Option) *Queue {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultConfig().Capacity
	}
	q := &Queue{
		cfg:      cfg,
		seen:     make(map[string]time.Time),
		settings: domain.DefaultSettings(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// SetSettings replaces the settings snapshot used for gating and feedback.
func (q *Queue) SetSettings(s domain.NotificationSettings) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.settings = s
}

func (q *Queue) Settings() domain.NotificationSettings {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.settings
}

// Enqueue classifies the event and shows it. It returns false when the
// category is disabled or a toast with the same tag was shown within the
// dedup window.
func (q *Queue) Enqueue(e domain.DeliveryEvent) (Toast, bool) {
	n := classify.Classify(e)
	metrics.NotificationsClassified.WithLabelValues(string(n.Type)).Inc()
	now := q.now()

	q.mu.Lock()
	if !settings.IsCategoryEnabled(n.Type, q.settings) {
		q.mu.Unlock()
		metrics.NotificationsSuppressed.WithLabelValues("toast", "settings").Inc()
		return Toast{}, false
	}

	q.pruneSeen(now)
	if at, ok := q.seen[n.Tag]; ok && now.Sub(at) < q.cfg.DedupWindow {
		q.mu.Unlock()
		metrics.NotificationsSuppressed.WithLabelValues("toast", "duplicate").Inc()
		return Toast{}, false
	}
	q.seen[n.Tag] = now

	t := Toast{
		ID:           uuid.New().String(),
		Notification: n,
		ReceivedAt:   now,
		AutoClose:    !n.RequireInteraction,
		Duration:     q.durationFor(n.Type),
	}
	q.toasts = append(q.toasts, t)
	if len(q.toasts) > q.cfg.Capacity {
		q.evict()
	}
	sound, vibrate := q.settings.Sound, q.settings.Vibration
	q.mu.Unlock()
	metrics.NotificationsDisplayed.WithLabelValues("toast", string(n.Type)).Inc()

	if q.feedback != nil && !n.Silent {
		if sound {
			q.feedback.Play(CueFor(n.Type))
		}
		if vibrate {
			q.feedback.Vibrate(n.Vibrate)
		}
	}
	return t, true
}

func (q *Queue) durationFor(t domain.EventType) time.Duration {
	if t == domain.EventChatMessage && q.cfg.ChatDuration > 0 {
		return q.cfg.ChatDuration
	}
	return q.cfg.Duration
}

// evict drops the oldest toast that does not require interaction, or the
// oldest overall when every earlier toast is pinned. The toast just added is
// never the victim. Caller holds q.mu.
func (q *Queue) evict() {
	victim := 0
	for i, t := range q.toasts[:len(q.toasts)-1] {
		if t.AutoClose {
			victim = i
			break
		}
	}
	q.toasts = append(q.toasts[:victim], q.toasts[victim+1:]...)
}

// pruneSeen forgets tags older than the dedup window. Caller holds q.mu.
func (q *Queue) pruneSeen(now time.Time) {
	for tag, at := range q.seen {
		if now.Sub(at) >= q.cfg.DedupWindow {
			delete(q.seen, tag)
		}
	}
}

// Dismiss removes a toast immediately.
func (q *Queue) Dismiss(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.remove(id)
}

func (q *Queue) remove(id string) bool {
	for i, t := range q.toasts {
		if t.ID == id {
			q.toasts = append(q.toasts[:i], q.toasts[i+1:]...)
			return true
		}
	}
	return false
}

// Invoke runs one of the toast's buttons, removes the toast and returns the
// navigation or dial intent for the caller to perform.
func (q *Queue) Invoke(id string, action domain.ActionID) (route.Intent, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, t := range q.toasts {
		if t.ID != id {
			continue
		}
		for _, b := range t.Buttons() {
			if b.ID == action {
				q.remove(id)
				return route.Resolve(action, t.Notification.Type, t.Notification.Data), nil
			}
		}
		return route.Intent{}, ErrUnknownAction
	}
	return route.Intent{}, ErrNotFound
}

// Sweep removes auto-closing toasts whose duration has elapsed and returns
// their ids.
func (q *Queue) Sweep(now time.Time) []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	var removed []string
	kept := q.toasts[:0]
	for _, t := range q.toasts {
		if t.expired(now) {
			removed = append(removed, t.ID)
			continue
		}
		kept = append(kept, t)
	}
	q.toasts = kept
	return removed
}

// Toasts returns the visible toasts, oldest first.
func (q *Queue) Toasts() []Toast {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Toast, len(q.toasts))
	copy(out, q.toasts)
	return out
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.toasts)
}
