package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/lupppig/deliverynotify/internal/domain"
)

const KeyPrefix = "notification-settings"

var ErrNotFound = errors.New("settings not found")

// Backend persists the settings blob under a fixed key.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte) error
}

// Reader is what notification paths need to consult the gate.
type Reader interface {
	Get(ctx context.Context, userID string) (domain.NotificationSettings, error)
}

type Store struct {
	backend Backend
	// Serialises read-merge-write within this process; across processes
	// the last write wins.
	mu sync.Mutex
}

func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

func Key(userID string) string {
	if userID == "" {
		return KeyPrefix
	}
	return KeyPrefix + ":" + userID
}

// Get returns the stored settings, or the defaults when nothing is stored
// or the stored blob is unreadable.
func (s *Store) Get(ctx context.Context, userID string) (domain.NotificationSettings, error) {
	data, err := s.backend.Get(ctx, Key(userID))
	if errors.Is(err, ErrNotFound) {
		return domain.DefaultSettings(), nil
	}
	if err != nil {
		return domain.DefaultSettings(), fmt.Errorf("load settings: %w", err)
	}

	settings := domain.DefaultSettings()
	if err := json.Unmarshal(data, &settings); err != nil {
		slog.Warn("discarding unreadable notification settings",
			slog.String("code", "SETTINGS_CORRUPT"),
			slog.String("user_id", userID),
			slog.Any("error", err),
		)
		return domain.DefaultSettings(), nil
	}
	return settings, nil
}

// Update merges the patch into the current settings and persists the result.
func (s *Store) Update(ctx context.Context, userID string, patch domain.SettingsPatch) (domain.NotificationSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.Get(ctx, userID)
	if err != nil {
		return current, err
	}

	next := current.Apply(patch)
	data, err := json.Marshal(next)
	if err != nil {
		return current, fmt.Errorf("encode settings: %w", err)
	}
	if err := s.backend.Set(ctx, Key(userID), data); err != nil {
		return current, fmt.Errorf("save settings: %w", err)
	}
	return next, nil
}

// IsCategoryEnabled reports whether a notification of type t may be shown.
func IsCategoryEnabled(t domain.EventType, s domain.NotificationSettings) bool {
	if !s.Enabled {
		return false
	}
	switch {
	case t == domain.EventDeliveryCompleted || strings.HasPrefix(string(t), "order_"):
		return s.OrderUpdates
	case strings.HasPrefix(string(t), "driver_"):
		return s.DriverUpdates
	case t == domain.EventChatMessage:
		return s.ChatMessages
	case t == domain.EventPromotion:
		return s.Promotions
	default:
		return true
	}
}

// ApplyFeedback strips sound and vibration the user turned off.
func ApplyFeedback(n domain.ClassifiedNotification, s domain.NotificationSettings) domain.ClassifiedNotification {
	n.Silent = n.Silent || !s.Sound
	if !s.Vibration {
		n.Vibrate = nil
	}
	return n
}

// MemoryBackend keeps settings in process memory.
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

func (b *MemoryBackend) Get(ctx context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, ok := b.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (b *MemoryBackend) Set(ctx context.Context, key string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	stored := make([]byte, len(data))
	copy(stored, data)
	b.data[key] = stored
	return nil
}
