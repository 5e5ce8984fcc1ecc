package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lupppig/deliverynotify/internal/domain"
)

var (
	ErrUnsupported      = errors.New("push notifications are not supported")
	ErrPermissionDenied = errors.New("notification permission denied")
	ErrInFlight         = errors.New("subscription change already in progress")
	ErrInvalidState     = errors.New("operation not valid in current state")
)

type State string

const (
	StateUnknown     State = "unknown"
	StateUnsupported State = "unsupported"
	StateDefault     State = "default"
	StateGranted     State = "granted"
	StateSubscribed  State = "subscribed"
	StateDenied      State = "denied"
)

// Platform is the device-side push capability: permission prompt and
// registration with the push service.
type Platform interface {
	Supported() bool
	Permission() domain.Permission
	RequestPermission(ctx context.Context) (domain.Permission, error)
	Existing(ctx context.Context) (*domain.PushSubscription, error)
	Subscribe(ctx context.Context) (*domain.PushSubscription, error)
	Unsubscribe(ctx context.Context, sub *domain.PushSubscription) error
}

// Storage persists registrations on the server side.
type Storage interface {
	Save(ctx context.Context, sub *domain.PushSubscription) error
	Delete(ctx context.Context, endpoint string) error
}

type Snapshot struct {
	State        State                    `json:"state"`
	Supported    bool                     `json:"supported"`
	Permission   domain.Permission        `json:"permission"`
	Subscribed   bool                     `json:"subscribed"`
	Subscription *domain.PushSubscription `json:"subscription,omitempty"`
}

// Manager owns the permission/subscription state for one device. All
// mutation goes through its methods; subscribe and unsubscribe are
// serialised and a second call while one is running fails with ErrInFlight.
type Manager struct {
	platform Platform
	storage  Storage
	logger   *slog.Logger

	mu         sync.Mutex
	probed     bool
	supported  bool
	permission domain.Permission
	sub        *domain.PushSubscription
	inFlight   bool
}

func NewManager(platform Platform, storage Storage) *Manager {
	return &Manager{
		platform:   platform,
		storage:    storage,
		logger:     slog.Default(),
		permission: domain.PermissionDefault,
	}
}

// Probe checks capability and picks up the current permission and any
// existing registration. Only the first call does any work.
func (m *Manager) Probe(ctx context.Context) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.probed {
		return m.stateLocked()
	}
	m.probed = true
	m.supported = m.platform.Supported()
	if !m.supported {
		m.logger.Info("push capability probe failed", slog.String("code", "SUB_UNSUPPORTED"))
		return StateUnsupported
	}

	m.permission = m.platform.Permission()
	if m.permission == domain.PermissionGranted {
		sub, err := m.platform.Existing(ctx)
		if err != nil {
			m.logger.Warn("failed to read existing subscription", slog.String("code", "SUB_FAILED"), slog.Any("error", err))
		}
		m.sub = sub
	}
	return m.stateLocked()
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

func (m *Manager) stateLocked() State {
	switch {
	case !m.probed:
		return StateUnknown
	case !m.supported:
		return StateUnsupported
	case m.permission == domain.PermissionDenied:
		return StateDenied
	case m.permission == domain.PermissionGranted && m.sub != nil:
		return StateSubscribed
	case m.permission == domain.PermissionGranted:
		return StateGranted
	default:
		return StateDefault
	}
}

func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := Snapshot{
		State:      m.stateLocked(),
		Supported:  m.supported,
		Permission: m.permission,
		Subscribed: m.sub != nil,
	}
	if m.sub != nil {
		sub := *m.sub
		snap.Subscription = &sub
	}
	return snap
}

// RequestPermission prompts the user. From denied it reports
// ErrPermissionDenied without prompting again; when already granted it is a
// no-op.
func (m *Manager) RequestPermission(ctx context.Context) error {
	m.mu.Lock()
	state := m.stateLocked()
	m.mu.Unlock()

	switch state {
	case StateUnknown, StateUnsupported:
		return ErrUnsupported
	case StateDenied:
		return ErrPermissionDenied
	case StateGranted, StateSubscribed:
		return nil
	}

	perm, err := m.platform.RequestPermission(ctx)
	if err != nil {
		return fmt.Errorf("request permission: %w", err)
	}

	m.mu.Lock()
	m.permission = perm
	m.mu.Unlock()

	m.logger.Info("notification permission resolved", slog.String("code", "SUB_PERMISSION"), slog.String("permission", string(perm)))
	if perm != domain.PermissionGranted {
		return ErrPermissionDenied
	}
	return nil
}

func (m *Manager) begin(want State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.inFlight {
		return ErrInFlight
	}
	switch state := m.stateLocked(); {
	case state == StateUnsupported || state == StateUnknown:
		return ErrUnsupported
	case state == StateDenied:
		return ErrPermissionDenied
	case state != want:
		return fmt.Errorf("%w: %s", ErrInvalidState, state)
	}
	m.inFlight = true
	return nil
}

func (m *Manager) end() {
	m.mu.Lock()
	m.inFlight = false
	m.mu.Unlock()
}

// Subscribe registers with the push service and persists the registration.
// On any failure the manager stays granted-but-unsubscribed.
func (m *Manager) Subscribe(ctx context.Context) (*domain.PushSubscription, error) {
	if err := m.begin(StateGranted); err != nil {
		return nil, err
	}
	defer m.end()

	sub, err := m.platform.Subscribe(ctx)
	if err == nil && sub == nil {
		err = errors.New("push service returned no registration")
	}
	if err != nil {
		m.logger.Warn("push registration failed", slog.String("code", "SUB_FAILED"), slog.Any("error", err))
		return nil, fmt.Errorf("register with push service: %w", err)
	}

	if err := m.storage.Save(ctx, sub); err != nil {
		m.logger.Warn("failed to persist subscription", slog.String("code", "SUB_FAILED"), slog.Any("error", err))
		if uerr := m.platform.Unsubscribe(ctx, sub); uerr != nil {
			m.logger.Warn("failed to roll back registration", slog.String("code", "SUB_FAILED"), slog.Any("error", uerr))
		}
		return nil, fmt.Errorf("save subscription: %w", err)
	}

	m.mu.Lock()
	m.sub = sub
	m.mu.Unlock()

	m.logger.Info("push subscription active", slog.String("code", "SUB_ACTIVE"), slog.String("endpoint", sub.Endpoint))
	out := *sub
	return &out, nil
}

// Unsubscribe drops the local registration and asks the server to delete
// its record. The remote delete is best-effort: the manager ends up
// unsubscribed even when it fails.
func (m *Manager) Unsubscribe(ctx context.Context) error {
	if err := m.begin(StateSubscribed); err != nil {
		return err
	}
	defer m.end()

	m.mu.Lock()
	sub := m.sub
	m.mu.Unlock()

	if err := m.platform.Unsubscribe(ctx, sub); err != nil {
		return fmt.Errorf("deregister from push service: %w", err)
	}

	m.mu.Lock()
	m.sub = nil
	m.mu.Unlock()

	if err := m.storage.Delete(ctx, sub.Endpoint); err != nil {
		m.logger.Warn("remote unsubscribe failed", slog.String("code", "SUB_REMOTE_FAILED"), slog.Any("error", err))
	}
	m.logger.Info("push subscription removed", slog.String("code", "SUB_REMOVED"), slog.String("endpoint", sub.Endpoint))
	return nil
}

// Invalidate marks the registration as gone, e.g. after the push service
// reported the endpoint expired.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sub != nil {
		m.logger.Info("push subscription invalidated", slog.String("code", "SUB_INVALIDATED"), slog.String("endpoint", m.sub.Endpoint))
	}
	m.sub = nil
}
