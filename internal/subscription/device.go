package subscription

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/lupppig/deliverynotify/internal/domain"
	"github.com/lupppig/deliverynotify/internal/security"
)

const DeviceStateFile = "device.yaml"

// Prompter asks the user a yes/no question.
type Prompter func(question string) (bool, error)

type deviceState struct {
	Permission   domain.Permission        `yaml:"permission"`
	Subscription *domain.PushSubscription `yaml:"subscription,omitempty"`
}

// DevicePlatform is the push platform for a CLI install. Permission and
// registration live in a YAML file under the state directory; a denied
// permission stays denied until that file is edited by hand.
type DevicePlatform struct {
	dir        string
	pushBase   string
	userID     string
	deviceName string
	prompt     Prompter

	mu sync.Mutex
}

func NewDevicePlatform(stateDir, pushBase, userID string, prompt Prompter) *DevicePlatform {
	host, _ := os.Hostname()
	return &DevicePlatform{
		dir:        stateDir,
		pushBase:   strings.TrimRight(pushBase, "/"),
		userID:     userID,
		deviceName: host,
		prompt:     prompt,
	}
}

func (p *DevicePlatform) path() string {
	return filepath.Join(p.dir, DeviceStateFile)
}

// Supported reports whether the state directory is usable.
func (p *DevicePlatform) Supported() bool {
	if p.dir == "" || p.pushBase == "" {
		return false
	}
	return os.MkdirAll(p.dir, 0o700) == nil
}

func (p *DevicePlatform) load() (deviceState, error) {
	st := deviceState{Permission: domain.PermissionDefault}
	data, err := os.ReadFile(p.path())
	if errors.Is(err, os.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("read device state: %w", err)
	}
	if err := yaml.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("parse device state: %w", err)
	}
	if st.Permission == "" {
		st.Permission = domain.PermissionDefault
	}
	return st, nil
}

func (p *DevicePlatform) save(st deviceState) error {
	data, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode device state: %w", err)
	}
	if err := os.WriteFile(p.path(), data, 0o600); err != nil {
		return fmt.Errorf("write device state: %w", err)
	}
	return nil
}

func (p *DevicePlatform) Permission() domain.Permission {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, err := p.load()
	if err != nil {
		return domain.PermissionDefault
	}
	return st.Permission
}

func (p *DevicePlatform) RequestPermission(ctx context.Context) (domain.Permission, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	st, err := p.load()
	if err != nil {
		return domain.PermissionDefault, err
	}
	if st.Permission != domain.PermissionDefault {
		return st.Permission, nil
	}

	allow, err := p.prompt("Allow delivery notifications on this device?")
	if err != nil {
		return domain.PermissionDefault, fmt.Errorf("prompt: %w", err)
	}
	st.Permission = domain.PermissionDenied
	if allow {
		st.Permission = domain.PermissionGranted
	}
	if err := p.save(st); err != nil {
		return domain.PermissionDefault, err
	}
	return st.Permission, nil
}

func (p *DevicePlatform) Existing(ctx context.Context) (*domain.PushSubscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, err := p.load()
	if err != nil {
		return nil, err
	}
	return st.Subscription, nil
}

func (p *DevicePlatform) Subscribe(ctx context.Context) (*domain.PushSubscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	st, err := p.load()
	if err != nil {
		return nil, err
	}
	if st.Permission != domain.PermissionGranted {
		return nil, ErrPermissionDenied
	}

	creds, err := security.NewDeviceCredentials()
	if err != nil {
		return nil, err
	}

	sub := &domain.PushSubscription{
		ID:         uuid.New().String(),
		UserID:     p.userID,
		Endpoint:   p.pushBase + "/push/" + creds.DeviceID,
		Keys:       domain.SubscriptionKeys{P256dh: creds.P256dh, Auth: creds.Auth},
		DeviceName: p.deviceName,
		CreatedAt:  time.Now().UTC(),
	}
	st.Subscription = sub
	if err := p.save(st); err != nil {
		return nil, err
	}
	return sub, nil
}

func (p *DevicePlatform) Unsubscribe(ctx context.Context, sub *domain.PushSubscription) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	st, err := p.load()
	if err != nil {
		return err
	}
	if st.Subscription != nil && sub != nil && st.Subscription.Endpoint != sub.Endpoint {
		return nil
	}
	st.Subscription = nil
	return p.save(st)
}
