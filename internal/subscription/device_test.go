package subscription

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lupppig/deliverynotify/internal/domain"
	"github.com/lupppig/deliverynotify/internal/httpclient"
)

func answer(allow bool) Prompter {
	return func(string) (bool, error) { return allow, nil }
}

func TestDevicePlatformLifecycle(t *testing.T) {
	dir := t.TempDir()
	p := NewDevicePlatform(dir, "https://api.example", "user-1", answer(true))
	ctx := context.Background()

	if !p.Supported() {
		t.Fatal("expected temp dir to be supported")
	}
	if p.Permission() != domain.PermissionDefault {
		t.Errorf("expected default permission, got %s", p.Permission())
	}

	perm, err := p.RequestPermission(ctx)
	if err != nil || perm != domain.PermissionGranted {
		t.Fatalf("RequestPermission = %s, %v", perm, err)
	}

	sub, err := p.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if !strings.HasPrefix(sub.Endpoint, "https://api.example/push/") {
		t.Errorf("unexpected endpoint %s", sub.Endpoint)
	}

	// A fresh platform over the same directory sees the persisted state.
	reloaded := NewDevicePlatform(dir, "https://api.example", "user-1", answer(false))
	existing, err := reloaded.Existing(ctx)
	if err != nil || existing == nil || existing.Endpoint != sub.Endpoint {
		t.Fatalf("Existing = %+v, %v", existing, err)
	}

	if err := reloaded.Unsubscribe(ctx, existing); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}
	if existing, _ := reloaded.Existing(ctx); existing != nil {
		t.Error("expected no subscription after unsubscribe")
	}
}

func TestDevicePlatformDenialPersists(t *testing.T) {
	dir := t.TempDir()
	p := NewDevicePlatform(dir, "https://api.example", "user-1", answer(false))

	perm, _ := p.RequestPermission(context.Background())
	if perm != domain.PermissionDenied {
		t.Fatalf("expected denied, got %s", perm)
	}

	prompted := false
	again := NewDevicePlatform(dir, "https://api.example", "user-1", func(string) (bool, error) {
		prompted = true
		return true, nil
	})
	perm, _ = again.RequestPermission(context.Background())
	if perm != domain.PermissionDenied || prompted {
		t.Errorf("denial should persist without prompting, got %s prompted=%v", perm, prompted)
	}

	// Editing the state file is the external reset.
	if err := os.WriteFile(filepath.Join(dir, DeviceStateFile), []byte("permission: default\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if again.Permission() != domain.PermissionDefault {
		t.Error("expected reset to default")
	}
}

func TestDevicePlatformUnsupportedWithoutDir(t *testing.T) {
	p := NewDevicePlatform("", "https://api.example", "user-1", answer(true))
	if p.Supported() {
		t.Error("expected unsupported without a state dir")
	}
}

func TestManagerWithDevicePlatformAndHTTPStorage(t *testing.T) {
	var subscribed, unsubscribed []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/notifications/subscribe":
			var sub domain.PushSubscription
			json.NewDecoder(r.Body).Decode(&sub)
			subscribed = append(subscribed, sub.Endpoint)
			w.WriteHeader(http.StatusCreated)
		case "/notifications/unsubscribe":
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			unsubscribed = append(unsubscribed, body["endpoint"])
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	platform := NewDevicePlatform(t.TempDir(), server.URL, "user-1", answer(true))
	storage := NewHTTPStorage(httpclient.New(5*time.Second), server.URL+"/")
	m := NewManager(platform, storage)
	ctx := context.Background()

	m.Probe(ctx)
	if err := m.RequestPermission(ctx); err != nil {
		t.Fatal(err)
	}
	sub, err := m.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if len(subscribed) != 1 || subscribed[0] != sub.Endpoint {
		t.Errorf("server did not receive subscription: %v", subscribed)
	}

	if err := m.Unsubscribe(ctx); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}
	if len(unsubscribed) != 1 || m.State() != StateGranted {
		t.Errorf("expected best-effort remote delete and granted state, got %v %s", unsubscribed, m.State())
	}
}
