package cmd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/lupppig/deliverynotify/internal/domain"
)

type subscriptionServer struct {
	mu         sync.Mutex
	registered map[string]domain.PushSubscription
}

func (s *subscriptionServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch r.URL.Path {
	case "/notifications/subscribe":
		var sub domain.PushSubscription
		json.NewDecoder(r.Body).Decode(&sub)
		s.registered[sub.Endpoint] = sub
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(sub)
	case "/notifications/unsubscribe":
		var body struct{ Endpoint string }
		json.NewDecoder(r.Body).Decode(&body)
		delete(s.registered, body.Endpoint)
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func (s *subscriptionServer) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.registered)
}

func TestSubscribeAndUnsubscribeCommands(t *testing.T) {
	backend := &subscriptionServer{registered: make(map[string]domain.PushSubscription)}
	srv := httptest.NewServer(backend)
	defer srv.Close()
	useConfig(t, srv.URL)
	quiet = true

	origIn := promptIn
	defer func() { promptIn = origIn }()
	promptIn = strings.NewReader("y\n")

	output, err := captureStdout(t, func() error { return subscribeCmd.RunE(subscribeCmd, []string{}) })
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if strings.TrimSpace(output) != "subscribed" {
		t.Errorf("expected subscribed, got %q", output)
	}
	if backend.count() != 1 {
		t.Fatalf("expected 1 server-side registration, got %d", backend.count())
	}

	output, err = captureStdout(t, func() error { return subscriptionStatusCmd.RunE(subscriptionStatusCmd, []string{}) })
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if strings.TrimSpace(output) != "subscribed" {
		t.Errorf("expected persisted subscription, got %q", output)
	}

	output, err = captureStdout(t, func() error { return unsubscribeCmd.RunE(unsubscribeCmd, []string{}) })
	if err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if strings.TrimSpace(output) != "granted" {
		t.Errorf("expected granted after unsubscribe, got %q", output)
	}
	if backend.count() != 0 {
		t.Errorf("expected registration removed, got %d", backend.count())
	}
}

func TestPermissionDenied(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	useConfig(t, srv.URL)
	quiet = true

	origIn := promptIn
	defer func() { promptIn = origIn }()
	promptIn = strings.NewReader("n\n")

	_, err := captureStdout(t, func() error { return permissionCmd.RunE(permissionCmd, []string{}) })
	if err == nil {
		t.Fatal("expected permission denied error")
	}

	// denial sticks without asking again
	promptIn = strings.NewReader("y\n")
	_, err = captureStdout(t, func() error { return subscribeCmd.RunE(subscribeCmd, []string{}) })
	if err == nil {
		t.Fatal("expected subscribe to fail after denial")
	}
}

func TestLinePrompter(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"yes", true},
	}
	for _, tt := range tests {
		var out strings.Builder
		got, err := linePrompter(strings.NewReader(tt.input), &out)("Allow?")
		if err != nil {
			t.Errorf("%q: unexpected error %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("%q: expected %v, got %v", tt.input, tt.want, got)
		}
		if !strings.Contains(out.String(), "Allow?") {
			t.Errorf("%q: question not written", tt.input)
		}
	}
}
