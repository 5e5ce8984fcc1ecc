package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lupppig/deliverynotify/internal/agent"
	"github.com/lupppig/deliverynotify/internal/broker"
	"github.com/lupppig/deliverynotify/internal/dispatch"
	"github.com/lupppig/deliverynotify/internal/domain"
	"github.com/lupppig/deliverynotify/internal/events"
	"github.com/lupppig/deliverynotify/internal/proximity"
	"github.com/lupppig/deliverynotify/internal/settings"
	"github.com/lupppig/deliverynotify/internal/store/memory"
)

const testKey = "sk_test_admin"

type testEnv struct {
	hub        *events.Hub
	subs       *memory.SubscriptionStore
	dispatches *memory.DispatchStore
	agent      *agent.Agent
	server     *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithPublisher(t, nil)
}

func newTestEnvWithPublisher(t *testing.T, publisher broker.Publisher) *testEnv {
	t.Helper()
	hub := events.NewHub()
	subs := memory.NewSubscriptionStore()
	dispatches := memory.NewDispatchStore()
	st := settings.NewStore(settings.NewMemoryBackend())

	ag := agent.New(agent.DefaultConfig(), agent.NewMemorySurface(), events.NewWindows(hub, "u1"), st)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ag.Serve(ctx)
	}()

	api := NewAPI(Deps{
		Hub:           hub,
		Dispatcher:    dispatch.NewDispatcher(publisher, hub, subs, dispatches),
		Subscriptions: subs,
		Dispatches:    dispatches,
		Settings:      st,
		Monitor:       proximity.NewMonitor(),
		Agent:         ag,
		Auth:          NewAuthInterceptor(testKey),
	})
	srv := httptest.NewServer(api.Router())
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})

	return &testEnv{hub: hub, subs: subs, dispatches: dispatches, agent: ag, server: srv}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, admin bool) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set("X-API-Key", testKey)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/health", nil, false)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]interface{}
	decodeBody(t, resp, &body)
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %v", body["status"])
	}
	if body["agentVersion"] != "v1" {
		t.Errorf("expected agent version v1, got %v", body["agentVersion"])
	}
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	env := newTestEnv(t)

	sub := map[string]interface{}{
		"userId":   "u1",
		"endpoint": "https://push.example.com/ep-1",
		"keys":     map[string]string{"p256dh": "pk", "auth": "ak"},
	}
	resp := env.do(t, http.MethodPost, "/notifications/subscribe", sub, false)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created domain.PushSubscription
	decodeBody(t, resp, &created)
	if created.ID == "" || created.CreatedAt.IsZero() {
		t.Errorf("expected id and createdAt to be assigned, got %+v", created)
	}

	list, _ := env.subs.ListByAudience(context.Background(), domain.Audience{Kind: domain.AudienceUser, ID: "u1"})
	if len(list) != 1 {
		t.Fatalf("expected 1 stored subscription, got %d", len(list))
	}

	resp = env.do(t, http.MethodPost, "/notifications/unsubscribe", map[string]string{"endpoint": "https://push.example.com/ep-1"}, false)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	resp = env.do(t, http.MethodPost, "/notifications/unsubscribe", map[string]string{"endpoint": "https://push.example.com/ep-1"}, false)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 on second unsubscribe, got %d", resp.StatusCode)
	}
}

func TestSubscribeValidation(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name string
		body interface{}
	}{
		{"missing endpoint", map[string]interface{}{"keys": map[string]string{"p256dh": "pk", "auth": "ak"}}},
		{"bad endpoint", map[string]interface{}{"endpoint": "not a url", "keys": map[string]string{"p256dh": "pk", "auth": "ak"}}},
		{"missing keys", map[string]interface{}{"endpoint": "https://push.example.com/ep"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, http.MethodPost, "/notifications/subscribe", tt.body, false)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", resp.StatusCode)
			}
		})
	}
}

func TestSendRequiresKey(t *testing.T) {
	env := newTestEnv(t)
	body := map[string]string{"type": "order_confirmed", "orderId": "o1"}

	resp := env.do(t, http.MethodPost, "/notifications/send", body, false)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodPost, "/notifications/send", body, true)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	var d domain.Dispatch
	decodeBody(t, resp, &d)
	if d.Tag != "order_confirmed-o1" || d.Audience != "all" {
		t.Errorf("unexpected dispatch %+v", d)
	}

	resp = env.do(t, http.MethodGet, "/notifications/dispatches?limit=10", nil, true)
	var list []domain.Dispatch
	decodeBody(t, resp, &list)
	if len(list) != 1 {
		t.Fatalf("expected 1 dispatch, got %d", len(list))
	}
}

func TestSendRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body map[string]string
	}{
		{"missing type", map[string]string{"orderId": "o1"}},
		{"bad audience", map[string]string{"type": "promotion", "targetAudience": "team:x"}},
		{"audience without id", map[string]string{"type": "promotion", "targetAudience": "user:"}},
	}
	for _, tt := range tests {
		resp := env.do(t, http.MethodPost, "/notifications/send", tt.body, true)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", tt.name, resp.StatusCode)
		}
		var e ErrorResponse
		decodeBody(t, resp, &e)
		if e.Error != "validation_failed" {
			t.Errorf("%s: expected validation_failed, got %q", tt.name, e.Error)
		}
	}
	resp := env.do(t, http.MethodPost, "/notifications/send", map[string]string{"type": "loyalty_points", "targetAudience": "order:o1"}, true)
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("expected unknown types to be accepted, got %d", resp.StatusCode)
	}
	resp = env.do(t, http.MethodGet, "/notifications/dispatches?limit=-1", nil, true)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", resp.StatusCode)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/settings/u1", nil, false)
	var got domain.NotificationSettings
	decodeBody(t, resp, &got)
	if got != domain.DefaultSettings() {
		t.Fatalf("expected defaults, got %+v", got)
	}

	resp = env.do(t, http.MethodPut, "/settings/u1", map[string]bool{"promotions": true, "sound": false}, false)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodGet, "/settings/u1", nil, false)
	decodeBody(t, resp, &got)
	if !got.Promotions || got.Sound || !got.OrderUpdates {
		t.Errorf("patch not merged: %+v", got)
	}
}

func TestPositionsAndStatus(t *testing.T) {
	env := newTestEnv(t)
	customer := domain.Position{Lat: 48.8566, Lng: 2.3522}
	sample := func(lat float64) map[string]interface{} {
		return map[string]interface{}{
			"driverId":   "d1",
			"driverName": "Ali",
			"userId":     "u1",
			"driver":     domain.Position{Lat: lat, Lng: customer.Lng},
			"customer":   customer,
		}
	}

	var out positionResponse
	resp := env.do(t, http.MethodPost, "/deliveries/o1/positions", sample(customer.Lat+0.05), true)
	decodeBody(t, resp, &out)
	if out.Alert != "" {
		t.Fatalf("expected no alert far away, got %q", out.Alert)
	}

	resp = env.do(t, http.MethodPost, "/deliveries/o1/positions", sample(customer.Lat+0.005), true)
	out = positionResponse{}
	decodeBody(t, resp, &out)
	if out.Alert != domain.EventDriverApproaching || out.Dispatch == nil {
		t.Fatalf("expected approaching alert with dispatch, got %+v", out)
	}
	if out.Dispatch.Audience != "user:u1" {
		t.Errorf("expected user audience, got %q", out.Dispatch.Audience)
	}

	resp = env.do(t, http.MethodPost, "/deliveries/o1/positions", sample(customer.Lat+0.004), true)
	out = positionResponse{}
	decodeBody(t, resp, &out)
	if out.Alert != "" {
		t.Errorf("expected no repeat alert, got %q", out.Alert)
	}

	resp = env.do(t, http.MethodPost, "/deliveries/o1/status", map[string]string{"status": "delivered", "userId": "u1"}, true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var st map[string]interface{}
	decodeBody(t, resp, &st)
	if st["cleared"] != float64(1) {
		t.Errorf("expected 1 cleared pair, got %v", st["cleared"])
	}
	if _, ok := st["dispatch"]; !ok {
		t.Error("expected completion dispatch")
	}

	resp = env.do(t, http.MethodPost, "/deliveries/o1/status", map[string]string{"status": "lost"}, true)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown status, got %d", resp.StatusCode)
	}
	for _, bad := range []map[string]interface{}{
		{"driver": domain.Position{Lat: 91}},
		{"driver": customer, "customer": domain.Position{Lat: 10, Lng: -180.5}},
	} {
		resp = env.do(t, http.MethodPost, "/deliveries/o1/positions", bad, true)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400 for out-of-range position %v, got %d", bad, resp.StatusCode)
		}
		var e ErrorResponse
		decodeBody(t, resp, &e)
		if e.Error != "validation_failed" {
			t.Errorf("expected validation_failed, got %q", e.Error)
		}
	}
}

type flakyPublisher struct {
	down atomic.Bool
}

func (p *flakyPublisher) Publish(ctx context.Context, msg broker.Message) error {
	if p.down.Load() {
		return errors.New("nats: no responders")
	}
	return nil
}

func (p *flakyPublisher) Close() error { return nil }

func TestPositionAlertSurvivesFailedDispatch(t *testing.T) {
	pub := &flakyPublisher{}
	env := newTestEnvWithPublisher(t, pub)
	customer := domain.Position{Lat: 48.8566, Lng: 2.3522}
	sample := func(lat float64) map[string]interface{} {
		return map[string]interface{}{
			"driverId": "d1",
			"userId":   "u1",
			"driver":   domain.Position{Lat: lat, Lng: customer.Lng},
			"customer": customer,
		}
	}

	resp := env.do(t, http.MethodPost, "/deliveries/o2/positions", sample(customer.Lat+0.05), true)
	resp.Body.Close()

	pub.down.Store(true)
	resp = env.do(t, http.MethodPost, "/deliveries/o2/positions", sample(customer.Lat+0.005), true)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502 while the broker is down, got %d", resp.StatusCode)
	}

	pub.down.Store(false)
	var out positionResponse
	resp = env.do(t, http.MethodPost, "/deliveries/o2/positions", sample(customer.Lat+0.005), true)
	decodeBody(t, resp, &out)
	if out.Alert != domain.EventDriverApproaching || out.Dispatch == nil {
		t.Fatalf("expected approaching alert once the broker recovers, got %+v", out)
	}
}

func TestAgentRoutes(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/agent/push", map[string]string{"type": "driver_assigned", "orderId": "o7", "driverName": "Sam"}, false)
	var res agent.Result
	decodeBody(t, resp, &res)
	if res.Effect != agent.EffectShown || res.Tag != "driver_assigned-o7" {
		t.Fatalf("unexpected push result %+v", res)
	}

	resp = env.do(t, http.MethodGet, "/agent/notifications", nil, false)
	var shown []agent.Displayed
	decodeBody(t, resp, &shown)
	if len(shown) != 1 {
		t.Fatalf("expected 1 displayed notification, got %d", len(shown))
	}

	resp = env.do(t, http.MethodPost, "/agent/notifications/driver_assigned-o7/click", map[string]string{"action": "track"}, false)
	res = agent.Result{}
	decodeBody(t, resp, &res)
	if res.Effect != agent.EffectOpened || res.Intent == nil || res.Intent.URL != "/track/o7" {
		t.Errorf("unexpected click result %+v", res)
	}

	resp = env.do(t, http.MethodPost, "/agent/control", map[string]string{"type": "GET_VERSION"}, false)
	res = agent.Result{}
	decodeBody(t, resp, &res)
	if res.Reply == nil || res.Reply.Version != "v1" {
		t.Errorf("unexpected control result %+v", res)
	}

	resp = env.do(t, http.MethodPost, "/agent/control", map[string]string{"type": "REBOOT"}, false)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown control, got %d", resp.StatusCode)
	}
}

func TestLiveFeed(t *testing.T) {
	env := newTestEnv(t)

	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/notifications/live?userId=u1&route=/orders/o1/track"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for env.hub.SubscriberCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	body := map[string]string{"type": "chat_message", "chatId": "c1", "message": "hi", "targetAudience": "user:u1"}
	resp := env.do(t, http.MethodPost, "/notifications/send", body, true)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var item events.Item
	if err := conn.ReadJSON(&item); err != nil {
		t.Fatalf("read item: %v", err)
	}
	if item.Kind != events.KindEvent || item.Event == nil || item.Event.ChatID != "c1" {
		t.Errorf("unexpected item %+v", item)
	}

	if err := conn.WriteJSON(routeMessage{Route: "/chat/c1"}); err != nil {
		t.Fatalf("write route: %v", err)
	}
	deadline = time.Now().Add(2 * time.Second)
	for {
		if _, ok := env.hub.FindByRoute("u1", "/chat/c1"); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("route update never applied")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
