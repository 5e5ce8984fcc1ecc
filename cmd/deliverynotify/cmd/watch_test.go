package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"google.golang.org/grpc"

	"github.com/lupppig/deliverynotify/internal/domain"
	"github.com/lupppig/deliverynotify/internal/events"
	dngrpc "github.com/lupppig/deliverynotify/internal/grpc"
	"github.com/lupppig/deliverynotify/internal/toast"
)

type mockStream struct {
	items []events.Item
	index int
}

func (m *mockStream) Recv() (events.Item, error) {
	if m.index >= len(m.items) {
		return events.Item{}, io.EOF
	}
	item := m.items[m.index]
	m.index++
	return item, nil
}

type mockFeed struct {
	got    dngrpc.WatchRequest
	stream *mockStream
}

func (m *mockFeed) Watch(ctx context.Context, req dngrpc.WatchRequest) (itemStream, error) {
	m.got = req
	return m.stream, nil
}

func eventItem(e domain.DeliveryEvent) events.Item {
	return events.Item{Kind: events.KindEvent, Event: &e, At: time.Now()}
}

func TestWatchCommandQuiet(t *testing.T) {
	settingsSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := domain.DefaultSettings()
		json.NewEncoder(w).Encode(s)
	}))
	defer settingsSrv.Close()
	useConfig(t, settingsSrv.URL)
	cfg.Client.ServerAddr = "localhost:0"

	confirmed := domain.DeliveryEvent{Type: domain.EventOrderConfirmed, OrderID: "o1"}
	feed := &mockFeed{stream: &mockStream{items: []events.Item{
		eventItem(confirmed),
		eventItem(confirmed),
		{Kind: events.KindNavigate, URL: "/track/o1"},
		eventItem(domain.DeliveryEvent{Type: domain.EventPromotion, PromoID: "p1"}),
	}}}

	originalFactory := feedFactory
	defer func() { feedFactory = originalFactory }()
	feedFactory = func(conn grpc.ClientConnInterface) feedWatcher { return feed }

	watchOrderID = "o1"
	watchRoute = "/track/o1"
	quiet = true

	var out bytes.Buffer
	watchCmd.SetOut(&out)
	defer watchCmd.SetOut(nil)

	if err := watchCmd.RunE(watchCmd, []string{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if feed.got.UserID != "u1" || feed.got.OrderID != "o1" || feed.got.Route != "/track/o1" {
		t.Errorf("unexpected watch request %+v", feed.got)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	// duplicate tag collapses and promotions are off by default
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), out.String())
	}
	var payload domain.Payload
	if err := json.Unmarshal([]byte(lines[0]), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Tag != "order_confirmed-o1" {
		t.Errorf("expected tag order_confirmed-o1, got %q", payload.Tag)
	}
	if !strings.Contains(lines[1], "/track/o1") {
		t.Errorf("expected navigate line, got %q", lines[1])
	}
}

func TestPrintItemsAppliesFeedbackSettings(t *testing.T) {
	useConfig(t, "http://unused")
	off := false
	queue := newToastQueue(domain.DefaultSettings().Apply(domain.SettingsPatch{Sound: &off, Vibration: &off}))
	stream := &mockStream{items: []events.Item{eventItem(domain.DeliveryEvent{Type: domain.EventDriverArrived, OrderID: "o9"})}}

	var out bytes.Buffer
	if err := printItems(&out, stream, queue); err != nil {
		t.Fatalf("printItems failed: %v", err)
	}

	var p domain.Payload
	if err := json.Unmarshal(out.Bytes(), &p); err != nil {
		t.Fatalf("invalid payload %q: %v", out.String(), err)
	}
	if !p.Silent || len(p.Vibrate) != 0 {
		t.Errorf("expected silent payload without vibration, got silent=%v vibrate=%v", p.Silent, p.Vibrate)
	}
}

func TestWatchModel(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	q := toast.NewQueue(toast.DefaultConfig(), toast.WithClock(func() time.Time { return now }))
	m := NewWatchModel(q)

	m.Update(itemMsg(eventItem(domain.DeliveryEvent{Type: domain.EventDriverAssigned, OrderID: "o1", DriverName: "Sam", DriverPhone: "+331"})))
	m.Update(itemMsg(eventItem(domain.DeliveryEvent{Type: domain.EventChatMessage, ChatID: "c1", Message: "hello"})))
	if q.Len() != 2 {
		t.Fatalf("expected 2 toasts, got %d", q.Len())
	}
	if !strings.Contains(m.View(), "Livreur assigné") {
		t.Error("expected the driver toast to render")
	}

	// second button on the driver toast is "call driver"
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("2")})
	if m.status != "dial +331" {
		t.Errorf("expected dial status, got %q", m.status)
	}
	if q.Len() != 1 {
		t.Fatalf("expected invoked toast removed, got %d", q.Len())
	}

	m.Update(sweepMsg(now.Add(time.Minute)))
	if q.Len() != 0 {
		t.Errorf("expected chat toast swept, got %d", q.Len())
	}

	m.Update(streamEndMsg{})
	if !strings.Contains(m.View(), "feed closed") {
		t.Error("expected feed closed notice")
	}
}
