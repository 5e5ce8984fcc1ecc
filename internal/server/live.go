package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lupppig/deliverynotify/internal/events"
	"github.com/lupppig/deliverynotify/internal/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// routeMessage is what a foreground client sends when it navigates.
type routeMessage struct {
	Route string `json:"route"`
}

// live upgrades to a websocket and streams hub items to one foreground
// client. Query parameters userId, orderId and route scope the feed.
func (a *API) live(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sub := &events.Subscriber{
		ID:      uuid.New().String(),
		UserID:  q.Get("userId"),
		OrderID: q.Get("orderId"),
		Route:   q.Get("route"),
		Items:   make(chan events.Item, 100),
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.FromContext(r.Context()).Warn("websocket upgrade failed", slog.String("code", "WS_UPGRADE_FAILED"), slog.Any("error", err))
		return
	}

	a.deps.Hub.Subscribe(sub)
	logger := logging.FromContext(logging.WithUserID(r.Context(), sub.UserID)).With(slog.String("subscriber", sub.ID))
	logger.Info("live client connected", slog.String("code", "LIVE_CONNECTED"))

	done := make(chan struct{})
	go a.writePump(conn, sub, done)
	a.readPump(conn, sub, logger)
	close(done)
	a.deps.Hub.Unsubscribe(sub.ID)
	logger.Info("live client disconnected", slog.String("code", "LIVE_DISCONNECTED"))
}

func (a *API) readPump(conn *websocket.Conn, sub *events.Subscriber, logger *slog.Logger) {
	conn.SetReadLimit(maxBodyBytes)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read error", slog.String("code", "WS_READ_ERROR"), slog.Any("error", err))
			}
			return
		}
		var msg routeMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		a.deps.Hub.SetRoute(sub.ID, msg.Route)
	}
}

func (a *API) writePump(conn *websocket.Conn, sub *events.Subscriber, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case item, ok := <-sub.Items:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(item); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			return
		}
	}
}
