package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lupppig/deliverynotify/internal/agent"
	"github.com/lupppig/deliverynotify/internal/dispatch"
	"github.com/lupppig/deliverynotify/internal/domain"
	"github.com/lupppig/deliverynotify/internal/events"
	"github.com/lupppig/deliverynotify/internal/logging"
	"github.com/lupppig/deliverynotify/internal/metrics"
	"github.com/lupppig/deliverynotify/internal/proximity"
	"github.com/lupppig/deliverynotify/internal/settings"
	"github.com/lupppig/deliverynotify/internal/store"
)

const (
	defaultDispatchLimit = 50
	maxDispatchLimit     = 500
	maxBodyBytes         = 64 << 10
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err string, message string) {
	writeJSON(w, status, ErrorResponse{Error: err, Message: message})
}

// Deps are the collaborators behind the HTTP API. Agent may be nil, in
// which case the /agent routes are not mounted.
type Deps struct {
	Hub           *events.Hub
	Dispatcher    *dispatch.Dispatcher
	Subscriptions store.SubscriptionStore
	Dispatches    store.DispatchStore
	Settings      *settings.Store
	Monitor       *proximity.Monitor
	Agent         *agent.Agent
	Auth          *AuthInterceptor
}

type API struct {
	deps     Deps
	validate *validator.Validate
	now      func() time.Time
}

func NewAPI(deps Deps) *API {
	if deps.Auth == nil {
		deps.Auth = NewAuthInterceptor("")
	}
	return &API{
		deps:     deps,
		validate: newValidator(),
		now:      time.Now,
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("audience", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseAudience(fl.Field().String())
		return err == nil
	}); err != nil {
		panic(err)
	}
	return v
}

func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestContext)
	r.Use(observe)
	r.Use(middleware.Recoverer)

	r.Get("/health", a.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/notifications", func(r chi.Router) {
		r.Post("/subscribe", a.subscribe)
		r.Post("/unsubscribe", a.unsubscribe)
		r.Get("/live", a.live)
		r.Group(func(r chi.Router) {
			r.Use(a.deps.Auth.RequireKey)
			r.Post("/send", a.send)
			r.Get("/dispatches", a.listDispatches)
		})
	})

	r.Get("/settings/{userID}", a.getSettings)
	r.Put("/settings/{userID}", a.putSettings)

	r.Group(func(r chi.Router) {
		r.Use(a.deps.Auth.RequireKey)
		r.Post("/deliveries/{orderID}/positions", a.position)
		r.Post("/deliveries/{orderID}/status", a.status)
	})

	if a.deps.Agent != nil {
		r.Route("/agent", func(r chi.Router) {
			r.Get("/notifications", a.agentNotifications)
			r.Post("/notifications/{tag}/click", a.agentClick)
			r.Post("/notifications/{tag}/close", a.agentClose)
			r.Post("/push", a.agentPush)
			r.Post("/control", a.agentControl)
		})
	}

	return r
}

func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			path = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)

		metrics.HTTPRequests.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(elapsed.Seconds())
		logging.FromContext(r.Context()).Debug("http request",
			slog.String("code", "HTTP_REQUEST"),
			slog.String("method", r.Method),
			slog.String("path", path),
			slog.Int("status", status),
			slog.Duration("duration", elapsed),
		)
	})
}

func (a *API) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return false
	}
	if err := a.validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return false
	}
	return true
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":      "ok",
		"subscribers": a.deps.Hub.SubscriberCount(),
		"tracked":     a.deps.Monitor.Tracked(),
	}
	if a.deps.Agent != nil {
		resp["agentVersion"] = a.deps.Agent.Version()
		resp["agentPhase"] = a.deps.Agent.Phase()
	}
	writeJSON(w, http.StatusOK, resp)
}

type subscribeRequest struct {
	UserID     string `json:"userId"`
	Endpoint   string `json:"endpoint" validate:"required,url"`
	DeviceName string `json:"deviceName"`
	Keys       struct {
		P256dh string `json:"p256dh" validate:"required"`
		Auth   string `json:"auth" validate:"required"`
	} `json:"keys"`
}

func (a *API) subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if !a.decode(w, r, &req) {
		return
	}

	sub := &domain.PushSubscription{
		ID:         uuid.New().String(),
		UserID:     req.UserID,
		Endpoint:   req.Endpoint,
		Keys:       domain.SubscriptionKeys{P256dh: req.Keys.P256dh, Auth: req.Keys.Auth},
		DeviceName: req.DeviceName,
		CreatedAt:  a.now().UTC(),
	}
	ctx := logging.WithUserID(r.Context(), req.UserID)
	if err := a.deps.Subscriptions.Upsert(ctx, sub); err != nil {
		logging.FromContext(ctx).Error("failed to store subscription", slog.String("code", "DB_ERROR"), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to store subscription")
		return
	}
	metrics.SubscriptionTransitions.WithLabelValues("subscribe").Inc()
	logging.FromContext(ctx).Info("push subscription stored", slog.String("code", "SUBSCRIPTION_STORED"), slog.String("id", sub.ID))
	writeJSON(w, http.StatusCreated, sub)
}

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint" validate:"required"`
}

func (a *API) unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req unsubscribeRequest
	if !a.decode(w, r, &req) {
		return
	}

	err := a.deps.Subscriptions.DeleteByEndpoint(r.Context(), req.Endpoint)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "Subscription not found")
		return
	}
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to delete subscription", slog.String("code", "DB_ERROR"), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to delete subscription")
		return
	}
	metrics.SubscriptionTransitions.WithLabelValues("unsubscribe").Inc()
	w.WriteHeader(http.StatusNoContent)
}

type sendRequest struct {
	domain.DeliveryEvent
	TargetAudience string `json:"targetAudience" validate:"audience"`
}

func (a *API) send(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if !a.decode(w, r, &req) {
		return
	}
	audience, err := domain.ParseAudience(req.TargetAudience)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_audience", err.Error())
		return
	}

	d, err := a.deps.Dispatcher.Dispatch(r.Context(), dispatch.Request{Event: req.DeliveryEvent, Audience: audience})
	if err != nil {
		writeError(w, http.StatusBadGateway, "dispatch_failed", "Failed to publish notification")
		return
	}
	writeJSON(w, http.StatusAccepted, d)
}

func (a *API) listDispatches(w http.ResponseWriter, r *http.Request) {
	limit := defaultDispatchLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = min(n, maxDispatchLimit)
	}

	list, err := a.deps.Dispatches.ListRecent(r.Context(), limit)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to list dispatches", slog.String("code", "DB_ERROR"), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to list dispatches")
		return
	}
	if list == nil {
		list = []*domain.Dispatch{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) getSettings(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	s, err := a.deps.Settings.Get(r.Context(), userID)
	if err != nil {
		// Defaults still come back; the read failure is only logged.
		logging.FromContext(r.Context()).Warn("settings read failed", slog.String("code", "SETTINGS_ERROR"), slog.Any("error", err))
	}
	writeJSON(w, http.StatusOK, s)
}

func (a *API) putSettings(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	var patch domain.SettingsPatch
	if !a.decode(w, r, &patch) {
		return
	}

	s, err := a.deps.Settings.Update(r.Context(), userID, patch)
	if err != nil {
		logging.FromContext(r.Context()).Error("settings write failed", slog.String("code", "SETTINGS_ERROR"), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to save settings")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

type positionRequest struct {
	DriverID    string          `json:"driverId"`
	DriverName  string          `json:"driverName"`
	DriverPhone string          `json:"driverPhone"`
	UserID      string          `json:"userId"`
	Driver      domain.Position `json:"driver"`
	Customer    domain.Position `json:"customer"`
}

type positionResponse struct {
	DistanceKm float64          `json:"distanceKm,omitempty"`
	Alert      domain.EventType `json:"alert,omitempty"`
	Dispatch   *domain.Dispatch `json:"dispatch,omitempty"`
}

func customerAudience(userID, orderID string) domain.Audience {
	if userID != "" {
		return domain.Audience{Kind: domain.AudienceUser, ID: userID}
	}
	return domain.Audience{Kind: domain.AudienceOrder, ID: orderID}
}

func (a *API) position(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	var req positionRequest
	if !a.decode(w, r, &req) {
		return
	}
	alert := a.deps.Monitor.OnSample(proximity.Sample{
		OrderID:          orderID,
		Driver:           domain.Driver{ID: req.DriverID, Name: req.DriverName, Phone: req.DriverPhone},
		DriverPosition:   req.Driver,
		CustomerPosition: req.Customer,
	})
	if alert == nil {
		writeJSON(w, http.StatusOK, positionResponse{})
		return
	}

	metrics.ProximityAlerts.WithLabelValues(string(alert.Event.Type)).Inc()
	ctx := logging.WithOrderID(r.Context(), orderID)
	logging.FromContext(ctx).Info("proximity threshold crossed",
		slog.String("code", "PROXIMITY_ALERT"),
		slog.String("type", string(alert.Event.Type)),
		slog.Float64("distance_km", alert.DistanceKm),
	)

	resp := positionResponse{DistanceKm: alert.DistanceKm, Alert: alert.Event.Type}
	d, err := a.deps.Dispatcher.Dispatch(ctx, dispatch.Request{Event: alert.Event, Audience: customerAudience(req.UserID, orderID)})
	if err != nil {
		a.deps.Monitor.Rollback(alert)
		writeError(w, http.StatusBadGateway, "dispatch_failed", "Failed to publish proximity alert")
		return
	}
	resp.Dispatch = d
	writeJSON(w, http.StatusOK, resp)
}

type statusRequest struct {
	Status   domain.DeliveryStatus `json:"status" validate:"required,oneof=pending assigned picked_up delivered cancelled"`
	DriverID string                `json:"driverId"`
	UserID   string                `json:"userId"`
}

func (a *API) status(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	var req statusRequest
	if !a.decode(w, r, &req) {
		return
	}

	resp := map[string]interface{}{"status": req.Status}
	if req.Status.IsTerminal() {
		resp["cleared"] = a.deps.Monitor.Clear(orderID)
	}
	if req.Status == domain.DeliveryStatusDelivered {
		ev := domain.DeliveryEvent{Type: domain.EventDeliveryCompleted, OrderID: orderID, DriverID: req.DriverID}
		d, err := a.deps.Dispatcher.Dispatch(r.Context(), dispatch.Request{Event: ev, Audience: customerAudience(req.UserID, orderID)})
		if err != nil {
			writeError(w, http.StatusBadGateway, "dispatch_failed", "Failed to publish completion")
			return
		}
		resp["dispatch"] = d
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) agentNotifications(w http.ResponseWriter, r *http.Request) {
	list := a.deps.Agent.Surface().List()
	if list == nil {
		list = []agent.Displayed{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) submit(w http.ResponseWriter, r *http.Request, env agent.Envelope) {
	res, err := a.deps.Agent.Submit(r.Context(), env)
	switch {
	case errors.Is(err, agent.ErrUnknownControl):
		writeError(w, http.StatusBadRequest, "unknown_control", err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, "agent_error", err.Error())
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

type clickRequest struct {
	Action domain.ActionID `json:"action"`
}

func (a *API) agentClick(w http.ResponseWriter, r *http.Request) {
	var req clickRequest
	if r.ContentLength != 0 && !a.decode(w, r, &req) {
		return
	}
	a.submit(w, r, agent.Envelope{Kind: agent.KindClick, Tag: chi.URLParam(r, "tag"), Action: req.Action})
}

func (a *API) agentClose(w http.ResponseWriter, r *http.Request) {
	a.submit(w, r, agent.Envelope{Kind: agent.KindClose, Tag: chi.URLParam(r, "tag")})
}

func (a *API) agentPush(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", err.Error())
		return
	}
	a.submit(w, r, agent.Envelope{Kind: agent.KindPush, Payload: payload})
}

type controlRequest struct {
	Type agent.ControlType `json:"type" validate:"required"`
}

func (a *API) agentControl(w http.ResponseWriter, r *http.Request) {
	var req controlRequest
	if !a.decode(w, r, &req) {
		return
	}
	a.submit(w, r, agent.Envelope{Kind: agent.KindControl, Control: req.Type})
}
