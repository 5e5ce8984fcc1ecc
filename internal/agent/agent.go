// Package agent is the background delivery path. It runs without any
// foreground state: pushes are classified and shown on the platform
// surface, interactions are routed, and a small control protocol lets the
// foreground app manage it. Every handler describes its outcome in a Result
// so it can be exercised without a real platform.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/lupppig/deliverynotify/internal/classify"
	"github.com/lupppig/deliverynotify/internal/domain"
	"github.com/lupppig/deliverynotify/internal/logging"
	"github.com/lupppig/deliverynotify/internal/metrics"
	"github.com/lupppig/deliverynotify/internal/route"
	"github.com/lupppig/deliverynotify/internal/settings"
)

const maxFallbackBody = 240

var ErrUnknownControl = errors.New("unknown control message")

type Phase string

const (
	PhaseNew       Phase = "new"
	PhaseInstalled Phase = "installed"
	PhaseActive    Phase = "active"
)

type ControlType string

const (
	ControlSkipWaiting ControlType = "SKIP_WAITING"
	ControlGetVersion  ControlType = "GET_VERSION"
	ControlClearCache  ControlType = "CLEAR_CACHE"
)

type Reply struct {
	Type    string `json:"type"`
	Version string `json:"version,omitempty"`
	Cleared int    `json:"cleared,omitempty"`
}

type Effect string

const (
	EffectNone       Effect = "none"
	EffectCached     Effect = "cached"
	EffectActivated  Effect = "activated"
	EffectShown      Effect = "shown"
	EffectSuppressed Effect = "suppressed"
	EffectFocused    Effect = "focused"
	EffectOpened     Effect = "opened"
	EffectDial       Effect = "dial"
	EffectClosed     Effect = "closed"
	EffectReplied    Effect = "replied"
)

// Result describes what a handler did.
type Result struct {
	Effect       Effect                         `json:"effect"`
	Tag          string                         `json:"tag,omitempty"`
	Notification *domain.ClassifiedNotification `json:"notification,omitempty"`
	Intent       *route.Intent                  `json:"intent,omitempty"`
	Reply        *Reply                         `json:"reply,omitempty"`
	Cached       int                            `json:"cached,omitempty"`
	Evicted      []string                       `json:"evicted,omitempty"`
	Fallback     bool                           `json:"fallback,omitempty"`
}

type Config struct {
	Version     string
	UserID      string
	PushTimeout time.Duration
	InboxSize   int
	Shell       []string
}

func DefaultConfig() Config {
	return Config{
		Version:     "v1",
		PushTimeout: 10 * time.Second,
		InboxSize:   64,
		Shell:       DefaultShell,
	}
}

type Agent struct {
	cfg       Config
	surface   Surface
	windows   Windows
	settings  settings.Reader
	cache     *ShellCache
	fetcher   Fetcher
	analytics Analytics
	inbox     chan job

	mu    sync.Mutex
	phase Phase
}

type Option func(*Agent)

func WithFetcher(f Fetcher) Option {
	return func(a *Agent) { a.fetcher = f }
}

func WithAnalytics(an Analytics) Option {
	return func(a *Agent) { a.analytics = an }
}

func WithCache(c *ShellCache) Option {
	return func(a *Agent) { a.cache = c }
}

func New(cfg Config, surface Surface, windows Windows, reader settings.Reader, opts ...Option) *Agent {
	def := DefaultConfig()
	if cfg.Version == "" {
		cfg.Version = def.Version
	}
	if cfg.PushTimeout <= 0 {
		cfg.PushTimeout = def.PushTimeout
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = def.InboxSize
	}
	if cfg.Shell == nil {
		cfg.Shell = def.Shell
	}

	a := &Agent{
		cfg:      cfg,
		surface:  surface,
		windows:  windows,
		settings: reader,
		cache:    NewShellCache(),
		inbox:    make(chan job, cfg.InboxSize),
		phase:    PhaseNew,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Agent) Version() string { return a.cfg.Version }

func (a *Agent) Phase() Phase {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.phase
}

func (a *Agent) Cache() *ShellCache { return a.cache }

func (a *Agent) Surface() Surface { return a.surface }

func (a *Agent) setPhase(p Phase) {
	a.mu.Lock()
	a.phase = p
	a.mu.Unlock()
}

// OnInstall pre-caches the app shell. A resource that fails to load is
// skipped; install always completes.
func (a *Agent) OnInstall(ctx context.Context) Result {
	logger := logging.FromContext(ctx)
	name := CacheName(a.cfg.Version)

	cached := 0
	if a.fetcher != nil {
		for _, path := range a.cfg.Shell {
			body, err := a.fetcher.Fetch(ctx, path)
			if err != nil {
				logger.Warn("shell resource not cached",
					slog.String("code", "CACHE_MISS"),
					slog.String("path", path),
					slog.Any("error", err),
				)
				continue
			}
			a.cache.Put(name, path, body)
			cached++
		}
	}

	a.setPhase(PhaseInstalled)
	logger.Info("agent installed",
		slog.String("code", "AGENT_INSTALLED"),
		slog.String("version", a.cfg.Version),
		slog.Int("cached", cached),
	)
	return Result{Effect: EffectCached, Cached: cached}
}

// OnActivate evicts caches left by earlier versions.
func (a *Agent) OnActivate(ctx context.Context) Result {
	evicted := a.cache.EvictExcept(CacheName(a.cfg.Version))
	a.setPhase(PhaseActive)
	logging.FromContext(ctx).Info("agent activated",
		slog.String("code", "AGENT_ACTIVATED"),
		slog.String("version", a.cfg.Version),
		slog.Int("evicted", len(evicted)),
	)
	return Result{Effect: EffectActivated, Evicted: evicted}
}

// inbound accepts both a bare delivery event and a rendered payload.
type inbound struct {
	domain.DeliveryEvent
	Body string                   `json:"body"`
	Data *domain.NotificationData `json:"data"`
}

func (in inbound) event() domain.DeliveryEvent {
	e := in.DeliveryEvent
	if e.Message == "" {
		e.Message = in.Body
	}
	if d := in.Data; d != nil {
		e.OrderID = firstNonEmpty(e.OrderID, d.OrderID)
		e.DriverID = firstNonEmpty(e.DriverID, d.DriverID)
		e.DriverName = firstNonEmpty(e.DriverName, d.DriverName)
		e.DriverPhone = firstNonEmpty(e.DriverPhone, d.DriverPhone)
		e.ChatID = firstNonEmpty(e.ChatID, d.ChatID)
		e.PromoID = firstNonEmpty(e.PromoID, d.PromoID)
	}
	return e
}

// ParsePush decodes a push body. ok is false when the body is not a JSON
// object; the returned text is then the best readable rendering of it.
func ParsePush(payload []byte) (e domain.DeliveryEvent, text string, ok bool) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var in inbound
		if err := json.Unmarshal(trimmed, &in); err == nil {
			return in.event(), "", true
		}
	}
	if !utf8.Valid(trimmed) {
		return domain.DeliveryEvent{}, "", false
	}
	text = strings.TrimSpace(string(trimmed))
	if len(text) > maxFallbackBody {
		text = text[:maxFallbackBody]
		for !utf8.ValidString(text) {
			text = text[:len(text)-1]
		}
	}
	return domain.DeliveryEvent{}, text, false
}

// OnPush classifies a push and shows it. Unreadable payloads become the
// generic notification.
func (a *Agent) OnPush(ctx context.Context, payload []byte) (Result, error) {
	start := time.Now()
	defer func() { metrics.PushHandlingDuration.Observe(time.Since(start).Seconds()) }()

	var n domain.ClassifiedNotification
	e, text, ok := ParsePush(payload)
	if ok {
		n = classify.Classify(e)
		metrics.NotificationsClassified.WithLabelValues(string(n.Type)).Inc()
	} else {
		n = classify.Fallback(text)
		metrics.MalformedPayloads.Inc()
		logging.FromContext(ctx).Warn("push payload not understood, showing generic notification",
			slog.String("code", "PUSH_MALFORMED"),
			slog.Int("bytes", len(payload)),
		)
	}

	ctx = logging.WithOrderID(logging.WithTag(ctx, n.Tag), n.Data.OrderID)
	logger := logging.FromContext(ctx)

	prefs := a.userSettings(ctx)
	if ok && !settings.IsCategoryEnabled(n.Type, prefs) {
		metrics.NotificationsSuppressed.WithLabelValues("agent", "settings").Inc()
		logger.Info("push suppressed by settings",
			slog.String("code", "PUSH_SUPPRESSED"),
			slog.String("type", string(n.Type)),
		)
		return Result{Effect: EffectSuppressed, Tag: n.Tag, Notification: &n}, nil
	}
	n = settings.ApplyFeedback(n, prefs)

	if err := a.surface.Show(ctx, n); err != nil {
		logger.Error("failed to show notification",
			slog.String("code", "PUSH_FAILED"),
			slog.Any("error", err),
		)
		return Result{Effect: EffectNone, Tag: n.Tag, Notification: &n, Fallback: !ok}, err
	}

	metrics.NotificationsDisplayed.WithLabelValues("agent", string(n.Type)).Inc()
	logger.Info("push shown",
		slog.String("code", "PUSH_SHOWN"),
		slog.String("type", string(n.Type)),
	)
	return Result{Effect: EffectShown, Tag: n.Tag, Notification: &n, Fallback: !ok}, nil
}

func (a *Agent) userSettings(ctx context.Context) domain.NotificationSettings {
	if a.settings == nil {
		return domain.DefaultSettings()
	}
	s, err := a.settings.Get(ctx, a.cfg.UserID)
	if err != nil {
		logging.FromContext(ctx).Warn("settings unavailable, using defaults",
			slog.String("code", "SETTINGS_UNAVAILABLE"),
			slog.Any("error", err),
		)
		s = domain.DefaultSettings()
	}
	return s
}

// OnNotificationClick closes the notification and performs the navigation
// the clicked action asks for. An empty action is a click on the body.
func (a *Agent) OnNotificationClick(ctx context.Context, tag string, action domain.ActionID) (Result, error) {
	ctx = logging.WithTag(ctx, tag)
	logger := logging.FromContext(ctx)

	var n domain.ClassifiedNotification
	if d, ok := a.surface.Get(tag); ok {
		n = d.Notification
	}
	a.surface.Close(tag)

	intent := route.Resolve(action, n.Type, n.Data)
	res := Result{Tag: tag, Intent: &intent}

	switch intent.Kind {
	case route.KindNone:
		res.Effect = EffectNone
		return res, nil
	case route.KindDial:
		res.Effect = EffectDial
		logger.Info("dial intent", slog.String("code", "CLICK_DIAL"))
		return res, nil
	}

	if a.windows == nil {
		res.Effect = EffectNone
		return res, nil
	}

	focused, err := a.windows.Focus(ctx, intent.URL)
	if err != nil {
		logger.Warn("focus failed, opening a new window",
			slog.String("code", "CLICK_FOCUS_FAILED"),
			slog.Any("error", err),
		)
	}
	if focused {
		res.Effect = EffectFocused
		logger.Info("focused window", slog.String("code", "CLICK_FOCUS"), slog.String("url", intent.URL))
		return res, nil
	}

	if err := a.windows.Open(ctx, intent.URL); err != nil {
		return res, err
	}
	res.Effect = EffectOpened
	logger.Info("opened window", slog.String("code", "CLICK_OPEN"), slog.String("url", intent.URL))
	return res, nil
}

// OnNotificationClose removes the notification and reports the close.
func (a *Agent) OnNotificationClose(ctx context.Context, tag string) Result {
	ctx = logging.WithTag(ctx, tag)

	d, _ := a.surface.Get(tag)
	a.surface.Close(tag)

	if a.analytics != nil {
		err := a.analytics.ReportClose(ctx, CloseEvent{
			Tag:      tag,
			Type:     d.Notification.Type,
			OrderID:  d.Notification.Data.OrderID,
			ClosedAt: time.Now(),
		})
		if err != nil {
			logging.FromContext(ctx).Debug("close report dropped",
				slog.String("code", "ANALYTICS_FAILED"),
				slog.Any("error", err),
			)
		}
	}
	return Result{Effect: EffectClosed, Tag: tag}
}

// OnMessage answers the foreground control protocol.
func (a *Agent) OnMessage(ctx context.Context, msg ControlType) (Result, error) {
	logger := logging.FromContext(ctx)

	switch msg {
	case ControlSkipWaiting:
		res := Result{Effect: EffectReplied, Reply: &Reply{Type: "SKIPPED"}}
		if a.Phase() == PhaseInstalled {
			act := a.OnActivate(ctx)
			res.Evicted = act.Evicted
		}
		return res, nil

	case ControlGetVersion:
		return Result{Effect: EffectReplied, Reply: &Reply{Type: "VERSION", Version: a.cfg.Version}}, nil

	case ControlClearCache:
		n := a.cache.Clear()
		logger.Info("caches cleared", slog.String("code", "CACHE_CLEARED"), slog.Int("caches", n))
		return Result{Effect: EffectReplied, Reply: &Reply{Type: "CACHE_CLEARED", Cleared: n}}, nil

	default:
		logger.Warn("ignoring control message",
			slog.String("code", "CONTROL_UNKNOWN"),
			slog.String("type", string(msg)),
		)
		return Result{Effect: EffectNone}, ErrUnknownControl
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
