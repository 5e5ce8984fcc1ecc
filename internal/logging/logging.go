package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

type contextKey string

const (
	RequestIDKey contextKey = "request_id"
	OrderIDKey   contextKey = "order_id"
	TagKey       contextKey = "tag"
	UserIDKey    contextKey = "user_id"
	AudienceKey  contextKey = "audience"
)

// MultiHandler sends log records to multiple handlers.
type MultiHandler struct {
	handlers []slog.Handler
}

func NewMultiHandler(handlers ...slog.Handler) *MultiHandler {
	return &MultiHandler{handlers: handlers}
}

func (m *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newHandlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		newHandlers[i] = h.WithAttrs(attrs)
	}
	return &MultiHandler{handlers: newHandlers}
}

func (m *MultiHandler) WithGroup(name string) slog.Handler {
	newHandlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		newHandlers[i] = h.WithGroup(name)
	}
	return &MultiHandler{handlers: newHandlers}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// ParseLevel accepts debug, info, warn and error; anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func options(level slog.Level) *slog.HandlerOptions {
	// Custom time format: yyyy:mm:dd:HH:MM:SS -> 2006:01:02:15:04:05
	return &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					return slog.String(a.Key, t.Format("2006:01:02:15:04:05"))
				}
			}
			return a
		},
	}
}

// New builds the text-on-w plus JSON-on-file logger. An empty file path
// skips the JSON sink.
func New(w io.Writer, level, file string) (*slog.Logger, io.Closer) {
	opts := options(ParseLevel(level))

	// Stdout: Text format
	textHandler := slog.NewTextHandler(w, opts)
	if file == "" {
		return slog.New(textHandler), nopCloser{}
	}

	// File: JSON format
	logFile, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger := slog.New(textHandler)
		logger.Error("failed to open log file", slog.String("code", "SYS_STARTUP"), slog.String("file", file), slog.Any("error", err))
		return logger, nopCloser{}
	}

	jsonHandler := slog.NewJSONHandler(logFile, opts)
	return slog.New(NewMultiHandler(textHandler, jsonHandler)), logFile
}

// Init installs the process-wide default logger.
func Init(level, file string) io.Closer {
	logger, closer := New(os.Stdout, level, file)
	slog.SetDefault(logger)
	return closer
}

func FromContext(ctx context.Context) *slog.Logger {
	l := slog.Default()
	if val, ok := ctx.Value(RequestIDKey).(string); ok {
		l = l.With("request_id", val)
	}
	if val, ok := ctx.Value(OrderIDKey).(string); ok {
		l = l.With("order_id", val)
	}
	if val, ok := ctx.Value(TagKey).(string); ok {
		l = l.With("tag", val)
	}
	if val, ok := ctx.Value(UserIDKey).(string); ok {
		l = l.With("user_id", val)
	}
	if val, ok := ctx.Value(AudienceKey).(string); ok {
		l = l.With("audience", val)
	}
	return l
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

func WithOrderID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, OrderIDKey, id)
}

func WithTag(ctx context.Context, tag string) context.Context {
	return context.WithValue(ctx, TagKey, tag)
}

func WithUserID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, UserIDKey, id)
}

func WithAudience(ctx context.Context, audience string) context.Context {
	return context.WithValue(ctx, AudienceKey, audience)
}
