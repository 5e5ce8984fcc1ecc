package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/lupppig/deliverynotify/internal/domain"
	"github.com/lupppig/deliverynotify/internal/logging"
)

type Kind string

const (
	KindInstall  Kind = "install"
	KindActivate Kind = "activate"
	KindPush     Kind = "push"
	KindClick    Kind = "click"
	KindClose    Kind = "close"
	KindControl  Kind = "control"
)

// Envelope is one message for the agent.
type Envelope struct {
	Kind    Kind            `json:"kind"`
	Payload []byte          `json:"payload,omitempty"`
	Tag     string          `json:"tag,omitempty"`
	Action  domain.ActionID `json:"action,omitempty"`
	Control ControlType     `json:"control,omitempty"`
}

type outcome struct {
	res Result
	err error
}

type job struct {
	ctx   context.Context
	env   Envelope
	reply chan outcome
}

// Handle dispatches one envelope to its handler.
func (a *Agent) Handle(ctx context.Context, env Envelope) (Result, error) {
	switch env.Kind {
	case KindInstall:
		return a.OnInstall(ctx), nil
	case KindActivate:
		return a.OnActivate(ctx), nil
	case KindPush:
		return a.OnPush(ctx, env.Payload)
	case KindClick:
		return a.OnNotificationClick(ctx, env.Tag, env.Action)
	case KindClose:
		return a.OnNotificationClose(ctx, env.Tag), nil
	case KindControl:
		return a.OnMessage(ctx, env.Control)
	default:
		return Result{Effect: EffectNone}, fmt.Errorf("unknown message kind %q", env.Kind)
	}
}

// Serve processes submitted messages one at a time, in arrival order, until
// ctx is done. Each message gets the push timeout to settle.
func (a *Agent) Serve(ctx context.Context) error {
	slog.Info("agent inbox started",
		slog.String("code", "SYS_STARTUP"),
		slog.String("version", a.cfg.Version),
	)
	for {
		select {
		case <-ctx.Done():
			slog.Info("agent inbox stopped", slog.String("code", "SYS_SHUTDOWN"))
			return nil
		case j := <-a.inbox:
			a.run(ctx, j)
		}
	}
}

func (a *Agent) run(ctx context.Context, j job) {
	hctx, cancel := context.WithTimeout(ctx, a.cfg.PushTimeout)
	defer cancel()
	if id, ok := j.ctx.Value(logging.RequestIDKey).(string); ok {
		hctx = logging.WithRequestID(hctx, id)
	}

	res, err := a.Handle(hctx, j.env)
	j.reply <- outcome{res: res, err: err}
}

// Submit queues a message and waits for its result.
func (a *Agent) Submit(ctx context.Context, env Envelope) (Result, error) {
	if _, ok := ctx.Value(logging.RequestIDKey).(string); !ok {
		ctx = logging.WithRequestID(ctx, uuid.New().String())
	}
	j := job{ctx: ctx, env: env, reply: make(chan outcome, 1)}

	select {
	case a.inbox <- j:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	select {
	case out := <-j.reply:
		return out.res, out.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
