package agent

import (
	"context"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/lupppig/deliverynotify/internal/broker"
	"github.com/lupppig/deliverynotify/internal/logging"
	"github.com/lupppig/deliverynotify/internal/retry"
)

// Source is the part of a JetStream consumer the pull loop needs.
type Source interface {
	Fetch(batch int, opts ...jetstream.FetchOpt) (jetstream.MessageBatch, error)
}

type verdict struct {
	ack   bool
	delay time.Duration
}

// Consumer pulls push payloads from JetStream and hands them to the agent.
type Consumer struct {
	source  Source
	agent   *Agent
	policy  *retry.Policy
	batch   int
	maxWait time.Duration
}

func NewConsumer(source Source, a *Agent, policy *retry.Policy) *Consumer {
	return &Consumer{
		source:  source,
		agent:   a,
		policy:  policy,
		batch:   10,
		maxWait: 5 * time.Second,
	}
}

func (c *Consumer) Start(ctx context.Context) error {
	slog.Info("push consumer started", slog.String("code", "SYS_STARTUP"))

	failures := 0
	for {
		select {
		case <-ctx.Done():
			slog.Info("push consumer stopped", slog.String("code", "SYS_SHUTDOWN"))
			return nil
		default:
		}

		msgs, err := c.source.Fetch(c.batch, jetstream.FetchMaxWait(c.maxWait))
		if err != nil {
			delay := c.policy.NextDelay(failures)
			failures++
			slog.Error("error fetching push messages",
				slog.String("code", "BROKER_ERROR"),
				slog.Duration("retry_in", delay),
				slog.Any("error", err),
			)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			continue
		}
		failures = 0

		for msg := range msgs.Messages() {
			c.process(ctx, msg)
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg jetstream.Msg) {
	delivered := uint64(1)
	if meta, err := msg.Metadata(); err == nil {
		delivered = meta.NumDelivered
	}

	if a, ok := broker.AudienceFromSubject(msg.Subject()); ok {
		ctx = logging.WithAudience(ctx, a.String())
	}

	v := c.handle(ctx, msg.Data(), delivered)
	if v.ack {
		if err := msg.Ack(); err != nil {
			slog.Warn("ack failed", slog.String("code", "BROKER_ERROR"), slog.Any("error", err))
		}
		return
	}
	if err := msg.NakWithDelay(v.delay); err != nil {
		slog.Warn("nak failed", slog.String("code", "BROKER_ERROR"), slog.Any("error", err))
	}
}

// handle submits one payload. Surface failures are redelivered with
// backoff until the policy gives up; everything else is acknowledged.
func (c *Consumer) handle(ctx context.Context, data []byte, delivered uint64) verdict {
	_, err := c.agent.Submit(ctx, Envelope{Kind: KindPush, Payload: data})
	if err == nil {
		return verdict{ack: true}
	}
	logger := logging.FromContext(ctx)

	if ctx.Err() != nil {
		return verdict{}
	}

	attempt := int(delivered)
	if c.policy.ShouldRetry(attempt) {
		delay := c.policy.NextDelay(attempt - 1)
		logger.Warn("push handling failed, redelivering",
			slog.String("code", "PUSH_RETRY"),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.Any("error", err),
		)
		return verdict{delay: delay}
	}

	logger.Error("dropping push after repeated failures",
		slog.String("code", "PUSH_DROPPED"),
		slog.Int("attempt", attempt),
		slog.Any("error", err),
	)
	return verdict{ack: true}
}
