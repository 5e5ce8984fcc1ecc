package nats

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/lupppig/deliverynotify/internal/broker"
)

const (
	StreamName     = "DELIVERY_PUSH"
	StreamSubjects = broker.PushSubjectPrefix + ">"

	pushMaxAge  = time.Hour
	dedupWindow = 2 * time.Minute
)

var _ broker.Publisher = (*Publisher)(nil)

type Publisher struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	stream jetstream.Stream
}

func New(ctx context.Context, url string) (*Publisher, error) {
	conn, err := nats.Connect(url, nats.Name("deliverynotify"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       StreamName,
		Subjects:   []string{StreamSubjects},
		MaxAge:     pushMaxAge,
		Duplicates: dedupWindow,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create stream %s: %w", StreamName, err)
	}

	return &Publisher{conn: conn, js: js, stream: stream}, nil
}

func (p *Publisher) Publish(ctx context.Context, msg broker.Message) error {
	var opts []jetstream.PublishOpt
	if msg.ID != "" {
		opts = append(opts, jetstream.WithMsgID(msg.ID))
	}
	if _, err := p.js.Publish(ctx, msg.Subject, msg.Data, opts...); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", msg.Subject, err)
	}
	return nil
}

// PushConsumer returns a durable pull consumer over the subjects an agent
// for userID listens on. JetStream stops redelivering after maxDeliver
// attempts; delays between attempts come from the caller's Nak.
func (p *Publisher) PushConsumer(ctx context.Context, durable, userID string, maxDeliver int) (jetstream.Consumer, error) {
	consumer, err := p.stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:        durable,
		FilterSubjects: broker.AgentSubjects(userID),
		AckPolicy:      jetstream.AckExplicitPolicy,
		AckWait:        30 * time.Second,
		MaxDeliver:     maxDeliver,
		DeliverPolicy:  jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer %s: %w", durable, err)
	}
	return consumer, nil
}

func (p *Publisher) Close() error {
	return p.conn.Drain()
}
