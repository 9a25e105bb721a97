package nats

import (
	"context"
	"fmt"
	"log"

	"ai-review-be/pkg/events"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// EventHandler processes one event. A returned error naks the message so
// JetStream redelivers it.
type EventHandler func(ctx context.Context, event events.Event) error

// Subscription selects what a consumer reads. An empty Durable creates an
// ephemeral consumer that the server drops once the subscriber goes away.
type Subscription struct {
	Subject string
	Durable string
	// Replay delivers the retained history instead of new events only.
	Replay bool
}

func (s Subscription) consumerConfig() jetstream.ConsumerConfig {
	deliver := jetstream.DeliverNewPolicy
	if s.Replay {
		deliver = jetstream.DeliverAllPolicy
	}
	return jetstream.ConsumerConfig{
		Durable:       s.Durable,
		FilterSubject: s.Subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: deliver,
	}
}

type Subscriber struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	stream string
}

func NewSubscriber(cfg Config) (*Subscriber, error) {
	nc, js, err := connect(cfg)
	if err != nil {
		return nil, err
	}
	if err := ensureStream(js, cfg); err != nil {
		nc.Close()
		return nil, err
	}
	return &Subscriber{nc: nc, js: js, stream: cfg.Stream}, nil
}

// Subscribe consumes matching events until ctx is done.
func (s *Subscriber) Subscribe(ctx context.Context, sub Subscription, handler EventHandler) error {
	consumer, err := s.js.CreateOrUpdateConsumer(ctx, s.stream, sub.consumerConfig())
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	consumeCtx, err := consumer.Consume(func(msg jetstream.Msg) {
		event, err := events.Decode(msg.Subject(), msg.Headers().Get(jetstream.MsgIDHeader), msg.Data())
		if err != nil {
			// Redelivery cannot fix a malformed payload.
			log.Printf("Error: %v", err)
			msg.Term()
			return
		}

		if err := handler(ctx, event); err != nil {
			log.Printf("Handler failed for event %s: %v", msg.Subject(), err)
			msg.Nak()
			return
		}
		msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	go func() {
		<-ctx.Done()
		consumeCtx.Stop()
	}()
	return nil
}

func (s *Subscriber) Close() {
	if s.nc != nil {
		s.nc.Close()
	}
}
