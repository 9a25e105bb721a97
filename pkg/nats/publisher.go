package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"ai-review-be/pkg/events"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Publisher mirrors events into the JetStream stream.
type Publisher struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewPublisher(cfg Config) (*Publisher, error) {
	nc, js, err := connect(cfg)
	if err != nil {
		return nil, err
	}
	if err := ensureStream(js, cfg); err != nil {
		// The server may still be starting; publishes fail until the stream exists.
		log.Printf("Warn: %v", err)
	}
	return &Publisher{nc: nc, js: js}, nil
}

// Publish sends an event under events.<type>. Events carrying an id are
// deduplicated by JetStream within the stream's duplicate window.
func (p *Publisher) Publish(ctx context.Context, event events.Event) error {
	data, err := json.Marshal(event.Payload())
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	subject := events.Subject(subjectPrefix, event)

	var opts []jetstream.PublishOpt
	if identified, ok := event.(events.Identified); ok {
		opts = append(opts, jetstream.WithMsgID(identified.EventID()))
	}

	if _, err := p.js.Publish(ctx, subject, data, opts...); err != nil {
		return fmt.Errorf("failed to publish event to subject %s: %w", subject, err)
	}
	return nil
}

func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}
