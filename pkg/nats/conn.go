package nats

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const subjectPrefix = "events"

// Config describes the connection and the JetStream stream events live in.
type Config struct {
	URL        string
	Name       string
	Stream     string
	Subjects   []string
	MaxAge     time.Duration
	Duplicates time.Duration
}

// DefaultConfig keeps review events for a day so late watchers can replay
// a job from its first event.
func DefaultConfig(url string) Config {
	return Config{
		URL:        url,
		Name:       "ai-review",
		Stream:     "REVIEW_EVENTS",
		Subjects:   []string{subjectPrefix + ".review.>"},
		MaxAge:     24 * time.Hour,
		Duplicates: 2 * time.Minute,
	}
}

func (c Config) streamConfig() jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:       c.Stream,
		Subjects:   c.Subjects,
		Storage:    jetstream.FileStorage,
		Retention:  jetstream.LimitsPolicy,
		MaxAge:     c.MaxAge,
		Duplicates: c.Duplicates,
	}
}

func connect(cfg Config) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	return nc, js, nil
}

func ensureStream(js jetstream.JetStream, cfg Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := js.CreateOrUpdateStream(ctx, cfg.streamConfig()); err != nil {
		return fmt.Errorf("ensure stream %s: %w", cfg.Stream, err)
	}
	return nil
}
