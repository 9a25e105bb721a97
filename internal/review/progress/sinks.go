package progress

import (
	"context"
	"encoding/json"
	"strconv"

	"ai-review-be/internal/pkg/logger"
	"ai-review-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

// Topic is the bus topic carrying the events of one job.
func Topic(jobID uuid.UUID) string {
	return "review." + jobID.String()
}

// BusSink publishes events on the in-process message bus.
type BusSink struct {
	pub message.Publisher
}

func NewBusSink(pub message.Publisher) *BusSink {
	return &BusSink{pub: pub}
}

func (s *BusSink) Name() string { return "bus" }

func (s *BusSink) Publish(_ context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set("seq", strconv.FormatInt(e.Seq, 10))
	msg.Metadata.Set("type", string(e.Kind))
	return s.pub.Publish(Topic(e.JobID), msg)
}

// EventPublisher is satisfied by the JetStream publisher in pkg/nats.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// NatsSink mirrors events to an external broker under events.review.<type>.
type NatsSink struct {
	pub EventPublisher
}

func NewNatsSink(pub EventPublisher) *NatsSink {
	return &NatsSink{pub: pub}
}

func (s *NatsSink) Name() string { return "nats" }

func (s *NatsSink) Publish(ctx context.Context, e Event) error {
	return s.pub.Publish(ctx, e)
}

// JobBroadcaster delivers a serialized event to the websocket clients watching a job.
type JobBroadcaster interface {
	SendToJob(jobID uuid.UUID, data []byte)
}

type HubSink struct {
	hub JobBroadcaster
}

func NewHubSink(hub JobBroadcaster) *HubSink {
	return &HubSink{hub: hub}
}

func (s *HubSink) Name() string { return "hub" }

func (s *HubSink) Publish(_ context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	s.hub.SendToJob(e.JobID, data)
	return nil
}

// LogSink writes one structured line per event.
type LogSink struct {
	log logger.ILogger
}

func NewLogSink(log logger.ILogger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Publish(_ context.Context, e Event) error {
	details := map[string]interface{}{
		"job_id": e.JobID.String(),
		"seq":    e.Seq,
	}
	if e.Phase != "" {
		details["phase"] = e.Phase
	}
	if e.Agent != "" {
		details["agent_id"] = e.Agent.String()
	}
	if e.FindingsCount != nil {
		details["findings"] = *e.FindingsCount
	}
	if e.Kind == KindAgentCompleted {
		details["time_ms"] = e.TimeMs
		details["cost_usd"] = e.CostUSD
	}
	if e.Message != "" {
		details["message"] = e.Message
	}

	if e.Kind == KindError {
		s.log.Warn("Progress", string(e.Kind), details)
		return nil
	}
	s.log.Info("Progress", string(e.Kind), details)
	return nil
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(ctx context.Context, e Event) error

func (f SinkFunc) Name() string { return "func" }

func (f SinkFunc) Publish(ctx context.Context, e Event) error {
	return f(ctx, e)
}
