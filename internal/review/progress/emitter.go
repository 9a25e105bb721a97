package progress

import (
	"context"
	"sync"
	"time"

	"ai-review-be/internal/pkg/logger"

	"github.com/google/uuid"
)

const (
	queueSize      = 1024
	publishTimeout = 5 * time.Second
)

// Sink receives every event of a job in Seq order.
type Sink interface {
	Name() string
	Publish(ctx context.Context, e Event) error
}

// Emitter stamps events of one job, keeps them as a replayable log and fans
// them out to its sinks from a single goroutine. Emit never blocks on a sink:
// when the queue is full the event is kept in the log but skipped for sinks.
type Emitter struct {
	jobID uuid.UUID
	sinks []Sink
	log   logger.ILogger

	mu      sync.Mutex
	seq     int64
	history []Event
	closed  bool

	queue chan Event
	done  chan struct{}
}

func NewEmitter(jobID uuid.UUID, log logger.ILogger, sinks ...Sink) *Emitter {
	e := &Emitter{
		jobID: jobID,
		sinks: sinks,
		log:   log,
		queue: make(chan Event, queueSize),
		done:  make(chan struct{}),
	}
	go e.drain()
	return e
}

// Emit assigns the next Seq and returns the stamped event. Events emitted
// after Close are dropped. A nil Emitter accepts and drops everything.
func (e *Emitter) Emit(ev Event) Event {
	if e == nil {
		return ev
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ev
	}

	e.seq++
	ev.Seq = e.seq
	ev.JobID = e.jobID
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	e.history = append(e.history, ev)

	select {
	case e.queue <- ev:
	default:
		e.log.Warn("Progress", "Event queue full, skipping sinks", map[string]interface{}{
			"job_id": e.jobID.String(),
			"seq":    ev.Seq,
			"type":   string(ev.Kind),
		})
	}
	return ev
}

// History returns every emitted event in Seq order.
func (e *Emitter) History() []Event {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Event(nil), e.history...)
}

// Close stops accepting events and waits until the queued ones reached every
// sink. It is safe to call more than once.
func (e *Emitter) Close() {
	if e == nil {
		return
	}
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.queue)
	}
	e.mu.Unlock()
	<-e.done
}

func (e *Emitter) drain() {
	defer close(e.done)
	for ev := range e.queue {
		for _, s := range e.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			if err := s.Publish(ctx, ev); err != nil {
				e.log.Warn("Progress", "Sink publish failed", map[string]interface{}{
					"sink":   s.Name(),
					"job_id": e.jobID.String(),
					"seq":    ev.Seq,
					"error":  err.Error(),
				})
			}
			cancel()
		}
	}
}
