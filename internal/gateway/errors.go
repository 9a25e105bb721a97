package gateway

import (
	"context"
	"errors"
	"fmt"

	"ai-review-be/internal/entity"
	"ai-review-be/pkg/llm"

	"github.com/sony/gobreaker"
)

type ErrorKind string

const (
	KindSchemaInvalid ErrorKind = "schema_invalid"
	KindRateLimited   ErrorKind = "rate_limited"
	KindTimeout       ErrorKind = "timeout"
	KindTransport     ErrorKind = "transport"
)

// Sentinels for errors.Is against a *Error of the matching kind.
var (
	ErrSchemaInvalid = errors.New("model output does not match the expected shape")
	ErrRateLimited   = errors.New("model backend rate limited the call")
	ErrTimeout       = errors.New("model call timed out")
	ErrTransport     = errors.New("model backend unreachable")
)

// Error is the single failure type returned by the gateways.
type Error struct {
	Kind  ErrorKind
	Agent entity.AgentID
	Model string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway %s (agent=%s model=%s): %v", e.Kind, e.Agent, e.Model, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrSchemaInvalid:
		return e.Kind == KindSchemaInvalid
	case ErrRateLimited:
		return e.Kind == KindRateLimited
	case ErrTimeout:
		return e.Kind == KindTimeout
	case ErrTransport:
		return e.Kind == KindTransport
	}
	return false
}

// classify maps a backend failure onto the gateway taxonomy. parent is the
// caller's context, used to tell a per-call timeout from a cancelled job.
func classify(parent context.Context, err error) ErrorKind {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindTransport
	case parent.Err() == context.DeadlineExceeded:
		return KindTimeout
	case errors.Is(err, llm.ErrRateLimited):
		return KindRateLimited
	}
	return KindTransport
}

// retryable reports whether another attempt may succeed.
func retryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	var se *llm.StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return true
}
