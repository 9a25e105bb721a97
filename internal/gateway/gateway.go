// Package gateway is the single door to external model and search backends.
// It bounds concurrency, applies per-call timeouts, retries transient
// failures and turns raw model text into validated structured output.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"ai-review-be/internal/config"
	"ai-review-be/internal/entity"
	"ai-review-be/internal/pkg/logger"
	"ai-review-be/pkg/llm"
	"ai-review-be/pkg/utils"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/semaphore"
)

const defaultMaxTokens = 8192

// Request is one structured model invocation.
type Request struct {
	Agent        entity.AgentID
	Model        string // overrides the registry mapping, used by panel backends
	Instructions string
	Payload      string
	ChunkIndex   *int
	ChunkTotal   *int
	MaxTokens    int
}

// Invoker is what stages depend on. out must be a pointer to the expected
// output shape; it is filled only when the call succeeds.
type Invoker interface {
	Invoke(ctx context.Context, req Request, out any) (entity.CallMetrics, error)
}

// ProviderSource resolves the backend serving a model.
type ProviderSource interface {
	ProviderFor(model string) (llm.LLMProvider, error)
}

type Gateway struct {
	registry  *config.Registry
	settings  config.ReviewSettings
	providers ProviderSource
	sem       *semaphore.Weighted
	validate  *validator.Validate
	logger    logger.ILogger

	retryInitial time.Duration
	retryMax     time.Duration

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

var _ Invoker = (*Gateway)(nil)

type Option func(*Gateway)

// WithRetryBackoff overrides the exponential backoff bounds between attempts.
func WithRetryBackoff(initial, max time.Duration) Option {
	return func(g *Gateway) {
		g.retryInitial = initial
		g.retryMax = max
	}
}

func NewGateway(registry *config.Registry, settings config.ReviewSettings, providers ProviderSource, log logger.ILogger, opts ...Option) *Gateway {
	ceiling := settings.MaxConcurrentCalls
	if ceiling <= 0 {
		ceiling = 1
	}
	g := &Gateway{
		registry:     registry,
		settings:     settings,
		providers:    providers,
		sem:          semaphore.NewWeighted(int64(ceiling)),
		validate:     validator.New(),
		logger:       log,
		retryInitial: time.Second,
		retryMax:     10 * time.Second,
		breakers:     make(map[string]*gobreaker.CircuitBreaker),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) Invoke(ctx context.Context, req Request, out any) (entity.CallMetrics, error) {
	model := req.Model
	if model == "" {
		model = g.registry.ModelFor(req.Agent)
	}
	metrics := entity.CallMetrics{
		Agent:      req.Agent,
		Model:      model,
		ChunkIndex: req.ChunkIndex,
		ChunkTotal: req.ChunkTotal,
		Timestamp:  time.Now(),
	}
	fail := func(kind ErrorKind, err error) (entity.CallMetrics, error) {
		return metrics, &Error{Kind: kind, Agent: req.Agent, Model: model, Err: err}
	}

	provider, err := g.providers.ProviderFor(model)
	if err != nil {
		return fail(KindTransport, err)
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	history := []llm.Message{
		{Role: "system", Content: req.Instructions},
		{Role: "user", Content: req.Payload},
	}
	opts := []llm.Option{
		llm.WithModel(model),
		llm.WithTemperature(g.settings.Temperature),
		llm.WithMaxTokens(maxTokens),
		llm.WithJSON(),
	}

	g.logger.Debug("Gateway", "Invoking model", map[string]interface{}{
		"agent": req.Agent, "model": model, "payload_chars": len(req.Payload),
	})

	// Each attempt takes a slot under the concurrency ceiling and its own
	// timeout; the slot is free again while the retry backs off.
	var start time.Time
	var timedOut bool
	cb := g.breaker(model)
	attempt := func() (*llm.Completion, error) {
		if err := g.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer g.sem.Release(1)
		if start.IsZero() {
			start = time.Now()
		}

		callCtx := ctx
		if g.settings.LLMTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, g.settings.LLMTimeout)
			defer cancel()
		}

		res, err := cb.Execute(func() (interface{}, error) {
			return provider.Chat(callCtx, history, opts...)
		})
		if err != nil {
			if callCtx.Err() == context.DeadlineExceeded {
				timedOut = true
				return nil, fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
			}
			return nil, err
		}
		return res.(*llm.Completion), nil
	}

	completion, err := g.retry(ctx, req.Agent, attempt)

	if !start.IsZero() {
		metrics.Duration = time.Since(start)
		metrics.TimeMs = float64(metrics.Duration.Microseconds()) / 1000
	}

	if err != nil {
		kind := classify(ctx, err)
		if timedOut {
			kind = KindTimeout
		}
		g.logger.Warn("Gateway", "Model call failed", map[string]interface{}{
			"agent": req.Agent, "model": model, "kind": kind, "error": err.Error(),
		})
		return fail(kind, err)
	}

	// 4. Metrics
	metrics.InputTokens = completion.Usage.PromptTokens
	if metrics.InputTokens == 0 {
		metrics.InputTokens = utils.EstimateTokens(req.Instructions + req.Payload)
	}
	metrics.OutputTokens = completion.Usage.CompletionTokens
	if metrics.OutputTokens == 0 {
		metrics.OutputTokens = utils.EstimateTokens(completion.Content)
	}
	metrics.CostUSD = g.registry.CalculateCost(model, metrics.InputTokens, metrics.OutputTokens)

	// 5. Decode and validate
	if err := decodeOutput(g.validate, completion.Content, out); err != nil {
		g.logger.Warn("Gateway", "Model output rejected", map[string]interface{}{
			"agent": req.Agent, "model": model, "error": err.Error(),
		})
		return fail(KindSchemaInvalid, err)
	}

	g.logger.Debug("Gateway", "Model call completed", map[string]interface{}{
		"agent": req.Agent, "model": model, "time_ms": metrics.TimeMs,
		"input_tokens": metrics.InputTokens, "output_tokens": metrics.OutputTokens, "cost_usd": metrics.CostUSD,
	})
	return metrics, nil
}

func (g *Gateway) retry(ctx context.Context, agent entity.AgentID, op func() (*llm.Completion, error)) (*llm.Completion, error) {
	attempts := g.settings.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = g.retryInitial
	expo.MaxInterval = g.retryMax

	res, err := backoff.Retry(ctx, func() (*llm.Completion, error) {
		res, err := op()
		if err != nil && !retryable(err) {
			return nil, backoff.Permanent(err)
		}
		return res, err
	},
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			g.logger.Warn("Gateway", "Retrying model call", map[string]interface{}{
				"agent": agent, "wait_ms": wait.Milliseconds(), "error": err.Error(),
			})
		}),
	)

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Err
	}
	return res, err
}

func (g *Gateway) breaker(model string) *gobreaker.CircuitBreaker {
	g.mu.Lock()
	defer g.mu.Unlock()

	if cb, ok := g.breakers[model]; ok {
		return cb
	}

	threshold := uint32(g.settings.BreakerFailures)
	if threshold == 0 {
		threshold = 5
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        model,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			// Throttling and caller cancellation say nothing about backend health.
			return err == nil || errors.Is(err, llm.ErrRateLimited) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.logger.Warn("Gateway", "Circuit breaker state changed", map[string]interface{}{
				"model": name, "from": from.String(), "to": to.String(),
			})
		},
	})
	g.breakers[model] = cb
	return cb
}

// decodeOutput parses the model text into out and validates struct tags.
func decodeOutput(v *validator.Validate, content string, out any) error {
	if out == nil {
		return nil
	}
	raw := extractJSON(content)
	if raw == "" {
		return fmt.Errorf("empty model output")
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("decode model output: %w", err)
	}

	rv := reflect.ValueOf(out)
	for rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() == reflect.Struct {
		if err := v.Struct(out); err != nil {
			return fmt.Errorf("validate model output: %w", err)
		}
	}
	return nil
}

// extractJSON strips markdown fences and any prose around the outermost object.
func extractJSON(content string) string {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	if strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") {
		return s
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
