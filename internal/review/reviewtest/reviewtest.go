// Package reviewtest provides documents and scripted gateways for pipeline tests.
package reviewtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"ai-review-be/internal/entity"
	"ai-review-be/internal/gateway"

	"github.com/stretchr/testify/require"
)

// Paragraph joins sentences with a single space and records their offsets.
// Sentence ids are "<id>_s<n>".
func Paragraph(id string, sentences ...string) entity.Paragraph {
	p := entity.Paragraph{ID: id}
	var sb strings.Builder
	for i, s := range sentences {
		if i > 0 {
			sb.WriteString(" ")
		}
		start := sb.Len()
		sb.WriteString(s)
		p.Sentences = append(p.Sentences, entity.Sentence{
			ID:    fmt.Sprintf("%s_s%d", id, i+1),
			Text:  s,
			Start: start,
			End:   sb.Len(),
		})
	}
	p.Text = sb.String()
	return p
}

// Document is a three paragraph, single section document.
func Document(t testing.TB) *entity.Document {
	t.Helper()
	doc, err := entity.NewDocument("doc-1", "Sleep and Memory", []entity.Section{{
		ID:    "sec_1",
		Title: "Introduction",
		Paragraphs: []entity.Paragraph{
			Paragraph("p_001",
				"We studied the effect of sleep on memory consolidation in adults.",
				"The results was very significant and shows a clear effect."),
			Paragraph("p_002",
				"Participants slept either four or eight hours before testing.",
				"Therefore sleep causes better memory in all populations."),
			Paragraph("p_003",
				"Future work should examine older adults.",
				"We thank the sleep lab for their support."),
		},
	}})
	require.NoError(t, err)
	return doc
}

// Handler produces the raw model text for a request.
type Handler func(ctx context.Context, req gateway.Request) (string, error)

// Invoker is a scripted gateway.Invoker keyed by agent.
type Invoker struct {
	mu       sync.Mutex
	handlers map[entity.AgentID]Handler
	calls    []gateway.Request
}

var _ gateway.Invoker = (*Invoker)(nil)

func NewInvoker() *Invoker {
	return &Invoker{handlers: make(map[entity.AgentID]Handler)}
}

func (f *Invoker) On(agent entity.AgentID, h Handler) *Invoker {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[agent] = h
	return f
}

func (f *Invoker) Reply(agent entity.AgentID, content string) *Invoker {
	return f.On(agent, func(context.Context, gateway.Request) (string, error) {
		return content, nil
	})
}

func (f *Invoker) Fail(agent entity.AgentID, err error) *Invoker {
	return f.On(agent, func(context.Context, gateway.Request) (string, error) {
		return "", err
	})
}

// Block makes the agent wait until its context ends.
func (f *Invoker) Block(agent entity.AgentID) *Invoker {
	return f.On(agent, func(ctx context.Context, _ gateway.Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
}

func (f *Invoker) Invoke(ctx context.Context, req gateway.Request, out any) (entity.CallMetrics, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	h := f.handlers[req.Agent]
	f.mu.Unlock()

	model := req.Model
	if model == "" {
		model = "fake-model"
	}
	m := entity.CallMetrics{
		Agent:        req.Agent,
		Model:        model,
		InputTokens:  100,
		OutputTokens: 50,
		Duration:     time.Millisecond,
		TimeMs:       1,
		CostUSD:      0.001,
		ChunkIndex:   req.ChunkIndex,
		ChunkTotal:   req.ChunkTotal,
		Timestamp:    time.Now(),
	}

	if h == nil {
		return m, &gateway.Error{Kind: gateway.KindTransport, Agent: req.Agent, Model: model, Err: errors.New("no scripted reply")}
	}
	content, err := h(ctx, req)
	if err != nil {
		var gerr *gateway.Error
		if errors.As(err, &gerr) {
			return m, err
		}
		kind := gateway.KindTransport
		if errors.Is(err, context.DeadlineExceeded) {
			kind = gateway.KindTimeout
		}
		return m, &gateway.Error{Kind: kind, Agent: req.Agent, Model: model, Err: err}
	}
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return m, &gateway.Error{Kind: gateway.KindSchemaInvalid, Agent: req.Agent, Model: model, Err: err}
	}
	return m, nil
}

// Calls returns the requests made for agent, in call order.
func (f *Invoker) Calls(agent entity.AgentID) []gateway.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []gateway.Request
	for _, c := range f.calls {
		if c.Agent == agent {
			out = append(out, c)
		}
	}
	return out
}

// Searcher answers every query with the same text unless a failure is scripted for it.
type Searcher struct {
	mu     sync.Mutex
	Text   string
	URL    string
	Failed map[string]bool
	seen   []string
}

var _ gateway.Searcher = (*Searcher)(nil)

func (s *Searcher) Search(_ context.Context, q entity.SearchQuery) (entity.SearchResult, entity.CallMetrics, error) {
	s.mu.Lock()
	s.seen = append(s.seen, q.ID)
	failed := s.Failed[q.ID]
	s.mu.Unlock()

	m := entity.CallMetrics{Agent: entity.AgentEvidenceSearch, Model: "sonar", Duration: time.Millisecond, TimeMs: 1, Timestamp: time.Now()}
	if failed {
		err := &gateway.Error{Kind: gateway.KindTransport, Agent: entity.AgentEvidenceSearch, Model: m.Model, Err: errors.New("scripted failure")}
		return entity.SearchResult{QueryID: q.ID, Failed: true, Error: err.Error()}, m, err
	}
	res := entity.SearchResult{QueryID: q.ID, Text: s.Text}
	if s.URL != "" {
		res.Citations = []entity.SourceSnippet{{QueryID: q.ID, URL: s.URL, Title: "Source for " + q.ID}}
	}
	return res, m, nil
}

func (s *Searcher) Queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.seen...)
}
