package orchestrator

import (
	"context"
	"sync"

	"ai-review-be/internal/entity"
)

// Signal is a one-shot event any number of goroutines can wait on.
type Signal struct {
	once sync.Once
	ch   chan struct{}
}

func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{})}
}

// Release wakes every waiter. Later calls are no-ops.
func (s *Signal) Release() {
	s.once.Do(func() { close(s.ch) })
}

// Wait blocks until the signal is released or ctx ends.
func (s *Signal) Wait(ctx context.Context) error {
	select {
	case <-s.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Signal) Released() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}

// WaitAll waits for every signal, giving up when ctx ends.
func WaitAll(ctx context.Context, signals ...*Signal) error {
	for _, s := range signals {
		if err := s.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// FindingSet accumulates the findings of a job from concurrent stages.
type FindingSet struct {
	mu       sync.Mutex
	findings []entity.Finding
	index    map[string]int
}

func NewFindingSet() *FindingSet {
	return &FindingSet{index: make(map[string]int)}
}

func (s *FindingSet) Add(findings ...entity.Finding) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range findings {
		s.index[f.ID] = len(s.findings)
		s.findings = append(s.findings, f)
	}
}

// Replace swaps the finding with the same id in place, appending it when the
// id is unknown.
func (s *FindingSet) Replace(f entity.Finding) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.index[f.ID]; ok {
		s.findings[i] = f
		return
	}
	s.index[f.ID] = len(s.findings)
	s.findings = append(s.findings, f)
}

func (s *FindingSet) Snapshot() []entity.Finding {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entity.Finding(nil), s.findings...)
}

func (s *FindingSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.findings)
}
