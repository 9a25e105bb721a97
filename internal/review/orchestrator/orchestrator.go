// Package orchestrator runs one review job: it launches the stages as their
// inputs become available, collects their findings and assembles the result.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"ai-review-be/internal/config"
	"ai-review-be/internal/entity"
	"ai-review-be/internal/gateway"
	"ai-review-be/internal/metrics"
	"ai-review-be/internal/pkg/logger"
	"ai-review-be/internal/review/adversary"
	"ai-review-be/internal/review/assembler"
	"ai-review-be/internal/review/briefing"
	"ai-review-be/internal/review/clarity"
	"ai-review-be/internal/review/evidence"
	"ai-review-be/internal/review/progress"
	"ai-review-be/internal/review/prompt"
	"ai-review-be/internal/review/rigor"
	"ai-review-be/internal/review/stage"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "ai-review-be/orchestrator"

// ErrCancelled is recorded on jobs stopped by their caller.
var ErrCancelled = errors.New("cancelled")

type Orchestrator struct {
	invoker  gateway.Invoker
	searcher gateway.Searcher
	panel    []config.PanelBackend
	settings config.ReviewSettings
	logger   logger.ILogger
	tracer   trace.Tracer
}

func New(invoker gateway.Invoker, searcher gateway.Searcher, panel []config.PanelBackend, settings config.ReviewSettings, log logger.ILogger) *Orchestrator {
	return &Orchestrator{
		invoker:  invoker,
		searcher: searcher,
		panel:    panel,
		settings: settings,
		logger:   log,
		tracer:   otel.Tracer(tracerName),
	}
}

// run is the state of one job while it executes.
type run struct {
	o        *Orchestrator
	job      *entity.ReviewJob
	doc      *entity.Document
	deps     stage.Deps
	emit     *progress.Emitter
	findings *FindingSet

	briefing *entity.BriefingOutput

	mu       sync.Mutex
	rigor    []entity.Finding
	evidence entity.EvidenceBundle
}

// Run executes the job to a terminal state and returns it. Cancelling ctx
// fails the job but keeps the findings of stages that already settled; the
// job deadline instead completes it with whatever finished in time.
func (o *Orchestrator) Run(ctx context.Context, job *entity.ReviewJob, doc *entity.Document, emit *progress.Emitter) *entity.ReviewJob {
	cfg := job.Config()
	ctx, span := o.tracer.Start(ctx, "review.job", trace.WithAttributes(
		attribute.String("job.id", job.ID().String()),
		attribute.String("document.id", doc.ID()),
		attribute.Bool("config.panel_mode", cfg.PanelMode),
		attribute.String("config.depth", string(cfg.Depth)),
	))
	defer span.End()

	if err := job.Transition(entity.JobRunning); err != nil {
		o.logger.Error("Orchestrator", "Job cannot start", map[string]interface{}{"job_id": job.ID().String(), "error": err.Error()})
		return job
	}

	r := &run{
		o:   o,
		job: job,
		doc: doc,
		deps: stage.Deps{
			Invoker:  o.invoker,
			Searcher: o.searcher,
			Composer: prompt.NewComposer(cfg),
			Metrics:  metrics.NewAggregator(),
			Logger:   o.logger,
			Settings: o.settings,
		},
		emit:     emit,
		findings: NewFindingSet(),
		evidence: entity.EmptyEvidence(),
	}

	started := time.Now()
	o.logger.Info("Orchestrator", "Review started", map[string]interface{}{
		"job_id":     job.ID().String(),
		"paragraphs": len(doc.Paragraphs()),
		"words":      doc.WordCount(),
		"panel_mode": cfg.PanelMode,
	})

	runCtx := ctx
	if o.settings.JobDeadline > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, o.settings.JobDeadline)
		defer cancel()
	}

	if status := r.execute(runCtx); status != entity.JobFailed {
		switch {
		case ctx.Err() != nil:
			status = entity.JobFailed
			job.SetError(ErrCancelled.Error())
			span.SetStatus(codes.Error, ErrCancelled.Error())
		case runCtx.Err() != nil:
			r.emit.Emit(progress.Error("", "job deadline exceeded, unfinished stages were dropped", true))
			o.logger.Warn("Orchestrator", "Job deadline exceeded", map[string]interface{}{
				"job_id": job.ID().String(), "deadline": o.settings.JobDeadline.String(),
			})
		}
		r.assemble(status)
	}

	o.logger.Info("Orchestrator", "Review finished", map[string]interface{}{
		"job_id":     job.ID().String(),
		"status":     string(job.Status()),
		"elapsed_ms": time.Since(started).Milliseconds(),
		"cost_usd":   r.deps.Metrics.Summary().TotalCostUSD,
	})
	return job
}

// execute runs every stage. It returns JobFailed only for a fatal briefing
// failure, in which case the job is already finalized. A briefing stopped by
// the caller is left to Run, which records the cancellation.
func (r *run) execute(ctx context.Context) entity.JobStatus {
	cfg := r.job.Config()
	settings := r.o.settings

	rigorReady := NewSignal()
	evidenceReady := NewSignal()

	var analysis, critique sync.WaitGroup

	evidenceCtx, cancelEvidence := context.WithCancel(ctx)
	defer cancelEvidence()

	if settings.EnableEvidence && cfg.EnableEvidence {
		analysis.Add(1)
		go func() {
			defer analysis.Done()
			defer evidenceReady.Release()
			r.runEvidence(evidenceCtx)
		}()
	} else {
		r.skip(entity.AgentEvidence)
		evidenceReady.Release()
	}

	r.emit.Emit(progress.PhaseStarted(progress.PhaseBriefing))
	if err := r.runBriefing(ctx); err != nil {
		cancelEvidence()
		analysis.Wait()
		if errors.Is(ctx.Err(), context.Canceled) {
			return entity.JobCompleted
		}
		r.fail(err)
		return entity.JobFailed
	}
	r.emit.Emit(progress.PhaseCompleted(progress.PhaseBriefing))
	r.emit.Emit(progress.PhaseStarted(progress.PhaseAnalysis))

	if settings.EnableClarity {
		analysis.Add(1)
		go func() {
			defer analysis.Done()
			r.runClarity(ctx)
		}()
	} else {
		r.skip(entity.AgentClarity)
	}

	if settings.EnableRigor {
		analysis.Add(2)
		go func() {
			defer analysis.Done()
			defer rigorReady.Release()
			r.runRigorFind(ctx)
		}()
		go func() {
			defer analysis.Done()
			if err := rigorReady.Wait(ctx); err != nil {
				return
			}
			r.runRigorRewrite(ctx)
		}()
	} else {
		r.skip(entity.AgentRigorFind)
		rigorReady.Release()
	}

	if settings.EnableAdversary {
		critique.Add(1)
		go func() {
			defer critique.Done()
			if err := WaitAll(ctx, rigorReady, evidenceReady); err != nil {
				return
			}
			r.emit.Emit(progress.PhaseStarted(progress.PhaseCritique))
			r.runAdversary(ctx)
			r.emit.Emit(progress.PhaseCompleted(progress.PhaseCritique))
		}()
	} else {
		r.skip(entity.AgentAdversary)
	}

	analysis.Wait()
	r.emit.Emit(progress.PhaseCompleted(progress.PhaseAnalysis))
	critique.Wait()
	return entity.JobCompleted
}

// boundary runs one stage: it emits the start and completion events, turns
// errors and panics into recoverable error events and opens a span.
// metricAgents are the agents whose calls count towards the stage's cost.
func (r *run) boundary(ctx context.Context, agent entity.AgentID, fn func(ctx context.Context) (int, error), metricAgents ...entity.AgentID) {
	ctx, span := r.o.tracer.Start(ctx, "review.stage."+agent.String(), trace.WithAttributes(
		attribute.String("job.id", r.job.ID().String()),
		attribute.String("agent.id", agent.String()),
	))
	defer span.End()

	r.emit.Emit(progress.AgentStarted(agent))
	started := time.Now()

	n, err := r.guard(ctx, agent, fn)

	usage := r.usage(agent, metricAgents)
	usage.TimeMs = float64(time.Since(started).Microseconds()) / 1000
	details := map[string]interface{}{
		"job_id":   r.job.ID().String(),
		"agent_id": agent.String(),
		"elapsed":  time.Since(started).String(),
		"cost_usd": usage.CostUSD,
		"findings": n,
	}

	if err != nil {
		n = 0
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		details["error"] = err.Error()
		r.o.logger.Warn("Orchestrator", "Stage failed", details)
		r.emit.Emit(progress.Error(agent, fmt.Sprintf("%s failed: %v", agent, err), true))
	} else {
		r.o.logger.Info("Orchestrator", "Stage done", details)
	}
	span.SetAttributes(attribute.Int("findings", n), attribute.Float64("cost_usd", usage.CostUSD))
	r.emit.Emit(progress.AgentCompleted(agent, n, usage))
}

func (r *run) guard(ctx context.Context, agent entity.AgentID, fn func(ctx context.Context) (int, error)) (n int, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.o.logger.Error("Orchestrator", "Stage panicked", map[string]interface{}{
				"agent_id": agent.String(),
				"panic":    fmt.Sprint(p),
				"stack":    string(debug.Stack()),
			})
			n, err = 0, fmt.Errorf("panic: %v", p)
		}
	}()
	return fn(ctx)
}

func (r *run) usage(agent entity.AgentID, metricAgents []entity.AgentID) entity.AgentBreakdown {
	if len(metricAgents) == 0 {
		metricAgents = []entity.AgentID{agent}
	}
	total := entity.AgentBreakdown{Agent: agent}
	for _, a := range metricAgents {
		b := r.deps.Metrics.ForAgent(a)
		total.Calls += b.Calls
		total.CostUSD += b.CostUSD
		total.InputTokens += b.InputTokens
		total.OutputTokens += b.OutputTokens
	}
	return total
}

func (r *run) skip(agent entity.AgentID) {
	r.o.logger.Info("Orchestrator", "Stage skipped", map[string]interface{}{
		"job_id": r.job.ID().String(), "agent_id": agent.String(),
	})
}

func (r *run) add(findings []entity.Finding) {
	r.findings.Add(findings...)
	for _, f := range findings {
		r.emit.Emit(progress.FindingDiscovered(f))
	}
}

func (r *run) onChunk(res stage.ChunkResult) {
	r.add(res.Findings)
	r.emit.Emit(progress.ChunkCompleted(res.Agent, res.Index, res.Total, len(res.Findings), res.Err != nil))
}

func (r *run) runBriefing(ctx context.Context) error {
	ctx, span := r.o.tracer.Start(ctx, "review.stage.briefing")
	defer span.End()

	r.emit.Emit(progress.AgentStarted(entity.AgentBriefing))
	started := time.Now()

	var brief *entity.BriefingOutput
	_, err := r.guard(ctx, entity.AgentBriefing, func(ctx context.Context) (int, error) {
		var err error
		brief, err = briefing.Run(ctx, r.deps, r.doc)
		return 0, err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	r.briefing = brief
	usage := r.usage(entity.AgentBriefing, nil)
	usage.TimeMs = float64(time.Since(started).Microseconds()) / 1000
	r.o.logger.Info("Orchestrator", "Stage done", map[string]interface{}{
		"job_id":   r.job.ID().String(),
		"agent_id": entity.AgentBriefing.String(),
		"elapsed":  time.Since(started).String(),
		"cost_usd": usage.CostUSD,
	})
	r.emit.Emit(progress.AgentCompleted(entity.AgentBriefing, 0, usage))
	return nil
}

func (r *run) runEvidence(ctx context.Context) {
	r.boundary(ctx, entity.AgentEvidence, func(ctx context.Context) (int, error) {
		res, err := evidence.Run(ctx, r.deps, r.doc)
		r.mu.Lock()
		r.evidence = res.Bundle
		r.mu.Unlock()
		r.job.SetEvidence(res.Bundle)
		if err != nil {
			return 0, err
		}
		r.add(res.Findings)
		return len(res.Findings), nil
	}, entity.AgentEvidenceTargets, entity.AgentEvidenceQueries, entity.AgentEvidenceSearch, entity.AgentEvidenceSynthesis)
}

func (r *run) runClarity(ctx context.Context) {
	r.boundary(ctx, entity.AgentClarity, func(ctx context.Context) (int, error) {
		findings, err := clarity.Run(ctx, r.deps, r.doc, r.briefing, r.job.Config().Depth, r.onChunk)
		return len(findings), err
	})
}

func (r *run) runRigorFind(ctx context.Context) {
	r.boundary(ctx, entity.AgentRigorFind, func(ctx context.Context) (int, error) {
		findings, err := rigor.Find(ctx, r.deps, r.doc, r.briefing, r.onChunk)
		r.mu.Lock()
		r.rigor = findings
		r.mu.Unlock()
		return len(findings), err
	})
}

func (r *run) runRigorRewrite(ctx context.Context) {
	r.mu.Lock()
	found := append([]entity.Finding(nil), r.rigor...)
	r.mu.Unlock()
	if len(found) == 0 {
		r.skip(entity.AgentRigorRewrite)
		return
	}

	r.boundary(ctx, entity.AgentRigorRewrite, func(ctx context.Context) (int, error) {
		rewritten, err := rigor.Rewrite(ctx, r.deps, r.doc, found)
		for _, f := range rewritten {
			r.findings.Replace(f)
			r.emit.Emit(progress.FindingDiscovered(f))
		}
		return len(rewritten), err
	})
}

func (r *run) runAdversary(ctx context.Context) {
	r.mu.Lock()
	in := adversary.Input{
		Doc:      r.doc,
		Briefing: r.briefing,
		Rigor:    append([]entity.Finding(nil), r.rigor...),
		Evidence: r.evidence,
	}
	r.mu.Unlock()

	if r.job.Config().PanelMode {
		r.boundary(ctx, entity.AgentAdversaryPanel, func(ctx context.Context) (int, error) {
			findings, err := adversary.Panel(ctx, r.deps, in, r.o.panel)
			r.add(findings)
			return len(findings), err
		}, entity.AgentAdversaryPanel, entity.AgentAdversaryReconcile)
		return
	}

	r.boundary(ctx, entity.AgentAdversary, func(ctx context.Context) (int, error) {
		findings, err := adversary.Single(ctx, r.deps, in)
		r.add(findings)
		return len(findings), err
	})
}

// fail finalizes a job whose briefing could not be produced.
func (r *run) fail(err error) {
	msg := fmt.Sprintf("briefing failed: %v", err)
	r.o.logger.Error("Orchestrator", "Review aborted", map[string]interface{}{
		"job_id": r.job.ID().String(), "error": err.Error(),
	})

	r.job.SetError(msg)
	r.job.SetResult(nil, assembler.Summarize(nil), r.deps.Metrics.Summary())
	if terr := r.job.Transition(entity.JobFailed); terr != nil {
		r.o.logger.Error("Orchestrator", "Job transition failed", map[string]interface{}{"error": terr.Error()})
	}
	r.emit.Emit(progress.Error(entity.AgentBriefing, msg, false))
}

// assemble resolves the collected findings and moves the job to status.
func (r *run) assemble(status entity.JobStatus) {
	r.emit.Emit(progress.PhaseStarted(progress.PhaseAssembly))

	raw := r.findings.Snapshot()
	final := assembler.Assemble(raw, assembler.Options{
		StrictSentenceOverlap: r.o.settings.StrictSentenceOverlap,
		ParagraphIndex:        assembler.ParagraphIndex(r.doc),
	})
	summary := assembler.Summarize(final)
	metricsSummary := r.deps.Metrics.Summary()

	r.job.SetResult(final, summary, metricsSummary)
	r.o.logger.Info("Orchestrator", "Findings assembled", map[string]interface{}{
		"job_id":  r.job.ID().String(),
		"raw":     len(raw),
		"kept":    len(final),
		"removed": len(raw) - len(final),
	})
	r.emit.Emit(progress.PhaseCompleted(progress.PhaseAssembly))

	if err := r.job.Transition(status); err != nil {
		r.o.logger.Error("Orchestrator", "Job transition failed", map[string]interface{}{"error": err.Error()})
	}
	r.emit.Emit(progress.ReviewCompleted(status, len(final), summary, metricsSummary))
}
