package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"ai-review-be/internal/config"
	"ai-review-be/internal/entity"
	"ai-review-be/internal/gateway"
	"ai-review-be/internal/pkg/logger"
	"ai-review-be/internal/review/progress"
	"ai-review-be/internal/review/reviewtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const briefingJSON = `{"summary":"A sleep study.","main_claims":["Sleep improves memory"]}`

func findingJSON(category, paragraphID, quote, severity string) string {
	return fmt.Sprintf(`{"findings":[{"title":"Issue","category":%q,"severity":%q,"description":"d","paragraph_id":%q,"quoted_text":%q}]}`,
		category, severity, paragraphID, quote)
}

func scripted() *reviewtest.Invoker {
	return reviewtest.NewInvoker().
		Reply(entity.AgentBriefing, briefingJSON).
		Reply(entity.AgentClarity, `{"findings":[
			{"title":"Agreement","category":"clarity_sentence","severity":"critical","paragraph_id":"p_001","quoted_text":"The results was"},
			{"title":"Tone","category":"clarity_sentence","severity":"minor","paragraph_id":"p_003","quoted_text":"We thank the sleep lab"}
		]}`).
		Reply(entity.AgentRigorFind, findingJSON("rigor_logic", "p_002", "Therefore sleep causes better memory in all populations.", "major")).
		Reply(entity.AgentRigorRewrite, `{"rewrites":[{"issue_index":0,"type":"suggestion","rationale":"r","suggestion":"Limit the claim to the sample"}]}`).
		Reply(entity.AgentAdversary, findingJSON("adversarial_weakness", "p_001", "results was very significant", "minor"))
}

func noEvidence() entity.ReviewConfig {
	cfg := entity.DefaultReviewConfig()
	cfg.EnableEvidence = false
	return cfg
}

func newOrchestrator(inv gateway.Invoker, settings config.ReviewSettings) *Orchestrator {
	return New(inv, &reviewtest.Searcher{Text: "t"}, nil, settings, logger.NewNopLogger())
}

func runJob(t *testing.T, ctx context.Context, o *Orchestrator, cfg entity.ReviewConfig) (*entity.ReviewJob, []progress.Event) {
	t.Helper()
	job := entity.NewReviewJob("doc-1", cfg)
	em := progress.NewEmitter(job.ID(), logger.NewNopLogger())

	done := make(chan struct{})
	go func() {
		defer close(done)
		o.Run(ctx, job, reviewtest.Document(t), em)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("orchestrator did not finish")
	}
	em.Close()
	return job, em.History()
}

func kinds(events []progress.Event, kind progress.Kind) []progress.Event {
	var out []progress.Event
	for _, e := range events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func TestRun_EndToEnd(t *testing.T) {
	inv := scripted()
	job, events := runJob(t, context.Background(), newOrchestrator(inv, config.DefaultReviewSettings()), noEvidence())

	snap := job.Snapshot()
	require.Equal(t, entity.JobCompleted, snap.Status)
	assert.Empty(t, snap.Error)

	var agents []entity.AgentID
	for _, f := range snap.Findings {
		agents = append(agents, f.Agent)
	}
	assert.Equal(t, []entity.AgentID{entity.AgentClarity, entity.AgentRigorRewrite, entity.AgentAdversary}, agents,
		"the clarity finding under the adversary anchor is dropped and the adversary comes last")
	assert.Equal(t, "p_003", snap.Findings[0].PrimaryAnchor().ParagraphID)
	require.NotNil(t, snap.Findings[1].ProposedEdit)
	assert.Equal(t, "Limit the claim to the sample", snap.Findings[1].ProposedEdit.Suggestion)

	assert.Len(t, inv.Calls(entity.AgentClarity), 1)
	assert.Len(t, inv.Calls(entity.AgentRigorFind), 1)
	assert.Empty(t, inv.Calls(entity.AgentEvidenceTargets))

	require.NotNil(t, snap.Summary)
	assert.Equal(t, 3, snap.Summary.TotalFindings)
	assert.Equal(t, 5, snap.Metrics.TotalCalls)

	for i, e := range events {
		assert.Equal(t, int64(i+1), e.Seq)
	}
	last := events[len(events)-1]
	assert.Equal(t, progress.KindReviewCompleted, last.Kind)
	assert.Equal(t, entity.JobCompleted, last.Status)
	assert.Equal(t, 3, *last.TotalFindings)

	assert.Len(t, kinds(events, progress.KindFindingDiscovered), 5, "two clarity, one rigor find, its rewrite and one adversary")
	assert.Len(t, kinds(events, progress.KindChunkCompleted), 2)
	assert.Empty(t, kinds(events, progress.KindError))

	var phases []string
	for _, e := range kinds(events, progress.KindPhaseStarted) {
		phases = append(phases, e.Phase)
	}
	assert.Equal(t, []string{progress.PhaseBriefing, progress.PhaseAnalysis, progress.PhaseCritique, progress.PhaseAssembly}, phases)

	for _, e := range kinds(events, progress.KindAgentCompleted) {
		if e.Agent == entity.AgentClarity {
			assert.Equal(t, 2, *e.FindingsCount)
			assert.InDelta(t, 0.001, e.CostUSD, 1e-9)
		}
	}
}

func TestRun_RewriteDoesNotDeadlockWhenFindFails(t *testing.T) {
	inv := scripted().Fail(entity.AgentRigorFind, errors.New("backend down"))

	job, events := runJob(t, context.Background(), newOrchestrator(inv, config.DefaultReviewSettings()), noEvidence())

	assert.Equal(t, entity.JobCompleted, job.Status())
	assert.Empty(t, inv.Calls(entity.AgentRigorRewrite))
	assert.Len(t, inv.Calls(entity.AgentAdversary), 1)

	errs := kinds(events, progress.KindError)
	require.Len(t, errs, 1)
	assert.Equal(t, entity.AgentRigorFind, errs[0].Agent)
	assert.True(t, *errs[0].Recoverable)
}

func TestRun_BriefingFailureIsFatal(t *testing.T) {
	inv := scripted().
		Fail(entity.AgentBriefing, errors.New("backend down")).
		Block(entity.AgentEvidenceTargets)

	job, events := runJob(t, context.Background(), newOrchestrator(inv, config.DefaultReviewSettings()), entity.DefaultReviewConfig())

	snap := job.Snapshot()
	assert.Equal(t, entity.JobFailed, snap.Status)
	assert.Contains(t, snap.Error, "briefing failed")
	assert.Empty(t, snap.Findings)
	assert.Empty(t, inv.Calls(entity.AgentClarity))
	assert.Empty(t, inv.Calls(entity.AgentAdversary))

	last := events[len(events)-1]
	assert.Equal(t, progress.KindError, last.Kind)
	assert.False(t, *last.Recoverable)
	assert.True(t, last.Terminal())
}

func TestRun_DeadlineCompletesWithSettledFindings(t *testing.T) {
	settings := config.DefaultReviewSettings()
	settings.JobDeadline = 200 * time.Millisecond
	inv := scripted().Block(entity.AgentClarity)

	job, events := runJob(t, context.Background(), newOrchestrator(inv, settings), noEvidence())

	snap := job.Snapshot()
	assert.Equal(t, entity.JobCompleted, snap.Status)
	require.NotEmpty(t, snap.Findings)
	for _, f := range snap.Findings {
		assert.NotEqual(t, entity.TrackClarity, f.Track())
	}

	var clarityFailed bool
	for _, e := range kinds(events, progress.KindError) {
		if e.Agent == entity.AgentClarity {
			clarityFailed = true
		}
	}
	assert.True(t, clarityFailed)
}

func TestRun_CancelKeepsPartialFindings(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	adversaryDone := make(chan struct{})
	inv := scripted().
		On(entity.AgentAdversary, func(context.Context, gateway.Request) (string, error) {
			defer close(adversaryDone)
			return findingJSON("adversarial_gap", "p_003", "older adults", "major"), nil
		}).
		On(entity.AgentClarity, func(callCtx context.Context, _ gateway.Request) (string, error) {
			<-adversaryDone
			cancel()
			<-callCtx.Done()
			return "", callCtx.Err()
		})

	job, events := runJob(t, ctx, newOrchestrator(inv, config.DefaultReviewSettings()), noEvidence())

	snap := job.Snapshot()
	assert.Equal(t, entity.JobFailed, snap.Status)
	assert.Equal(t, "cancelled", snap.Error)

	tracks := map[entity.Track]bool{}
	for _, f := range snap.Findings {
		tracks[f.Track()] = true
	}
	assert.True(t, tracks[entity.TrackRigor])
	assert.False(t, tracks[entity.TrackClarity])

	last := events[len(events)-1]
	assert.Equal(t, progress.KindReviewCompleted, last.Kind)
	assert.Equal(t, entity.JobFailed, last.Status)
}

func TestRun_CancelDuringBriefing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	inv := scripted().On(entity.AgentBriefing, func(callCtx context.Context, _ gateway.Request) (string, error) {
		cancel()
		<-callCtx.Done()
		return "", callCtx.Err()
	})

	job, events := runJob(t, ctx, newOrchestrator(inv, config.DefaultReviewSettings()), noEvidence())

	snap := job.Snapshot()
	assert.Equal(t, entity.JobFailed, snap.Status)
	assert.Equal(t, ErrCancelled.Error(), snap.Error)
	assert.Empty(t, snap.Findings)
	assert.Empty(t, inv.Calls(entity.AgentClarity))

	for _, e := range kinds(events, progress.KindError) {
		assert.True(t, *e.Recoverable, "cancellation is not reported as a fatal briefing failure")
	}
	last := events[len(events)-1]
	assert.Equal(t, progress.KindReviewCompleted, last.Kind)
	assert.Equal(t, entity.JobFailed, last.Status)
}

func TestRun_DisabledStagesAreSkipped(t *testing.T) {
	settings := config.DefaultReviewSettings()
	settings.EnableRigor = false
	settings.EnableClarity = false
	inv := scripted()

	job, _ := runJob(t, context.Background(), newOrchestrator(inv, settings), noEvidence())

	assert.Equal(t, entity.JobCompleted, job.Status())
	assert.Empty(t, inv.Calls(entity.AgentRigorFind))
	assert.Empty(t, inv.Calls(entity.AgentClarity))
	assert.Len(t, inv.Calls(entity.AgentAdversary), 1)
}

func TestRun_PanicInStageIsRecovered(t *testing.T) {
	inv := scripted().On(entity.AgentAdversary, func(context.Context, gateway.Request) (string, error) {
		panic("boom")
	})

	job, events := runJob(t, context.Background(), newOrchestrator(inv, config.DefaultReviewSettings()), noEvidence())

	assert.Equal(t, entity.JobCompleted, job.Status())
	var recovered bool
	for _, e := range kinds(events, progress.KindError) {
		if e.Agent == entity.AgentAdversary {
			recovered = true
			assert.Contains(t, e.Message, "panic: boom")
		}
	}
	assert.True(t, recovered)
}

func TestSignal(t *testing.T) {
	s := NewSignal()
	assert.False(t, s.Released())

	waiters := make(chan error, 3)
	for i := 0; i < 3; i++ {
		go func() { waiters <- s.Wait(context.Background()) }()
	}
	s.Release()
	s.Release()
	for i := 0; i < 3; i++ {
		assert.NoError(t, <-waiters)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NewSignal().Wait(ctx), context.Canceled)
}

func TestFindingSet_Replace(t *testing.T) {
	set := NewFindingSet()
	a := entity.Finding{ID: "a", Title: "old"}
	set.Add(a, entity.Finding{ID: "b"})

	a.Title = "new"
	set.Replace(a)
	set.Replace(entity.Finding{ID: "c"})

	got := set.Snapshot()
	require.Len(t, got, 3)
	assert.Equal(t, "new", got[0].Title)
	assert.Equal(t, "c", got[2].ID)
}
