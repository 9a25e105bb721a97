package adversary

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"ai-review-be/internal/config"
	"ai-review-be/internal/entity"
	"ai-review-be/internal/gateway"
	"ai-review-be/internal/metrics"
	"ai-review-be/internal/pkg/logger"
	"ai-review-be/internal/review/prompt"
	"ai-review-be/internal/review/reviewtest"
	"ai-review-be/internal/review/stage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var panel = []config.PanelBackend{
	{Name: "claude", Model: "model-a"},
	{Name: "openai", Model: "model-b"},
	{Name: "google", Model: "model-c"},
}

func testDeps(inv gateway.Invoker) stage.Deps {
	return stage.Deps{
		Invoker:  inv,
		Composer: prompt.NewComposer(entity.DefaultReviewConfig()),
		Metrics:  metrics.NewAggregator(),
		Logger:   logger.NewNopLogger(),
		Settings: config.DefaultReviewSettings(),
	}
}

func critiqueJSON(title, paragraphID, quote, severity string) string {
	return fmt.Sprintf(`{"title":%q,"category":"adversarial_weakness","severity":%q,"description":"d","paragraph_id":%q,"quoted_text":%q,"suggestion":"s","rationale":"r","citations":["https://a.example"]}`,
		title, severity, paragraphID, quote)
}

func TestSingle(t *testing.T) {
	doc := reviewtest.Document(t)
	inv := reviewtest.NewInvoker().Reply(entity.AgentAdversary, `{"findings":[`+
		critiqueJSON("Causal claim", "p_002", "Therefore sleep causes better memory", "major")+`]}`)

	findings, err := Single(context.Background(), testDeps(inv), Input{Doc: doc, Evidence: entity.EmptyEvidence()})
	require.NoError(t, err)
	require.Len(t, findings, 1)

	f := findings[0]
	assert.Equal(t, entity.AgentAdversary, f.Agent)
	assert.Nil(t, f.Votes)
	assert.Equal(t, []string{"https://a.example"}, f.Citations)
	require.NotNil(t, f.ProposedEdit)
	assert.Equal(t, "s", f.ProposedEdit.Suggestion)

	calls := inv.Calls(entity.AgentAdversary)
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Payload, "No external evidence found.")
}

func TestPanel_VoteCounting(t *testing.T) {
	doc := reviewtest.Document(t)
	inv := reviewtest.NewInvoker().On(entity.AgentAdversaryPanel, func(_ context.Context, req gateway.Request) (string, error) {
		shared := critiqueJSON("Causal overreach from "+req.Model, "p_002", "sleep causes better memory", "major")
		if req.Model == "model-b" {
			disjoint := critiqueJSON("Missing acknowledgements context", "p_003", "older adults", "critical")
			return `{"findings":[` + shared + `,` + disjoint + `]}`, nil
		}
		return `{"findings":[` + shared + `]}`, nil
	})

	findings, err := Panel(context.Background(), testDeps(inv), Input{Doc: doc, Evidence: entity.EmptyEvidence()}, panel)
	require.NoError(t, err)
	require.Len(t, findings, 2)

	byParagraph := map[string]entity.Finding{}
	for _, f := range findings {
		assert.Equal(t, entity.AgentAdversaryPanel, f.Agent)
		byParagraph[f.PrimaryAnchor().ParagraphID] = f
	}
	assert.Equal(t, 3, byParagraph["p_002"].VoteCount())
	assert.Equal(t, 1, byParagraph["p_003"].VoteCount())
	assert.Equal(t, "openai", byParagraph["p_003"].Backend)
}

func TestPanel_FailedBackendExcludedFromVote(t *testing.T) {
	doc := reviewtest.Document(t)
	inv := reviewtest.NewInvoker().On(entity.AgentAdversaryPanel, func(_ context.Context, req gateway.Request) (string, error) {
		if req.Model == "model-c" {
			return "", context.DeadlineExceeded
		}
		return `{"findings":[` + critiqueJSON("Overreach", "p_002", "sleep causes", "major") + `]}`, nil
	})

	findings, err := Panel(context.Background(), testDeps(inv), Input{Doc: doc, Evidence: entity.EmptyEvidence()}, panel)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, 2, findings[0].VoteCount())
}

func TestPanel_AllBackendsFailed(t *testing.T) {
	inv := reviewtest.NewInvoker().Fail(entity.AgentAdversaryPanel, errors.New("down"))
	_, err := Panel(context.Background(), testDeps(inv), Input{Doc: reviewtest.Document(t)}, panel)
	assert.Error(t, err)
}

func candidate(t *testing.T, doc *entity.Document, backend, title, paragraphID, quote string, sev entity.Severity, conf float64) entity.Finding {
	t.Helper()
	f, err := entity.NewFinding(entity.FindingParams{
		ID:    backend + "-" + title,
		Agent: entity.AgentAdversaryPanel, Category: entity.CategoryAdversarialWeakness,
		Severity: sev, Confidence: &conf, Title: title, Backend: backend,
		Anchors: []entity.Anchor{{ParagraphID: paragraphID, QuotedText: quote}},
	})
	require.NoError(t, err)
	f, reason := stage.ValidateAnchors(doc, f, nil)
	require.Empty(t, reason)
	return f
}

func TestReconcile_OrderIndependent(t *testing.T) {
	doc := reviewtest.Document(t)
	candidates := []entity.Finding{
		candidate(t, doc, "claude", "A", "p_002", "sleep causes better", entity.SeverityMajor, 0.7),
		candidate(t, doc, "openai", "B", "p_002", "causes better memory", entity.SeverityCritical, 0.6),
		candidate(t, doc, "google", "C", "p_002", "better memory in all", entity.SeverityCritical, 0.9),
		candidate(t, doc, "google", "D", "p_001", "very significant", entity.SeverityMinor, 0.8),
		candidate(t, doc, "claude", "E", "p_003", "older adults", entity.SeverityMajor, 0.8),
	}

	summarize := func(clusters []Cluster) []string {
		var out []string
		for _, c := range clusters {
			out = append(out, fmt.Sprintf("%s:%d:%d", c.Representative.ID, c.Votes, len(c.Members)))
		}
		return out
	}

	want := summarize(Reconcile(candidates))
	assert.Equal(t, []string{"google-D:1:1", "google-C:3:3", "claude-E:1:1"}, want)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := append([]entity.Finding(nil), candidates...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, want, summarize(Reconcile(shuffled)))
	}
}

func TestReconcile_ChainedOverlapsDoNotMerge(t *testing.T) {
	doc := reviewtest.Document(t)
	clusters := Reconcile([]entity.Finding{
		candidate(t, doc, "claude", "A", "p_002", "Therefore sleep", entity.SeverityMajor, 0.8),
		candidate(t, doc, "openai", "B", "p_002", "sleep causes better", entity.SeverityMajor, 0.8),
		candidate(t, doc, "google", "C", "p_002", "better memory", entity.SeverityMajor, 0.8),
	})

	require.Len(t, clusters, 2)
	assert.Equal(t, 2, clusters[0].Votes)
	assert.Len(t, clusters[0].Members, 2)
	assert.Equal(t, 1, clusters[1].Votes)
	assert.Equal(t, "google-C", clusters[1].Representative.ID)
}

func TestReconcile_SameBackendCountsOnce(t *testing.T) {
	doc := reviewtest.Document(t)
	clusters := Reconcile([]entity.Finding{
		candidate(t, doc, "claude", "A", "p_002", "sleep causes", entity.SeverityMajor, 0.8),
		candidate(t, doc, "claude", "B", "p_002", "causes better", entity.SeverityMajor, 0.8),
	})
	require.Len(t, clusters, 1)
	assert.Equal(t, 1, clusters[0].Votes)
}

func TestPanel_ModelWordingPass(t *testing.T) {
	doc := reviewtest.Document(t)
	inv := reviewtest.NewInvoker().
		On(entity.AgentAdversaryPanel, func(_ context.Context, req gateway.Request) (string, error) {
			return `{"findings":[` + critiqueJSON("From "+req.Model, "p_002", "sleep causes", "major") + `]}`, nil
		}).
		Reply(entity.AgentAdversaryReconcile, `{"clusters":[{"cluster_index":0,"title":"Merged title","description":"Merged description"},{"cluster_index":5,"title":"ignored"}]}`)

	deps := testDeps(inv)
	deps.Settings.PanelReconcileWithModel = true

	findings, err := Panel(context.Background(), deps, Input{Doc: doc, Evidence: entity.EmptyEvidence()}, panel)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "Merged title", findings[0].Title)
	assert.Equal(t, "Merged description", findings[0].Description)
	assert.Equal(t, 3, findings[0].VoteCount())
}

func TestPanel_ModelWordingFailureKeepsVotes(t *testing.T) {
	doc := reviewtest.Document(t)
	inv := reviewtest.NewInvoker().
		On(entity.AgentAdversaryPanel, func(_ context.Context, req gateway.Request) (string, error) {
			return `{"findings":[` + critiqueJSON("From "+req.Model, "p_002", "sleep causes", "major") + `]}`, nil
		}).
		Fail(entity.AgentAdversaryReconcile, errors.New("down"))

	deps := testDeps(inv)
	deps.Settings.PanelReconcileWithModel = true

	findings, err := Panel(context.Background(), deps, Input{Doc: doc, Evidence: entity.EmptyEvidence()}, panel)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, 3, findings[0].VoteCount())
	assert.Contains(t, findings[0].Title, "From model-")
}
