package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"ai-review-be/internal/cli/render"
	"ai-review-be/internal/entity"
	"ai-review-be/internal/review/progress"
	"ai-review-be/pkg/events"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchHandler(t *testing.T) {
	color.NoColor = true
	jobID := uuid.New()

	ev := func(id uuid.UUID, seq int64, e progress.Event) events.Event {
		e.JobID = id
		e.Seq = seq
		return e
	}

	var buf bytes.Buffer
	done := 0
	handler := WatchHandler(render.NewPrinter(&buf, false), jobID, func() { done++ })

	ctx := context.Background()
	require.NoError(t, handler(ctx, ev(uuid.New(), 1, progress.PhaseStarted(progress.PhaseBriefing))))
	require.NoError(t, handler(ctx, ev(jobID, 1, progress.PhaseStarted(progress.PhaseAnalysis))))
	require.NoError(t, handler(ctx, events.Received{Type: "other", Data: map[string]interface{}{"seq": "not a number"}}))
	assert.Equal(t, 0, done)

	require.NoError(t, handler(ctx, ev(jobID, 2, progress.ReviewCompleted(entity.JobCompleted, 0, entity.ReviewSummary{}, entity.MetricsSummary{}))))
	assert.Equal(t, 1, done)

	out := buf.String()
	assert.Contains(t, out, "== analysis ==")
	assert.NotContains(t, out, "== briefing ==")
	assert.Contains(t, out, "review completed: 0 findings")
}

func TestRunOptions_ReviewConfig(t *testing.T) {
	cfg, err := RunOptions{Depth: "quick", Panel: true, NoEvidence: true, Focus: []string{"methods"}}.reviewConfig()
	require.NoError(t, err)
	assert.Equal(t, entity.DepthQuick, cfg.Depth)
	assert.True(t, cfg.PanelMode)
	assert.False(t, cfg.EnableEvidence)
	assert.Equal(t, []string{"methods"}, cfg.FocusHints)

	_, err = RunOptions{Depth: "bottomless"}.reviewConfig()
	assert.Error(t, err)
}

func TestReadDocument(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "doc.json")
	require.NoError(t, os.WriteFile(good, []byte(`{"id":"d","title":"T","sections":[{"id":"s1","paragraphs":[{"id":"p1","text":"Hello."}]}]}`), 0o644))
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"id":`), 0o644))

	doc, err := ReadDocument(good)
	require.NoError(t, err)
	assert.Equal(t, "d", doc.ID())
	assert.Len(t, doc.Paragraphs(), 1)

	_, err = ReadDocument(bad)
	assert.Error(t, err)
	_, err = ReadDocument(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestModelsCmd(t *testing.T) {
	cmd := ModelsCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs(nil)

	require.NoError(t, cmd.Execute())
	out := buf.String()
	assert.Contains(t, out, "AGENT")
	for _, agent := range entity.AllAgents() {
		assert.Contains(t, out, string(agent))
	}
	assert.Contains(t, out, "panel:")
}

func TestPruneCmd_Validation(t *testing.T) {
	tests := []struct {
		name string
		args []string
		env  string
		want string
	}{
		{"non-positive age", []string{"--older-than", "0s"}, "postgres://x", "--older-than must be positive"},
		{"no database", []string{"--older-than", "24h"}, "", "DB_CONNECTION_STRING is not set"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DB_CONNECTION_STRING", tt.env)
			cmd := PruneCmd()
			cmd.SetArgs(tt.args)
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})
			err := cmd.Execute()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
