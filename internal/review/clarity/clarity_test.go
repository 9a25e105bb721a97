package clarity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
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

func testDeps(inv gateway.Invoker) stage.Deps {
	return stage.Deps{
		Invoker:  inv,
		Composer: prompt.NewComposer(entity.DefaultReviewConfig()),
		Metrics:  metrics.NewAggregator(),
		Logger:   logger.NewNopLogger(),
		Settings: config.DefaultReviewSettings(),
	}
}

// longDoc has three 700-word paragraphs, which the quick depth splits into
// [p_001 p_002] and [p_003].
func longDoc(t *testing.T) *entity.Document {
	t.Helper()
	var paragraphs []entity.Paragraph
	for n := 1; n <= 3; n++ {
		sentences := make([]string, 350)
		for i := range sentences {
			sentences[i] = fmt.Sprintf("Word%d_%d here.", n, i)
		}
		paragraphs = append(paragraphs, reviewtest.Paragraph(fmt.Sprintf("p_%03d", n), sentences...))
	}
	doc, err := entity.NewDocument("long", "Long", []entity.Section{{ID: "s1", Title: "Body", Paragraphs: paragraphs}})
	require.NoError(t, err)
	return doc
}

func finding(paragraphID, quote string) string {
	return fmt.Sprintf(`{"title":"Unclear","category":"clarity_sentence","severity":"minor","description":"d","anchors":[{"paragraph_id":%q,"quoted_text":%q}]}`, paragraphID, quote)
}

func TestRun_ContextIsNeverAttributed(t *testing.T) {
	doc := longDoc(t)
	inv := reviewtest.NewInvoker().On(entity.AgentClarity, func(_ context.Context, req gateway.Request) (string, error) {
		if *req.ChunkIndex == 0 {
			// p_003 only appears as trailing context of the first chunk.
			return `{"findings":[` + finding("p_001", "Word1_0 here.") + `,` + finding("p_003", "Word3_0 here.") + `]}`, nil
		}
		return `{"findings":[` + finding("p_002", "Word2_349 here.") + `,` + finding("p_003", "Word3_5 here.") + `]}`, nil
	})

	var mu sync.Mutex
	var settled []stage.ChunkResult
	findings, err := Run(context.Background(), testDeps(inv), doc, nil, entity.DepthQuick, func(r stage.ChunkResult) {
		mu.Lock()
		settled = append(settled, r)
		mu.Unlock()
	})
	require.NoError(t, err)

	require.Len(t, findings, 2)
	assert.Equal(t, "p_001", findings[0].PrimaryAnchor().ParagraphID)
	assert.Equal(t, "p_003", findings[1].PrimaryAnchor().ParagraphID)
	assert.Len(t, settled, 2)
	assert.Len(t, inv.Calls(entity.AgentClarity), 2)
}

func TestRun_ChunkFailureIsIsolated(t *testing.T) {
	doc := longDoc(t)
	inv := reviewtest.NewInvoker().On(entity.AgentClarity, func(_ context.Context, req gateway.Request) (string, error) {
		if *req.ChunkIndex == 0 {
			return "", errors.New("backend down")
		}
		return `{"findings":[` + finding("p_003", "Word3_1 here.") + `]}`, nil
	})

	var failed int
	var mu sync.Mutex
	findings, err := Run(context.Background(), testDeps(inv), doc, nil, entity.DepthQuick, func(r stage.ChunkResult) {
		if r.Err != nil {
			mu.Lock()
			failed++
			mu.Unlock()
		}
	})
	require.NoError(t, err)
	assert.Len(t, findings, 1)
	assert.Equal(t, 1, failed)
}

func TestRun_AllChunksFailed(t *testing.T) {
	inv := reviewtest.NewInvoker().Fail(entity.AgentClarity, errors.New("backend down"))

	_, err := Run(context.Background(), testDeps(inv), reviewtest.Document(t), nil, entity.DepthStandard, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, gateway.ErrTransport)
}

func TestRun_PayloadCarriesChunkOnly(t *testing.T) {
	doc := longDoc(t)
	inv := reviewtest.NewInvoker().Reply(entity.AgentClarity, `{"findings":[]}`)

	_, err := Run(context.Background(), testDeps(inv), doc, nil, entity.DepthQuick, nil)
	require.NoError(t, err)

	var checked bool
	for _, call := range inv.Calls(entity.AgentClarity) {
		if *call.ChunkIndex != 1 {
			continue
		}
		checked = true
		assert.NotContains(t, call.Payload, "[p_001]")

		body := chunkBody(t, call.Payload)
		assert.Contains(t, body, "[p_003]")
		assert.NotContains(t, body, "[p_001]")
		assert.Contains(t, body, "CONTEXT ONLY - DO NOT CRITIQUE")
	}
	assert.True(t, checked, "second chunk was never sent")
}

// chunkBody returns the text between the <chunk> tags of a payload.
func chunkBody(t *testing.T, payload string) string {
	t.Helper()
	start := strings.Index(payload, "<chunk ")
	end := strings.Index(payload, "</chunk>")
	require.True(t, start >= 0 && end > start, "payload has no chunk section")
	return payload[start:end]
}
