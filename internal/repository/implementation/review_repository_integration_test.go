package implementation

import (
	"context"
	"os"
	"testing"
	"time"

	"ai-review-be/internal/entity"
	"ai-review-be/internal/model"
	"ai-review-be/internal/repository/specification"
	"ai-review-be/pkg/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openArchive(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	db, err := database.Open(context.Background(), dsn, database.DefaultOptions(true), 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })

	require.NoError(t, db.AutoMigrate(&model.ReviewJob{}, &model.ReviewFinding{}))
	return db
}

func archivedSnapshot(documentID string, completed time.Time) *entity.ReviewJobSnapshot {
	votes := 2
	return &entity.ReviewJobSnapshot{
		ID:          uuid.New(),
		DocumentID:  documentID,
		Config:      entity.DefaultReviewConfig(),
		Status:      entity.JobCompleted,
		StartedAt:   completed.Add(-time.Minute),
		CompletedAt: &completed,
		Summary:     &entity.ReviewSummary{TotalFindings: 2},
		Metrics:     entity.MetricsSummary{TotalCalls: 4, TotalCostUSD: 0.12},
		Findings: []entity.Finding{
			{ID: "f-2", Agent: entity.AgentClarity, Category: entity.CategoryClaritySentence, Severity: entity.SeverityMinor,
				Confidence: 0.8, Title: "Agreement", Anchors: []entity.Anchor{{ParagraphID: "p_001", QuotedText: "results was"}}},
			{ID: "f-1", Agent: entity.AgentAdversaryPanel, Category: entity.CategoryAdversarialGap, Severity: entity.SeverityMajor,
				Confidence: 0.9, Title: "Gap", Votes: &votes, Anchors: []entity.Anchor{{ParagraphID: "p_002", QuotedText: "all populations"}}},
		},
	}
}

func TestReviewRepository_Archive(t *testing.T) {
	db := openArchive(t)
	repo := NewReviewRepository(db)
	ctx := context.Background()
	documentID := "integration-" + uuid.NewString()

	old := archivedSnapshot(documentID, time.Now().Add(-48*time.Hour))
	recent := archivedSnapshot(documentID, time.Now())
	require.NoError(t, repo.Save(ctx, old))
	require.NoError(t, repo.Save(ctx, recent))

	t.Run("FindOne keeps finding order", func(t *testing.T) {
		got, err := repo.FindOne(ctx, specification.ByID{ID: recent.ID})
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Len(t, got.Findings, 2)
		assert.Equal(t, "f-2", got.Findings[0].ID)
		assert.Equal(t, 2, got.Findings[1].VoteCount())
		assert.Equal(t, 2, got.Summary.TotalFindings)
	})

	t.Run("Save replaces findings", func(t *testing.T) {
		recent.Findings = recent.Findings[:1]
		require.NoError(t, repo.Save(ctx, recent))
		got, err := repo.FindOne(ctx, specification.ByID{ID: recent.ID})
		require.NoError(t, err)
		assert.Len(t, got.Findings, 1)
	})

	t.Run("FindAll and Count by document", func(t *testing.T) {
		count, err := repo.Count(ctx, specification.ByDocumentID{DocumentID: documentID})
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)

		page, err := repo.FindAll(ctx,
			specification.ByDocumentID{DocumentID: documentID},
			specification.OrderBy{Field: "started_at", Desc: true},
			specification.Page(1, 1),
		)
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, recent.ID, page[0].ID)
	})

	t.Run("Purge removes old reviews", func(t *testing.T) {
		n, err := repo.Purge(ctx,
			specification.ByDocumentID{DocumentID: documentID},
			specification.CompletedBefore{Cutoff: time.Now().Add(-24 * time.Hour)},
		)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		gone, err := repo.FindOne(ctx, specification.ByID{ID: old.ID})
		require.NoError(t, err)
		assert.Nil(t, gone)

		_, err = repo.Purge(ctx)
		assert.Error(t, err)
	})
}
