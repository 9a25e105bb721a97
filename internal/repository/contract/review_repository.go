package contract

import (
	"context"

	"ai-review-be/internal/entity"
	"ai-review-be/internal/repository/specification"
)

type ReviewRepository interface {
	// Save inserts or replaces a review together with its findings.
	Save(ctx context.Context, review *entity.ReviewJobSnapshot) error
	// Purge hard-deletes the matching reviews and their findings.
	Purge(ctx context.Context, specs ...specification.Specification) (int64, error)
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ReviewJobSnapshot, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ReviewJobSnapshot, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
