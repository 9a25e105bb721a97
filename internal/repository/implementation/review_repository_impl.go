package implementation

import (
	"context"
	"errors"

	"ai-review-be/internal/entity"
	"ai-review-be/internal/mapper"
	"ai-review-be/internal/model"
	"ai-review-be/internal/repository/contract"
	"ai-review-be/internal/repository/specification"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReviewRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ReviewMapper
}

func NewReviewRepository(db *gorm.DB) contract.ReviewRepository {
	return &ReviewRepositoryImpl{
		db:     db,
		mapper: mapper.NewReviewMapper(),
	}
}

func (r *ReviewRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

// Save replaces the finding rows of the review; callers wanting atomicity run
// it inside a unit of work transaction.
func (r *ReviewRepositoryImpl) Save(ctx context.Context, review *entity.ReviewJobSnapshot) error {
	m, err := r.mapper.ToModel(review)
	if err != nil {
		return err
	}
	findings := m.Findings
	m.Findings = nil

	db := r.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{UpdateAll: true}).Create(m).Error; err != nil {
		return err
	}
	if err := db.Where("review_job_id = ?", m.Id).Delete(&model.ReviewFinding{}).Error; err != nil {
		return err
	}
	if len(findings) == 0 {
		return nil
	}
	return db.CreateInBatches(findings, 100).Error
}

func (r *ReviewRepositoryImpl) Purge(ctx context.Context, specs ...specification.Specification) (int64, error) {
	if len(specs) == 0 {
		return 0, errors.New("purge without a filter")
	}
	query := r.applySpecifications(r.db.WithContext(ctx).Unscoped(), specs...)
	res := query.Delete(&model.ReviewJob{})
	return res.RowsAffected, res.Error
}

func (r *ReviewRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ReviewJobSnapshot, error) {
	var m model.ReviewJob
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Preload("Findings", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToSnapshot(&m)
}

func (r *ReviewRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ReviewJobSnapshot, error) {
	var models []*model.ReviewJob
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Preload("Findings", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).Find(&models).Error; err != nil {
		return nil, err
	}

	out := make([]*entity.ReviewJobSnapshot, 0, len(models))
	for _, m := range models {
		s, err := r.mapper.ToSnapshot(m)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *ReviewRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.ReviewJob{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
