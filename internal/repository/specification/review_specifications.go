package specification

import (
	"time"

	"gorm.io/gorm"
)

// ByDocumentID filters archived reviews of one document.
type ByDocumentID struct {
	DocumentID string
}

func (s ByDocumentID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("document_id = ?", s.DocumentID)
}

type ByStatus struct {
	Status string
}

func (s ByStatus) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("status = ?", s.Status)
}

// CompletedBefore selects reviews finished before a cutoff.
type CompletedBefore struct {
	Cutoff time.Time
}

func (s CompletedBefore) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("completed_at < ?", s.Cutoff)
}
