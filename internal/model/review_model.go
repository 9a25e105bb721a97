package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ReviewJob is the archived form of a finished review.
type ReviewJob struct {
	Id          uuid.UUID      `gorm:"type:uuid;primaryKey"`
	DocumentId  string         `gorm:"type:varchar(255);not null;index"`
	Status      string         `gorm:"type:varchar(20);not null;index"`
	Config      datatypes.JSON `gorm:"type:jsonb"`
	Summary     datatypes.JSON `gorm:"type:jsonb"`
	Metrics     datatypes.JSON `gorm:"type:jsonb"`
	Evidence    datatypes.JSON `gorm:"type:jsonb"`
	Error       string         `gorm:"type:text"`
	StartedAt   time.Time
	CompletedAt *time.Time
	Findings    []ReviewFinding `gorm:"foreignKey:ReviewJobId;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time       `gorm:"autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime"`
	DeletedAt   gorm.DeletedAt  `gorm:"index"`
}

func (ReviewJob) TableName() string {
	return "review_jobs"
}

// ReviewFinding is one assembled finding; Position keeps presentation order.
type ReviewFinding struct {
	ReviewJobId  uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Id           string         `gorm:"type:varchar(64);primaryKey"`
	Position     int            `gorm:"not null"`
	AgentId      string         `gorm:"type:varchar(50);not null;index"`
	Category     string         `gorm:"type:varchar(50);not null"`
	Severity     string         `gorm:"type:varchar(20);not null"`
	Confidence   float64        `gorm:"not null"`
	Title        string         `gorm:"type:varchar(255);not null"`
	Description  string         `gorm:"type:text"`
	Anchors      datatypes.JSON `gorm:"type:jsonb;not null"`
	ProposedEdit datatypes.JSON `gorm:"type:jsonb"`
	Votes        *int
	Citations    datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	Backend      string                      `gorm:"type:varchar(50)"`
	CreatedAt    time.Time
}

func (ReviewFinding) TableName() string {
	return "review_findings"
}
