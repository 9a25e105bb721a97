package specification

import "gorm.io/gorm"

// HasFindingSeverity keeps reviews with at least one finding of the severity.
type HasFindingSeverity struct {
	Severity string
}

func (s HasFindingSeverity) Apply(db *gorm.DB) *gorm.DB {
	return db.Where(
		"EXISTS (SELECT 1 FROM review_findings rf WHERE rf.review_job_id = review_jobs.id AND rf.severity = ?)",
		s.Severity,
	)
}

// ByAgent keeps reviews with a finding produced by the agent.
type ByAgent struct {
	Agent string
}

func (s ByAgent) Apply(db *gorm.DB) *gorm.DB {
	return db.Where(
		"EXISTS (SELECT 1 FROM review_findings rf WHERE rf.review_job_id = review_jobs.id AND rf.agent_id = ?)",
		s.Agent,
	)
}
