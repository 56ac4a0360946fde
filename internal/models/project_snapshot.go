package models

import "time"

// ProjectSnapshot is one observation of a project account by the worker.
// Currency fields are smallest units.
type ProjectSnapshot struct {
	ID              uint      `gorm:"primarykey" json:"id"`
	TrackedID       uint      `gorm:"index" json:"tracked_id"`
	Address         string    `gorm:"size:64;index" json:"address"`
	Name            string    `gorm:"size:32" json:"name"`
	Symbol          string    `gorm:"size:8" json:"symbol"`
	FundingGoal     uint64    `gorm:"type:numeric(20,0)" json:"funding_goal"`
	TotalRaised     uint64    `gorm:"type:numeric(20,0)" json:"total_raised"`
	TokenPrice      uint64    `gorm:"type:numeric(20,0)" json:"token_price"`
	ExpectedPrice   uint64    `gorm:"type:numeric(20,0)" json:"expected_price"`
	IsActive        bool      `json:"is_active"`
	MilestoneCount  uint8     `json:"milestone_count"`
	ProposalCount   uint8     `json:"proposal_count"`
	SourceUpdatedAt time.Time `json:"source_updated_at"`
	CreatedAt       time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// PriceMismatch records a snapshot whose stored price disagreed with the
// local curve.
type PriceMismatch struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	EventID    string    `gorm:"size:36;uniqueIndex" json:"event_id"`
	SnapshotID uint      `json:"snapshot_id"`
	Address    string    `gorm:"size:64;index" json:"address"`
	Expected   uint64    `gorm:"type:numeric(20,0)" json:"expected"`
	Actual     uint64    `gorm:"type:numeric(20,0)" json:"actual"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (ProjectSnapshot) TableName() string {
	return "project_snapshots"
}

func (PriceMismatch) TableName() string {
	return "price_mismatches"
}
