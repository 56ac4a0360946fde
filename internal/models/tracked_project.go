package models

import "time"

// TrackedProject is a project account the worker snapshots on schedule.
type TrackedProject struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Address   string    `gorm:"size:64;uniqueIndex" json:"address"`
	Label     string    `gorm:"size:100" json:"label"`
	Enabled   bool      `gorm:"default:true" json:"enabled"`
	LastError string    `gorm:"size:500" json:"last_error"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (TrackedProject) TableName() string {
	return "tracked_projects"
}

// All lists the models managed by auto-migration.
func All() []interface{} {
	return []interface{}{
		&TrackedProject{},
		&ProjectSnapshot{},
		&PriceMismatch{},
	}
}
