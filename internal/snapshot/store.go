package snapshot

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/soloking1412/Unicorn-Launchpad/internal/models"
)

var ErrNotTracked = errors.New("project is not tracked")

// Store persists tracked projects and what the recorder observes about them.
type Store interface {
	EnabledProjects(ctx context.Context) ([]models.TrackedProject, error)
	TrackedProjects(ctx context.Context) ([]models.TrackedProject, error)
	Track(ctx context.Context, address, label string) (*models.TrackedProject, error)
	SetStatus(ctx context.Context, id uint, lastError string, enabled bool) error
	SaveSnapshot(ctx context.Context, s *models.ProjectSnapshot) error
	SaveMismatch(ctx context.Context, m *models.PriceMismatch) error
	Snapshots(ctx context.Context, address string, limit int) ([]models.ProjectSnapshot, error)
	Mismatches(ctx context.Context, address string, limit int) ([]models.PriceMismatch, error)
}

// GormStore is the postgres Store.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) EnabledProjects(ctx context.Context) ([]models.TrackedProject, error) {
	var projects []models.TrackedProject
	if err := s.db.WithContext(ctx).Where("enabled = ?", true).Order("id").Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("failed to query tracked projects: %w", err)
	}
	return projects, nil
}

func (s *GormStore) TrackedProjects(ctx context.Context) ([]models.TrackedProject, error) {
	var projects []models.TrackedProject
	if err := s.db.WithContext(ctx).Order("id").Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("failed to query tracked projects: %w", err)
	}
	return projects, nil
}

// Track inserts the address or re-enables it, replacing the label when one
// is given.
func (s *GormStore) Track(ctx context.Context, address, label string) (*models.TrackedProject, error) {
	updates := []string{"enabled", "last_error", "updated_at"}
	if label != "" {
		updates = append(updates, "label")
	}
	tp := models.TrackedProject{Address: address, Label: label, Enabled: true}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns(updates),
	}).Create(&tp).Error
	if err != nil {
		return nil, fmt.Errorf("failed to track project %s: %w", address, err)
	}
	if err := s.db.WithContext(ctx).Where("address = ?", address).First(&tp).Error; err != nil {
		return nil, fmt.Errorf("failed to reload tracked project %s: %w", address, err)
	}
	return &tp, nil
}

func (s *GormStore) SetStatus(ctx context.Context, id uint, lastError string, enabled bool) error {
	res := s.db.WithContext(ctx).Model(&models.TrackedProject{}).Where("id = ?", id).
		Updates(map[string]interface{}{"last_error": lastError, "enabled": enabled})
	if res.Error != nil {
		return fmt.Errorf("failed to update tracked project %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotTracked
	}
	return nil
}

func (s *GormStore) SaveSnapshot(ctx context.Context, snap *models.ProjectSnapshot) error {
	if err := s.db.WithContext(ctx).Create(snap).Error; err != nil {
		return fmt.Errorf("failed to save snapshot of %s: %w", snap.Address, err)
	}
	return nil
}

func (s *GormStore) SaveMismatch(ctx context.Context, m *models.PriceMismatch) error {
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("failed to save price mismatch of %s: %w", m.Address, err)
	}
	return nil
}

// Snapshots returns the newest snapshots of address, newest first.
func (s *GormStore) Snapshots(ctx context.Context, address string, limit int) ([]models.ProjectSnapshot, error) {
	var snaps []models.ProjectSnapshot
	err := s.db.WithContext(ctx).Where("address = ?", address).Order("id DESC").Limit(limit).Find(&snaps).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	return snaps, nil
}

func (s *GormStore) Mismatches(ctx context.Context, address string, limit int) ([]models.PriceMismatch, error) {
	var out []models.PriceMismatch
	err := s.db.WithContext(ctx).Where("address = ?", address).Order("id DESC").Limit(limit).Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query price mismatches: %w", err)
	}
	return out, nil
}
