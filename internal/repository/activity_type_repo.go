package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/suitec-go-api/internal/models"
)

// ActivityTypeRepository persists per-course activity type overrides.
type ActivityTypeRepository interface {
	ListOverrides(ctx context.Context, courseID uint) ([]models.ActivityTypeOverride, error)
	UpsertOverrides(ctx context.Context, overrides []models.ActivityTypeOverride) error
}

type activityTypeRepository struct {
	db *gorm.DB
}

// NewActivityTypeRepository constructs an override repository.
func NewActivityTypeRepository(db *gorm.DB) ActivityTypeRepository {
	return &activityTypeRepository{db: db}
}

func (r *activityTypeRepository) ListOverrides(ctx context.Context, courseID uint) ([]models.ActivityTypeOverride, error) {
	var overrides []models.ActivityTypeOverride
	if err := r.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("type ASC").
		Find(&overrides).Error; err != nil {
		return nil, err
	}
	return overrides, nil
}

// UpsertOverrides writes every override in one statement keyed by (course_id, type).
func (r *activityTypeRepository) UpsertOverrides(ctx context.Context, overrides []models.ActivityTypeOverride) error {
	if len(overrides) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "course_id"}, {Name: "type"}},
			DoUpdates: clause.AssignmentColumns([]string{"points", "enabled", "updated_at"}),
		}).
		Create(&overrides).Error
}
