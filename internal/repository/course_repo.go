package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/suitec-go-api/internal/models"
)

// Digest frequencies used to pick courses with notifications enabled.
const (
	DigestDaily  = "daily"
	DigestWeekly = "weekly"
)

// CourseRepository is the course directory.
type CourseRepository interface {
	GetByID(ctx context.Context, id uint) (models.Course, error)
	ListActive(ctx context.Context) ([]models.Course, error)
	ListNotifiable(ctx context.Context, frequency string) ([]models.Course, error)
	Save(ctx context.Context, course *models.Course) error
	TouchLastActivity(ctx context.Context, id uint, at time.Time) error
}

type courseRepository struct {
	db *gorm.DB
}

// NewCourseRepository constructs a course repository.
func NewCourseRepository(db *gorm.DB) CourseRepository {
	return &courseRepository{db: db}
}

func (r *courseRepository) GetByID(ctx context.Context, id uint) (models.Course, error) {
	var course models.Course
	if err := r.db.WithContext(ctx).First(&course, id).Error; err != nil {
		return models.Course{}, err
	}
	return course, nil
}

func (r *courseRepository) ListActive(ctx context.Context) ([]models.Course, error) {
	var courses []models.Course
	if err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("id ASC").
		Find(&courses).Error; err != nil {
		return nil, err
	}
	return courses, nil
}

func (r *courseRepository) ListNotifiable(ctx context.Context, frequency string) ([]models.Course, error) {
	query := r.db.WithContext(ctx).Where("active = ?", true)
	switch frequency {
	case DigestDaily:
		query = query.Where("enable_daily_notifications = ?", true)
	case DigestWeekly:
		query = query.Where("enable_weekly_notifications = ?", true)
	default:
		return []models.Course{}, nil
	}

	var courses []models.Course
	if err := query.Order("id ASC").Find(&courses).Error; err != nil {
		return nil, err
	}
	return courses, nil
}

func (r *courseRepository) Save(ctx context.Context, course *models.Course) error {
	return r.db.WithContext(ctx).Save(course).Error
}

func (r *courseRepository) TouchLastActivity(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Course{}).
		Where("id = ?", id).
		UpdateColumn("last_activity", at).Error
}
