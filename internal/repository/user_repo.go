package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/suitec-go-api/internal/models"
)

// UserRepository is the course member directory.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (models.User, error)
	ListByCourse(ctx context.Context, courseID uint) ([]models.User, error)
	ListByIDs(ctx context.Context, ids []uint) ([]models.User, error)
	GetOrCreate(ctx context.Context, courseID uint, canvasUserID int64, defaults models.User) (models.User, bool, error)
	Save(ctx context.Context, user *models.User) error
	UpdateFields(ctx context.Context, ids []uint, changes map[string]interface{}) error
	IncrementPoints(ctx context.Context, id uint, delta int) (int, error)
	ReplacePoints(ctx context.Context, courseID uint, totals map[uint]int) error
	TouchLastActivity(ctx context.Context, id uint, at time.Time) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs a user repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) ListByCourse(ctx context.Context, courseID uint) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("id ASC").
		Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) ListByIDs(ctx context.Context, ids []uint) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	var users []models.User
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// GetOrCreate returns the member with the given LMS id, creating it from defaults when absent.
func (r *userRepository) GetOrCreate(ctx context.Context, courseID uint, canvasUserID int64, defaults models.User) (models.User, bool, error) {
	defaults.ID = 0
	defaults.CourseID = courseID
	defaults.CanvasUserID = canvasUserID
	if defaults.CanvasEnrollmentState == "" {
		defaults.CanvasEnrollmentState = models.EnrollmentActive
	}

	user, err := r.findByCanvasID(ctx, courseID, canvasUserID)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, false, err
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&defaults)
	if result.Error != nil {
		return models.User{}, false, result.Error
	}
	if result.RowsAffected == 0 {
		user, err = r.findByCanvasID(ctx, courseID, canvasUserID)
		return user, false, err
	}
	return defaults, true, nil
}

func (r *userRepository) findByCanvasID(ctx context.Context, courseID uint, canvasUserID int64) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).
		Where("course_id = ? AND canvas_user_id = ?", courseID, canvasUserID).
		First(&user).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) Save(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

func (r *userRepository) UpdateFields(ctx context.Context, ids []uint, changes map[string]interface{}) error {
	if len(ids) == 0 || len(changes) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id IN ?", ids).
		Updates(changes).Error
}

// IncrementPoints adds delta to the cached total and returns the new total.
func (r *userRepository) IncrementPoints(ctx context.Context, id uint, delta int) (int, error) {
	var total int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.User{}).
			Where("id = ?", id).
			UpdateColumn("points", gorm.Expr("points + ?", delta))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(&models.User{}).
			Where("id = ?", id).
			Pluck("points", &total).Error
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// ReplacePoints overwrites every member's cached total; members absent from totals get zero.
func (r *userRepository) ReplacePoints(ctx context.Context, courseID uint, totals map[uint]int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).
			Where("course_id = ?", courseID).
			UpdateColumn("points", 0).Error; err != nil {
			return err
		}
		for id, points := range totals {
			if points == 0 {
				continue
			}
			if err := tx.Model(&models.User{}).
				Where("id = ? AND course_id = ?", id, courseID).
				UpdateColumn("points", points).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *userRepository) TouchLastActivity(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("last_activity", at).Error
}
