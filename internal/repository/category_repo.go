package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/suitec-go-api/internal/models"
)

// CategoryRepository persists asset categories, including assignment submission categories.
type CategoryRepository interface {
	ListByCourse(ctx context.Context, courseID uint) ([]models.Category, error)
	GetByAssignment(ctx context.Context, courseID uint, assignmentID int64) (models.Category, error)
	Create(ctx context.Context, category *models.Category) error
	Save(ctx context.Context, category *models.Category) error
	Delete(ctx context.Context, id uint) error
}

type categoryRepository struct {
	db *gorm.DB
}

// NewCategoryRepository constructs a category repository.
func NewCategoryRepository(db *gorm.DB) CategoryRepository {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) ListByCourse(ctx context.Context, courseID uint) ([]models.Category, error) {
	var categories []models.Category
	if err := r.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("id ASC").
		Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *categoryRepository) GetByAssignment(ctx context.Context, courseID uint, assignmentID int64) (models.Category, error) {
	var category models.Category
	if err := r.db.WithContext(ctx).
		Where("course_id = ? AND canvas_assignment_id = ?", courseID, assignmentID).
		First(&category).Error; err != nil {
		return models.Category{}, err
	}
	return category, nil
}

func (r *categoryRepository) Create(ctx context.Context, category *models.Category) error {
	return r.db.WithContext(ctx).Create(category).Error
}

func (r *categoryRepository) Save(ctx context.Context, category *models.Category) error {
	return r.db.WithContext(ctx).Save(category).Error
}

// Delete removes the category and detaches it from every asset.
func (r *categoryRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM asset_categories WHERE category_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Category{}, id).Error
	})
}
