package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/suitec-go-api/internal/models"
)

// InteractionRepository stores the like and pin state behind asset interactions.
type InteractionRepository interface {
	FindLike(ctx context.Context, assetID, userID uint) (models.Like, error)
	SaveLike(ctx context.Context, like *models.Like) error
	DeleteLike(ctx context.Context, id uint) error
	// FindPin includes unpinned (soft-deleted) rows so callers can detect repins.
	FindPin(ctx context.Context, assetID, userID uint) (models.Pin, error)
	CreatePin(ctx context.Context, pin *models.Pin) error
	RestorePin(ctx context.Context, id uint) error
	DeletePin(ctx context.Context, id uint) error
	// PurgePin removes the row outright, leaving no trace of the pin.
	PurgePin(ctx context.Context, id uint) error
	// RevertPin writes back the deleted_at and repinned state captured in pin.
	RevertPin(ctx context.Context, pin models.Pin) error
}

type interactionRepository struct {
	db *gorm.DB
}

// NewInteractionRepository constructs the like/pin repository.
func NewInteractionRepository(db *gorm.DB) InteractionRepository {
	return &interactionRepository{db: db}
}

func (r *interactionRepository) FindLike(ctx context.Context, assetID, userID uint) (models.Like, error) {
	var like models.Like
	if err := r.db.WithContext(ctx).
		Where("asset_id = ? AND user_id = ?", assetID, userID).
		First(&like).Error; err != nil {
		return models.Like{}, err
	}
	return like, nil
}

func (r *interactionRepository) SaveLike(ctx context.Context, like *models.Like) error {
	return r.db.WithContext(ctx).Save(like).Error
}

func (r *interactionRepository) DeleteLike(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Like{}, id).Error
}

func (r *interactionRepository) FindPin(ctx context.Context, assetID, userID uint) (models.Pin, error) {
	var pin models.Pin
	if err := r.db.WithContext(ctx).
		Unscoped().
		Where("asset_id = ? AND user_id = ?", assetID, userID).
		First(&pin).Error; err != nil {
		return models.Pin{}, err
	}
	return pin, nil
}

func (r *interactionRepository) CreatePin(ctx context.Context, pin *models.Pin) error {
	return r.db.WithContext(ctx).Create(pin).Error
}

func (r *interactionRepository) RestorePin(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Unscoped().
		Model(&models.Pin{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"deleted_at": nil, "repinned": true}).Error
}

func (r *interactionRepository) DeletePin(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Pin{}, id).Error
}

func (r *interactionRepository) PurgePin(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Unscoped().Delete(&models.Pin{}, id).Error
}

func (r *interactionRepository) RevertPin(ctx context.Context, pin models.Pin) error {
	return r.db.WithContext(ctx).
		Unscoped().
		Model(&models.Pin{}).
		Where("id = ?", pin.ID).
		Updates(map[string]interface{}{"deleted_at": pin.DeletedAt, "repinned": pin.Repinned}).Error
}
