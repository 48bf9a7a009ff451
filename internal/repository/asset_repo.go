package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/suitec-go-api/internal/models"
)

// AssetScores carries recomputed cached scores for one asset.
type AssetScores struct {
	Impact   *int
	Trending *int
}

// AssetRepository persists Asset Library items and their co-owners.
type AssetRepository interface {
	GetByID(ctx context.Context, courseID, id uint) (models.Asset, error)
	ListByCourse(ctx context.Context, courseID uint) ([]models.Asset, error)
	Create(ctx context.Context, asset *models.Asset, ownerIDs []uint, categoryIDs []uint) error
	Delete(ctx context.Context, id uint) error
	AddUser(ctx context.Context, assetID, userID uint) error
	IncrementCounters(ctx context.Context, id uint, deltas map[string]int) error
	UpdateScores(ctx context.Context, id uint, scores AssetScores) error
}

type assetRepository struct {
	db *gorm.DB
}

// NewAssetRepository constructs an asset repository.
func NewAssetRepository(db *gorm.DB) AssetRepository {
	return &assetRepository{db: db}
}

func (r *assetRepository) GetByID(ctx context.Context, courseID, id uint) (models.Asset, error) {
	var asset models.Asset
	if err := r.db.WithContext(ctx).
		Preload("Users", func(db *gorm.DB) *gorm.DB { return db.Order("users.id ASC") }).
		Where("course_id = ?", courseID).
		First(&asset, id).Error; err != nil {
		return models.Asset{}, err
	}
	return asset, nil
}

func (r *assetRepository) ListByCourse(ctx context.Context, courseID uint) ([]models.Asset, error) {
	var assets []models.Asset
	if err := r.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("id ASC").
		Find(&assets).Error; err != nil {
		return nil, err
	}
	return assets, nil
}

func (r *assetRepository) Create(ctx context.Context, asset *models.Asset, ownerIDs []uint, categoryIDs []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(asset).Error; err != nil {
			return err
		}
		for _, userID := range ownerIDs {
			if err := linkRow(tx, "asset_users", "user_id", asset.ID, userID); err != nil {
				return err
			}
		}
		for _, categoryID := range categoryIDs {
			if err := linkRow(tx, "asset_categories", "category_id", asset.ID, categoryID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *assetRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM asset_users WHERE asset_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM asset_categories WHERE asset_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Asset{}, id).Error
	})
}

func (r *assetRepository) AddUser(ctx context.Context, assetID, userID uint) error {
	return linkRow(r.db.WithContext(ctx), "asset_users", "user_id", assetID, userID)
}

// IncrementCounters applies column deltas such as {"likes": 1, "dislikes": -1}.
func (r *assetRepository) IncrementCounters(ctx context.Context, id uint, deltas map[string]int) error {
	updates := make(map[string]interface{}, len(deltas))
	for column, delta := range deltas {
		if delta == 0 {
			continue
		}
		updates[column] = gorm.Expr(column+" + ?", delta)
	}
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Asset{}).
		Where("id = ?", id).
		UpdateColumns(updates).Error
}

func (r *assetRepository) UpdateScores(ctx context.Context, id uint, scores AssetScores) error {
	updates := map[string]interface{}{}
	if scores.Impact != nil {
		updates["impact_score"] = *scores.Impact
	}
	if scores.Trending != nil {
		updates["trending_score"] = *scores.Trending
	}
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Asset{}).
		Where("id = ?", id).
		UpdateColumns(updates).Error
}

func linkRow(db *gorm.DB, table, column string, assetID, otherID uint) error {
	return db.Table(table).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(map[string]interface{}{"asset_id": assetID, column: otherID}).Error
}
