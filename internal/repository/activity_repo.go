package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/suitec-go-api/internal/models"
)

// ActivityIdentity is the uniqueness key of a ledger entry.
type ActivityIdentity struct {
	CourseID   uint
	UserID     uint
	ActorID    uint
	Type       models.ActivityType
	ObjectType models.ObjectType
	ObjectID   int64
	EntryKey   string
}

// ActivityFilter narrows ledger queries. Zero values are ignored.
type ActivityFilter struct {
	CourseID   uint
	UserID     *uint
	ActorID    *uint
	Types      []models.ActivityType
	ObjectType models.ObjectType
	ObjectID   *int64
	EntryKey   *string
	AssetID    *uint
	Since      *time.Time
	Limit      int
	Newest     bool
}

// ActivityRepository persists ledger entries.
type ActivityRepository interface {
	FindByIdentity(ctx context.Context, identity ActivityIdentity) (models.Activity, error)
	CreateIfAbsent(ctx context.Context, activity *models.Activity) (bool, error)
	Update(ctx context.Context, activity *models.Activity) error
	Delete(ctx context.Context, id uint) (bool, error)
	List(ctx context.Context, filter ActivityFilter) ([]models.Activity, error)
	SumPointsByUser(ctx context.Context, courseID uint, types []models.ActivityType) (map[uint]int, error)
	ListParticipantIDsSince(ctx context.Context, courseID uint, since time.Time) ([]uint, error)
}

type activityRepository struct {
	db *gorm.DB
}

// NewActivityRepository constructs the ledger repository.
func NewActivityRepository(db *gorm.DB) ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) FindByIdentity(ctx context.Context, identity ActivityIdentity) (models.Activity, error) {
	var activity models.Activity
	err := r.db.WithContext(ctx).
		Where("course_id = ? AND user_id = ? AND actor_id = ?", identity.CourseID, identity.UserID, identity.ActorID).
		Where("type = ? AND object_type = ? AND object_id = ? AND entry_key = ?",
			string(identity.Type), string(identity.ObjectType), identity.ObjectID, identity.EntryKey).
		First(&activity).Error
	if err != nil {
		return models.Activity{}, err
	}
	return activity, nil
}

// CreateIfAbsent inserts the activity unless a row with the same identity exists. It reports
// whether this call inserted the row; the unique index settles concurrent inserts.
func (r *activityRepository) CreateIfAbsent(ctx context.Context, activity *models.Activity) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(activity)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *activityRepository) Update(ctx context.Context, activity *models.Activity) error {
	return r.db.WithContext(ctx).
		Model(&models.Activity{ID: activity.ID}).
		Updates(map[string]interface{}{
			"metadata":   activity.Metadata,
			"points":     activity.Points,
			"updated_at": activity.UpdatedAt,
		}).Error
}

func (r *activityRepository) Delete(ctx context.Context, id uint) (bool, error) {
	result := r.db.WithContext(ctx).Delete(&models.Activity{}, id)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *activityRepository) List(ctx context.Context, filter ActivityFilter) ([]models.Activity, error) {
	query := r.db.WithContext(ctx).Model(&models.Activity{})

	if filter.CourseID != 0 {
		query = query.Where("course_id = ?", filter.CourseID)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.ActorID != nil {
		query = query.Where("actor_id = ?", *filter.ActorID)
	}
	if len(filter.Types) > 0 {
		query = query.Where("type IN ?", typeStrings(filter.Types))
	}
	if filter.ObjectType != "" {
		query = query.Where("object_type = ?", string(filter.ObjectType))
	}
	if filter.ObjectID != nil {
		query = query.Where("object_id = ?", *filter.ObjectID)
	}
	if filter.EntryKey != nil {
		query = query.Where("entry_key = ?", *filter.EntryKey)
	}
	if filter.AssetID != nil {
		query = query.Where("asset_id = ?", *filter.AssetID)
	}
	if filter.Since != nil {
		query = query.Where("created_at >= ?", *filter.Since)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	order := "created_at ASC, id ASC"
	if filter.Newest {
		order = "created_at DESC, id DESC"
	}

	var activities []models.Activity
	if err := query.Order(order).Find(&activities).Error; err != nil {
		return nil, err
	}
	return activities, nil
}

type userPointsRow struct {
	UserID uint
	Total  int
}

// SumPointsByUser totals banked points per user, restricted to types when given.
func (r *activityRepository) SumPointsByUser(ctx context.Context, courseID uint, types []models.ActivityType) (map[uint]int, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Activity{}).
		Select("user_id, COALESCE(SUM(points), 0) AS total").
		Where("course_id = ?", courseID)
	if types != nil {
		if len(types) == 0 {
			return map[uint]int{}, nil
		}
		query = query.Where("type IN ?", typeStrings(types))
	}

	var rows []userPointsRow
	if err := query.Group("user_id").Scan(&rows).Error; err != nil {
		return nil, err
	}

	totals := make(map[uint]int, len(rows))
	for _, row := range rows {
		totals[row.UserID] = row.Total
	}
	return totals, nil
}

// ListParticipantIDsSince returns every user credited by or acting in an activity since the given time.
func (r *activityRepository) ListParticipantIDsSince(ctx context.Context, courseID uint, since time.Time) ([]uint, error) {
	var pairs []struct {
		UserID  uint
		ActorID uint
	}
	if err := r.db.WithContext(ctx).
		Model(&models.Activity{}).
		Distinct("user_id", "actor_id").
		Where("course_id = ? AND created_at >= ?", courseID, since).
		Scan(&pairs).Error; err != nil {
		return nil, err
	}

	seen := make(map[uint]struct{}, len(pairs))
	ids := make([]uint, 0, len(pairs))
	for _, pair := range pairs {
		for _, id := range []uint{pair.UserID, pair.ActorID} {
			if _, ok := seen[id]; ok || id == 0 {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func typeStrings(types []models.ActivityType) []string {
	values := make([]string, 0, len(types))
	for _, t := range types {
		values = append(values, string(t))
	}
	return values
}
