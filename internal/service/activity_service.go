package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/suitec-go-api/internal/apierr"
	"github.com/noah-isme/suitec-go-api/internal/models"
	"github.com/noah-isme/suitec-go-api/internal/observability"
	"github.com/noah-isme/suitec-go-api/internal/repository"
)

// ActivityInput describes an activity to get-or-create. ActorID defaults to UserID and
// ObjectType to the catalog's object type for Type.
type ActivityInput struct {
	CourseID   uint
	UserID     uint
	ActorID    uint
	Type       models.ActivityType
	ObjectType models.ObjectType
	ObjectID   int64
	AssetID    *uint
	Metadata   map[string]interface{}
	// OccurredAt backdates imported activities; zero means now.
	OccurredAt time.Time
}

// ActivityChanges are the mutable parts of an existing activity. Nil fields are left as is.
type ActivityChanges struct {
	Metadata map[string]interface{}
	Points   *int
}

// ActivityDeletion selects activities to remove. A zero UserID or ActorID matches any user.
type ActivityDeletion struct {
	CourseID   uint
	UserID     uint
	ActorID    uint
	Types      []models.ActivityType
	ObjectType models.ObjectType
	ObjectID   int64
	EntryKey   *string
}

// ActivityQuery is the read filter for GetActivities.
type ActivityQuery struct {
	CourseID   uint
	UserID     *uint
	ActorID    *uint
	Types      []models.ActivityType
	ObjectType models.ObjectType
	ObjectID   *int64
	AssetID    *uint
	Since      *time.Time
	Limit      int
	Newest     bool
}

// ActivityService is the activity ledger.
type ActivityService interface {
	CreateActivity(ctx context.Context, input ActivityInput) (models.Activity, bool, error)
	UpdateActivity(ctx context.Context, activity models.Activity, changes ActivityChanges) (models.Activity, error)
	DeleteActivity(ctx context.Context, deletion ActivityDeletion) ([]models.Activity, error)
	RemoveActivity(ctx context.Context, activity models.Activity) (bool, error)
	GetActivities(ctx context.Context, query ActivityQuery) ([]models.Activity, error)
}

type activityService struct {
	repo     repository.ActivityRepository
	users    repository.UserRepository
	courses  repository.CourseRepository
	registry ActivityTypeService
	points   PointsService
	catalog  *ActivityCatalog
	logger   zerolog.Logger
	now      func() time.Time
}

// NewActivityService constructs the ledger.
func NewActivityService(
	repo repository.ActivityRepository,
	users repository.UserRepository,
	courses repository.CourseRepository,
	registry ActivityTypeService,
	points PointsService,
	catalog *ActivityCatalog,
	logger zerolog.Logger,
) ActivityService {
	if catalog == nil {
		catalog = DefaultActivityCatalog()
	}
	return &activityService{
		repo:     repo,
		users:    users,
		courses:  courses,
		registry: registry,
		points:   points,
		catalog:  catalog,
		logger:   logger.With().Str("component", "activity_service").Logger(),
		now:      time.Now,
	}
}

func (s *activityService) CreateActivity(ctx context.Context, input ActivityInput) (models.Activity, bool, error) {
	definition, err := s.catalog.Require(input.Type)
	if err != nil {
		return models.Activity{}, false, err
	}
	if input.CourseID == 0 || input.UserID == 0 {
		return models.Activity{}, false, apierr.Validation("%s requires a course and a user", input.Type)
	}
	if err := s.catalog.ValidateMetadata(input.Type, input.Metadata); err != nil {
		return models.Activity{}, false, err
	}
	entryKey, err := s.catalog.EntryKey(input.Type, input.Metadata)
	if err != nil {
		return models.Activity{}, false, err
	}

	objectType := input.ObjectType
	if objectType == "" {
		objectType = definition.ObjectType
	}
	actorID := input.ActorID
	if actorID == 0 {
		actorID = input.UserID
	}

	identity := repository.ActivityIdentity{
		CourseID:   input.CourseID,
		UserID:     input.UserID,
		ActorID:    actorID,
		Type:       input.Type,
		ObjectType: objectType,
		ObjectID:   input.ObjectID,
		EntryKey:   entryKey,
	}

	existing, err := s.repo.FindByIdentity(ctx, identity)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Activity{}, false, apierr.Storage(err, "look up activity")
	}

	config, err := s.registry.GetEffectiveConfig(ctx, input.CourseID)
	if err != nil {
		return models.Activity{}, false, err
	}

	now := s.now().UTC()
	occurredAt := now
	if !input.OccurredAt.IsZero() {
		occurredAt = input.OccurredAt.UTC()
	}

	activity := models.Activity{
		CourseID:   identity.CourseID,
		UserID:     identity.UserID,
		ActorID:    identity.ActorID,
		Type:       identity.Type,
		ObjectType: identity.ObjectType,
		ObjectID:   identity.ObjectID,
		EntryKey:   identity.EntryKey,
		AssetID:    input.AssetID,
		Points:     config.PointsFor(input.Type),
		Metadata:   copyMetadata(input.Metadata),
		CreatedAt:  occurredAt,
		UpdatedAt:  now,
	}

	created, err := s.repo.CreateIfAbsent(ctx, &activity)
	if err != nil {
		return models.Activity{}, false, apierr.Storage(err, "insert activity")
	}
	if !created {
		// A concurrent request inserted the same identity first.
		existing, err := s.repo.FindByIdentity(ctx, identity)
		if err != nil {
			return models.Activity{}, false, apierr.Storage(err, "look up activity")
		}
		return existing, false, nil
	}

	if err := s.points.ApplyDelta(ctx, activity.CourseID, activity.UserID, activity.Points, activity.Type); err != nil {
		if _, deleteErr := s.repo.Delete(ctx, activity.ID); deleteErr != nil {
			s.logger.Error().Err(deleteErr).Uint("activity_id", activity.ID).Msg("failed to roll back activity after points failure")
		}
		return models.Activity{}, false, err
	}

	observability.ActivitiesCreated().WithLabelValues(string(activity.Type)).Inc()
	s.touch(ctx, activity.CourseID, activity.ActorID, now)

	s.logger.Debug().
		Uint("course_id", activity.CourseID).
		Uint("user_id", activity.UserID).
		Uint("actor_id", activity.ActorID).
		Str("type", string(activity.Type)).
		Int64("object_id", activity.ObjectID).
		Int("points", activity.Points).
		Msg("activity created")

	return activity, true, nil
}

// UpdateActivity rewrites metadata in place. Points move only by the difference between the
// banked value and changes.Points.
func (s *activityService) UpdateActivity(ctx context.Context, activity models.Activity, changes ActivityChanges) (models.Activity, error) {
	if activity.ID == 0 {
		return models.Activity{}, apierr.Validation("cannot update an unsaved activity")
	}

	previous := activity
	if changes.Metadata != nil {
		if err := s.catalog.ValidateMetadata(activity.Type, changes.Metadata); err != nil {
			return models.Activity{}, err
		}
		entryKey, err := s.catalog.EntryKey(activity.Type, changes.Metadata)
		if err != nil {
			return models.Activity{}, err
		}
		if entryKey != activity.EntryKey {
			return models.Activity{}, apierr.Validation("metadata change would alter the identity of activity %d", activity.ID)
		}
		activity.Metadata = copyMetadata(changes.Metadata)
	}

	delta := 0
	if changes.Points != nil && *changes.Points != activity.Points {
		delta = *changes.Points - activity.Points
		activity.Points = *changes.Points
	}
	activity.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, &activity); err != nil {
		return models.Activity{}, apierr.Storage(err, "update activity")
	}

	if delta != 0 {
		if err := s.points.ApplyDelta(ctx, activity.CourseID, activity.UserID, delta, activity.Type); err != nil {
			if restoreErr := s.repo.Update(ctx, &previous); restoreErr != nil {
				s.logger.Error().Err(restoreErr).Uint("activity_id", activity.ID).Msg("failed to restore activity after points failure")
			}
			return models.Activity{}, err
		}
	}

	return activity, nil
}

// DeleteActivity removes every matching activity and reverses its banked points. Nothing
// matching is not an error.
func (s *activityService) DeleteActivity(ctx context.Context, deletion ActivityDeletion) ([]models.Activity, error) {
	if len(deletion.Types) == 0 {
		return nil, apierr.Validation("at least one activity type is required")
	}
	for _, t := range deletion.Types {
		if _, err := s.catalog.Require(t); err != nil {
			return nil, err
		}
	}

	if deletion.CourseID == 0 {
		return nil, apierr.Validation("a course is required")
	}

	objectID := deletion.ObjectID
	filter := repository.ActivityFilter{
		CourseID:   deletion.CourseID,
		Types:      deletion.Types,
		ObjectType: deletion.ObjectType,
		ObjectID:   &objectID,
		EntryKey:   deletion.EntryKey,
	}
	if deletion.UserID != 0 {
		userID := deletion.UserID
		filter.UserID = &userID
	}
	if deletion.ActorID != 0 {
		actorID := deletion.ActorID
		filter.ActorID = &actorID
	}

	matches, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, apierr.Storage(err, "find activities to delete")
	}

	removed := make([]models.Activity, 0, len(matches))
	for _, activity := range matches {
		ok, err := s.RemoveActivity(ctx, activity)
		if err != nil {
			return removed, err
		}
		if ok {
			removed = append(removed, activity)
		}
	}
	return removed, nil
}

// RemoveActivity deletes one stored activity and reverses its points. It reports false when the
// row was already gone.
func (s *activityService) RemoveActivity(ctx context.Context, activity models.Activity) (bool, error) {
	deleted, err := s.repo.Delete(ctx, activity.ID)
	if err != nil {
		return false, apierr.Storage(err, "delete activity")
	}
	if !deleted {
		return false, nil
	}

	if err := s.points.ApplyDelta(ctx, activity.CourseID, activity.UserID, -activity.Points, activity.Type); err != nil {
		return true, err
	}
	observability.ActivitiesDeleted().WithLabelValues(string(activity.Type)).Inc()
	return true, nil
}

func (s *activityService) GetActivities(ctx context.Context, query ActivityQuery) ([]models.Activity, error) {
	activities, err := s.repo.List(ctx, repository.ActivityFilter{
		CourseID:   query.CourseID,
		UserID:     query.UserID,
		ActorID:    query.ActorID,
		Types:      query.Types,
		ObjectType: query.ObjectType,
		ObjectID:   query.ObjectID,
		AssetID:    query.AssetID,
		Since:      query.Since,
		Limit:      query.Limit,
		Newest:     query.Newest,
	})
	if err != nil {
		return nil, apierr.Storage(err, "list activities")
	}
	return activities, nil
}

func (s *activityService) touch(ctx context.Context, courseID, actorID uint, at time.Time) {
	if s.courses != nil {
		if err := s.courses.TouchLastActivity(ctx, courseID, at); err != nil {
			s.logger.Warn().Err(err).Uint("course_id", courseID).Msg("failed to update course last activity")
		}
	}
	if s.users != nil {
		if err := s.users.TouchLastActivity(ctx, actorID, at); err != nil {
			s.logger.Warn().Err(err).Uint("user_id", actorID).Msg("failed to update user last activity")
		}
	}
}

func copyMetadata(metadata map[string]interface{}) datatypes.JSONMap {
	if len(metadata) == 0 {
		return nil
	}
	copied := make(datatypes.JSONMap, len(metadata))
	for key, value := range metadata {
		copied[key] = value
	}
	return copied
}
