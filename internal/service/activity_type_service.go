package service

import (
	"context"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/suitec-go-api/internal/apierr"
	"github.com/noah-isme/suitec-go-api/internal/dto"
	"github.com/noah-isme/suitec-go-api/internal/models"
	"github.com/noah-isme/suitec-go-api/internal/repository"
)

// Caller identifies the authenticated course member behind a request.
type Caller struct {
	UserID   uint
	CourseID uint
	IsAdmin  bool
}

// ActivityTypeConfig is the effective points/enabled setting of one type in one course.
type ActivityTypeConfig struct {
	Type    models.ActivityType
	Title   string
	Points  int
	Enabled bool
}

// EffectiveConfig is a course's catalog defaults merged with its overrides.
type EffectiveConfig struct {
	CourseID uint
	order    []models.ActivityType
	byType   map[models.ActivityType]ActivityTypeConfig
}

// Get returns the effective setting for t.
func (e EffectiveConfig) Get(t models.ActivityType) (ActivityTypeConfig, bool) {
	config, ok := e.byType[t]
	return config, ok
}

// Enabled reports whether t currently accrues points and appears in exports.
func (e EffectiveConfig) Enabled(t models.ActivityType) bool {
	return e.byType[t].Enabled
}

// PointsFor returns the points a new activity of type t earns; zero when disabled.
func (e EffectiveConfig) PointsFor(t models.ActivityType) int {
	config, ok := e.byType[t]
	if !ok || !config.Enabled {
		return 0
	}
	return config.Points
}

// EnabledTypes lists the enabled types in catalog order.
func (e EffectiveConfig) EnabledTypes() []models.ActivityType {
	types := make([]models.ActivityType, 0, len(e.order))
	for _, t := range e.order {
		if e.byType[t].Enabled {
			types = append(types, t)
		}
	}
	return types
}

// List returns every type's setting in catalog order.
func (e EffectiveConfig) List() []ActivityTypeConfig {
	configs := make([]ActivityTypeConfig, 0, len(e.order))
	for _, t := range e.order {
		configs = append(configs, e.byType[t])
	}
	return configs
}

// ActivityTypesChangedListener is told when a course's activity configuration changes.
type ActivityTypesChangedListener interface {
	ActivityTypesChanged(ctx context.Context, courseID uint)
}

// ActivityTypeService is the per-course activity type registry.
type ActivityTypeService interface {
	GetEffectiveConfig(ctx context.Context, courseID uint) (EffectiveConfig, error)
	List(ctx context.Context, courseID uint) ([]dto.ActivityTypeConfigResponse, error)
	ApplyOverrides(ctx context.Context, caller Caller, courseID uint, payload dto.ActivityTypeUpdateRequest) ([]dto.ActivityTypeConfigResponse, error)
	AddListener(listener ActivityTypesChangedListener)
}

type activityTypeService struct {
	repo      repository.ActivityTypeRepository
	catalog   *ActivityCatalog
	validator *validator.Validate
	logger    zerolog.Logger

	mu        sync.RWMutex
	listeners []ActivityTypesChangedListener
}

// NewActivityTypeService constructs the registry over the given catalog.
func NewActivityTypeService(repo repository.ActivityTypeRepository, catalog *ActivityCatalog, validate *validator.Validate, logger zerolog.Logger) ActivityTypeService {
	if catalog == nil {
		catalog = DefaultActivityCatalog()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &activityTypeService{
		repo:      repo,
		catalog:   catalog,
		validator: validate,
		logger:    logger.With().Str("component", "activity_type_service").Logger(),
	}
}

func (s *activityTypeService) AddListener(listener ActivityTypesChangedListener) {
	if listener == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, listener)
}

func (s *activityTypeService) GetEffectiveConfig(ctx context.Context, courseID uint) (EffectiveConfig, error) {
	overrides, err := s.repo.ListOverrides(ctx, courseID)
	if err != nil {
		return EffectiveConfig{}, apierr.Storage(err, "load activity type overrides")
	}

	effective := EffectiveConfig{
		CourseID: courseID,
		order:    s.catalog.Types(),
		byType:   make(map[models.ActivityType]ActivityTypeConfig),
	}
	for _, t := range effective.order {
		definition, _ := s.catalog.Lookup(t)
		effective.byType[t] = ActivityTypeConfig{
			Type:    t,
			Title:   definition.Title,
			Points:  definition.DefaultPoints,
			Enabled: true,
		}
	}

	for _, override := range overrides {
		config, ok := effective.byType[override.Type]
		if !ok {
			s.logger.Warn().Uint("course_id", courseID).Str("type", string(override.Type)).Msg("ignoring override for unknown activity type")
			continue
		}
		if override.Points != nil {
			config.Points = *override.Points
		}
		if override.Enabled != nil {
			config.Enabled = *override.Enabled
		}
		effective.byType[override.Type] = config
	}

	return effective, nil
}

func (s *activityTypeService) List(ctx context.Context, courseID uint) ([]dto.ActivityTypeConfigResponse, error) {
	effective, err := s.GetEffectiveConfig(ctx, courseID)
	if err != nil {
		return nil, err
	}
	return toConfigResponses(effective), nil
}

func (s *activityTypeService) ApplyOverrides(ctx context.Context, caller Caller, courseID uint, payload dto.ActivityTypeUpdateRequest) ([]dto.ActivityTypeConfigResponse, error) {
	if !caller.IsAdmin || caller.CourseID != courseID {
		return nil, apierr.Authorization("only course administrators may configure activity types")
	}
	if err := s.validator.Struct(payload); err != nil {
		return nil, err
	}

	existing, err := s.repo.ListOverrides(ctx, courseID)
	if err != nil {
		return nil, apierr.Storage(err, "load activity type overrides")
	}
	merged := make(map[models.ActivityType]models.ActivityTypeOverride, len(existing))
	for _, override := range existing {
		merged[override.Type] = override
	}

	order := make([]models.ActivityType, 0, len(payload.Updates))
	for _, update := range payload.Updates {
		t := models.ActivityType(update.Type)
		if _, err := s.catalog.Require(t); err != nil {
			return nil, err
		}

		override, seen := merged[t]
		if !seen {
			override = models.ActivityTypeOverride{CourseID: courseID, Type: t}
		}
		if update.Points != nil {
			points := *update.Points
			override.Points = &points
		}
		if update.Enabled != nil {
			enabled := *update.Enabled
			override.Enabled = &enabled
		}
		if _, queued := indexOfType(order, t); !queued {
			order = append(order, t)
		}
		merged[t] = override
	}

	batch := make([]models.ActivityTypeOverride, 0, len(order))
	for _, t := range order {
		override := merged[t]
		override.ID = 0
		override.CreatedAt = time.Time{}
		override.UpdatedAt = time.Time{}
		batch = append(batch, override)
	}
	if err := s.repo.UpsertOverrides(ctx, batch); err != nil {
		return nil, apierr.Storage(err, "save activity type overrides")
	}

	s.logger.Info().
		Uint("course_id", courseID).
		Uint("user_id", caller.UserID).
		Int("types", len(batch)).
		Msg("activity type configuration updated")

	s.mu.RLock()
	listeners := append([]ActivityTypesChangedListener(nil), s.listeners...)
	s.mu.RUnlock()
	for _, listener := range listeners {
		listener.ActivityTypesChanged(ctx, courseID)
	}

	return s.List(ctx, courseID)
}

func toConfigResponses(effective EffectiveConfig) []dto.ActivityTypeConfigResponse {
	configs := effective.List()
	responses := make([]dto.ActivityTypeConfigResponse, 0, len(configs))
	for _, config := range configs {
		responses = append(responses, dto.ActivityTypeConfigResponse{
			Type:    config.Type,
			Title:   config.Title,
			Points:  config.Points,
			Enabled: config.Enabled,
		})
	}
	return responses
}

func indexOfType(types []models.ActivityType, t models.ActivityType) (int, bool) {
	for i, candidate := range types {
		if candidate == t {
			return i, true
		}
	}
	return -1, false
}
