package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/suitec-go-api/internal/apierr"
	"github.com/noah-isme/suitec-go-api/internal/dto"
	"github.com/noah-isme/suitec-go-api/internal/models"
	"github.com/noah-isme/suitec-go-api/internal/observability"
	"github.com/noah-isme/suitec-go-api/internal/repository"
)

// Score recalculation kinds.
const (
	ScoreKindImpact   = "impact"
	ScoreKindTrending = "trending"
	ScoreKindAll      = "all"
)

// ScoreService rebuilds the cached impact and trending scores of assets from the ledger.
type ScoreService interface {
	RecalculateImpactScores(ctx context.Context, courseID uint) (dto.ScoreRecalculationResponse, error)
	RecalculateTrendingScores(ctx context.Context, courseID uint) (dto.ScoreRecalculationResponse, error)
	Recalculate(ctx context.Context, caller Caller, courseID uint, payload dto.ScoreRecalculationRequest) (dto.ScoreRecalculationResponse, error)
	RecalculateActiveCourses(ctx context.Context, kind string) error
	RefreshAsset(ctx context.Context, courseID, assetID uint) error
}

type scoreService struct {
	activities     repository.ActivityRepository
	assets         repository.AssetRepository
	courses        repository.CourseRepository
	registry       ActivityTypeService
	catalog        *ActivityCatalog
	validator      *validator.Validate
	trendingWindow time.Duration
	logger         zerolog.Logger
	tracer         trace.Tracer
	now            func() time.Time
}

// NewScoreService constructs the score recalculation engine.
func NewScoreService(
	activities repository.ActivityRepository,
	assets repository.AssetRepository,
	courses repository.CourseRepository,
	registry ActivityTypeService,
	catalog *ActivityCatalog,
	validate *validator.Validate,
	trendingWindow time.Duration,
	logger zerolog.Logger,
) ScoreService {
	if catalog == nil {
		catalog = DefaultActivityCatalog()
	}
	if validate == nil {
		validate = validator.New()
	}
	if trendingWindow <= 0 {
		trendingWindow = 7 * 24 * time.Hour
	}
	return &scoreService{
		activities:     activities,
		assets:         assets,
		courses:        courses,
		registry:       registry,
		catalog:        catalog,
		validator:      validate,
		trendingWindow: trendingWindow,
		logger:         logger.With().Str("component", "score_service").Logger(),
		tracer:         otel.Tracer("github.com/noah-isme/suitec-go-api/internal/service/score"),
		now:            time.Now,
	}
}

func (s *scoreService) RecalculateImpactScores(ctx context.Context, courseID uint) (dto.ScoreRecalculationResponse, error) {
	return s.recalculate(ctx, courseID, ScoreKindImpact)
}

func (s *scoreService) RecalculateTrendingScores(ctx context.Context, courseID uint) (dto.ScoreRecalculationResponse, error) {
	return s.recalculate(ctx, courseID, ScoreKindTrending)
}

func (s *scoreService) Recalculate(ctx context.Context, caller Caller, courseID uint, payload dto.ScoreRecalculationRequest) (dto.ScoreRecalculationResponse, error) {
	if !caller.IsAdmin || caller.CourseID != courseID {
		return dto.ScoreRecalculationResponse{}, apierr.Authorization("only course administrators may recalculate scores")
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.ScoreRecalculationResponse{}, err
	}
	return s.recalculate(ctx, courseID, payload.Kind)
}

// RecalculateActiveCourses runs one kind over every active course, continuing past failures.
func (s *scoreService) RecalculateActiveCourses(ctx context.Context, kind string) error {
	courses, err := s.courses.ListActive(ctx)
	if err != nil {
		return apierr.Storage(err, "list active courses")
	}
	for _, course := range courses {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := s.recalculate(ctx, course.ID, kind); err != nil {
			s.logger.Error().Err(err).Uint("course_id", course.ID).Str("kind", kind).Msg("score recalculation failed")
		}
	}
	return nil
}

func (s *scoreService) RefreshAsset(ctx context.Context, courseID, assetID uint) error {
	config, err := s.registry.GetEffectiveConfig(ctx, courseID)
	if err != nil {
		return err
	}
	types := s.creditTypes(config)

	id := assetID
	impact, err := s.sumCredits(ctx, courseID, types, config, &id, nil)
	if err != nil {
		return err
	}
	since := s.now().UTC().Add(-s.trendingWindow)
	trending, err := s.sumCredits(ctx, courseID, types, config, &id, &since)
	if err != nil {
		return err
	}

	impactScore := impact[assetID]
	trendingScore := trending[assetID]
	if err := s.assets.UpdateScores(ctx, assetID, repository.AssetScores{Impact: &impactScore, Trending: &trendingScore}); err != nil {
		return apierr.Storage(err, "update asset scores")
	}
	return nil
}

func (s *scoreService) recalculate(ctx context.Context, courseID uint, kind string) (dto.ScoreRecalculationResponse, error) {
	spanCtx, span := s.tracer.Start(ctx, "scores.recalculate", trace.WithAttributes(
		attribute.Int64("course.id", int64(courseID)),
		attribute.String("scores.kind", kind),
	))
	defer span.End()

	response := dto.ScoreRecalculationResponse{CourseID: courseID}

	config, err := s.registry.GetEffectiveConfig(spanCtx, courseID)
	if err != nil {
		span.RecordError(err)
		return response, err
	}
	assets, err := s.assets.ListByCourse(spanCtx, courseID)
	if err != nil {
		span.RecordError(err)
		return response, apierr.Storage(err, "list course assets")
	}
	response.Assets = len(assets)
	types := s.creditTypes(config)

	var impact, trending map[uint]int
	if kind == ScoreKindImpact || kind == ScoreKindAll {
		if impact, err = s.sumCredits(spanCtx, courseID, types, config, nil, nil); err != nil {
			span.RecordError(err)
			return response, err
		}
	}
	if kind == ScoreKindTrending || kind == ScoreKindAll {
		since := s.now().UTC().Add(-s.trendingWindow)
		if trending, err = s.sumCredits(spanCtx, courseID, types, config, nil, &since); err != nil {
			span.RecordError(err)
			return response, err
		}
	}
	if impact == nil && trending == nil {
		return response, apierr.Validation("unknown score kind %q", kind)
	}

	for _, asset := range assets {
		var scores repository.AssetScores
		if impact != nil && impact[asset.ID] != asset.ImpactScore {
			value := impact[asset.ID]
			scores.Impact = &value
			response.ImpactChanged++
		}
		if trending != nil && trending[asset.ID] != asset.TrendingScore {
			value := trending[asset.ID]
			scores.Trending = &value
			response.TrendChanged++
		}
		if scores.Impact == nil && scores.Trending == nil {
			continue
		}
		if err := s.assets.UpdateScores(spanCtx, asset.ID, scores); err != nil {
			span.RecordError(err)
			return response, apierr.Storage(err, "update asset scores")
		}
	}

	observability.ScoreRecalculations().WithLabelValues(kind).Inc()
	s.logger.Info().
		Uint("course_id", courseID).
		Str("kind", kind).
		Int("assets", response.Assets).
		Int("impact_changed", response.ImpactChanged).
		Int("trending_changed", response.TrendChanged).
		Msg("asset scores recalculated")

	return response, nil
}

// creditTypes are the impact-credit types that are currently enabled.
func (s *scoreService) creditTypes(config EffectiveConfig) []models.ActivityType {
	types := make([]models.ActivityType, 0)
	for _, t := range s.catalog.ImpactTypes() {
		if config.Enabled(t) {
			types = append(types, t)
		}
	}
	return types
}

// sumCredits weights every crediting activity by its type's configured points, keyed by asset.
func (s *scoreService) sumCredits(ctx context.Context, courseID uint, types []models.ActivityType, config EffectiveConfig, assetID *uint, since *time.Time) (map[uint]int, error) {
	scores := make(map[uint]int)
	if len(types) == 0 {
		return scores, nil
	}

	activities, err := s.activities.List(ctx, repository.ActivityFilter{
		CourseID: courseID,
		Types:    types,
		AssetID:  assetID,
		Since:    since,
	})
	if err != nil {
		return nil, apierr.Storage(err, "list crediting activities")
	}

	for _, activity := range activities {
		if activity.AssetID == nil {
			continue
		}
		scores[*activity.AssetID] += config.PointsFor(activity.Type)
	}
	return scores, nil
}
