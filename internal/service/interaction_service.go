package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/suitec-go-api/internal/apierr"
	"github.com/noah-isme/suitec-go-api/internal/models"
	"github.com/noah-isme/suitec-go-api/internal/repository"
)

// InteractionService turns asset interactions into reciprocal ledger activities.
type InteractionService interface {
	AssetCreated(ctx context.Context, caller Caller, assetID uint) ([]models.Activity, error)
	ViewAsset(ctx context.Context, caller Caller, assetID uint) error
	// SetLike likes (true), dislikes (false) or clears (nil) the caller's reaction.
	SetLike(ctx context.Context, caller Caller, assetID uint, value *bool) error
	// Pin pins the asset and reports whether it counted as a repin.
	Pin(ctx context.Context, caller Caller, assetID uint) (bool, error)
	Unpin(ctx context.Context, caller Caller, assetID uint) error
	RemixWhiteboard(ctx context.Context, caller Caller, assetID uint, whiteboardID int64) error
}

type interactionService struct {
	assets       repository.AssetRepository
	interactions repository.InteractionRepository
	scores       ScoreService
	resolver     reciprocalResolver
	logger       zerolog.Logger
	tracer       trace.Tracer
}

// NewInteractionService constructs the asset interaction resolver.
func NewInteractionService(
	assets repository.AssetRepository,
	interactions repository.InteractionRepository,
	ledger ActivityService,
	scores ScoreService,
	logger zerolog.Logger,
) InteractionService {
	scoped := logger.With().Str("component", "interaction_service").Logger()
	return &interactionService{
		assets:       assets,
		interactions: interactions,
		scores:       scores,
		resolver:     reciprocalResolver{ledger: ledger, logger: scoped},
		logger:       scoped,
		tracer:       otel.Tracer("github.com/noah-isme/suitec-go-api/internal/service/interaction"),
	}
}

func (s *interactionService) AssetCreated(ctx context.Context, caller Caller, assetID uint) ([]models.Activity, error) {
	ctx, span := s.startSpan(ctx, "interactions.asset_created", caller, assetID)
	defer span.End()

	asset, err := s.loadAsset(ctx, caller.CourseID, assetID)
	if err != nil {
		return nil, err
	}
	if !asset.IsOwnedBy(caller.UserID) {
		return nil, apierr.Authorization("only an owner of asset %d can register its creation", assetID)
	}

	recipients := []uint{caller.UserID}
	activityType := models.ActivityAddAsset
	if asset.Source == models.AssetSourceWhiteboard {
		activityType = models.ActivityExportWhiteboard
		recipients = asset.OwnerIDs()
	}

	var plan interactionPlan
	assetRef := asset.ID
	for _, userID := range recipients {
		plan.recipients = append(plan.recipients, ActivityInput{
			CourseID:   caller.CourseID,
			UserID:     userID,
			ActorID:    userID,
			Type:       activityType,
			ObjectType: models.ObjectAsset,
			ObjectID:   int64(asset.ID),
			AssetID:    &assetRef,
			Metadata:   map[string]interface{}{"assetType": asset.Type},
		})
	}

	created, err := s.resolver.apply(ctx, plan)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return created, nil
}

func (s *interactionService) ViewAsset(ctx context.Context, caller Caller, assetID uint) error {
	ctx, span := s.startSpan(ctx, "interactions.view", caller, assetID)
	defer span.End()

	asset, err := s.loadAsset(ctx, caller.CourseID, assetID)
	if err != nil {
		return err
	}

	plan := planAssetInteraction(caller.CourseID, caller.UserID, asset, assetInteraction{
		actorType:     models.ActivityViewAsset,
		recipientType: models.ActivityGetViewAsset,
		selfExcluded:  true,
	})
	if plan.empty() {
		return nil
	}

	if _, err := s.resolver.apply(ctx, plan); err != nil {
		span.RecordError(err)
		return err
	}
	if err := s.assets.IncrementCounters(ctx, asset.ID, map[string]int{"views": 1}); err != nil {
		return apierr.Storage(err, "increment asset views")
	}
	s.refreshScores(ctx, caller.CourseID, asset.ID)
	return nil
}

func (s *interactionService) SetLike(ctx context.Context, caller Caller, assetID uint, value *bool) error {
	ctx, span := s.startSpan(ctx, "interactions.like", caller, assetID)
	defer span.End()

	asset, err := s.loadAsset(ctx, caller.CourseID, assetID)
	if err != nil {
		return err
	}

	// Owners' own reactions are neither stored nor counted; clearing one still goes through.
	if value != nil && asset.IsOwnedBy(caller.UserID) {
		return nil
	}

	existing, err := s.interactions.FindLike(ctx, asset.ID, caller.UserID)
	hasExisting := err == nil
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return apierr.Storage(err, "load like")
	}
	if !hasExisting && value == nil {
		return nil
	}
	if hasExisting && value != nil && existing.Value == *value {
		return nil
	}

	counters := map[string]int{}
	if hasExisting {
		actorType, recipientType, column := likeTypes(existing.Value)
		if _, err := s.resolver.revert(ctx, caller.CourseID, caller.UserID, []models.ActivityType{actorType, recipientType}, models.ObjectAsset, int64(asset.ID)); err != nil {
			span.RecordError(err)
			return err
		}
		counters[column]--
	}

	if value != nil {
		actorType, recipientType, column := likeTypes(*value)
		plan := planAssetInteraction(caller.CourseID, caller.UserID, asset, assetInteraction{
			actorType:     actorType,
			recipientType: recipientType,
			selfExcluded:  true,
		})
		if _, err := s.resolver.apply(ctx, plan); err != nil {
			span.RecordError(err)
			if hasExisting {
				s.restoreLike(ctx, caller, asset, existing.Value)
			}
			return err
		}
		counters[column]++

		like := existing
		like.AssetID = asset.ID
		like.UserID = caller.UserID
		like.Value = *value
		if err := s.interactions.SaveLike(ctx, &like); err != nil {
			return apierr.Storage(err, "save like")
		}
	} else if err := s.interactions.DeleteLike(ctx, existing.ID); err != nil {
		return apierr.Storage(err, "delete like")
	}

	if err := s.assets.IncrementCounters(ctx, asset.ID, counters); err != nil {
		return apierr.Storage(err, "update like counters")
	}
	s.refreshScores(ctx, caller.CourseID, asset.ID)
	return nil
}

func (s *interactionService) Pin(ctx context.Context, caller Caller, assetID uint) (bool, error) {
	ctx, span := s.startSpan(ctx, "interactions.pin", caller, assetID)
	defer span.End()

	asset, err := s.loadAsset(ctx, caller.CourseID, assetID)
	if err != nil {
		return false, err
	}

	pin, err := s.interactions.FindPin(ctx, asset.ID, caller.UserID)
	found := err == nil
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, apierr.Storage(err, "load pin")
	}
	if found && !pin.DeletedAt.Valid {
		return false, apierr.Validation("asset %d is already pinned", asset.ID)
	}

	repin := found
	if repin {
		if err := s.interactions.RestorePin(ctx, pin.ID); err != nil {
			return false, apierr.Storage(err, "restore pin")
		}
	} else {
		pin = models.Pin{AssetID: asset.ID, UserID: caller.UserID}
		if err := s.interactions.CreatePin(ctx, &pin); err != nil {
			return false, apierr.Storage(err, "create pin")
		}
	}

	actorType, recipientType := pinTypes(repin)
	plan := planAssetInteraction(caller.CourseID, caller.UserID, asset, assetInteraction{
		actorType:     actorType,
		recipientType: recipientType,
	})
	if _, err := s.resolver.apply(ctx, plan); err != nil {
		span.RecordError(err)
		s.undoPin(ctx, pin, repin)
		return false, err
	}

	s.refreshScores(ctx, caller.CourseID, asset.ID)
	return repin, nil
}

func (s *interactionService) Unpin(ctx context.Context, caller Caller, assetID uint) error {
	ctx, span := s.startSpan(ctx, "interactions.unpin", caller, assetID)
	defer span.End()

	asset, err := s.loadAsset(ctx, caller.CourseID, assetID)
	if err != nil {
		return err
	}

	pin, err := s.interactions.FindPin(ctx, asset.ID, caller.UserID)
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && pin.DeletedAt.Valid) {
		return apierr.NotFound("asset %d is not pinned", asset.ID)
	}
	if err != nil {
		return apierr.Storage(err, "load pin")
	}

	actorType, recipientType := pinTypes(pin.Repinned)
	if _, err := s.resolver.revert(ctx, caller.CourseID, caller.UserID, []models.ActivityType{actorType, recipientType}, models.ObjectAsset, int64(asset.ID)); err != nil {
		span.RecordError(err)
		return err
	}
	if err := s.interactions.DeletePin(ctx, pin.ID); err != nil {
		return apierr.Storage(err, "delete pin")
	}

	s.refreshScores(ctx, caller.CourseID, asset.ID)
	return nil
}

func (s *interactionService) RemixWhiteboard(ctx context.Context, caller Caller, assetID uint, whiteboardID int64) error {
	ctx, span := s.startSpan(ctx, "interactions.remix", caller, assetID)
	defer span.End()

	asset, err := s.loadAsset(ctx, caller.CourseID, assetID)
	if err != nil {
		return err
	}
	if asset.Type != models.AssetTypeWhiteboard {
		return apierr.Validation("asset %d is not a whiteboard", asset.ID)
	}

	plan := planAssetInteraction(caller.CourseID, caller.UserID, asset, assetInteraction{
		actorType:     models.ActivityRemixWhiteboard,
		recipientType: models.ActivityGetRemixWhiteboard,
		metadata:      map[string]interface{}{"whiteboardId": whiteboardID},
	})
	if _, err := s.resolver.apply(ctx, plan); err != nil {
		span.RecordError(err)
		return err
	}

	s.refreshScores(ctx, caller.CourseID, asset.ID)
	return nil
}

// undoPin puts the pin row back the way it was before a failed pin. A first pin is purged so the
// retry is still a first pin; a repin goes back to its unpinned state.
func (s *interactionService) undoPin(ctx context.Context, pin models.Pin, repin bool) {
	var err error
	if repin {
		err = s.interactions.RevertPin(ctx, pin)
	} else {
		err = s.interactions.PurgePin(ctx, pin.ID)
	}
	if err != nil {
		s.logger.Error().Err(err).Uint("pin_id", pin.ID).Bool("repin", repin).Msg("failed to undo pin after ledger failure")
	}
}

// restoreLike re-applies the previous reaction after a failed switch.
func (s *interactionService) restoreLike(ctx context.Context, caller Caller, asset models.Asset, previous bool) {
	actorType, recipientType, _ := likeTypes(previous)
	plan := planAssetInteraction(caller.CourseID, caller.UserID, asset, assetInteraction{
		actorType:     actorType,
		recipientType: recipientType,
		selfExcluded:  true,
	})
	if _, err := s.resolver.apply(ctx, plan); err != nil {
		s.logger.Error().Err(err).Uint("asset_id", asset.ID).Uint("user_id", caller.UserID).Msg("failed to restore previous reaction")
	}
}

func (s *interactionService) loadAsset(ctx context.Context, courseID, assetID uint) (models.Asset, error) {
	asset, err := s.assets.GetByID(ctx, courseID, assetID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Asset{}, apierr.NotFound("asset %d not found", assetID)
		}
		return models.Asset{}, apierr.Storage(err, "load asset")
	}
	return asset, nil
}

// refreshScores keeps the touched asset's cached scores current. Failures are repaired by the
// scheduled recalculation and do not fail the interaction.
func (s *interactionService) refreshScores(ctx context.Context, courseID, assetID uint) {
	if s.scores == nil {
		return
	}
	if err := s.scores.RefreshAsset(ctx, courseID, assetID); err != nil {
		s.logger.Warn().Err(err).Uint("asset_id", assetID).Msg("failed to refresh asset scores")
	}
}

func (s *interactionService) startSpan(ctx context.Context, name string, caller Caller, assetID uint) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.Int64("course.id", int64(caller.CourseID)),
		attribute.Int64("user.id", int64(caller.UserID)),
		attribute.Int64("asset.id", int64(assetID)),
	))
}

func likeTypes(value bool) (models.ActivityType, models.ActivityType, string) {
	if value {
		return models.ActivityLike, models.ActivityGetLike, "likes"
	}
	return models.ActivityDislike, models.ActivityGetDislike, "dislikes"
}

func pinTypes(repin bool) (models.ActivityType, models.ActivityType) {
	if repin {
		return models.ActivityRepinAsset, models.ActivityGetRepinAsset
	}
	return models.ActivityPinAsset, models.ActivityGetPinAsset
}
