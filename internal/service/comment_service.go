package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/suitec-go-api/internal/apierr"
	"github.com/noah-isme/suitec-go-api/internal/dto"
	"github.com/noah-isme/suitec-go-api/internal/models"
	"github.com/noah-isme/suitec-go-api/internal/repository"
)

var commentActivityTypes = []models.ActivityType{
	models.ActivityAssetComment,
	models.ActivityGetAssetComment,
	models.ActivityGetAssetCommentReply,
}

// CommentService creates and deletes asset comments together with their activities.
type CommentService interface {
	CreateComment(ctx context.Context, caller Caller, assetID uint, payload dto.CommentRequest) (dto.CommentResponse, error)
	DeleteComment(ctx context.Context, caller Caller, commentID uint) error
}

type commentService struct {
	comments  repository.CommentRepository
	assets    repository.AssetRepository
	scores    ScoreService
	resolver  reciprocalResolver
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// NewCommentService constructs the comment service.
func NewCommentService(
	comments repository.CommentRepository,
	assets repository.AssetRepository,
	ledger ActivityService,
	scores ScoreService,
	validate *validator.Validate,
	logger zerolog.Logger,
) CommentService {
	if validate == nil {
		validate = validator.New()
	}
	scoped := logger.With().Str("component", "comment_service").Logger()
	return &commentService{
		comments:  comments,
		assets:    assets,
		scores:    scores,
		resolver:  reciprocalResolver{ledger: ledger, logger: scoped},
		validator: validate,
		sanitizer: bluemonday.UGCPolicy(),
		logger:    scoped,
	}
}

func (s *commentService) CreateComment(ctx context.Context, caller Caller, assetID uint, payload dto.CommentRequest) (dto.CommentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.CommentResponse{}, err
	}
	body := strings.TrimSpace(s.sanitizer.Sanitize(payload.Body))
	if body == "" {
		return dto.CommentResponse{}, apierr.Validation("comment body is empty after sanitization")
	}

	asset, err := s.loadAsset(ctx, caller.CourseID, assetID)
	if err != nil {
		return dto.CommentResponse{}, err
	}

	var parent *models.Comment
	if payload.ParentID != nil {
		loaded, err := s.loadComment(ctx, caller.CourseID, *payload.ParentID)
		if err != nil {
			return dto.CommentResponse{}, err
		}
		if loaded.AssetID != asset.ID {
			return dto.CommentResponse{}, apierr.Validation("comment %d does not belong to asset %d", loaded.ID, asset.ID)
		}
		parent = &loaded
	}

	comment := models.Comment{
		CourseID: caller.CourseID,
		AssetID:  asset.ID,
		UserID:   caller.UserID,
		ParentID: payload.ParentID,
		Body:     body,
	}
	if err := s.comments.Create(ctx, &comment); err != nil {
		return dto.CommentResponse{}, apierr.Storage(err, "create comment")
	}

	if _, err := s.resolver.apply(ctx, planComment(caller.CourseID, asset, comment, parent)); err != nil {
		if deleteErr := s.comments.Delete(ctx, comment.ID); deleteErr != nil {
			s.logger.Error().Err(deleteErr).Uint("comment_id", comment.ID).Msg("failed to remove comment after ledger failure")
		}
		return dto.CommentResponse{}, err
	}

	if err := s.assets.IncrementCounters(ctx, asset.ID, map[string]int{"comment_count": 1}); err != nil {
		s.logger.Warn().Err(err).Uint("asset_id", asset.ID).Msg("failed to increment comment count")
	}
	s.refreshScores(ctx, caller.CourseID, asset.ID)

	return dto.NewCommentResponse(comment), nil
}

// DeleteComment removes a reply-free comment and every activity it produced.
func (s *commentService) DeleteComment(ctx context.Context, caller Caller, commentID uint) error {
	comment, err := s.loadComment(ctx, caller.CourseID, commentID)
	if err != nil {
		return err
	}
	if comment.UserID != caller.UserID && !caller.IsAdmin {
		return apierr.Authorization("only the author or a course administrator may delete comment %d", commentID)
	}

	replies, err := s.comments.CountReplies(ctx, comment.ID)
	if err != nil {
		return apierr.Storage(err, "count comment replies")
	}
	if replies > 0 {
		return apierr.Validation("comment %d has replies and cannot be deleted", commentID)
	}

	if _, err := s.resolver.revert(ctx, caller.CourseID, comment.UserID, commentActivityTypes, models.ObjectComment, int64(comment.ID)); err != nil {
		return err
	}
	if err := s.comments.Delete(ctx, comment.ID); err != nil {
		return apierr.Storage(err, "delete comment")
	}

	if err := s.assets.IncrementCounters(ctx, comment.AssetID, map[string]int{"comment_count": -1}); err != nil {
		s.logger.Warn().Err(err).Uint("asset_id", comment.AssetID).Msg("failed to decrement comment count")
	}
	s.refreshScores(ctx, caller.CourseID, comment.AssetID)
	return nil
}

func (s *commentService) loadAsset(ctx context.Context, courseID, assetID uint) (models.Asset, error) {
	asset, err := s.assets.GetByID(ctx, courseID, assetID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Asset{}, apierr.NotFound("asset %d not found", assetID)
		}
		return models.Asset{}, apierr.Storage(err, "load asset")
	}
	return asset, nil
}

func (s *commentService) loadComment(ctx context.Context, courseID, commentID uint) (models.Comment, error) {
	comment, err := s.comments.GetByID(ctx, courseID, commentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Comment{}, apierr.NotFound("comment %d not found", commentID)
		}
		return models.Comment{}, apierr.Storage(err, "load comment")
	}
	return comment, nil
}

func (s *commentService) refreshScores(ctx context.Context, courseID, assetID uint) {
	if s.scores == nil {
		return
	}
	if err := s.scores.RefreshAsset(ctx, courseID, assetID); err != nil {
		s.logger.Warn().Err(err).Uint("asset_id", assetID).Msg("failed to refresh asset scores")
	}
}
