package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/suitec-go-api/internal/apierr"
	"github.com/noah-isme/suitec-go-api/internal/models"
	"github.com/noah-isme/suitec-go-api/internal/repository"
	"github.com/noah-isme/suitec-go-api/pkg/canvas"
)

// FileStorage abstracts the object store asset files are copied into. Names are slash-separated
// paths relative to the store's root folder.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// FileFetcher downloads submission attachments from the LMS.
type FileFetcher interface {
	DownloadFile(ctx context.Context, url string) ([]byte, error)
}

// SubmissionImport is one submission to turn into assets owned by its submitter.
type SubmissionImport struct {
	CourseID   uint
	UserID     uint
	CategoryID uint
	Title      string
	Submission canvas.Submission
}

// AssetService owns the assets the poller discovers and supersedes.
type AssetService interface {
	ImportSubmission(ctx context.Context, input SubmissionImport) ([]uint, error)
	DeleteAssets(ctx context.Context, ids []uint) error
}

type assetService struct {
	assets  repository.AssetRepository
	storage FileStorage
	fetcher FileFetcher
	maxSize int64
	logger  zerolog.Logger
	tracer  trace.Tracer
}

// NewAssetService constructs the asset service. With a nil storage, attachments keep their LMS URL.
func NewAssetService(assets repository.AssetRepository, storage FileStorage, fetcher FileFetcher, maxSizeMB int, logger zerolog.Logger) AssetService {
	if maxSizeMB <= 0 {
		maxSizeMB = 50
	}
	return &assetService{
		assets:  assets,
		storage: storage,
		fetcher: fetcher,
		maxSize: int64(maxSizeMB) * 1024 * 1024,
		logger:  logger.With().Str("component", "asset_service").Logger(),
		tracer:  otel.Tracer("github.com/noah-isme/suitec-go-api/internal/service/assets"),
	}
}

// ImportSubmission creates one link asset for URL submissions or one file asset per attachment.
// Assets created before a failure are deleted again.
func (s *assetService) ImportSubmission(ctx context.Context, input SubmissionImport) ([]uint, error) {
	ctx, span := s.tracer.Start(ctx, "assets.import_submission", trace.WithAttributes(
		attribute.Int64("course.id", int64(input.CourseID)),
		attribute.Int64("canvas.submission_id", input.Submission.ID),
		attribute.String("canvas.submission_type", input.Submission.SubmissionType),
	))
	defer span.End()

	var drafts []models.Asset
	switch input.Submission.SubmissionType {
	case "online_url":
		if strings.TrimSpace(input.Submission.URL) == "" {
			return nil, nil
		}
		drafts = append(drafts, models.Asset{
			Type:  models.AssetTypeLink,
			Title: firstNonEmpty(input.Title, input.Submission.URL),
			URL:   input.Submission.URL,
		})
	case "online_upload":
		for _, attachment := range input.Submission.Attachments {
			draft, err := s.fileAsset(ctx, input, attachment)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "attachment failed")
				return nil, err
			}
			drafts = append(drafts, draft)
		}
	default:
		return nil, nil
	}

	ids := make([]uint, 0, len(drafts))
	for _, draft := range drafts {
		draft.CourseID = input.CourseID
		draft.Source = models.AssetSourceSubmission
		draft.Visible = true

		var categories []uint
		if input.CategoryID != 0 {
			categories = []uint{input.CategoryID}
		}
		if err := s.assets.Create(ctx, &draft, []uint{input.UserID}, categories); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "persistence failed")
			if cleanupErr := s.DeleteAssets(ctx, ids); cleanupErr != nil {
				s.logger.Error().Err(cleanupErr).Msg("failed to remove partially imported assets")
			}
			return nil, apierr.Storage(err, "create submission asset")
		}
		ids = append(ids, draft.ID)
	}

	s.logger.Info().
		Uint("course_id", input.CourseID).
		Uint("user_id", input.UserID).
		Int64("submission_id", input.Submission.ID).
		Int("assets", len(ids)).
		Msg("submission imported as assets")
	span.SetStatus(codes.Ok, "imported")

	return ids, nil
}

func (s *assetService) DeleteAssets(ctx context.Context, ids []uint) error {
	for _, id := range ids {
		if err := s.assets.Delete(ctx, id); err != nil {
			return apierr.Storage(err, "delete asset")
		}
	}
	return nil
}

func (s *assetService) fileAsset(ctx context.Context, input SubmissionImport, attachment canvas.Attachment) (models.Asset, error) {
	name := firstNonEmpty(attachment.DisplayName, attachment.Filename)
	asset := models.Asset{
		Type:     models.AssetTypeFile,
		Title:    name,
		URL:      attachment.URL,
		MimeType: normalizeAssetMime(attachment.ContentType),
	}
	if s.storage == nil {
		return asset, nil
	}
	if s.fetcher == nil {
		return models.Asset{}, apierr.External(errors.New("no file fetcher configured"), "download attachment")
	}
	if attachment.Size > s.maxSize {
		return models.Asset{}, apierr.Validation("attachment %d exceeds %d bytes", attachment.ID, s.maxSize)
	}

	data, err := s.fetcher.DownloadFile(ctx, attachment.URL)
	if err != nil {
		return models.Asset{}, apierr.External(err, fmt.Sprintf("download attachment %d", attachment.ID))
	}
	if int64(len(data)) > s.maxSize {
		return models.Asset{}, apierr.Validation("attachment %d exceeds %d bytes", attachment.ID, s.maxSize)
	}

	asset.MimeType = normalizeAssetMime(mimetype.Detect(data).String())
	url, err := s.storage.Upload(ctx, objectName(input, name), bytes.NewReader(data))
	if err != nil {
		return models.Asset{}, apierr.External(err, fmt.Sprintf("store attachment %d", attachment.ID))
	}
	asset.URL = url
	return asset, nil
}

// objectName files stored attachments under their course and submission.
func objectName(input SubmissionImport, name string) string {
	return path.Join(
		fmt.Sprintf("course-%d", input.CourseID),
		fmt.Sprintf("submission-%d", input.Submission.ID),
		assetFileName(name),
	)
}

func assetFileName(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	base := strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, base)
	base = strings.Trim(base, "-")
	if base == "" {
		base = fmt.Sprintf("attachment-%d", time.Now().Unix())
	}
	if ext == "" {
		ext = ".bin"
	}
	return base + ext
}

// normalizeAssetMime drops parameters such as charset.
func normalizeAssetMime(m string) string {
	lower := strings.ToLower(strings.TrimSpace(m))
	if idx := strings.Index(lower, ";"); idx >= 0 {
		lower = strings.TrimSpace(lower[:idx])
	}
	if lower == "" {
		return "application/octet-stream"
	}
	return lower
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
