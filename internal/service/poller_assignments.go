package service

import (
	"context"
	"encoding/json"

	"gorm.io/datatypes"

	"github.com/noah-isme/suitec-go-api/internal/apierr"
	"github.com/noah-isme/suitec-go-api/internal/models"
	"github.com/noah-isme/suitec-go-api/pkg/canvas"
)

// syncAssignments keeps one submission category per syncable assignment and records one
// submit_assignment activity per (user, assignment).
func (s *pollerService) syncAssignments(ctx context.Context, sync *courseSync) error {
	assignments, err := s.lms.GetAssignments(ctx, sync.ref)
	if err != nil {
		return apierr.External(err, "get assignments")
	}
	categories, err := s.categories.ListByCourse(ctx, sync.course.ID)
	if err != nil {
		return apierr.Storage(err, "list categories")
	}
	config, err := s.registry.GetEffectiveConfig(ctx, sync.course.ID)
	if err != nil {
		return err
	}

	byAssignment := make(map[int64]models.Category)
	for _, category := range categories {
		if category.CanvasAssignmentID != nil {
			byAssignment[*category.CanvasAssignmentID] = category
		}
	}

	listed := make(map[int64]bool, len(assignments))
	for _, assignment := range assignments {
		listed[assignment.ID] = true
		category, hasCategory := byAssignment[assignment.ID]

		if !assignment.Published || assignment.IsDiscussion() || !assignment.AcceptsContent() {
			if hasCategory {
				if err := s.categories.Delete(ctx, category.ID); err != nil {
					return apierr.Storage(err, "delete assignment category")
				}
			}
			continue
		}

		switch {
		case !hasCategory:
			assignmentID := assignment.ID
			category = models.Category{
				CourseID:           sync.course.ID,
				Title:              assignment.Name,
				CanvasAssignmentID: &assignmentID,
			}
			if err := s.categories.Create(ctx, &category); err != nil {
				return apierr.Storage(err, "create assignment category")
			}
		case category.Title != assignment.Name:
			category.Title = assignment.Name
			if err := s.categories.Save(ctx, &category); err != nil {
				return apierr.Storage(err, "rename assignment category")
			}
		}

		if !assignment.HasSubmittedSubmissions {
			continue
		}
		if err := s.syncSubmissions(ctx, sync, config, category, assignment); err != nil {
			return err
		}
	}

	for assignmentID, category := range byAssignment {
		if listed[assignmentID] {
			continue
		}
		if err := s.categories.Delete(ctx, category.ID); err != nil {
			return apierr.Storage(err, "delete orphaned assignment category")
		}
	}
	return nil
}

func (s *pollerService) syncSubmissions(ctx context.Context, sync *courseSync, config EffectiveConfig, category models.Category, assignment canvas.Assignment) error {
	submissions, err := s.lms.GetSubmissions(ctx, sync.ref, assignment.ID)
	if err != nil {
		return apierr.External(err, "get submissions")
	}

	assignmentID := assignment.ID
	existing, err := s.ledger.GetActivities(ctx, ActivityQuery{
		CourseID:   sync.course.ID,
		Types:      []models.ActivityType{models.ActivitySubmitAssignment},
		ObjectType: models.ObjectCanvasSubmission,
		ObjectID:   &assignmentID,
	})
	if err != nil {
		return err
	}
	byUser := make(map[uint]models.Activity, len(existing))
	for _, activity := range existing {
		byUser[activity.UserID] = activity
	}

	for _, submission := range submissions {
		if !submission.Submitted() {
			continue
		}
		userID, ok := sync.userIDs[submission.UserID]
		if !ok {
			continue
		}

		var err error
		if activity, found := byUser[userID]; found {
			err = s.resubmit(ctx, sync, config, category, assignment, submission, userID, activity)
		} else {
			err = s.submit(ctx, sync, category, assignment, submission, userID)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *pollerService) submit(ctx context.Context, sync *courseSync, category models.Category, assignment canvas.Assignment, submission canvas.Submission, userID uint) error {
	assetIDs, err := s.importSubmission(ctx, sync, category, assignment, submission, userID)
	if err != nil {
		return err
	}

	input := ActivityInput{
		CourseID:   sync.course.ID,
		UserID:     userID,
		Type:       models.ActivitySubmitAssignment,
		ObjectType: models.ObjectCanvasSubmission,
		ObjectID:   assignment.ID,
		Metadata:   submissionMetadata(assignment, submission, category.CanvasAssignmentSyncEnabled, assetIDs),
	}
	if submission.SubmittedAt != nil {
		input.OccurredAt = *submission.SubmittedAt
	}

	if _, _, err := s.ledger.CreateActivity(ctx, input); err != nil {
		s.discardAssets(ctx, assetIDs)
		return err
	}
	return nil
}

// resubmit refreshes a known submission when its attempt or the category sync flag changed.
// Points move by the difference to the currently configured value while the type is enabled.
func (s *pollerService) resubmit(ctx context.Context, sync *courseSync, config EffectiveConfig, category models.Category, assignment canvas.Assignment, submission canvas.Submission, userID uint, activity models.Activity) error {
	previousAttempt, _ := metadataInt(activity.Metadata, "attempt")
	previousSync, _ := activity.Metadata["syncEnabled"].(bool)
	syncEnabled := category.CanvasAssignmentSyncEnabled
	if int64(submission.Attempt) == previousAttempt && syncEnabled == previousSync {
		return nil
	}

	previousAssets := metadataUints(activity.Metadata, "assetIds")
	assetIDs := previousAssets
	imported := false
	if syncEnabled {
		fresh, err := s.importSubmission(ctx, sync, category, assignment, submission, userID)
		if err != nil {
			return err
		}
		assetIDs = fresh
		imported = true
	}

	changes := ActivityChanges{Metadata: submissionMetadata(assignment, submission, syncEnabled, assetIDs)}
	// A disabled type keeps the points already banked.
	if config.Enabled(models.ActivitySubmitAssignment) {
		points := config.PointsFor(models.ActivitySubmitAssignment)
		changes.Points = &points
	}
	if _, err := s.ledger.UpdateActivity(ctx, activity, changes); err != nil {
		if imported {
			s.discardAssets(ctx, assetIDs)
		}
		return err
	}

	if imported {
		s.discardAssets(ctx, previousAssets)
	}
	s.logger.Debug().
		Uint("course_id", sync.course.ID).
		Uint("user_id", userID).
		Int64("assignment_id", assignment.ID).
		Int("attempt", submission.Attempt).
		Bool("sync_enabled", syncEnabled).
		Msg("submission re-synced")
	return nil
}

func (s *pollerService) importSubmission(ctx context.Context, sync *courseSync, category models.Category, assignment canvas.Assignment, submission canvas.Submission, userID uint) ([]uint, error) {
	if !category.CanvasAssignmentSyncEnabled || s.assets == nil {
		return []uint{}, nil
	}
	ids, err := s.assets.ImportSubmission(ctx, SubmissionImport{
		CourseID:   sync.course.ID,
		UserID:     userID,
		CategoryID: category.ID,
		Title:      assignment.Name,
		Submission: submission,
	})
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []uint{}
	}
	return ids, nil
}

func (s *pollerService) discardAssets(ctx context.Context, ids []uint) {
	if len(ids) == 0 || s.assets == nil {
		return
	}
	if err := s.assets.DeleteAssets(ctx, ids); err != nil {
		s.logger.Warn().Err(err).Interface("asset_ids", ids).Msg("failed to delete superseded submission assets")
	}
}

func submissionMetadata(assignment canvas.Assignment, submission canvas.Submission, syncEnabled bool, assetIDs []uint) map[string]interface{} {
	if assetIDs == nil {
		assetIDs = []uint{}
	}
	return map[string]interface{}{
		"assignmentId": assignment.ID,
		"submissionId": submission.ID,
		"attempt":      submission.Attempt,
		"syncEnabled":  syncEnabled,
		"assetIds":     assetIDs,
	}
}

// metadataInt reads an integer stored in a JSON column, which decodes numbers as float64.
func metadataInt(metadata datatypes.JSONMap, key string) (int64, bool) {
	switch value := metadata[key].(type) {
	case float64:
		return int64(value), true
	case int:
		return int64(value), true
	case int64:
		return value, true
	case uint:
		return int64(value), true
	case json.Number:
		parsed, err := value.Int64()
		return parsed, err == nil
	}
	return 0, false
}

func metadataUints(metadata datatypes.JSONMap, key string) []uint {
	switch values := metadata[key].(type) {
	case []uint:
		return append([]uint(nil), values...)
	case []interface{}:
		ids := make([]uint, 0, len(values))
		for _, value := range values {
			if id, ok := metadataInt(datatypes.JSONMap{"id": value}, "id"); ok && id > 0 {
				ids = append(ids, uint(id))
			}
		}
		return ids
	}
	return nil
}
