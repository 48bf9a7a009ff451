package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/suitec-go-api/internal/apierr"
	"github.com/noah-isme/suitec-go-api/internal/dto"
	"github.com/noah-isme/suitec-go-api/internal/models"
)

func TestCreateActivityIsIdempotent(t *testing.T) {
	h := newLedgerHarness(t)
	author := h.user(1)

	input := ActivityInput{CourseID: h.course.ID, UserID: author.ID, Type: models.ActivityAddAsset, ObjectID: 99}

	first, created, err := h.ledger.CreateActivity(h.ctx, input)
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, 5, first.Points)
	require.Equal(t, author.ID, first.ActorID)
	require.Equal(t, models.ObjectAsset, first.ObjectType)

	second, created, err := h.ledger.CreateActivity(h.ctx, input)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, second.ID)

	require.Equal(t, 1, h.count(models.ActivityAddAsset))
	require.Equal(t, 5, h.pointsOf(author))
}

func TestDeleteActivityRestoresPoints(t *testing.T) {
	h := newLedgerHarness(t)
	author := h.user(1)
	baseline := h.pointsOf(author)

	_, _, err := h.ledger.CreateActivity(h.ctx, ActivityInput{CourseID: h.course.ID, UserID: author.ID, Type: models.ActivityAddAsset, ObjectID: 7})
	require.NoError(t, err)
	require.Equal(t, baseline+5, h.pointsOf(author))

	removed, err := h.ledger.DeleteActivity(h.ctx, ActivityDeletion{
		CourseID:   h.course.ID,
		UserID:     author.ID,
		Types:      []models.ActivityType{models.ActivityAddAsset},
		ObjectType: models.ObjectAsset,
		ObjectID:   7,
	})
	require.NoError(t, err)
	require.Len(t, removed, 1)
	require.Equal(t, baseline, h.pointsOf(author))

	removed, err = h.ledger.DeleteActivity(h.ctx, ActivityDeletion{
		CourseID:   h.course.ID,
		UserID:     author.ID,
		Types:      []models.ActivityType{models.ActivityAddAsset},
		ObjectType: models.ObjectAsset,
		ObjectID:   7,
	})
	require.NoError(t, err, "deleting something that never existed is a no-op")
	require.Empty(t, removed)
	require.Equal(t, baseline, h.pointsOf(author))
}

func TestCreateActivityRejectsUnknownTypeAndBadMetadata(t *testing.T) {
	h := newLedgerHarness(t)
	member := h.user(1)

	_, _, err := h.ledger.CreateActivity(h.ctx, ActivityInput{CourseID: h.course.ID, UserID: member.ID, Type: "juggle", ObjectID: 1})
	require.Error(t, err)
	require.Equal(t, apierr.CodeValidation, apierr.CodeOf(err))

	_, _, err = h.ledger.CreateActivity(h.ctx, ActivityInput{
		CourseID: h.course.ID,
		UserID:   member.ID,
		Type:     models.ActivitySubmitAssignment,
		ObjectID: 11,
		Metadata: map[string]interface{}{"assignmentId": 11, "submissionId": 3},
	})
	require.Error(t, err)
	require.Equal(t, apierr.CodeValidation, apierr.CodeOf(err))
	require.Equal(t, 0, h.count(models.ActivitySubmitAssignment))
}

func TestDiscussionEntriesAreKeyedByEntry(t *testing.T) {
	h := newLedgerHarness(t)
	member := h.user(1)

	for _, entryID := range []int64{501, 502, 501} {
		_, _, err := h.ledger.CreateActivity(h.ctx, ActivityInput{
			CourseID: h.course.ID,
			UserID:   member.ID,
			Type:     models.ActivityDiscussionEntry,
			ObjectID: 40,
			Metadata: map[string]interface{}{"entryId": entryID},
		})
		require.NoError(t, err)
	}

	require.Equal(t, 2, h.count(models.ActivityDiscussionEntry))
	require.Equal(t, 6, h.pointsOf(member))

	_, _, err := h.ledger.CreateActivity(h.ctx, ActivityInput{CourseID: h.course.ID, UserID: member.ID, Type: models.ActivityDiscussionEntry, ObjectID: 40})
	require.Error(t, err)
	require.Equal(t, apierr.CodeValidation, apierr.CodeOf(err))
}

func TestDisablingTypeSuspendsFutureAccrualOnly(t *testing.T) {
	h := newLedgerHarness(t)
	instructor := h.admin(1)
	student := h.user(2)

	_, _, err := h.ledger.CreateActivity(h.ctx, ActivityInput{CourseID: h.course.ID, UserID: student.ID, Type: models.ActivityAddAsset, ObjectID: 1})
	require.NoError(t, err)
	require.Equal(t, 5, h.pointsOf(student))

	h.configure(instructor, dto.ActivityTypeUpdate{Type: string(models.ActivityAddAsset), Enabled: boolPtr(false)})

	disabled, created, err := h.ledger.CreateActivity(h.ctx, ActivityInput{CourseID: h.course.ID, UserID: student.ID, Type: models.ActivityAddAsset, ObjectID: 2})
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, 0, disabled.Points)
	require.Equal(t, 5, h.pointsOf(student), "banked points survive disabling")

	h.configure(instructor, dto.ActivityTypeUpdate{Type: string(models.ActivityAddAsset), Enabled: boolPtr(true)})

	_, _, err = h.ledger.CreateActivity(h.ctx, ActivityInput{CourseID: h.course.ID, UserID: student.ID, Type: models.ActivityAddAsset, ObjectID: 3})
	require.NoError(t, err)
	require.Equal(t, 10, h.pointsOf(student))

	// Deleting the activity created while disabled reverses exactly what it banked.
	_, err = h.ledger.DeleteActivity(h.ctx, ActivityDeletion{
		CourseID:   h.course.ID,
		Types:      []models.ActivityType{models.ActivityAddAsset},
		ObjectType: models.ObjectAsset,
		ObjectID:   2,
	})
	require.NoError(t, err)
	require.Equal(t, 10, h.pointsOf(student))
}

func TestCustomPointsApplyToNewActivities(t *testing.T) {
	h := newLedgerHarness(t)
	instructor := h.admin(1)
	student := h.user(2)

	h.configure(instructor, dto.ActivityTypeUpdate{Type: string(models.ActivityAddAsset), Points: intPtr(12)})

	activity, _, err := h.ledger.CreateActivity(h.ctx, ActivityInput{CourseID: h.course.ID, UserID: student.ID, Type: models.ActivityAddAsset, ObjectID: 1})
	require.NoError(t, err)
	require.Equal(t, 12, activity.Points)
	require.Equal(t, 12, h.pointsOf(student))
}

func TestUpdateActivityMovesPointsByDelta(t *testing.T) {
	h := newLedgerHarness(t)
	student := h.user(1)

	metadata := map[string]interface{}{"assignmentId": 11, "submissionId": 90, "attempt": 1}
	activity, _, err := h.ledger.CreateActivity(h.ctx, ActivityInput{
		CourseID:   h.course.ID,
		UserID:     student.ID,
		Type:       models.ActivitySubmitAssignment,
		ObjectType: models.ObjectCanvasSubmission,
		ObjectID:   11,
		Metadata:   metadata,
	})
	require.NoError(t, err)
	require.Equal(t, 20, h.pointsOf(student))

	updated, err := h.ledger.UpdateActivity(h.ctx, activity, ActivityChanges{
		Metadata: map[string]interface{}{"assignmentId": 11, "submissionId": 90, "attempt": 2},
	})
	require.NoError(t, err)
	require.Equal(t, 20, updated.Points)
	require.Equal(t, 20, h.pointsOf(student), "metadata-only updates never re-score")

	updated, err = h.ledger.UpdateActivity(h.ctx, updated, ActivityChanges{Points: intPtr(25)})
	require.NoError(t, err)
	require.Equal(t, 25, updated.Points)
	require.Equal(t, 25, h.pointsOf(student))

	stored, err := h.ledger.GetActivities(h.ctx, ActivityQuery{CourseID: h.course.ID, Types: []models.ActivityType{models.ActivitySubmitAssignment}})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	attempt, ok := metadataInt(stored[0].Metadata, "attempt")
	require.True(t, ok)
	require.Equal(t, int64(2), attempt)
	require.Equal(t, 25, stored[0].Points)
}

func TestUpdateActivityRejectsIdentityChange(t *testing.T) {
	h := newLedgerHarness(t)
	student := h.user(1)

	activity, _, err := h.ledger.CreateActivity(h.ctx, ActivityInput{
		CourseID: h.course.ID,
		UserID:   student.ID,
		Type:     models.ActivityDiscussionEntry,
		ObjectID: 40,
		Metadata: map[string]interface{}{"entryId": 1},
	})
	require.NoError(t, err)

	_, err = h.ledger.UpdateActivity(h.ctx, activity, ActivityChanges{Metadata: map[string]interface{}{"entryId": 2}})
	require.Error(t, err)
	require.Equal(t, apierr.CodeValidation, apierr.CodeOf(err))
}

func TestCreateActivityRollsBackWhenPointsCannotBeApplied(t *testing.T) {
	h := newLedgerHarness(t)

	_, _, err := h.ledger.CreateActivity(h.ctx, ActivityInput{CourseID: h.course.ID, UserID: 9999, Type: models.ActivityAddAsset, ObjectID: 1})
	require.Error(t, err)
	require.Equal(t, apierr.CodeNotFound, apierr.CodeOf(err))
	require.Equal(t, 0, h.count(models.ActivityAddAsset))
}

func TestCreateActivityBackdatesImportedActivities(t *testing.T) {
	h := newLedgerHarness(t)
	student := h.user(1)
	occurred := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	activity, _, err := h.ledger.CreateActivity(h.ctx, ActivityInput{
		CourseID:   h.course.ID,
		UserID:     student.ID,
		Type:       models.ActivityDiscussionTopic,
		ObjectID:   77,
		OccurredAt: occurred,
	})
	require.NoError(t, err)
	require.True(t, activity.CreatedAt.Equal(occurred))
}

func TestReconcileRepairsDriftedTotals(t *testing.T) {
	h := newLedgerHarness(t)
	student := h.user(1)
	bystander := h.user(2)

	_, _, err := h.ledger.CreateActivity(h.ctx, ActivityInput{CourseID: h.course.ID, UserID: student.ID, Type: models.ActivityAddAsset, ObjectID: 1})
	require.NoError(t, err)

	require.NoError(t, h.db.Model(&models.User{}).Where("id = ?", student.ID).Update("points", 400).Error)
	require.NoError(t, h.db.Model(&models.User{}).Where("id = ?", bystander.ID).Update("points", 3).Error)

	result, err := h.points.Reconcile(h.ctx, h.course.ID)
	require.NoError(t, err)
	require.Equal(t, 2, result.Users)
	require.Equal(t, 2, result.Corrected)
	require.Equal(t, 5, h.pointsOf(student))
	require.Equal(t, 0, h.pointsOf(bystander))

	result, err = h.points.Reconcile(h.ctx, h.course.ID)
	require.NoError(t, err)
	require.Equal(t, 0, result.Corrected)
}
