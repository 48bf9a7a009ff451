package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/suitec-go-api/internal/apierr"
	"github.com/noah-isme/suitec-go-api/internal/dto"
	"github.com/noah-isme/suitec-go-api/internal/models"
)

func TestRecalculateImpactRestoresLedgerTotals(t *testing.T) {
	h := newLedgerHarness(t)
	alice := h.user(1)
	asset := h.asset(models.AssetTypeLink, alice)

	for canvasID := int64(2); canvasID <= 4; canvasID++ {
		member := h.user(canvasID)
		require.NoError(t, h.interactions.SetLike(h.ctx, h.caller(member), asset.ID, boolPtr(true)))
		_, err := h.comments.CreateComment(h.ctx, h.caller(member), asset.ID, dto.CommentRequest{Body: "Good source"})
		require.NoError(t, err)
	}
	require.Equal(t, 12, h.reload(asset).ImpactScore)

	require.NoError(t, h.db.Model(&models.Asset{}).Where("id = ?", asset.ID).Update("impact_score", 400).Error)

	result, err := h.scores.RecalculateImpactScores(h.ctx, h.course.ID)
	require.NoError(t, err)
	require.Equal(t, 1, result.Assets)
	require.Equal(t, 1, result.ImpactChanged)
	require.Equal(t, 12, h.reload(asset).ImpactScore)

	result, err = h.scores.RecalculateImpactScores(h.ctx, h.course.ID)
	require.NoError(t, err)
	require.Equal(t, 0, result.ImpactChanged)
	require.Equal(t, 12, h.reload(asset).ImpactScore)
}

func TestTrendingCountsOnlyRecentActivity(t *testing.T) {
	h := newLedgerHarness(t)
	alice := h.user(1)
	bob := h.user(2)
	carol := h.user(3)
	asset := h.asset(models.AssetTypeLink, alice)
	assetID := asset.ID
	now := time.Now().UTC()

	for _, like := range []struct {
		member models.User
		age    time.Duration
	}{
		{bob, 5 * 24 * time.Hour},
		{carol, 8 * 24 * time.Hour},
	} {
		_, _, err := h.ledger.CreateActivity(h.ctx, ActivityInput{
			CourseID:   h.course.ID,
			UserID:     like.member.ID,
			Type:       models.ActivityLike,
			ObjectID:   int64(asset.ID),
			AssetID:    &assetID,
			OccurredAt: now.Add(-like.age),
		})
		require.NoError(t, err)
	}

	result, err := h.scores.Recalculate(h.ctx, h.caller(h.admin(9)), h.course.ID, dto.ScoreRecalculationRequest{Kind: ScoreKindAll})
	require.NoError(t, err)
	require.Equal(t, 1, result.TrendChanged)

	stored := h.reload(asset)
	require.Equal(t, 2, stored.ImpactScore)
	require.Equal(t, 1, stored.TrendingScore)
}

func TestDisabledTypesStopCountingTowardScores(t *testing.T) {
	h := newLedgerHarness(t)
	instructor := h.admin(9)
	alice := h.user(1)
	bob := h.user(2)
	asset := h.asset(models.AssetTypeLink, alice)

	require.NoError(t, h.interactions.SetLike(h.ctx, h.caller(bob), asset.ID, boolPtr(true)))
	_, err := h.comments.CreateComment(h.ctx, h.caller(bob), asset.ID, dto.CommentRequest{Body: "Useful"})
	require.NoError(t, err)
	require.Equal(t, 4, h.reload(asset).ImpactScore)

	h.configure(instructor, dto.ActivityTypeUpdate{Type: string(models.ActivityLike), Enabled: boolPtr(false)})
	_, err = h.scores.RecalculateImpactScores(h.ctx, h.course.ID)
	require.NoError(t, err)
	require.Equal(t, 3, h.reload(asset).ImpactScore)

	h.configure(instructor, dto.ActivityTypeUpdate{Type: string(models.ActivityLike), Enabled: boolPtr(true)})
	_, err = h.scores.RecalculateImpactScores(h.ctx, h.course.ID)
	require.NoError(t, err)
	require.Equal(t, 4, h.reload(asset).ImpactScore)
}

func TestRecalculateRequiresAdminAndKnownKind(t *testing.T) {
	h := newLedgerHarness(t)
	student := h.user(1)
	instructor := h.admin(2)

	_, err := h.scores.Recalculate(h.ctx, h.caller(student), h.course.ID, dto.ScoreRecalculationRequest{Kind: ScoreKindImpact})
	require.Equal(t, apierr.CodeAuthorization, apierr.CodeOf(err))

	_, err = h.scores.Recalculate(h.ctx, h.caller(instructor), h.course.ID+1, dto.ScoreRecalculationRequest{Kind: ScoreKindImpact})
	require.Equal(t, apierr.CodeAuthorization, apierr.CodeOf(err))

	_, err = h.scores.Recalculate(h.ctx, h.caller(instructor), h.course.ID, dto.ScoreRecalculationRequest{Kind: "popularity"})
	require.Error(t, err)
}

func TestRecalculateActiveCoursesSkipsInactive(t *testing.T) {
	h := newLedgerHarness(t)
	alice := h.user(1)
	asset := h.asset(models.AssetTypeLink, alice)
	require.NoError(t, h.db.Model(&models.Asset{}).Where("id = ?", asset.ID).Update("impact_score", 7).Error)

	require.NoError(t, h.db.Model(&models.Course{}).Where("id = ?", h.course.ID).Update("active", false).Error)
	require.NoError(t, h.scores.RecalculateActiveCourses(h.ctx, ScoreKindImpact))
	require.Equal(t, 7, h.reload(asset).ImpactScore)

	require.NoError(t, h.db.Model(&models.Course{}).Where("id = ?", h.course.ID).Update("active", true).Error)
	require.NoError(t, h.scores.RecalculateActiveCourses(h.ctx, ScoreKindImpact))
	require.Equal(t, 0, h.reload(asset).ImpactScore)
}
