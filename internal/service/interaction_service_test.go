package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/suitec-go-api/internal/apierr"
	"github.com/noah-isme/suitec-go-api/internal/models"
	"github.com/noah-isme/suitec-go-api/internal/repository"
)

func (h *ledgerHarness) reload(asset models.Asset) models.Asset {
	h.t.Helper()
	stored, err := h.assetRepo.GetByID(h.ctx, h.course.ID, asset.ID)
	require.NoError(h.t, err)
	return stored
}

func TestLikeDislikeUndoScenario(t *testing.T) {
	h := newLedgerHarness(t)
	alice := h.user(1)
	bob := h.user(2)
	asset := h.asset(models.AssetTypeLink, alice)

	_, err := h.interactions.AssetCreated(h.ctx, h.caller(alice), asset.ID)
	require.NoError(t, err)
	require.Equal(t, 5, h.pointsOf(alice))

	require.NoError(t, h.interactions.SetLike(h.ctx, h.caller(bob), asset.ID, boolPtr(true)))
	require.Equal(t, 1, h.pointsOf(bob))
	require.Equal(t, 6, h.pointsOf(alice))
	require.Equal(t, 1, h.reload(asset).Likes)

	require.NoError(t, h.interactions.SetLike(h.ctx, h.caller(bob), asset.ID, boolPtr(false)))
	require.Equal(t, 0, h.pointsOf(bob))
	require.Equal(t, 5, h.pointsOf(alice))
	require.Equal(t, 0, h.count(models.ActivityLike, models.ActivityGetLike))
	require.Equal(t, 1, h.countFor(bob, models.ActivityDislike))
	require.Equal(t, 1, h.countFor(alice, models.ActivityGetDislike))
	stored := h.reload(asset)
	require.Equal(t, 0, stored.Likes)
	require.Equal(t, 1, stored.Dislikes)

	require.NoError(t, h.interactions.SetLike(h.ctx, h.caller(bob), asset.ID, nil))
	require.Equal(t, 0, h.pointsOf(bob))
	require.Equal(t, 5, h.pointsOf(alice))
	require.Equal(t, 0, h.count(models.ActivityDislike, models.ActivityGetDislike))
	require.Equal(t, 0, h.reload(asset).Dislikes)

	// Repeating the same reaction is a no-op.
	require.NoError(t, h.interactions.SetLike(h.ctx, h.caller(bob), asset.ID, boolPtr(true)))
	require.NoError(t, h.interactions.SetLike(h.ctx, h.caller(bob), asset.ID, boolPtr(true)))
	require.Equal(t, 1, h.countFor(bob, models.ActivityLike))
	require.Equal(t, 6, h.pointsOf(alice))
}

func TestOwnersNeverEarnFromTheirOwnAssets(t *testing.T) {
	h := newLedgerHarness(t)
	alice := h.user(1)
	bob := h.user(2)
	asset := h.asset(models.AssetTypeLink, alice, bob)

	require.NoError(t, h.interactions.ViewAsset(h.ctx, h.caller(alice), asset.ID))
	require.NoError(t, h.interactions.SetLike(h.ctx, h.caller(bob), asset.ID, boolPtr(true)))

	require.Equal(t, 0, h.count(models.ActivityViewAsset, models.ActivityGetViewAsset, models.ActivityLike, models.ActivityGetLike))
	require.Equal(t, 0, h.pointsOf(alice))
	require.Equal(t, 0, h.pointsOf(bob))
	require.Equal(t, 0, h.reload(asset).Views)
}

func TestLikeCreditsEveryCoOwnerWithReciprocalLink(t *testing.T) {
	h := newLedgerHarness(t)
	alice := h.user(1)
	bob := h.user(2)
	carol := h.user(3)
	asset := h.asset(models.AssetTypeLink, alice, bob)

	require.NoError(t, h.interactions.SetLike(h.ctx, h.caller(carol), asset.ID, boolPtr(true)))

	carolID := carol.ID
	likes, err := h.activityRepo.List(h.ctx, repository.ActivityFilter{CourseID: h.course.ID, UserID: &carolID, Types: []models.ActivityType{models.ActivityLike}})
	require.NoError(t, err)
	require.Len(t, likes, 1)

	received, err := h.activityRepo.List(h.ctx, repository.ActivityFilter{CourseID: h.course.ID, Types: []models.ActivityType{models.ActivityGetLike}})
	require.NoError(t, err)
	require.Len(t, received, 2)
	for _, activity := range received {
		require.Equal(t, carol.ID, activity.ActorID)
		require.NotEqual(t, carol.ID, activity.UserID)
		reciprocal, ok := metadataInt(activity.Metadata, "reciprocalId")
		require.True(t, ok)
		require.Equal(t, int64(likes[0].ID), reciprocal)
	}
	require.Equal(t, 1, h.pointsOf(alice))
	require.Equal(t, 1, h.pointsOf(bob))
	require.Equal(t, 1, h.pointsOf(carol))

	// Undo removes both sides together.
	require.NoError(t, h.interactions.SetLike(h.ctx, h.caller(carol), asset.ID, nil))
	require.Equal(t, 0, h.count(models.ActivityLike, models.ActivityGetLike))
	require.Equal(t, 0, h.pointsOf(alice))
	require.Equal(t, 0, h.pointsOf(bob))
	require.Equal(t, 0, h.pointsOf(carol))
}

func TestViewCountsOncePerUser(t *testing.T) {
	h := newLedgerHarness(t)
	alice := h.user(1)
	bob := h.user(2)
	asset := h.asset(models.AssetTypeFile, alice)

	require.NoError(t, h.interactions.ViewAsset(h.ctx, h.caller(bob), asset.ID))
	require.NoError(t, h.interactions.ViewAsset(h.ctx, h.caller(bob), asset.ID))

	require.Equal(t, 1, h.countFor(bob, models.ActivityViewAsset))
	require.Equal(t, 1, h.countFor(alice, models.ActivityGetViewAsset))
	require.Equal(t, 2, h.reload(asset).Views)
}

func TestPinRepinAndUnpin(t *testing.T) {
	h := newLedgerHarness(t)
	alice := h.user(1)
	carol := h.user(3)
	asset := h.asset(models.AssetTypeLink, alice)

	repin, err := h.interactions.Pin(h.ctx, h.caller(carol), asset.ID)
	require.NoError(t, err)
	require.False(t, repin)
	require.Equal(t, 1, h.countFor(carol, models.ActivityPinAsset))
	require.Equal(t, 1, h.countFor(alice, models.ActivityGetPinAsset))

	_, err = h.interactions.Pin(h.ctx, h.caller(carol), asset.ID)
	require.Error(t, err)
	require.Equal(t, apierr.CodeValidation, apierr.CodeOf(err))

	require.NoError(t, h.interactions.Unpin(h.ctx, h.caller(carol), asset.ID))
	require.Equal(t, 0, h.count(models.ActivityPinAsset, models.ActivityGetPinAsset))
	require.Equal(t, 0, h.pointsOf(carol))
	require.Equal(t, 0, h.pointsOf(alice))

	err = h.interactions.Unpin(h.ctx, h.caller(carol), asset.ID)
	require.Equal(t, apierr.CodeNotFound, apierr.CodeOf(err))

	repin, err = h.interactions.Pin(h.ctx, h.caller(carol), asset.ID)
	require.NoError(t, err)
	require.True(t, repin)
	require.Equal(t, 1, h.countFor(carol, models.ActivityRepinAsset))
	require.Equal(t, 1, h.countFor(alice, models.ActivityGetRepinAsset))
	require.Equal(t, 0, h.count(models.ActivityPinAsset))

	require.NoError(t, h.interactions.Unpin(h.ctx, h.caller(carol), asset.ID))
	require.Equal(t, 0, h.count(models.ActivityRepinAsset, models.ActivityGetRepinAsset))
}

func TestOwnerPinCreditsOnlyTheActor(t *testing.T) {
	h := newLedgerHarness(t)
	alice := h.user(1)
	bob := h.user(2)
	asset := h.asset(models.AssetTypeLink, alice, bob)

	_, err := h.interactions.Pin(h.ctx, h.caller(alice), asset.ID)
	require.NoError(t, err)

	require.Equal(t, 1, h.countFor(alice, models.ActivityPinAsset))
	require.Equal(t, 0, h.countFor(alice, models.ActivityGetPinAsset))
	require.Equal(t, 1, h.countFor(bob, models.ActivityGetPinAsset))
}

func TestRemixWhiteboard(t *testing.T) {
	h := newLedgerHarness(t)
	alice := h.user(1)
	bob := h.user(2)
	carol := h.user(3)

	link := h.asset(models.AssetTypeLink, alice)
	err := h.interactions.RemixWhiteboard(h.ctx, h.caller(carol), link.ID, 12)
	require.Equal(t, apierr.CodeValidation, apierr.CodeOf(err))

	board := h.asset(models.AssetTypeWhiteboard, alice, bob)
	require.NoError(t, h.interactions.RemixWhiteboard(h.ctx, h.caller(carol), board.ID, 12))

	require.Equal(t, 1, h.countFor(carol, models.ActivityRemixWhiteboard))
	require.Equal(t, 1, h.countFor(alice, models.ActivityGetRemixWhiteboard))
	require.Equal(t, 1, h.countFor(bob, models.ActivityGetRemixWhiteboard))
	require.Equal(t, 0, h.pointsOf(carol))
	require.Equal(t, 1, h.pointsOf(alice))
	require.Equal(t, 1, h.pointsOf(bob))
}

func TestAssetCreatedCreditsOwners(t *testing.T) {
	h := newLedgerHarness(t)
	alice := h.user(1)
	bob := h.user(2)
	carol := h.user(3)

	link := h.asset(models.AssetTypeLink, alice, bob)
	_, err := h.interactions.AssetCreated(h.ctx, h.caller(carol), link.ID)
	require.Equal(t, apierr.CodeAuthorization, apierr.CodeOf(err))

	created, err := h.interactions.AssetCreated(h.ctx, h.caller(alice), link.ID)
	require.NoError(t, err)
	require.Len(t, created, 1)
	require.Equal(t, 5, h.pointsOf(alice))
	require.Equal(t, 0, h.pointsOf(bob))

	board := h.asset(models.AssetTypeWhiteboard, alice, bob)
	require.NoError(t, h.db.Model(&models.Asset{}).Where("id = ?", board.ID).Update("source", models.AssetSourceWhiteboard).Error)

	created, err = h.interactions.AssetCreated(h.ctx, h.caller(bob), board.ID)
	require.NoError(t, err)
	require.Len(t, created, 2)
	require.Equal(t, 15, h.pointsOf(alice))
	require.Equal(t, 10, h.pointsOf(bob))
}

func TestMissingAssetIsNotFound(t *testing.T) {
	h := newLedgerHarness(t)
	bob := h.user(2)

	err := h.interactions.ViewAsset(h.ctx, h.caller(bob), 404)
	require.Equal(t, apierr.CodeNotFound, apierr.CodeOf(err))
}

type failingLedger struct {
	ActivityService
	failFor uint
}

func (l failingLedger) CreateActivity(ctx context.Context, input ActivityInput) (models.Activity, bool, error) {
	if input.UserID == l.failFor {
		return models.Activity{}, false, apierr.Storage(errors.New("disk full"), "insert activity")
	}
	return l.ActivityService.CreateActivity(ctx, input)
}

func TestResolverCompensatesPartialFanOut(t *testing.T) {
	h := newLedgerHarness(t)
	alice := h.user(1)
	bob := h.user(2)
	carol := h.user(3)
	asset := h.reload(h.asset(models.AssetTypeLink, alice, bob))

	resolver := reciprocalResolver{ledger: failingLedger{ActivityService: h.ledger, failFor: bob.ID}, logger: zerolog.Nop()}
	plan := planAssetInteraction(h.course.ID, carol.ID, asset, assetInteraction{
		actorType:     models.ActivityLike,
		recipientType: models.ActivityGetLike,
		selfExcluded:  true,
	})

	_, err := resolver.apply(h.ctx, plan)
	require.Error(t, err)
	require.Equal(t, apierr.CodeStorage, apierr.CodeOf(err))

	require.Equal(t, 0, h.count(models.ActivityLike, models.ActivityGetLike))
	require.Equal(t, 0, h.pointsOf(alice))
	require.Equal(t, 0, h.pointsOf(carol))
}

func TestFailedFirstPinRetriesAsFirstPin(t *testing.T) {
	h := newLedgerHarness(t)
	alice := h.user(1)
	carol := h.user(3)
	asset := h.reload(h.asset(models.AssetTypeLink, alice))

	flaky := NewInteractionService(h.assetRepo, repository.NewInteractionRepository(h.db), failingLedger{ActivityService: h.ledger, failFor: alice.ID}, h.scores, zerolog.Nop())
	_, err := flaky.Pin(h.ctx, h.caller(carol), asset.ID)
	require.Equal(t, apierr.CodeStorage, apierr.CodeOf(err))
	require.Equal(t, 0, h.count(models.ActivityPinAsset, models.ActivityGetPinAsset))

	repin, err := h.interactions.Pin(h.ctx, h.caller(carol), asset.ID)
	require.NoError(t, err)
	require.False(t, repin)
	require.Equal(t, 1, h.countFor(carol, models.ActivityPinAsset))
	require.Equal(t, 1, h.countFor(alice, models.ActivityGetPinAsset))
	require.Equal(t, 0, h.count(models.ActivityRepinAsset, models.ActivityGetRepinAsset))
}

func TestFailedRepinLeavesAssetUnpinned(t *testing.T) {
	h := newLedgerHarness(t)
	alice := h.user(1)
	carol := h.user(3)
	asset := h.reload(h.asset(models.AssetTypeLink, alice))
	pins := repository.NewInteractionRepository(h.db)

	_, err := h.interactions.Pin(h.ctx, h.caller(carol), asset.ID)
	require.NoError(t, err)
	require.NoError(t, h.interactions.Unpin(h.ctx, h.caller(carol), asset.ID))

	flaky := NewInteractionService(h.assetRepo, pins, failingLedger{ActivityService: h.ledger, failFor: alice.ID}, h.scores, zerolog.Nop())
	_, err = flaky.Pin(h.ctx, h.caller(carol), asset.ID)
	require.Error(t, err)

	pin, err := pins.FindPin(h.ctx, asset.ID, carol.ID)
	require.NoError(t, err)
	require.True(t, pin.DeletedAt.Valid)
	require.False(t, pin.Repinned)
	require.Equal(t, 0, h.count(models.ActivityRepinAsset, models.ActivityGetRepinAsset))

	repin, err := h.interactions.Pin(h.ctx, h.caller(carol), asset.ID)
	require.NoError(t, err)
	require.True(t, repin)
	require.Equal(t, 1, h.countFor(alice, models.ActivityGetRepinAsset))
}

func TestOwnerReactionsAreNotCounted(t *testing.T) {
	h := newLedgerHarness(t)
	alice := h.user(1)
	bob := h.user(2)
	asset := h.asset(models.AssetTypeLink, alice, bob)

	require.NoError(t, h.interactions.SetLike(h.ctx, h.caller(bob), asset.ID, boolPtr(true)))
	require.NoError(t, h.interactions.SetLike(h.ctx, h.caller(alice), asset.ID, boolPtr(false)))

	stored := h.reload(asset)
	require.Equal(t, 0, stored.Likes)
	require.Equal(t, 0, stored.Dislikes)
	_, err := repository.NewInteractionRepository(h.db).FindLike(h.ctx, asset.ID, bob.ID)
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	require.NoError(t, h.interactions.SetLike(h.ctx, h.caller(bob), asset.ID, nil))
	require.Equal(t, 0, h.count(models.ActivityLike, models.ActivityGetLike, models.ActivityDislike, models.ActivityGetDislike))
}

func TestPlanCommentRules(t *testing.T) {
	alice := models.User{ID: 1}
	bob := models.User{ID: 2}
	solo := models.Asset{ID: 9, Users: []models.User{alice}}
	shared := models.Asset{ID: 10, Users: []models.User{alice, bob}}

	plan := planComment(1, solo, models.Comment{ID: 1, UserID: alice.ID}, nil)
	require.True(t, plan.empty())

	plan = planComment(1, shared, models.Comment{ID: 2, UserID: alice.ID}, nil)
	require.NotNil(t, plan.actor)
	require.Len(t, plan.recipients, 1)
	require.Equal(t, bob.ID, plan.recipients[0].UserID)
	require.Equal(t, models.ActivityGetAssetComment, plan.recipients[0].Type)

	parent := models.Comment{ID: 3, UserID: bob.ID}
	plan = planComment(1, solo, models.Comment{ID: 4, UserID: alice.ID}, &parent)
	require.NotNil(t, plan.actor)
	require.Len(t, plan.recipients, 1)
	require.Equal(t, models.ActivityGetAssetCommentReply, plan.recipients[0].Type)
	require.Equal(t, bob.ID, plan.recipients[0].UserID)

	own := models.Comment{ID: 5, UserID: alice.ID}
	plan = planComment(1, solo, models.Comment{ID: 6, UserID: alice.ID}, &own)
	require.True(t, plan.empty())
}
