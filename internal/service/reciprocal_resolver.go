package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/noah-isme/suitec-go-api/internal/models"
)

// interactionPlan is the set of ledger activities one interaction produces: an optional
// actor-side activity and the recipient activities answering it.
type interactionPlan struct {
	actor      *ActivityInput
	recipients []ActivityInput
}

func (p interactionPlan) empty() bool {
	return p.actor == nil && len(p.recipients) == 0
}

// assetInteraction describes an asset interaction generically so the same fan-out serves
// views, likes, pins and remixes.
type assetInteraction struct {
	actorType     models.ActivityType
	recipientType models.ActivityType
	// selfExcluded drops the whole interaction when the actor co-owns the asset.
	selfExcluded bool
	metadata     map[string]interface{}
}

// planAssetInteraction fans one asset interaction out to the asset's co-owners, never crediting
// the actor as their own recipient.
func planAssetInteraction(courseID, actorID uint, asset models.Asset, interaction assetInteraction) interactionPlan {
	if interaction.selfExcluded && asset.IsOwnedBy(actorID) {
		return interactionPlan{}
	}

	assetID := asset.ID
	plan := interactionPlan{
		actor: &ActivityInput{
			CourseID:   courseID,
			UserID:     actorID,
			ActorID:    actorID,
			Type:       interaction.actorType,
			ObjectType: models.ObjectAsset,
			ObjectID:   int64(asset.ID),
			AssetID:    &assetID,
			Metadata:   interaction.metadata,
		},
	}
	for _, ownerID := range asset.OwnerIDs() {
		if ownerID == actorID {
			continue
		}
		plan.recipients = append(plan.recipients, ActivityInput{
			CourseID:   courseID,
			UserID:     ownerID,
			ActorID:    actorID,
			Type:       interaction.recipientType,
			ObjectType: models.ObjectAsset,
			ObjectID:   int64(asset.ID),
			AssetID:    &assetID,
			Metadata:   interaction.metadata,
		})
	}
	return plan
}

// planComment applies the comment rules: a sole owner commenting on their own asset scores
// nothing unless replying to someone else, and the parent author is credited for replies.
func planComment(courseID uint, asset models.Asset, comment models.Comment, parent *models.Comment) interactionPlan {
	commenterID := comment.UserID
	soleOwner := asset.IsSoleOwner(commenterID)
	replyingToOther := parent != nil && parent.UserID != commenterID
	scoring := !soleOwner || replyingToOther

	metadata := map[string]interface{}{"assetId": asset.ID}
	if parent != nil {
		metadata["parentId"] = parent.ID
	}
	assetID := asset.ID
	input := func(userID uint, t models.ActivityType) ActivityInput {
		return ActivityInput{
			CourseID:   courseID,
			UserID:     userID,
			ActorID:    commenterID,
			Type:       t,
			ObjectType: models.ObjectComment,
			ObjectID:   int64(comment.ID),
			AssetID:    &assetID,
			Metadata:   metadata,
		}
	}

	var plan interactionPlan
	if scoring {
		actor := input(commenterID, models.ActivityAssetComment)
		plan.actor = &actor
		for _, ownerID := range asset.OwnerIDs() {
			if ownerID != commenterID {
				plan.recipients = append(plan.recipients, input(ownerID, models.ActivityGetAssetComment))
			}
		}
	}
	if replyingToOther {
		plan.recipients = append(plan.recipients, input(parent.UserID, models.ActivityGetAssetCommentReply))
	}
	return plan
}

// reciprocalResolver applies and reverts interaction plans against the ledger.
type reciprocalResolver struct {
	ledger ActivityService
	logger zerolog.Logger
}

// apply creates the actor activity first and links every recipient activity to it through
// metadata.reciprocalId. If any step fails, activities created by this call are removed again
// before the error is returned.
func (r reciprocalResolver) apply(ctx context.Context, plan interactionPlan) ([]models.Activity, error) {
	created := make([]models.Activity, 0, len(plan.recipients)+1)

	var reciprocalID uint
	if plan.actor != nil {
		activity, wasCreated, err := r.ledger.CreateActivity(ctx, *plan.actor)
		if err != nil {
			return nil, err
		}
		if wasCreated {
			created = append(created, activity)
		}
		reciprocalID = activity.ID
	}

	for _, input := range plan.recipients {
		if reciprocalID != 0 {
			input.Metadata = withMetadata(input.Metadata, "reciprocalId", reciprocalID)
		}
		activity, wasCreated, err := r.ledger.CreateActivity(ctx, input)
		if err != nil {
			r.compensate(ctx, created)
			return nil, err
		}
		if wasCreated {
			created = append(created, activity)
		}
	}

	return created, nil
}

// revert removes every activity of the given types that actorID produced on the object,
// whoever it credited, so later ownership changes cannot leak points.
func (r reciprocalResolver) revert(ctx context.Context, courseID, actorID uint, types []models.ActivityType, objectType models.ObjectType, objectID int64) ([]models.Activity, error) {
	return r.ledger.DeleteActivity(ctx, ActivityDeletion{
		CourseID:   courseID,
		ActorID:    actorID,
		Types:      types,
		ObjectType: objectType,
		ObjectID:   objectID,
	})
}

func (r reciprocalResolver) compensate(ctx context.Context, created []models.Activity) {
	for i := len(created) - 1; i >= 0; i-- {
		if _, err := r.ledger.RemoveActivity(ctx, created[i]); err != nil {
			r.logger.Error().
				Err(err).
				Uint("activity_id", created[i].ID).
				Str("type", string(created[i].Type)).
				Msg("failed to remove activity during compensation")
		}
	}
}

func withMetadata(metadata map[string]interface{}, key string, value interface{}) map[string]interface{} {
	copied := make(map[string]interface{}, len(metadata)+1)
	for k, v := range metadata {
		copied[k] = v
	}
	copied[key] = value
	return copied
}
