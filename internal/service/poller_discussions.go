package service

import (
	"context"

	"github.com/noah-isme/suitec-go-api/internal/apierr"
	"github.com/noah-isme/suitec-go-api/internal/models"
	"github.com/noah-isme/suitec-go-api/pkg/canvas"
)

// syncDiscussions credits topic authors and pairs every entry with a reply credit to the author
// it answers. Graded discussions are left to the assignment step.
func (s *pollerService) syncDiscussions(ctx context.Context, sync *courseSync) error {
	discussions, err := s.lms.GetDiscussions(ctx, sync.ref)
	if err != nil {
		return apierr.External(err, "get discussions")
	}

	for _, discussion := range discussions {
		if discussion.AssignmentID != nil {
			continue
		}

		if authorID, ok := sync.userIDs[discussion.Author.ID]; ok {
			input := ActivityInput{
				CourseID:   sync.course.ID,
				UserID:     authorID,
				Type:       models.ActivityDiscussionTopic,
				ObjectType: models.ObjectCanvasDiscussion,
				ObjectID:   discussion.ID,
			}
			if discussion.PostedAt != nil {
				input.OccurredAt = *discussion.PostedAt
			}
			if _, _, err := s.ledger.CreateActivity(ctx, input); err != nil {
				return err
			}
		}

		entries, err := s.lms.GetDiscussionEntries(ctx, sync.ref, discussion.ID)
		if err != nil {
			return apierr.External(err, "get discussion entries")
		}
		if err := s.syncEntries(ctx, sync, discussion, entries); err != nil {
			return err
		}
	}
	return nil
}

func (s *pollerService) syncEntries(ctx context.Context, sync *courseSync, discussion canvas.Discussion, entries []canvas.DiscussionEntry) error {
	authors := make(map[int64]int64, len(entries))
	for _, entry := range entries {
		authors[entry.ID] = entry.UserID
	}

	for _, entry := range entries {
		plan, ok := planDiscussionEntry(sync, discussion, entry, authors)
		if !ok {
			continue
		}
		if _, err := s.resolver.apply(ctx, plan); err != nil {
			return err
		}
	}
	return nil
}

// planDiscussionEntry maps one entry to its activities. Entries answering their own author
// score nothing; replies to deleted entries still credit the replier.
func planDiscussionEntry(sync *courseSync, discussion canvas.Discussion, entry canvas.DiscussionEntry, authors map[int64]int64) (interactionPlan, bool) {
	actorID, ok := sync.userIDs[entry.UserID]
	if !ok {
		return interactionPlan{}, false
	}

	parentAuthor := discussion.Author.ID
	var parentEntryID interface{}
	if entry.ParentID != nil {
		parentAuthor = authors[*entry.ParentID]
		parentEntryID = *entry.ParentID
	}
	if parentAuthor == entry.UserID {
		return interactionPlan{}, false
	}

	metadata := map[string]interface{}{
		"entryId":       entry.ID,
		"topicId":       discussion.ID,
		"parentEntryId": parentEntryID,
	}
	input := ActivityInput{
		CourseID:   sync.course.ID,
		UserID:     actorID,
		ActorID:    actorID,
		Type:       models.ActivityDiscussionEntry,
		ObjectType: models.ObjectCanvasDiscussion,
		ObjectID:   discussion.ID,
		Metadata:   metadata,
	}
	if entry.CreatedAt != nil {
		input.OccurredAt = *entry.CreatedAt
	}

	plan := interactionPlan{actor: &input}
	if recipientID, ok := sync.userIDs[parentAuthor]; ok && parentAuthor != 0 {
		reply := input
		reply.UserID = recipientID
		reply.Type = models.ActivityGetDiscussionEntryReply
		plan.recipients = append(plan.recipients, reply)
	}
	return plan, true
}
