package dto

import (
	"time"

	"github.com/noah-isme/suitec-go-api/internal/models"
)

// ActivityTypeConfigResponse is the effective configuration of one activity type in a course.
type ActivityTypeConfigResponse struct {
	Type    models.ActivityType `json:"type"`
	Title   string              `json:"title"`
	Points  int                 `json:"points"`
	Enabled bool                `json:"enabled"`
}

// ActivityTypeUpdate overrides points and/or enabled for one type. Nil fields are left unchanged.
type ActivityTypeUpdate struct {
	Type    string `json:"type" validate:"required"`
	Points  *int   `json:"points" validate:"omitempty,min=0,max=1000"`
	Enabled *bool  `json:"enabled"`
}

// ActivityTypeUpdateRequest is the payload of PUT /activity-types.
type ActivityTypeUpdateRequest struct {
	Updates []ActivityTypeUpdate `json:"updates" validate:"required,min=1,dive"`
}

// ActivityResponse is a ledger entry as shown in feeds.
type ActivityResponse struct {
	ID         uint                   `json:"id"`
	Type       models.ActivityType    `json:"type"`
	UserID     uint                   `json:"user_id"`
	ActorID    uint                   `json:"actor_id"`
	ObjectType models.ObjectType      `json:"object_type"`
	ObjectID   int64                  `json:"object_id"`
	AssetID    *uint                  `json:"asset_id,omitempty"`
	Points     int                    `json:"points"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

// NewActivityResponse converts a ledger row using already-scrubbed metadata.
func NewActivityResponse(activity models.Activity, metadata map[string]interface{}) ActivityResponse {
	return ActivityResponse{
		ID:         activity.ID,
		Type:       activity.Type,
		UserID:     activity.UserID,
		ActorID:    activity.ActorID,
		ObjectType: activity.ObjectType,
		ObjectID:   activity.ObjectID,
		AssetID:    activity.AssetID,
		Points:     activity.Points,
		Metadata:   metadata,
		CreatedAt:  activity.CreatedAt,
	}
}

// LeaderboardEntry is one ranked course member.
type LeaderboardEntry struct {
	Rank            int    `json:"rank"`
	UserID          uint   `json:"user_id"`
	CanvasFullName  string `json:"canvas_full_name"`
	CanvasImage     string `json:"canvas_image,omitempty"`
	Points          int    `json:"points"`
	ShareEngagement bool   `json:"share_engagement"`
}

// LeaderboardResponse is the ranked list for a course.
type LeaderboardResponse struct {
	CourseID    uint               `json:"course_id"`
	Entries     []LeaderboardEntry `json:"entries"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// LikeRequest sets the caller's like state: true likes, false dislikes, null clears.
type LikeRequest struct {
	Value *bool `json:"value"`
}

// CommentRequest creates a comment, or a reply when ParentID is set.
type CommentRequest struct {
	Body     string `json:"body" validate:"required,max=10000"`
	ParentID *uint  `json:"parent_id"`
}

// CommentResponse describes a stored comment.
type CommentResponse struct {
	ID        uint      `json:"id"`
	AssetID   uint      `json:"asset_id"`
	UserID    uint      `json:"user_id"`
	ParentID  *uint     `json:"parent_id,omitempty"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// NewCommentResponse converts a comment model.
func NewCommentResponse(comment models.Comment) CommentResponse {
	return CommentResponse{
		ID:        comment.ID,
		AssetID:   comment.AssetID,
		UserID:    comment.UserID,
		ParentID:  comment.ParentID,
		Body:      comment.Body,
		CreatedAt: comment.CreatedAt,
	}
}

// RemixRequest records a remix of a whiteboard asset into a new whiteboard.
type RemixRequest struct {
	WhiteboardID int64 `json:"whiteboard_id" validate:"required,min=1"`
}

// ScoreRecalculationRequest selects which cached scores to rebuild.
type ScoreRecalculationRequest struct {
	Kind string `json:"kind" validate:"required,oneof=impact trending all"`
}

// ScoreRecalculationResponse summarises a course-wide rebuild.
type ScoreRecalculationResponse struct {
	CourseID      uint `json:"course_id"`
	Assets        int  `json:"assets"`
	ImpactChanged int  `json:"impact_changed"`
	TrendChanged  int  `json:"trending_changed"`
}

// PointsReconcileResponse summarises a rebuild of cached user totals.
type PointsReconcileResponse struct {
	CourseID  uint `json:"course_id"`
	Users     int  `json:"users"`
	Corrected int  `json:"corrected"`
}

// PointsEvent is pushed to realtime subscribers whenever a user's total changes.
type PointsEvent struct {
	CourseID uint                `json:"course_id"`
	UserID   uint                `json:"user_id"`
	Delta    int                 `json:"delta"`
	Total    int                 `json:"total"`
	Reason   models.ActivityType `json:"reason,omitempty"`
	At       time.Time           `json:"at"`
}

// DigestBatch is handed to the notification dispatcher.
type DigestBatch struct {
	Frequency string    `json:"frequency"`
	CourseID  uint      `json:"course_id"`
	Course    string    `json:"course"`
	UserIDs   []uint    `json:"user_ids"`
	Since     time.Time `json:"since"`
}

// PollSummary reports one poller pass over the active courses.
type PollSummary struct {
	Courses     int `json:"courses"`
	Succeeded   int `json:"succeeded"`
	Failed      int `json:"failed"`
	Deactivated int `json:"deactivated"`
}
