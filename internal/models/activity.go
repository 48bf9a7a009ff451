package models

import (
	"time"

	"gorm.io/datatypes"
)

// Activity is a single ledger entry crediting UserID for an interaction performed by ActorID.
// The identity index allows at most one row per (user, actor, type, object, entry) in a course.
type Activity struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	CourseID   uint              `gorm:"not null;uniqueIndex:idx_activity_identity,priority:1;index:idx_activity_course_created,priority:1" json:"course_id"`
	UserID     uint              `gorm:"not null;uniqueIndex:idx_activity_identity,priority:2;index" json:"user_id"`
	ActorID    uint              `gorm:"not null;uniqueIndex:idx_activity_identity,priority:3" json:"actor_id"`
	Type       ActivityType      `gorm:"size:64;not null;uniqueIndex:idx_activity_identity,priority:4" json:"type"`
	ObjectType ObjectType        `gorm:"size:32;not null;uniqueIndex:idx_activity_identity,priority:5" json:"object_type"`
	ObjectID   int64             `gorm:"not null;uniqueIndex:idx_activity_identity,priority:6" json:"object_id"`
	EntryKey   string            `gorm:"size:64;not null;uniqueIndex:idx_activity_identity,priority:7" json:"entry_key"`
	AssetID    *uint             `gorm:"index" json:"asset_id"`
	Points     int               `gorm:"not null" json:"points"`
	Metadata   datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt  time.Time         `gorm:"index:idx_activity_course_created,priority:2" json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// ActivityTypeOverride shadows the catalog default for one activity type in one course.
// Nil fields inherit the default.
type ActivityTypeOverride struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	CourseID  uint         `gorm:"not null;uniqueIndex:idx_activity_type_override,priority:1" json:"course_id"`
	Type      ActivityType `gorm:"size:64;not null;uniqueIndex:idx_activity_type_override,priority:2" json:"type"`
	Points    *int         `json:"points"`
	Enabled   *bool        `json:"enabled"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}
