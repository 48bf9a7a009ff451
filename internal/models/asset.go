package models

import (
	"time"

	"gorm.io/gorm"
)

// Asset types.
const (
	AssetTypeLink       = "link"
	AssetTypeFile       = "file"
	AssetTypeWhiteboard = "whiteboard"
	AssetTypeThought    = "thought"
)

// Asset sources.
const (
	AssetSourceManual     = "manual"
	AssetSourceSubmission = "submission"
	AssetSourceWhiteboard = "whiteboard"
)

// Asset is an Asset Library item. Users are its co-owners.
type Asset struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	CourseID      uint       `gorm:"not null;index" json:"course_id"`
	Type          string     `gorm:"size:32;not null" json:"type"`
	Title         string     `gorm:"size:255" json:"title"`
	URL           string     `gorm:"size:1024" json:"url"`
	MimeType      string     `gorm:"size:128" json:"mime_type"`
	Source        string     `gorm:"size:32;not null;default:manual" json:"source"`
	Visible       bool       `gorm:"not null" json:"visible"`
	Views         int        `gorm:"not null;default:0" json:"views"`
	Likes         int        `gorm:"not null;default:0" json:"likes"`
	Dislikes      int        `gorm:"not null;default:0" json:"dislikes"`
	CommentCount  int        `gorm:"not null;default:0" json:"comment_count"`
	ImpactScore   int        `gorm:"not null;default:0" json:"impact_score"`
	TrendingScore int        `gorm:"not null;default:0" json:"trending_score"`
	Users         []User     `gorm:"many2many:asset_users" json:"users,omitempty"`
	Categories    []Category `gorm:"many2many:asset_categories" json:"categories,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// OwnerIDs returns the ids of the asset's co-owners.
func (a Asset) OwnerIDs() []uint {
	ids := make([]uint, 0, len(a.Users))
	for _, user := range a.Users {
		ids = append(ids, user.ID)
	}
	return ids
}

// IsOwnedBy reports whether userID is one of the asset's co-owners.
func (a Asset) IsOwnedBy(userID uint) bool {
	for _, user := range a.Users {
		if user.ID == userID {
			return true
		}
	}
	return false
}

// IsSoleOwner reports whether userID is the only co-owner.
func (a Asset) IsSoleOwner(userID uint) bool {
	return len(a.Users) == 1 && a.Users[0].ID == userID
}

// Comment is a comment or reply on an asset.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CourseID  uint      `gorm:"not null;index" json:"course_id"`
	AssetID   uint      `gorm:"not null;index" json:"asset_id"`
	UserID    uint      `gorm:"not null" json:"user_id"`
	ParentID  *uint     `gorm:"index" json:"parent_id"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Like records a user's like (true) or dislike (false) of an asset.
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AssetID   uint      `gorm:"not null;uniqueIndex:idx_like_asset_user,priority:1" json:"asset_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_like_asset_user,priority:2" json:"user_id"`
	Value     bool      `gorm:"not null" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Pin records a user pinning an asset. Unpinning soft-deletes the row so that the next pin
// is recognised as a repin.
type Pin struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	AssetID   uint           `gorm:"not null;uniqueIndex:idx_pin_asset_user,priority:1" json:"asset_id"`
	UserID    uint           `gorm:"not null;uniqueIndex:idx_pin_asset_user,priority:2" json:"user_id"`
	Repinned  bool           `gorm:"not null;default:false" json:"repinned"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
