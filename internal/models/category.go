package models

import "time"

// Category groups assets. Categories linked to an LMS assignment hold imported submissions.
type Category struct {
	ID                          uint      `gorm:"primaryKey" json:"id"`
	CourseID                    uint      `gorm:"not null;index" json:"course_id"`
	Title                       string    `gorm:"size:255;not null" json:"title"`
	CanvasAssignmentID          *int64    `gorm:"index" json:"canvas_assignment_id"`
	CanvasAssignmentSyncEnabled bool      `gorm:"not null;default:false" json:"canvas_assignment_sync_enabled"`
	Visible                     bool      `gorm:"not null" json:"visible"`
	CreatedAt                   time.Time `json:"created_at"`
	UpdatedAt                   time.Time `json:"updated_at"`
}
