package models

import "time"

// Enrollment states mirrored from the LMS. Inactive marks users missing from the latest sync.
const (
	EnrollmentActive    = "active"
	EnrollmentInvited   = "invited"
	EnrollmentCompleted = "completed"
	EnrollmentInactive  = "inactive"
)

// User is a course member. Points is the cached ledger total for this course.
type User struct {
	ID                    uint       `gorm:"primaryKey" json:"id"`
	CourseID              uint       `gorm:"not null;uniqueIndex:idx_user_course_canvas,priority:1" json:"course_id"`
	CanvasUserID          int64      `gorm:"not null;uniqueIndex:idx_user_course_canvas,priority:2" json:"canvas_user_id"`
	CanvasFullName        string     `gorm:"size:255" json:"canvas_full_name"`
	CanvasCourseRole      string     `gorm:"size:64" json:"canvas_course_role"`
	CanvasCourseSections  string     `gorm:"type:text" json:"canvas_course_sections"`
	CanvasEnrollmentState string     `gorm:"size:32;not null;default:active" json:"canvas_enrollment_state"`
	CanvasImage           string     `gorm:"size:512" json:"canvas_image"`
	Points                int        `gorm:"not null;default:0" json:"points"`
	ShareEngagement       bool       `gorm:"not null" json:"share_engagement"`
	IsAdmin               bool       `gorm:"not null;default:false" json:"is_admin"`
	LastActivity          *time.Time `json:"last_activity"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}
