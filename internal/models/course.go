package models

import "time"

// Course is an LMS course with SuiteC tools embedded in it.
type Course struct {
	ID                        uint       `gorm:"primaryKey" json:"id"`
	CanvasAPIDomain           string     `gorm:"size:255;not null;uniqueIndex:idx_course_canvas,priority:1" json:"canvas_api_domain"`
	CanvasCourseID            int64      `gorm:"not null;uniqueIndex:idx_course_canvas,priority:2" json:"canvas_course_id"`
	Name                      string     `gorm:"size:255" json:"name"`
	Active                    bool       `gorm:"not null" json:"active"`
	AssetLibraryURL           *string    `gorm:"size:512" json:"asset_library_url"`
	EngagementIndexURL        *string    `gorm:"size:512" json:"engagement_index_url"`
	WhiteboardsURL            *string    `gorm:"size:512" json:"whiteboards_url"`
	ImpactStudioURL           *string    `gorm:"size:512" json:"impact_studio_url"`
	EnableDailyNotifications  bool       `gorm:"not null" json:"enable_daily_notifications"`
	EnableWeeklyNotifications bool       `gorm:"not null" json:"enable_weekly_notifications"`
	LastActivity              *time.Time `json:"last_activity"`
	LastPolledAt              *time.Time `json:"last_polled_at"`
	CreatedAt                 time.Time  `json:"created_at"`
	UpdatedAt                 time.Time  `json:"updated_at"`
}

// HasActiveTool reports whether at least one tool is still embedded in the course.
func (c Course) HasActiveTool() bool {
	return c.AssetLibraryURL != nil || c.EngagementIndexURL != nil || c.WhiteboardsURL != nil || c.ImpactStudioURL != nil
}
