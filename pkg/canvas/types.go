package canvas

import "time"

// CourseRef identifies a course on a Canvas instance.
type CourseRef struct {
	APIDomain string
	CourseID  int64
}

// Tab is a course navigation entry. Embedded tools appear as external tool tabs.
type Tab struct {
	ID         string `json:"id"`
	HTMLURL    string `json:"html_url"`
	FullURL    string `json:"full_url"`
	Label      string `json:"label"`
	Type       string `json:"type"`
	Hidden     bool   `json:"hidden"`
	Visibility string `json:"visibility"`
}

// Visible reports whether students can reach the tab.
func (t Tab) Visible() bool {
	return !t.Hidden && t.Visibility != "none"
}

// Enrollment is one of a user's course enrollments.
type Enrollment struct {
	Type            string `json:"type"`
	Role            string `json:"role"`
	EnrollmentState string `json:"enrollment_state"`
	CourseSectionID int64  `json:"course_section_id"`
}

// User is an enrolled course member.
type User struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	AvatarURL   string       `json:"avatar_url"`
	Enrollments []Enrollment `json:"enrollments"`
}

// Section is a course section.
type Section struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Assignment is a course assignment.
type Assignment struct {
	ID                      int64    `json:"id"`
	Name                    string   `json:"name"`
	Published               bool     `json:"published"`
	SubmissionTypes         []string `json:"submission_types"`
	HasSubmittedSubmissions bool     `json:"has_submitted_submissions"`
}

// IsDiscussion reports whether submissions happen through a graded discussion.
func (a Assignment) IsDiscussion() bool {
	return a.accepts("discussion_topic")
}

// AcceptsContent reports whether submissions carry files or links that can become assets.
func (a Assignment) AcceptsContent() bool {
	return a.accepts("online_upload") || a.accepts("online_url")
}

func (a Assignment) accepts(submissionType string) bool {
	for _, candidate := range a.SubmissionTypes {
		if candidate == submissionType {
			return true
		}
	}
	return false
}

// Attachment is a file attached to a submission.
type Attachment struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	Filename    string `json:"filename"`
	URL         string `json:"url"`
	ContentType string `json:"content-type"`
	Size        int64  `json:"size"`
}

// Submission is a user's latest submission for an assignment.
type Submission struct {
	ID             int64        `json:"id"`
	UserID         int64        `json:"user_id"`
	AssignmentID   int64        `json:"assignment_id"`
	Attempt        int          `json:"attempt"`
	SubmissionType string       `json:"submission_type"`
	URL            string       `json:"url"`
	WorkflowState  string       `json:"workflow_state"`
	SubmittedAt    *time.Time   `json:"submitted_at"`
	Attachments    []Attachment `json:"attachments"`
}

// Submitted reports whether the submission holds an actual attempt.
func (s Submission) Submitted() bool {
	return s.Attempt > 0 && s.WorkflowState != "unsubmitted"
}

// Author is the poster of a discussion topic.
type Author struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
}

// Discussion is a discussion topic.
type Discussion struct {
	ID           int64      `json:"id"`
	Title        string     `json:"title"`
	AssignmentID *int64     `json:"assignment_id"`
	Author       Author     `json:"author"`
	PostedAt     *time.Time `json:"posted_at"`
}

// DiscussionEntry is an entry or reply in a discussion. ParentID is nil for top-level entries.
type DiscussionEntry struct {
	ID        int64             `json:"id"`
	UserID    int64             `json:"user_id"`
	ParentID  *int64            `json:"parent_id"`
	CreatedAt *time.Time        `json:"created_at"`
	Deleted   bool              `json:"deleted"`
	Replies   []DiscussionEntry `json:"replies"`
}

// discussionView is the payload of the full discussion view endpoint.
type discussionView struct {
	View []DiscussionEntry `json:"view"`
}
