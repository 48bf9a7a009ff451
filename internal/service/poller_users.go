package service

import (
	"context"
	"slices"
	"strings"

	"github.com/noah-isme/suitec-go-api/internal/apierr"
	"github.com/noah-isme/suitec-go-api/internal/models"
	"github.com/noah-isme/suitec-go-api/pkg/canvas"
)

var adminEnrollmentTypes = map[string]bool{
	"TeacherEnrollment":  true,
	"TaEnrollment":       true,
	"DesignerEnrollment": true,
}

// syncUsers upserts every enrolled member and marks local members missing from the pull as
// inactive. It fills sync.userIDs for the later steps.
func (s *pollerService) syncUsers(ctx context.Context, sync *courseSync) error {
	canvasUsers, err := s.lms.GetCourseUsers(ctx, sync.ref)
	if err != nil {
		return apierr.External(err, "get course users")
	}
	sections, err := s.lms.GetCourseSections(ctx, sync.ref)
	if err != nil {
		return apierr.External(err, "get course sections")
	}
	sectionNames := make(map[int64]string, len(sections))
	for _, section := range sections {
		sectionNames[section.ID] = section.Name
	}

	seen := make(map[uint]bool, len(canvasUsers))
	created := 0
	updated := 0
	for _, canvasUser := range canvasUsers {
		desired := memberFromCanvas(canvasUser, sectionNames)

		user, wasCreated, err := s.users.GetOrCreate(ctx, sync.course.ID, canvasUser.ID, desired)
		if err != nil {
			return apierr.Storage(err, "upsert course member")
		}
		seen[user.ID] = true
		sync.userIDs[canvasUser.ID] = user.ID
		if wasCreated {
			created++
			continue
		}

		if changes := memberChanges(user, desired); len(changes) > 0 {
			if err := s.users.UpdateFields(ctx, []uint{user.ID}, changes); err != nil {
				return apierr.Storage(err, "update course member")
			}
			updated++
		}
	}

	local, err := s.users.ListByCourse(ctx, sync.course.ID)
	if err != nil {
		return apierr.Storage(err, "list course members")
	}
	var departed []uint
	for _, user := range local {
		if !seen[user.ID] && user.CanvasEnrollmentState != models.EnrollmentInactive {
			departed = append(departed, user.ID)
		}
	}
	if err := s.users.UpdateFields(ctx, departed, map[string]interface{}{
		"canvas_enrollment_state": models.EnrollmentInactive,
	}); err != nil {
		return apierr.Storage(err, "mark departed members inactive")
	}

	s.logger.Debug().
		Uint("course_id", sync.course.ID).
		Int("created", created).
		Int("updated", updated).
		Int("inactivated", len(departed)).
		Msg("course members synced")
	return nil
}

func memberFromCanvas(canvasUser canvas.User, sectionNames map[int64]string) models.User {
	member := models.User{
		CanvasFullName:        canvasUser.Name,
		CanvasImage:           canvasUser.AvatarURL,
		CanvasEnrollmentState: models.EnrollmentActive,
	}

	var sections []string
	for i, enrollment := range canvasUser.Enrollments {
		if i == 0 {
			member.CanvasCourseRole = firstNonEmpty(enrollment.Role, enrollment.Type)
			if enrollment.EnrollmentState != "" {
				member.CanvasEnrollmentState = enrollment.EnrollmentState
			}
		}
		if adminEnrollmentTypes[enrollment.Type] {
			member.IsAdmin = true
		}
		if name, ok := sectionNames[enrollment.CourseSectionID]; ok && !slices.Contains(sections, name) {
			sections = append(sections, name)
		}
	}
	slices.Sort(sections)
	member.CanvasCourseSections = strings.Join(sections, ", ")
	return member
}

func memberChanges(current, desired models.User) map[string]interface{} {
	changes := make(map[string]interface{})
	if current.CanvasFullName != desired.CanvasFullName {
		changes["canvas_full_name"] = desired.CanvasFullName
	}
	if current.CanvasImage != desired.CanvasImage {
		changes["canvas_image"] = desired.CanvasImage
	}
	if current.CanvasCourseRole != desired.CanvasCourseRole {
		changes["canvas_course_role"] = desired.CanvasCourseRole
	}
	if current.CanvasCourseSections != desired.CanvasCourseSections {
		changes["canvas_course_sections"] = desired.CanvasCourseSections
	}
	if current.CanvasEnrollmentState != desired.CanvasEnrollmentState {
		changes["canvas_enrollment_state"] = desired.CanvasEnrollmentState
	}
	if current.IsAdmin != desired.IsAdmin {
		changes["is_admin"] = desired.IsAdmin
	}
	return changes
}
