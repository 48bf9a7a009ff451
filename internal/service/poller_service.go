package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/suitec-go-api/internal/apierr"
	"github.com/noah-isme/suitec-go-api/internal/dto"
	"github.com/noah-isme/suitec-go-api/internal/models"
	"github.com/noah-isme/suitec-go-api/internal/observability"
	"github.com/noah-isme/suitec-go-api/internal/repository"
	"github.com/noah-isme/suitec-go-api/pkg/canvas"
)

// LMSClient is the subset of the Canvas REST API the poller reads.
type LMSClient interface {
	GetCourseTabs(ctx context.Context, course canvas.CourseRef) ([]canvas.Tab, error)
	GetCourseUsers(ctx context.Context, course canvas.CourseRef) ([]canvas.User, error)
	GetCourseSections(ctx context.Context, course canvas.CourseRef) ([]canvas.Section, error)
	GetAssignments(ctx context.Context, course canvas.CourseRef) ([]canvas.Assignment, error)
	GetSubmissions(ctx context.Context, course canvas.CourseRef, assignmentID int64) ([]canvas.Submission, error)
	GetDiscussions(ctx context.Context, course canvas.CourseRef) ([]canvas.Discussion, error)
	GetDiscussionEntries(ctx context.Context, course canvas.CourseRef, topicID int64) ([]canvas.DiscussionEntry, error)
}

// PollerService reconciles LMS state with the ledger, one course at a time.
type PollerService interface {
	PollAll(ctx context.Context) (dto.PollSummary, error)
	PollCourse(ctx context.Context, course models.Course) error
}

// StepError names the poll step a course failed in.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// PollerDependencies groups the collaborators of the poller.
type PollerDependencies struct {
	LMS        LMSClient
	Courses    repository.CourseRepository
	Users      repository.UserRepository
	Categories repository.CategoryRepository
	Ledger     ActivityService
	Registry   ActivityTypeService
	Assets     AssetService
	Pacer      Pacer
}

type pollerService struct {
	lms        LMSClient
	courses    repository.CourseRepository
	users      repository.UserRepository
	categories repository.CategoryRepository
	ledger     ActivityService
	registry   ActivityTypeService
	assets     AssetService
	pacer      Pacer
	resolver   reciprocalResolver
	inactivity time.Duration
	logger     zerolog.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// courseSync is the state one course's pass accumulates across steps.
type courseSync struct {
	course  models.Course
	ref     canvas.CourseRef
	userIDs map[int64]uint
	stop    bool
}

type pollStep struct {
	name string
	run  func(ctx context.Context, sync *courseSync) error
}

// NewPollerService constructs the LMS reconciliation poller.
func NewPollerService(deps PollerDependencies, inactivityDays int, logger zerolog.Logger) PollerService {
	if deps.Pacer == nil {
		deps.Pacer = NewPacer(0)
	}
	if inactivityDays <= 0 {
		inactivityDays = 60
	}
	scoped := logger.With().Str("component", "poller_service").Logger()
	return &pollerService{
		lms:        deps.LMS,
		courses:    deps.Courses,
		users:      deps.Users,
		categories: deps.Categories,
		ledger:     deps.Ledger,
		registry:   deps.Registry,
		assets:     deps.Assets,
		pacer:      deps.Pacer,
		resolver:   reciprocalResolver{ledger: deps.Ledger, logger: scoped},
		inactivity: time.Duration(inactivityDays) * 24 * time.Hour,
		logger:     scoped,
		tracer:     otel.Tracer("github.com/noah-isme/suitec-go-api/internal/service/poller"),
		now:        time.Now,
	}
}

// PollAll walks every active course in order, pacing course starts. A failing course is logged
// and counted; it never stops the pass.
func (s *pollerService) PollAll(ctx context.Context) (dto.PollSummary, error) {
	var summary dto.PollSummary

	courses, err := s.courses.ListActive(ctx)
	if err != nil {
		return summary, apierr.Storage(err, "list active courses")
	}
	summary.Courses = len(courses)

	for _, course := range courses {
		if err := s.pacer.Wait(ctx); err != nil {
			return summary, err
		}

		if err := s.PollCourse(ctx, course); err != nil {
			summary.Failed++
			step := ""
			var stepErr *StepError
			if errors.As(err, &stepErr) {
				step = stepErr.Step
			}
			s.logger.Error().
				Err(err).
				Uint("course_id", course.ID).
				Str("step", step).
				Msg("course poll failed")
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			continue
		}
		summary.Succeeded++

		if refreshed, err := s.courses.GetByID(ctx, course.ID); err == nil && !refreshed.Active {
			summary.Deactivated++
		}
	}

	s.logger.Info().
		Int("courses", summary.Courses).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Int("deactivated", summary.Deactivated).
		Msg("poll pass completed")
	return summary, nil
}

// PollCourse runs the tab, user, assignment, discussion and deactivation steps in order.
func (s *pollerService) PollCourse(ctx context.Context, course models.Course) error {
	ctx, span := s.tracer.Start(ctx, "poller.course", trace.WithAttributes(
		attribute.Int64("course.id", int64(course.ID)),
		attribute.Int64("canvas.course_id", course.CanvasCourseID),
	))
	defer span.End()

	start := time.Now()
	status := "succeeded"
	defer func() {
		observability.PollerCourseDuration().Observe(time.Since(start).Seconds())
		observability.PollerCourseRuns().WithLabelValues(status).Inc()
	}()

	sync := &courseSync{
		course:  course,
		ref:     canvas.CourseRef{APIDomain: course.CanvasAPIDomain, CourseID: course.CanvasCourseID},
		userIDs: make(map[int64]uint),
	}
	steps := []pollStep{
		{name: "tabs", run: s.syncTabs},
		{name: "users", run: s.syncUsers},
		{name: "assignments", run: s.syncAssignments},
		{name: "discussions", run: s.syncDiscussions},
		{name: "deactivation", run: s.checkInactivity},
	}

	for _, step := range steps {
		if err := step.run(ctx, sync); err != nil {
			status = "failed"
			span.RecordError(err)
			span.SetStatus(codes.Error, step.name)
			return &StepError{Step: step.name, Err: err}
		}
		if sync.stop {
			status = "deactivated"
			break
		}
	}

	span.SetStatus(codes.Ok, status)
	return nil
}

// syncTabs clears tool URLs no longer embedded in the course and deactivates the course when
// no tool is left.
func (s *pollerService) syncTabs(ctx context.Context, sync *courseSync) error {
	tabs, err := s.lms.GetCourseTabs(ctx, sync.ref)
	if err != nil {
		return apierr.External(err, "get course tabs")
	}

	course := &sync.course
	changed := false
	for _, url := range []**string{&course.AssetLibraryURL, &course.EngagementIndexURL, &course.WhiteboardsURL, &course.ImpactStudioURL} {
		if *url != nil && !toolEmbedded(**url, tabs) {
			*url = nil
			changed = true
		}
	}
	if !course.HasActiveTool() {
		course.Active = false
		changed = true
		sync.stop = true
		s.logger.Info().Uint("course_id", course.ID).Msg("no SuiteC tool left in course; deactivating")
	}

	if changed {
		if err := s.courses.Save(ctx, course); err != nil {
			return apierr.Storage(err, "save course tools")
		}
	}
	return nil
}

// checkInactivity deactivates courses without activity inside the inactivity threshold and
// stamps the poll time.
func (s *pollerService) checkInactivity(ctx context.Context, sync *courseSync) error {
	course, err := s.courses.GetByID(ctx, sync.course.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apierr.NotFound("course %d not found", sync.course.ID)
		}
		return apierr.Storage(err, "reload course")
	}

	now := s.now().UTC()
	last := course.CreatedAt
	if course.LastActivity != nil {
		last = *course.LastActivity
	}
	if last.Before(now.Add(-s.inactivity)) {
		course.Active = false
		sync.stop = true
		s.logger.Info().
			Uint("course_id", course.ID).
			Time("last_activity", last).
			Msg("course inactive beyond threshold; deactivating")
	}

	course.LastPolledAt = &now
	if err := s.courses.Save(ctx, &course); err != nil {
		return apierr.Storage(err, "save course poll state")
	}
	sync.course = course
	return nil
}

func toolEmbedded(url string, tabs []canvas.Tab) bool {
	for _, tab := range tabs {
		if !tab.Visible() {
			continue
		}
		if tab.FullURL != "" && tab.FullURL == url {
			return true
		}
		if tab.HTMLURL != "" && strings.HasSuffix(url, tab.HTMLURL) {
			return true
		}
	}
	return false
}
