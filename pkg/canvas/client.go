package canvas

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

const (
	perPage  = 100
	maxPages = 500
)

var (
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "suitec",
		Subsystem: "canvas",
		Name:      "request_duration_seconds",
		Help:      "Duration of Canvas REST requests",
	}, []string{"resource"})

	requestFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "suitec",
		Subsystem: "canvas",
		Name:      "request_failures_total",
		Help:      "Number of failed Canvas REST requests",
	}, []string{"resource"})
)

// StatusError is returned when Canvas answers with a non-success status.
type StatusError struct {
	Status int
	URL    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("canvas responded %d for %s", e.Status, e.URL)
}

// Config defines how the client reaches Canvas.
type Config struct {
	APIToken string
	Protocol string
	Timeout  time.Duration
	Logger   zerolog.Logger
}

// Client calls the Canvas REST API one request at a time.
type Client struct {
	token    string
	protocol string
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewClient builds a Canvas client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIToken == "" {
		return nil, fmt.Errorf("canvas api token is required")
	}
	if cfg.Protocol == "" {
		cfg.Protocol = "https"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		token:    cfg.APIToken,
		protocol: cfg.Protocol,
		timeout:  cfg.Timeout,
		logger:   cfg.Logger.With().Str("component", "canvas_client").Logger(),
	}, nil
}

// GetCourseTabs lists the course navigation tabs.
func (c *Client) GetCourseTabs(ctx context.Context, course CourseRef) ([]Tab, error) {
	return getAll[Tab](ctx, c, "tabs", c.courseURL(course, "tabs"), "")
}

// GetCourseUsers lists every user enrolled in the course with their enrollments.
func (c *Client) GetCourseUsers(ctx context.Context, course CourseRef) ([]User, error) {
	query := "include[]=enrollments&include[]=avatar_url&enrollment_state[]=active&enrollment_state[]=invited&enrollment_state[]=completed&"
	return getAll[User](ctx, c, "users", c.courseURL(course, "users"), query)
}

// GetCourseSections lists the course sections.
func (c *Client) GetCourseSections(ctx context.Context, course CourseRef) ([]Section, error) {
	return getAll[Section](ctx, c, "sections", c.courseURL(course, "sections"), "")
}

// GetAssignments lists the course assignments.
func (c *Client) GetAssignments(ctx context.Context, course CourseRef) ([]Assignment, error) {
	return getAll[Assignment](ctx, c, "assignments", c.courseURL(course, "assignments"), "")
}

// GetSubmissions lists the latest submission of every user for one assignment.
func (c *Client) GetSubmissions(ctx context.Context, course CourseRef, assignmentID int64) ([]Submission, error) {
	path := c.courseURL(course, fmt.Sprintf("assignments/%d/submissions", assignmentID))
	return getAll[Submission](ctx, c, "submissions", path, "")
}

// GetDiscussions lists the course discussion topics.
func (c *Client) GetDiscussions(ctx context.Context, course CourseRef) ([]Discussion, error) {
	return getAll[Discussion](ctx, c, "discussions", c.courseURL(course, "discussion_topics"), "")
}

// GetDiscussionEntries returns every entry and reply of a topic, flattened, with ParentID set on
// replies. Deleted entries are dropped but their replies are kept.
func (c *Client) GetDiscussionEntries(ctx context.Context, course CourseRef, topicID int64) ([]DiscussionEntry, error) {
	var view discussionView
	url := c.courseURL(course, fmt.Sprintf("discussion_topics/%d/view", topicID))
	if err := c.getJSON(ctx, "discussion_entries", url, &view); err != nil {
		return nil, err
	}
	return flattenEntries(view.View, nil), nil
}

// DownloadFile fetches an attachment, following the storage redirect Canvas answers with.
func (c *Client) DownloadFile(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues("files").Observe(time.Since(start).Seconds())
	}()

	agent := fiber.Get(url)
	agent.Set(fiber.HeaderAuthorization, "Bearer "+c.token)
	agent.Timeout(c.timeout)
	agent.MaxRedirectsCount(5)

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		requestFailures.WithLabelValues("files").Inc()
		return nil, fmt.Errorf("download %s: %w", url, errs[0])
	}
	if code < 200 || code >= 300 {
		requestFailures.WithLabelValues("files").Inc()
		return nil, &StatusError{Status: code, URL: url}
	}
	return body, nil
}

func (c *Client) courseURL(course CourseRef, resource string) string {
	domain := strings.TrimSuffix(course.APIDomain, "/")
	return fmt.Sprintf("%s://%s/api/v1/courses/%d/%s", c.protocol, domain, course.CourseID, resource)
}

func (c *Client) getJSON(ctx context.Context, resource, url string, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(resource).Observe(time.Since(start).Seconds())
	}()

	agent := fiber.Get(url)
	agent.Set(fiber.HeaderAuthorization, "Bearer "+c.token)
	agent.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	agent.Timeout(c.timeout)

	code, _, errs := agent.Struct(out)
	if code != 0 && (code < 200 || code >= 300) {
		requestFailures.WithLabelValues(resource).Inc()
		return &StatusError{Status: code, URL: url}
	}
	if len(errs) > 0 {
		requestFailures.WithLabelValues(resource).Inc()
		return fmt.Errorf("canvas %s request failed: %w", resource, errs[0])
	}

	c.logger.Debug().Str("resource", resource).Str("url", url).Msg("canvas request completed")
	return nil
}

// getAll walks numbered pages until a short page is returned.
func getAll[T any](ctx context.Context, c *Client, resource, url, query string) ([]T, error) {
	results := make([]T, 0)
	for page := 1; page <= maxPages; page++ {
		var batch []T
		pageURL := fmt.Sprintf("%s?%sper_page=%d&page=%d", url, query, perPage, page)
		if err := c.getJSON(ctx, resource, pageURL, &batch); err != nil {
			return nil, err
		}
		results = append(results, batch...)
		if len(batch) < perPage {
			break
		}
	}
	return results, nil
}

func flattenEntries(entries []DiscussionEntry, parentID *int64) []DiscussionEntry {
	flat := make([]DiscussionEntry, 0, len(entries))
	for _, entry := range entries {
		replies := entry.Replies
		entry.Replies = nil
		if parentID != nil {
			parent := *parentID
			entry.ParentID = &parent
		}
		if !entry.Deleted && entry.UserID != 0 {
			flat = append(flat, entry)
		}
		id := entry.ID
		flat = append(flat, flattenEntries(replies, &id)...)
	}
	return flat
}
