package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/suitec-go-api/internal/apierr"
	"github.com/noah-isme/suitec-go-api/internal/dto"
	"github.com/noah-isme/suitec-go-api/internal/models"
	"github.com/noah-isme/suitec-go-api/internal/observability"
	"github.com/noah-isme/suitec-go-api/internal/repository"
)

const leaderboardCachePrefix = "suitec:leaderboard:v1"

var exportHeader = []string{"user_id", "user_name", "action", "date", "score", "running_total"}

// EngagementService serves the read projections over the ledger: leaderboard, personal feed
// and the CSV export.
type EngagementService interface {
	ActivityTypesChangedListener
	Leaderboard(ctx context.Context, caller Caller, courseID uint) (dto.LeaderboardResponse, error)
	MyActivities(ctx context.Context, caller Caller, courseID uint, limit int) ([]dto.ActivityResponse, error)
	ExportCSV(ctx context.Context, caller Caller, courseID uint, w io.Writer) error
}

type engagementService struct {
	activities repository.ActivityRepository
	users      repository.UserRepository
	registry   ActivityTypeService
	scrubber   MetadataScrubber
	cache      *redis.Client
	ttl        time.Duration
	logger     zerolog.Logger
	now        func() time.Time
}

// NewEngagementService builds the engagement projections. cache may be nil.
func NewEngagementService(
	activities repository.ActivityRepository,
	users repository.UserRepository,
	registry ActivityTypeService,
	scrubber MetadataScrubber,
	cache *redis.Client,
	ttl time.Duration,
	logger zerolog.Logger,
) EngagementService {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &engagementService{
		activities: activities,
		users:      users,
		registry:   registry,
		scrubber:   scrubber,
		cache:      cache,
		ttl:        ttl,
		logger:     logger.With().Str("component", "engagement_service").Logger(),
		now:        time.Now,
	}
}

// Leaderboard ranks members by banked points over currently enabled types. Ties share a rank.
// Administrators see everyone; other members see those sharing their engagement and themselves.
func (s *engagementService) Leaderboard(ctx context.Context, caller Caller, courseID uint) (dto.LeaderboardResponse, error) {
	if caller.CourseID != courseID {
		return dto.LeaderboardResponse{}, apierr.Authorization("caller does not belong to course %d", courseID)
	}

	full, err := s.rankedLeaderboard(ctx, courseID)
	if err != nil {
		return dto.LeaderboardResponse{}, err
	}
	if caller.IsAdmin {
		return full, nil
	}

	visible := make([]dto.LeaderboardEntry, 0, len(full.Entries))
	for _, entry := range full.Entries {
		if entry.ShareEngagement || entry.UserID == caller.UserID {
			visible = append(visible, entry)
		}
	}
	full.Entries = visible
	return full, nil
}

// ActivityTypesChanged drops the cached leaderboard of the course.
func (s *engagementService) ActivityTypesChanged(ctx context.Context, courseID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, leaderboardCacheKey(courseID)).Err(); err != nil {
		s.logger.Warn().Err(err).Uint("course_id", courseID).Msg("failed to invalidate leaderboard cache")
	}
}

func (s *engagementService) rankedLeaderboard(ctx context.Context, courseID uint) (dto.LeaderboardResponse, error) {
	key := leaderboardCacheKey(courseID)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, key).Result(); err == nil && cached != "" {
			var response dto.LeaderboardResponse
			if err := json.Unmarshal([]byte(cached), &response); err == nil {
				observability.LeaderboardCache().WithLabelValues("hit").Inc()
				return response, nil
			}
		}
	}

	config, err := s.registry.GetEffectiveConfig(ctx, courseID)
	if err != nil {
		return dto.LeaderboardResponse{}, err
	}
	totals, err := s.activities.SumPointsByUser(ctx, courseID, config.EnabledTypes())
	if err != nil {
		return dto.LeaderboardResponse{}, apierr.Storage(err, "sum leaderboard points")
	}
	users, err := s.users.ListByCourse(ctx, courseID)
	if err != nil {
		return dto.LeaderboardResponse{}, apierr.Storage(err, "list course members")
	}

	entries := make([]dto.LeaderboardEntry, 0, len(users))
	for _, user := range users {
		if user.CanvasEnrollmentState == models.EnrollmentInactive {
			continue
		}
		entries = append(entries, dto.LeaderboardEntry{
			UserID:          user.ID,
			CanvasFullName:  user.CanvasFullName,
			CanvasImage:     user.CanvasImage,
			Points:          totals[user.ID],
			ShareEngagement: user.ShareEngagement,
		})
	}
	rankLeaderboard(entries)

	response := dto.LeaderboardResponse{CourseID: courseID, Entries: entries, GeneratedAt: s.now().UTC()}
	if s.cache != nil {
		if payload, err := json.Marshal(response); err == nil {
			if err := s.cache.Set(ctx, key, payload, s.ttl).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to write leaderboard cache")
			}
		}
	}
	observability.LeaderboardCache().WithLabelValues("miss").Inc()
	return response, nil
}

// rankLeaderboard sorts by points, then name, and assigns competition ranks (1, 2, 2, 4).
func rankLeaderboard(entries []dto.LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Points != entries[j].Points {
			return entries[i].Points > entries[j].Points
		}
		if entries[i].CanvasFullName != entries[j].CanvasFullName {
			return entries[i].CanvasFullName < entries[j].CanvasFullName
		}
		return entries[i].UserID < entries[j].UserID
	})
	for i := range entries {
		if i > 0 && entries[i].Points == entries[i-1].Points {
			entries[i].Rank = entries[i-1].Rank
			continue
		}
		entries[i].Rank = i + 1
	}
}

// MyActivities returns the caller's most recent activities of enabled types, newest first.
func (s *engagementService) MyActivities(ctx context.Context, caller Caller, courseID uint, limit int) ([]dto.ActivityResponse, error) {
	if caller.CourseID != courseID {
		return nil, apierr.Authorization("caller does not belong to course %d", courseID)
	}
	config, err := s.registry.GetEffectiveConfig(ctx, courseID)
	if err != nil {
		return nil, err
	}
	types := config.EnabledTypes()
	if len(types) == 0 {
		return []dto.ActivityResponse{}, nil
	}

	userID := caller.UserID
	activities, err := s.activities.List(ctx, repository.ActivityFilter{
		CourseID: courseID,
		UserID:   &userID,
		Types:    types,
		Limit:    feedLimit(limit),
		Newest:   true,
	})
	if err != nil {
		return nil, apierr.Storage(err, "list caller activities")
	}

	items := make([]dto.ActivityResponse, 0, len(activities))
	for _, activity := range activities {
		items = append(items, dto.NewActivityResponse(activity, s.scrubber.Scrub(map[string]interface{}(activity.Metadata))))
	}
	return items, nil
}

// ExportCSV writes every activity of an enabled type in time order, with each member's running
// total of banked points.
func (s *engagementService) ExportCSV(ctx context.Context, caller Caller, courseID uint, w io.Writer) error {
	if !caller.IsAdmin || caller.CourseID != courseID {
		return apierr.Authorization("only course administrators may export activities")
	}
	config, err := s.registry.GetEffectiveConfig(ctx, courseID)
	if err != nil {
		return err
	}
	types := config.EnabledTypes()

	var activities []models.Activity
	if len(types) > 0 {
		activities, err = s.activities.List(ctx, repository.ActivityFilter{CourseID: courseID, Types: types})
		if err != nil {
			return apierr.Storage(err, "list activities for export")
		}
	}
	users, err := s.users.ListByCourse(ctx, courseID)
	if err != nil {
		return apierr.Storage(err, "list course members")
	}
	names := make(map[uint]string, len(users))
	for _, user := range users {
		names[user.ID] = user.CanvasFullName
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(exportHeader); err != nil {
		return fmt.Errorf("write export header: %w", err)
	}
	running := make(map[uint]int)
	for _, activity := range activities {
		running[activity.UserID] += activity.Points
		record := []string{
			strconv.FormatUint(uint64(activity.UserID), 10),
			names[activity.UserID],
			string(activity.Type),
			activity.CreatedAt.UTC().Format(time.RFC3339),
			strconv.Itoa(activity.Points),
			strconv.Itoa(running[activity.UserID]),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write export row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func leaderboardCacheKey(courseID uint) string {
	return fmt.Sprintf("%s:%d", leaderboardCachePrefix, courseID)
}

func feedLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}
