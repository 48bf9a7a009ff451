package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/suitec-go-api/internal/apierr"
	"github.com/noah-isme/suitec-go-api/internal/dto"
	"github.com/noah-isme/suitec-go-api/internal/models"
	"github.com/noah-isme/suitec-go-api/internal/observability"
	"github.com/noah-isme/suitec-go-api/internal/repository"
)

// PointsService maintains each user's cached point total.
type PointsService interface {
	// ApplyDelta adds delta to the user's total. Only the ledger calls it, and only with
	// deltas it banked or is reversing.
	ApplyDelta(ctx context.Context, courseID, userID uint, delta int, reason models.ActivityType) error
	// Reconcile rebuilds every cached total in the course from the banked ledger points.
	Reconcile(ctx context.Context, courseID uint) (dto.PointsReconcileResponse, error)
}

type pointsService struct {
	users       repository.UserRepository
	activities  repository.ActivityRepository
	broadcaster PointsBroadcaster
	logger      zerolog.Logger
	now         func() time.Time
}

// NewPointsService constructs the points aggregator. broadcaster may be nil.
func NewPointsService(users repository.UserRepository, activities repository.ActivityRepository, broadcaster PointsBroadcaster, logger zerolog.Logger) PointsService {
	return &pointsService{
		users:       users,
		activities:  activities,
		broadcaster: broadcaster,
		logger:      logger.With().Str("component", "points_service").Logger(),
		now:         time.Now,
	}
}

func (s *pointsService) ApplyDelta(ctx context.Context, courseID, userID uint, delta int, reason models.ActivityType) error {
	if delta == 0 {
		return nil
	}

	total, err := s.users.IncrementPoints(ctx, userID, delta)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apierr.NotFound("user %d not found", userID)
		}
		return apierr.Storage(err, "apply points delta")
	}

	if delta > 0 {
		observability.PointsApplied().WithLabelValues("credit").Add(float64(delta))
	} else {
		observability.PointsApplied().WithLabelValues("debit").Add(float64(-delta))
	}
	if total < 0 {
		s.logger.Error().
			Uint("course_id", courseID).
			Uint("user_id", userID).
			Int("delta", delta).
			Int("total", total).
			Msg("user points went negative; run a reconcile")
	}

	if s.broadcaster != nil {
		s.broadcaster.Broadcast(ctx, dto.PointsEvent{
			CourseID: courseID,
			UserID:   userID,
			Delta:    delta,
			Total:    total,
			Reason:   reason,
			At:       s.now().UTC(),
		})
	}
	return nil
}

func (s *pointsService) Reconcile(ctx context.Context, courseID uint) (dto.PointsReconcileResponse, error) {
	users, err := s.users.ListByCourse(ctx, courseID)
	if err != nil {
		return dto.PointsReconcileResponse{}, apierr.Storage(err, "list course users")
	}
	totals, err := s.activities.SumPointsByUser(ctx, courseID, nil)
	if err != nil {
		return dto.PointsReconcileResponse{}, apierr.Storage(err, "sum banked points")
	}

	corrected := 0
	for _, user := range users {
		if user.Points != totals[user.ID] {
			corrected++
			s.logger.Warn().
				Uint("course_id", courseID).
				Uint("user_id", user.ID).
				Int("cached", user.Points).
				Int("ledger", totals[user.ID]).
				Msg("correcting drifted point total")
		}
	}

	if corrected > 0 {
		if err := s.users.ReplacePoints(ctx, courseID, totals); err != nil {
			return dto.PointsReconcileResponse{}, apierr.Storage(err, "replace point totals")
		}
	}

	return dto.PointsReconcileResponse{CourseID: courseID, Users: len(users), Corrected: corrected}, nil
}
