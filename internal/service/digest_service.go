package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/suitec-go-api/internal/apierr"
	"github.com/noah-isme/suitec-go-api/internal/dto"
	"github.com/noah-isme/suitec-go-api/internal/models"
	"github.com/noah-isme/suitec-go-api/internal/observability"
	"github.com/noah-isme/suitec-go-api/internal/repository"
)

// Publisher hands a payload to the message bus. *nats.Conn satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// DigestService selects the course members a daily or weekly digest should summarise.
type DigestService interface {
	SelectBatches(ctx context.Context, frequency string) ([]dto.DigestBatch, error)
	Dispatch(ctx context.Context, frequency string) (int, error)
}

type digestService struct {
	courses    repository.CourseRepository
	users      repository.UserRepository
	activities repository.ActivityRepository
	publisher  Publisher
	subject    string
	logger     zerolog.Logger
	now        func() time.Time
}

// NewDigestService constructs the digest selector. Batches are published on
// "<channel>.digest.<frequency>".
func NewDigestService(courses repository.CourseRepository, users repository.UserRepository, activities repository.ActivityRepository, publisher Publisher, channelBase string, logger zerolog.Logger) DigestService {
	return &digestService{
		courses:    courses,
		users:      users,
		activities: activities,
		publisher:  publisher,
		subject:    strings.ReplaceAll(channelBase, ":", ".") + ".digest",
		logger:     logger.With().Str("component", "digest_service").Logger(),
		now:        time.Now,
	}
}

// SelectBatches returns, per notifiable course, the active members who acted or were credited
// inside the digest window. Courses with nobody to notify are left out.
func (s *digestService) SelectBatches(ctx context.Context, frequency string) ([]dto.DigestBatch, error) {
	window, err := digestWindow(frequency)
	if err != nil {
		return nil, err
	}
	since := s.now().UTC().Add(-window)

	courses, err := s.courses.ListNotifiable(ctx, frequency)
	if err != nil {
		return nil, apierr.Storage(err, "list notifiable courses")
	}

	batches := make([]dto.DigestBatch, 0, len(courses))
	for _, course := range courses {
		ids, err := s.activities.ListParticipantIDsSince(ctx, course.ID, since)
		if err != nil {
			return nil, apierr.Storage(err, "list digest participants")
		}
		if len(ids) == 0 {
			continue
		}
		users, err := s.users.ListByIDs(ctx, ids)
		if err != nil {
			return nil, apierr.Storage(err, "load digest participants")
		}

		recipients := make([]uint, 0, len(users))
		for _, user := range users {
			if user.CourseID == course.ID && user.CanvasEnrollmentState == models.EnrollmentActive {
				recipients = append(recipients, user.ID)
			}
		}
		if len(recipients) == 0 {
			continue
		}

		batches = append(batches, dto.DigestBatch{
			Frequency: frequency,
			CourseID:  course.ID,
			Course:    course.Name,
			UserIDs:   recipients,
			Since:     since,
		})
	}
	return batches, nil
}

// Dispatch publishes every selected batch and returns how many were sent. A failed publish is
// logged and the remaining courses still go out.
func (s *digestService) Dispatch(ctx context.Context, frequency string) (int, error) {
	batches, err := s.SelectBatches(ctx, frequency)
	if err != nil {
		return 0, err
	}
	if s.publisher == nil {
		s.logger.Warn().Str("frequency", frequency).Int("batches", len(batches)).Msg("no publisher configured; digests dropped")
		return 0, nil
	}

	subject := s.subject + "." + frequency
	sent := 0
	for _, batch := range batches {
		payload, err := json.Marshal(batch)
		if err != nil {
			s.logger.Error().Err(err).Uint("course_id", batch.CourseID).Msg("failed to encode digest batch")
			continue
		}
		if err := s.publisher.Publish(subject, payload); err != nil {
			s.logger.Error().Err(err).Uint("course_id", batch.CourseID).Msg("failed to publish digest batch")
			continue
		}
		sent++
		observability.DigestBatches().WithLabelValues(frequency).Inc()
	}

	s.logger.Info().Str("frequency", frequency).Int("sent", sent).Int("selected", len(batches)).Msg("digests dispatched")
	return sent, nil
}

func digestWindow(frequency string) (time.Duration, error) {
	switch frequency {
	case repository.DigestDaily:
		return 24 * time.Hour, nil
	case repository.DigestWeekly:
		return 7 * 24 * time.Hour, nil
	default:
		return 0, apierr.Validation("unknown digest frequency %q", frequency)
	}
}
