package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/suitec-go-api/internal/dto"
	"github.com/noah-isme/suitec-go-api/internal/handler"
	"github.com/noah-isme/suitec-go-api/internal/models"
	"github.com/noah-isme/suitec-go-api/internal/service"
)

type stubScores struct {
	lastKind string
}

func (s *stubScores) RecalculateImpactScores(context.Context, uint) (dto.ScoreRecalculationResponse, error) {
	return dto.ScoreRecalculationResponse{}, nil
}

func (s *stubScores) RecalculateTrendingScores(context.Context, uint) (dto.ScoreRecalculationResponse, error) {
	return dto.ScoreRecalculationResponse{}, nil
}

func (s *stubScores) Recalculate(_ context.Context, _ service.Caller, courseID uint, payload dto.ScoreRecalculationRequest) (dto.ScoreRecalculationResponse, error) {
	s.lastKind = payload.Kind
	return dto.ScoreRecalculationResponse{CourseID: courseID, Assets: 3, ImpactChanged: 1}, nil
}

func (s *stubScores) RecalculateActiveCourses(context.Context, string) error { return nil }

func (s *stubScores) RefreshAsset(context.Context, uint, uint) error { return nil }

type stubPoints struct {
	reconciled uint
}

func (s *stubPoints) ApplyDelta(context.Context, uint, uint, int, models.ActivityType) error {
	return nil
}

func (s *stubPoints) Reconcile(_ context.Context, courseID uint) (dto.PointsReconcileResponse, error) {
	s.reconciled = courseID
	return dto.PointsReconcileResponse{CourseID: courseID, Users: 4, Corrected: 2}, nil
}

func TestAdminHandler_RequiresCourseAdmin(t *testing.T) {
	scores, points := &stubScores{}, &stubPoints{}
	app := newCourseApp(student, handler.NewAdminHandler(scores, points, zerolog.Nop()).Register)

	resp := doRequest(t, app, http.MethodPost, "/api/v1/courses/7/scores/recalculate", dto.ScoreRecalculationRequest{Kind: "all"})
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	resp = doRequest(t, app, http.MethodPost, "/api/v1/courses/7/points/reconcile", nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	require.Empty(t, scores.lastKind)
	require.Zero(t, points.reconciled)
}

func TestAdminHandler_RecalculateAndReconcile(t *testing.T) {
	scores, points := &stubScores{}, &stubPoints{}
	app := newCourseApp(instructor, handler.NewAdminHandler(scores, points, zerolog.Nop()).Register)

	resp := doRequest(t, app, http.MethodPost, "/api/v1/courses/7/scores/recalculate", dto.ScoreRecalculationRequest{Kind: "trending"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "trending", scores.lastKind)

	resp = doRequest(t, app, http.MethodPost, "/api/v1/courses/7/points/reconcile", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var body envelope
	decodeResponse(t, resp, &body)
	var summary dto.PointsReconcileResponse
	require.NoError(t, json.Unmarshal(body.Data, &summary))
	require.Equal(t, dto.PointsReconcileResponse{CourseID: 7, Users: 4, Corrected: 2}, summary)
	require.Equal(t, uint(7), points.reconciled)
}
