package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/suitec-go-api/internal/dto"
	"github.com/noah-isme/suitec-go-api/internal/service"
	"github.com/noah-isme/suitec-go-api/internal/utils"
)

// AdminHandler exposes course-administrator maintenance jobs.
type AdminHandler struct {
	scores service.ScoreService
	points service.PointsService
	logger zerolog.Logger
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(scores service.ScoreService, points service.PointsService, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		scores: scores,
		points: points,
		logger: logger.With().Str("component", "admin_handler").Logger(),
	}
}

// Register wires routes under a /courses/:courseId group.
func (h *AdminHandler) Register(router fiber.Router) {
	router.Post("/scores/recalculate", courseAdmin(h.recalculateScores))
	router.Post("/points/reconcile", courseAdmin(h.reconcilePoints))
}

func (h *AdminHandler) recalculateScores(c *fiber.Ctx) error {
	var payload dto.ScoreRecalculationRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	caller := callerFromContext(c)
	result, err := h.scores.Recalculate(requestContext(c), caller, caller.CourseID, payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to recalculate scores")
	}
	return utils.SendSuccess(c, "scores recalculated", result)
}

func (h *AdminHandler) reconcilePoints(c *fiber.Ctx) error {
	caller := callerFromContext(c)
	result, err := h.points.Reconcile(requestContext(c), caller.CourseID)
	if err != nil {
		return respondError(c, h.logger, err, "failed to reconcile points")
	}

	requestLogger(h.logger, c).Info().
		Uint("course_id", caller.CourseID).
		Int("corrected", result.Corrected).
		Msg("points reconciled")
	return utils.SendSuccess(c, "points reconciled", result)
}
