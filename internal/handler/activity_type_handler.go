package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/suitec-go-api/internal/dto"
	"github.com/noah-isme/suitec-go-api/internal/service"
	"github.com/noah-isme/suitec-go-api/internal/utils"
)

// ActivityTypeHandler exposes the per-course activity type configuration.
type ActivityTypeHandler struct {
	service service.ActivityTypeService
	logger  zerolog.Logger
}

// NewActivityTypeHandler constructs the handler.
func NewActivityTypeHandler(service service.ActivityTypeService, logger zerolog.Logger) *ActivityTypeHandler {
	return &ActivityTypeHandler{
		service: service,
		logger:  logger.With().Str("component", "activity_type_handler").Logger(),
	}
}

// Register wires routes under a /courses/:courseId group.
func (h *ActivityTypeHandler) Register(router fiber.Router) {
	router.Get("/activity-types", courseScoped(h.list))
	router.Put("/activity-types", courseScoped(h.update))
}

func (h *ActivityTypeHandler) list(c *fiber.Ctx) error {
	caller := callerFromContext(c)
	configs, err := h.service.List(requestContext(c), caller.CourseID)
	if err != nil {
		return respondError(c, h.logger, err, "failed to list activity types")
	}
	return utils.SendSuccess(c, "activity types retrieved", configs)
}

func (h *ActivityTypeHandler) update(c *fiber.Ctx) error {
	var payload dto.ActivityTypeUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	caller := callerFromContext(c)
	configs, err := h.service.ApplyOverrides(requestContext(c), caller, caller.CourseID, payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to update activity types")
	}

	requestLogger(h.logger, c).Info().
		Uint("course_id", caller.CourseID).
		Uint("user_id", caller.UserID).
		Int("updates", len(payload.Updates)).
		Msg("activity types updated")
	return utils.SendSuccess(c, "activity types updated", configs)
}
