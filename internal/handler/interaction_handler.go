package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/suitec-go-api/internal/dto"
	"github.com/noah-isme/suitec-go-api/internal/service"
	"github.com/noah-isme/suitec-go-api/internal/utils"
)

// InteractionHandler records asset interactions and comments.
type InteractionHandler struct {
	interactions service.InteractionService
	comments     service.CommentService
	validator    *validator.Validate
	logger       zerolog.Logger
}

// NewInteractionHandler constructs the handler.
func NewInteractionHandler(interactions service.InteractionService, comments service.CommentService, validate *validator.Validate, logger zerolog.Logger) *InteractionHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &InteractionHandler{
		interactions: interactions,
		comments:     comments,
		validator:    validate,
		logger:       logger.With().Str("component", "interaction_handler").Logger(),
	}
}

// Register wires routes under a /courses/:courseId group.
func (h *InteractionHandler) Register(router fiber.Router) {
	assets := router.Group("/assets/:assetId")
	assets.Post("/created", courseScoped(h.created))
	assets.Post("/views", courseScoped(h.view))
	assets.Put("/like", courseScoped(h.like))
	assets.Post("/pins", courseScoped(h.pin))
	assets.Delete("/pins", courseScoped(h.unpin))
	assets.Post("/remix", courseScoped(h.remix))
	assets.Post("/comments", courseScoped(h.comment))

	router.Delete("/comments/:commentId", courseScoped(h.deleteComment))
}

func (h *InteractionHandler) created(c *fiber.Ctx) error {
	assetID, ok := parseIDParam(c, "assetId")
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid asset id")
	}

	activities, err := h.interactions.AssetCreated(requestContext(c), callerFromContext(c), assetID)
	if err != nil {
		return respondError(c, h.logger, err, "failed to record asset creation")
	}

	items := make([]dto.ActivityResponse, 0, len(activities))
	for _, activity := range activities {
		items = append(items, dto.NewActivityResponse(activity, nil))
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "asset creation recorded", items)
}

func (h *InteractionHandler) view(c *fiber.Ctx) error {
	assetID, ok := parseIDParam(c, "assetId")
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid asset id")
	}
	if err := h.interactions.ViewAsset(requestContext(c), callerFromContext(c), assetID); err != nil {
		return respondError(c, h.logger, err, "failed to record view")
	}
	return utils.SendSuccess(c, "view recorded", nil)
}

func (h *InteractionHandler) like(c *fiber.Ctx) error {
	assetID, ok := parseIDParam(c, "assetId")
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid asset id")
	}
	var payload dto.LikeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	if err := h.interactions.SetLike(requestContext(c), callerFromContext(c), assetID, payload.Value); err != nil {
		return respondError(c, h.logger, err, "failed to update like")
	}
	return utils.SendSuccess(c, "like updated", payload)
}

func (h *InteractionHandler) pin(c *fiber.Ctx) error {
	assetID, ok := parseIDParam(c, "assetId")
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid asset id")
	}

	repin, err := h.interactions.Pin(requestContext(c), callerFromContext(c), assetID)
	if err != nil {
		return respondError(c, h.logger, err, "failed to pin asset")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "asset pinned", fiber.Map{"repin": repin})
}

func (h *InteractionHandler) unpin(c *fiber.Ctx) error {
	assetID, ok := parseIDParam(c, "assetId")
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid asset id")
	}
	if err := h.interactions.Unpin(requestContext(c), callerFromContext(c), assetID); err != nil {
		return respondError(c, h.logger, err, "failed to unpin asset")
	}
	return utils.SendSuccess(c, "asset unpinned", nil)
}

func (h *InteractionHandler) remix(c *fiber.Ctx) error {
	assetID, ok := parseIDParam(c, "assetId")
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid asset id")
	}
	var payload dto.RemixRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendAPIError(c, err)
	}

	if err := h.interactions.RemixWhiteboard(requestContext(c), callerFromContext(c), assetID, payload.WhiteboardID); err != nil {
		return respondError(c, h.logger, err, "failed to record remix")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "remix recorded", payload)
}

func (h *InteractionHandler) comment(c *fiber.Ctx) error {
	assetID, ok := parseIDParam(c, "assetId")
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid asset id")
	}
	var payload dto.CommentRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	comment, err := h.comments.CreateComment(requestContext(c), callerFromContext(c), assetID, payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to create comment")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "comment created", comment)
}

func (h *InteractionHandler) deleteComment(c *fiber.Ctx) error {
	commentID, ok := parseIDParam(c, "commentId")
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid comment id")
	}
	if err := h.comments.DeleteComment(requestContext(c), callerFromContext(c), commentID); err != nil {
		return respondError(c, h.logger, err, "failed to delete comment")
	}
	return utils.SendSuccess(c, "comment deleted", nil)
}
