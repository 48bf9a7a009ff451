package handler

import (
	"bytes"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/suitec-go-api/internal/middleware"
	"github.com/noah-isme/suitec-go-api/internal/service"
	"github.com/noah-isme/suitec-go-api/internal/utils"
)

const (
	defaultFeedLimit = 50
	maxFeedLimit     = 200
	streamPing       = 30 * time.Second
	streamWriteWait  = 10 * time.Second
)

// EngagementHandler serves the leaderboard, activity feeds and the realtime points stream.
type EngagementHandler struct {
	engagement  service.EngagementService
	broadcaster service.PointsBroadcaster
	logger      zerolog.Logger
}

// NewEngagementHandler constructs the handler.
func NewEngagementHandler(engagement service.EngagementService, broadcaster service.PointsBroadcaster, logger zerolog.Logger) *EngagementHandler {
	return &EngagementHandler{
		engagement:  engagement,
		broadcaster: broadcaster,
		logger:      logger.With().Str("component", "engagement_handler").Logger(),
	}
}

// Register wires routes under a /courses/:courseId group.
func (h *EngagementHandler) Register(router fiber.Router) {
	router.Get("/leaderboard", courseScoped(h.leaderboard))
	router.Get("/activities/me", courseScoped(h.myActivities))
	router.Get("/activities/export", courseAdmin(h.export))
	router.Get("/engagement/ws", requireUpgrade, courseScoped(websocket.New(h.stream)))
}

func (h *EngagementHandler) leaderboard(c *fiber.Ctx) error {
	caller := callerFromContext(c)
	board, err := h.engagement.Leaderboard(requestContext(c), caller, caller.CourseID)
	if err != nil {
		return respondError(c, h.logger, err, "failed to build leaderboard")
	}
	return utils.SendSuccess(c, "leaderboard retrieved", board)
}

func (h *EngagementHandler) myActivities(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}
	if limit <= 0 {
		limit = defaultFeedLimit
	}
	if limit > maxFeedLimit {
		limit = maxFeedLimit
	}

	caller := callerFromContext(c)
	items, err := h.engagement.MyActivities(requestContext(c), caller, caller.CourseID, limit)
	if err != nil {
		return respondError(c, h.logger, err, "failed to list activities")
	}
	return utils.OK(c, items, "activities retrieved", fiber.Map{"limit": limit, "count": len(items)})
}

func (h *EngagementHandler) export(c *fiber.Ctx) error {
	caller := callerFromContext(c)

	var buffer bytes.Buffer
	if err := h.engagement.ExportCSV(requestContext(c), caller, caller.CourseID, &buffer); err != nil {
		return respondError(c, h.logger, err, "failed to export activities")
	}

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="course-%d-activities.csv"`, caller.CourseID))
	return c.Status(fiber.StatusOK).Send(buffer.Bytes())
}

func (h *EngagementHandler) stream(conn *websocket.Conn) {
	courseID, _ := conn.Locals(middleware.LocalCourseID).(uint)
	userID, _ := conn.Locals(middleware.LocalUserID).(uint)

	events, cleanup := h.broadcaster.Subscribe(courseID)
	defer cleanup()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(streamPing)
	defer ticker.Stop()

	h.logger.Info().Uint("course_id", courseID).Uint("user_id", userID).Msg("points stream connected")
	defer h.logger.Info().Uint("course_id", courseID).Uint("user_id", userID).Msg("points stream disconnected")

	for {
		select {
		case <-closed:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		}
	}
}

func requireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}
