package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/suitec-go-api/internal/apierr"
	"github.com/noah-isme/suitec-go-api/internal/middleware"
	"github.com/noah-isme/suitec-go-api/internal/service"
	"github.com/noah-isme/suitec-go-api/internal/utils"
)

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

func parseIDParam(c *fiber.Ctx, key string) (uint, bool) {
	parsed, err := strconv.ParseUint(c.Params(key), 10, 64)
	if err != nil || parsed == 0 {
		return 0, false
	}
	return uint(parsed), true
}

func callerFromContext(c *fiber.Ctx) service.Caller {
	return service.Caller{
		UserID:   middleware.UserID(c),
		CourseID: middleware.CourseID(c),
		IsAdmin:  middleware.IsCourseAdmin(c),
	}
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

// courseScoped guards a handler registered under /courses/:courseId.
func courseScoped(handler fiber.Handler) fiber.Handler {
	return middleware.WithAuth(handler, middleware.AuthOptions{CourseParam: "courseId"})
}

// courseAdmin additionally requires a course administrator.
func courseAdmin(handler fiber.Handler) fiber.Handler {
	return middleware.WithAuth(handler, middleware.AuthOptions{CourseParam: "courseId", Role: middleware.AuthRoleAdmin})
}

// respondError logs server-side failures and renders err with its carried status.
func respondError(c *fiber.Ctx, logger zerolog.Logger, err error, message string) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) && apierr.StatusOf(err) >= fiber.StatusInternalServerError {
		requestLogger(logger, c).Error().Err(err).Msg(message)
	}
	return utils.SendAPIError(c, err)
}
