package middleware

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/suitec-go-api/internal/utils"
)

// Auth role constants used by WithAuth.
const (
	AuthRoleAny   = "any"
	AuthRoleAdmin = "admin"
)

// AuthOptions configures WithAuth.
type AuthOptions struct {
	Role        string
	RequireUser bool
	// CourseParam names the route parameter that must match the session's course.
	CourseParam string
}

// WithAuth wraps a handler with authentication, course scope and role guards.
func WithAuth(handler fiber.Handler, opts AuthOptions) fiber.Handler {
	role := strings.ToLower(strings.TrimSpace(opts.Role))
	if role == "" {
		role = AuthRoleAny
	}
	requireUser := opts.RequireUser || role != AuthRoleAny || opts.CourseParam != ""

	return func(c *fiber.Ctx) error {
		if requireUser && UserID(c) == 0 {
			return utils.Fail(c, fiber.StatusUnauthorized, "authentication required", nil)
		}

		if opts.CourseParam != "" {
			requested, err := strconv.ParseUint(c.Params(opts.CourseParam), 10, 64)
			if err != nil || requested == 0 {
				return utils.Fail(c, fiber.StatusBadRequest, "invalid course id", nil)
			}
			if uint(requested) != CourseID(c) {
				return utils.Fail(c, fiber.StatusForbidden, "session is not bound to this course", nil)
			}
		}

		if role == AuthRoleAdmin && !IsCourseAdmin(c) {
			return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", nil)
		}

		return handler(c)
	}
}
