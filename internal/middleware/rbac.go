package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// LMS roles that administer a course.
var adminRoles = map[string]struct{}{
	"admin":      {},
	"instructor": {},
	"teacher":    {},
	"ta":         {},
	"designer":   {},
}

func isAdminRole(role string) bool {
	_, ok := adminRoles[strings.ToLower(strings.TrimSpace(role))]
	return ok
}

// UserID returns the authenticated user, or zero.
func UserID(c *fiber.Ctx) uint {
	id, _ := c.Locals(LocalUserID).(uint)
	return id
}

// CourseID returns the course the session is bound to, or zero.
func CourseID(c *fiber.Ctx) uint {
	id, _ := c.Locals(LocalCourseID).(uint)
	return id
}

// IsCourseAdmin reports whether the session administers its course.
func IsCourseAdmin(c *fiber.Ctx) bool {
	if admin, ok := c.Locals(LocalIsAdmin).(bool); ok && admin {
		return true
	}
	return isAdminRole(normalizeRoleValue(c.Locals(LocalUserRole)))
}

func normalizeRoleValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.ToLower(strings.TrimSpace(v))
	case fmt.Stringer:
		return strings.ToLower(strings.TrimSpace(v.String()))
	default:
		if value == nil {
			return ""
		}
		return strings.ToLower(strings.TrimSpace(fmt.Sprintf("%v", value)))
	}
}
