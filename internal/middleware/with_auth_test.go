package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/suitec-go-api/internal/middleware"
)

func session(userID, courseID uint, role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if userID != 0 {
			c.Locals(middleware.LocalUserID, userID)
			c.Locals(middleware.LocalCourseID, courseID)
			c.Locals(middleware.LocalUserRole, role)
		}
		return c.Next()
	}
}

func noContent(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}

func TestWithAuthCourseScope(t *testing.T) {
	app := fiber.New()
	app.Use(session(10, 7, "student"))
	app.Get("/courses/:courseId", middleware.WithAuth(noContent, middleware.AuthOptions{CourseParam: "courseId"}))

	require.Equal(t, fiber.StatusNoContent, perform(t, app, "/courses/7").StatusCode)
	require.Equal(t, fiber.StatusForbidden, perform(t, app, "/courses/8").StatusCode)
	require.Equal(t, fiber.StatusBadRequest, perform(t, app, "/courses/abc").StatusCode)
}

func TestWithAuthAdminAllowsInstructor(t *testing.T) {
	app := fiber.New()
	app.Use(session(1, 7, "Instructor"))
	app.Get("/", middleware.WithAuth(noContent, middleware.AuthOptions{Role: middleware.AuthRoleAdmin}))

	require.Equal(t, fiber.StatusNoContent, perform(t, app, "/").StatusCode)
}

func TestWithAuthAdminRejectsStudent(t *testing.T) {
	app := fiber.New()
	app.Use(session(10, 7, "student"))
	app.Get("/", middleware.WithAuth(noContent, middleware.AuthOptions{Role: middleware.AuthRoleAdmin}))

	require.Equal(t, fiber.StatusForbidden, perform(t, app, "/").StatusCode)
}

func TestWithAuthAdminHonoursAdminFlag(t *testing.T) {
	app := fiber.New()
	app.Use(session(10, 7, "student"), func(c *fiber.Ctx) error {
		c.Locals(middleware.LocalIsAdmin, true)
		return c.Next()
	})
	app.Get("/", middleware.WithAuth(noContent, middleware.AuthOptions{Role: middleware.AuthRoleAdmin}))

	require.Equal(t, fiber.StatusNoContent, perform(t, app, "/").StatusCode)
}

func TestWithAuthRequiresUser(t *testing.T) {
	app := fiber.New()
	app.Get("/", middleware.WithAuth(noContent, middleware.AuthOptions{RequireUser: true}))
	app.Get("/open", middleware.WithAuth(noContent, middleware.AuthOptions{}))

	require.Equal(t, fiber.StatusUnauthorized, perform(t, app, "/").StatusCode)
	require.Equal(t, fiber.StatusNoContent, perform(t, app, "/open").StatusCode)
}

func perform(t *testing.T, app *fiber.App, target string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}
