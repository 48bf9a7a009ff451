package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "lti-session-secret"

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func sessionApp(captured *fiber.Map) *fiber.App {
	app := fiber.New()
	app.Use(JWTProtected(testSecret))
	app.Get("/", func(c *fiber.Ctx) error {
		*captured = fiber.Map{
			"user":   UserID(c),
			"course": CourseID(c),
			"admin":  IsCourseAdmin(c),
		}
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestJWTProtectedBindsSession(t *testing.T) {
	var captured fiber.Map
	app := sessionApp(&captured)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signed(t, jwt.MapClaims{
		"sub":       "42",
		"course_id": float64(7),
		"role":      "Student",
		"exp":       time.Now().Add(time.Hour).Unix(),
	}))
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, fiber.Map{"user": uint(42), "course": uint(7), "admin": false}, captured)
}

func TestJWTProtectedAcceptsQueryTokenAndAdminClaim(t *testing.T) {
	var captured fiber.Map
	app := sessionApp(&captured)

	token := signed(t, jwt.MapClaims{"sub": float64(1), "course_id": "7", "is_admin": true})
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/?access_token="+token, nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, true, captured["admin"])
}

func TestJWTProtectedRejectsBadTokens(t *testing.T) {
	var captured fiber.Map
	app := sessionApp(&captured)

	cases := map[string]string{
		"missing":   "",
		"garbage":   "Bearer not-a-token",
		"no course": "Bearer " + signed(t, jwt.MapClaims{"sub": "42"}),
		"expired":   "Bearer " + signed(t, jwt.MapClaims{"sub": "42", "course_id": "7", "exp": time.Now().Add(-time.Minute).Unix()}),
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestIsAdminRole(t *testing.T) {
	require.True(t, isAdminRole(" Instructor "))
	require.True(t, isAdminRole("ta"))
	require.False(t, isAdminRole("student"))
	require.False(t, isAdminRole(""))
}
