package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/suitec-go-api/internal/middleware"
)

type session struct {
	userID   uint
	courseID uint
	role     string
}

var (
	student    = session{userID: 10, courseID: 7, role: "student"}
	instructor = session{userID: 1, courseID: 7, role: "instructor"}
)

// newCourseApp mounts register under /api/v1/courses/:courseId with a pre-authenticated session.
func newCourseApp(s session, register func(fiber.Router)) *fiber.App {
	app := fiber.New()
	course := app.Group("/api/v1/courses/:courseId", func(c *fiber.Ctx) error {
		c.Locals(middleware.LocalUserID, s.userID)
		c.Locals(middleware.LocalCourseID, s.courseID)
		c.Locals(middleware.LocalUserRole, s.role)
		return c.Next()
	})
	register(course)
	return app
}

func doRequest(t *testing.T, app *fiber.App, method, target string, body interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	switch v := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(v)
	default:
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}

func validateContract(t *testing.T, schemaFile string, resp *http.Response) {
	t.Helper()
	schemaPath, err := filepath.Abs(filepath.Join("..", "..", "contracts", schemaFile))
	require.NoError(t, err)

	schema, err := jsonschema.NewCompiler().Compile("file://" + schemaPath)
	require.NoError(t, err)

	var payload interface{}
	decodeResponse(t, resp, &payload)
	require.NoError(t, schema.Validate(payload))
}

type envelope struct {
	Success bool            `json:"success"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}
