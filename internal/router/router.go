package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/suitec-go-api/internal/config"
	"github.com/noah-isme/suitec-go-api/internal/handler"
	"github.com/noah-isme/suitec-go-api/internal/middleware"
	"github.com/noah-isme/suitec-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ActivityTypeHandler *handler.ActivityTypeHandler
	EngagementHandler   *handler.EngagementHandler
	InteractionHandler  *handler.InteractionHandler
	AdminHandler        *handler.AdminHandler
	JWTMiddleware       fiber.Handler
	// RateLimit caps course requests per user per second; zero disables it.
	RateLimit int
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	courseMiddleware := []fiber.Handler{jwtMiddleware}
	if deps.RateLimit > 0 {
		courseMiddleware = append(courseMiddleware, middleware.RateLimit("course", deps.RateLimit, time.Second))
	}
	course := api.Group("/courses/:courseId", courseMiddleware...)

	if deps.ActivityTypeHandler != nil {
		deps.ActivityTypeHandler.Register(course)
	}
	if deps.EngagementHandler != nil {
		deps.EngagementHandler.Register(course)
	}
	if deps.AdminHandler != nil {
		deps.AdminHandler.Register(course)
	}
	if deps.InteractionHandler != nil {
		deps.InteractionHandler.Register(course)
	}
}
