package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/noah-isme/suitec-go-api/internal/utils"
)

// RateLimit throttles each course member separately; a user in two courses gets two budgets.
// Requests without a session fall back to the client IP.
func RateLimit(identifier string, max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = time.Second
	}

	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return rateLimitKey(identifier, c)
		},
		LimitReached: func(c *fiber.Ctx) error {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(window.Seconds()+0.5)))
			return utils.Fail(c, fiber.StatusTooManyRequests, "too many requests", nil)
		},
	})
}

func rateLimitKey(identifier string, c *fiber.Ctx) string {
	if userID := UserID(c); userID != 0 {
		return fmt.Sprintf("%s:course:%d:user:%d", identifier, CourseID(c), userID)
	}
	return fmt.Sprintf("%s:ip:%s", identifier, c.IP())
}
