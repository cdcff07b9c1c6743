package middleware

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/KotFed0t/finance_simulator/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-ID"

// RequestID puts a request id into the user context of every request.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rqID := c.Get(RequestIDHeader)
		if rqID == "" {
			rqID = uuid.NewString()
		}

		c.Locals("rqID", rqID)
		c.SetUserContext(utils.WithRequestID(c.UserContext(), rqID))
		c.Set(RequestIDHeader, rqID)

		return c.Next()
	}
}

func Logger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		now := time.Now()
		rqID, _ := c.Locals("rqID").(string)

		slog.Info(
			"start request",
			slog.String("rqID", rqID),
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
		)

		err := c.Next()

		slog.Info(
			"request finished",
			slog.String("rqID", rqID),
			slog.Int("status", c.Response().StatusCode()),
			slog.String("request duration", fmt.Sprintf("%.3fs", time.Since(now).Seconds())),
		)

		return err
	}
}

// NoCache forbids caching of any response, pages contain balances.
func NoCache() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderCacheControl, "no-cache, no-store, must-revalidate")
		c.Set(fiber.HeaderExpires, "0")
		c.Set(fiber.HeaderPragma, "no-cache")
		return c.Next()
	}
}
