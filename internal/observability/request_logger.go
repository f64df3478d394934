package observability

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// PrincipalLookup reports whether the request carries an authenticated principal.
type PrincipalLookup func(c *fiber.Ctx) bool

// RequestLogger logs one line per request and feeds the request metrics.
func RequestLogger(logger *zap.Logger, metrics *Metrics, authenticated PrincipalLookup) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		duration := time.Since(start)

		status := c.Response().StatusCode()
		route := c.Route().Path
		metrics.RecordRequest(route, c.Method(), status, duration)

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", duration),
		}
		if authenticated != nil {
			fields = append(fields, zap.Bool("authenticated", authenticated(c)))
		}
		logger.Info("request", fields...)
		return err
	}
}
