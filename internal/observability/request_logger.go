package observability

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// TenantLabeler extracts the tenant slug for request logs, if resolved.
type TenantLabeler func(c *fiber.Ctx) string

// RequestLogger logs one line per request and records request metrics. The
// route pattern is used as the metrics key so ids in paths do not explode
// the counter table.
func RequestLogger(logger *zap.Logger, metrics *Metrics, tenant TenantLabeler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		latency := time.Since(start)

		status := c.Response().StatusCode()
		route := c.Path()
		if r := c.Route(); r != nil && r.Path != "" {
			route = r.Path
		}
		metrics.RecordRequest(route, c.Method(), status, latency)

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", latency),
		}
		if tenant != nil {
			if slug := tenant(c); slug != "" {
				fields = append(fields, zap.String("tenant", slug))
			}
		}
		if status >= fiber.StatusInternalServerError {
			logger.Warn("request", fields...)
		} else {
			logger.Info("request", fields...)
		}
		return err
	}
}
