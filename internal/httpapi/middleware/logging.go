package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/suPer8Hu/swaif-depths/pkg/logger"
	"github.com/suPer8Hu/swaif-depths/pkg/metrics"
)

// Logging writes one access log line per request and records request metrics
// under the route template, not the raw path.
func Logging(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		cost := time.Since(start)
		metrics.RecordRequest(c.Request.Method, route, strconv.Itoa(status), cost.Seconds())

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("cost", cost),
			zap.String("request_id", c.GetString(RequestIDKey)),
		}
		if sub := c.GetString(SubjectKey); sub != "" {
			fields = append(fields, zap.String("subject", sub))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch {
		case status >= 500:
			log.Error("request", fields...)
		case status >= 400:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}
