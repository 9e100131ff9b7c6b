package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbd54566975/did-service/pkg/server/framework"
)

// Logger logs request info after a handler runs, in the following format:
//
//	TraceID : (StatusCode) HTTPMethod Path -> IPAddr (latency)
//	e.g. 12345 : (200) GET /v1/dids -> 192.168.1.0 (4ms)
func Logger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		traceID := trace.SpanFromContext(c.Request.Context()).SpanContext().TraceID().String()
		entry := logger.WithFields(logrus.Fields{
			framework.TraceIDKey.String(): traceID,
			"status":                      c.Writer.Status(),
			"method":                      c.Request.Method,
			"path":                        path,
			"ip":                          c.ClientIP(),
			"latency":                     time.Since(start).String(),
		})
		if len(c.Errors) > 0 {
			entry.Warn("completed with errors")
			return
		}
		entry.Info("completed")
	}
}
