package middleware

import (
	"net/http"
	"os"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbd54566975/did-service/config"
	"github.com/tbd54566975/did-service/pkg/server/framework"
)

// Errors handles errors coming out of the call stack. Handlers respond to the requester
// themselves through framework.RespondError; this middleware logs what they recorded,
// signals shutdown on integrity errors, and answers with a generic 500 if nothing was written.
func Errors(shutdown chan os.Signal) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		errs := c.Errors.ByType(gin.ErrorTypeAny)
		if len(errs) == 0 {
			return
		}

		tracer := trace.SpanFromContext(c.Request.Context()).TracerProvider().Tracer(config.ServiceName)
		_, span := tracer.Start(c.Request.Context(), "service.middleware.errors")
		defer span.End()

		// check if there's a shutdown-worthy error
		for _, e := range errs {
			if framework.IsShutdown(e.Err) {
				c.Set(framework.ShutdownErrorKey.String(), e.Err)
				logrus.WithError(e.Err).Error("integrity error, shutting down")
				if shutdown != nil {
					shutdown <- syscall.SIGTERM
				}
				break
			}
		}

		logrus.WithField(framework.TraceIDKey.String(), span.SpanContext().TraceID().String()).
			Errorf("request failed: %s", errs.String())

		if !c.Writer.Written() {
			c.AbortWithStatusJSON(http.StatusInternalServerError, framework.ErrorResponse{
				Error: http.StatusText(http.StatusInternalServerError),
			})
		}
	}
}
