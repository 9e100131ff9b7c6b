// Package framework is a minimal web framework.
package framework

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbd54566975/did-service/config"
)

type contextKey string

const (
	TraceIDKey       contextKey = "traceID"
	ShutdownErrorKey contextKey = "shutdownError"
)

func (c contextKey) String() string {
	return string(c)
}

// Server is the entrypoint into our application and what configures our context object for each of our http router.
// Feel free to add any configuration data/logic on this Server struct.
type Server struct {
	*http.Server
}

// NewServer creates a Server that handles a set of routes for the application.
func NewServer(cfg config.ServerConfig, handler *gin.Engine) *Server {
	return &Server{
		Server: &http.Server{
			Addr:              cfg.APIHost,
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
		},
	}
}
