package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/middlewares/server/recovery"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/route"
	"github.com/google/uuid"

	"github.com/Zereker/relations/pkg/log"
	"github.com/Zereker/relations/pkg/store"
)

const headerRequestID = "X-Request-ID"

// Server represents an HTTP server
type Server struct {
	logger *slog.Logger
	hertz  *server.Hertz
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8008,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// NewServer creates a new HTTP server
func NewServer(s store.Store, handlerCfg HandlerConfig, cfg ServerConfig) *Server {
	logger := log.Logger("http")

	opts := append(RouterOptions(),
		server.WithHostPorts(fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)),
		server.WithReadTimeout(cfg.ReadTimeout),
		server.WithWriteTimeout(cfg.WriteTimeout),
		server.WithDisablePrintRoute(true),
	)
	h := server.New(opts...)
	Mount(h.Engine, logger, NewHandler(s, handlerCfg))

	return &Server{
		logger: logger,
		hertz:  h,
	}
}

// RouterOptions make the router match on the raw request path and leave
// path values escaped. Identifiers may contain '/', which clients send as %2F.
func RouterOptions() []config.Option {
	return []config.Option{
		server.WithUseRawPath(true),
		server.WithUnescapePathValues(false),
	}
}

// Mount installs middleware and routes on an engine.
func Mount(r *route.Engine, logger *slog.Logger, handler *Handler) {
	r.Use(recovery.Recovery(), loggingMiddleware(logger), corsMiddleware())
	handler.RegisterRoutes(r)
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.logger.Info("starting server")
	return s.hertz.Run()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	return s.hertz.Shutdown(ctx)
}

// Middleware functions

func loggingMiddleware(logger *slog.Logger) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()

		requestID := string(c.GetHeader(headerRequestID))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(headerRequestID, requestID)

		c.Next(ctx)

		logger.Info("request",
			"request_id", requestID,
			"method", string(c.Method()),
			"path", string(c.Path()),
			"status", c.Response.StatusCode(),
			"duration", time.Since(start).Milliseconds(),
		)
	}
}

func corsMiddleware() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, "+headerRequestID)

		if string(c.Method()) == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next(ctx)
	}
}
