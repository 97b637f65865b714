// Package http provides the REST API for managing hosts.
package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/hostyard/hostyard/internal/service"
)

// Server serves the host lifecycle API over HTTP.
type Server struct {
	echo   *echo.Echo
	hosts  *service.HostService
	logger *zap.Logger
}

// NewServer creates the API server and wires its routes
func NewServer(hosts *service.HostService, logger *zap.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	server := &Server{
		echo:   e,
		hosts:  hosts,
		logger: logger.Named("http"),
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// Handler exposes the underlying handler for the HTTP server and for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.RequestID())
	s.echo.Use(middleware.Recover())
	s.echo.Use(s.requestLogger)
}

func (s *Server) setupRoutes() {
	s.echo.GET("/healthz", s.health)

	v1 := s.echo.Group("/api/v1")

	hosts := v1.Group("/hosts")
	hosts.POST("", s.createHost)
	hosts.GET("", s.listHosts)
	hosts.GET("/:id", s.getHost)
	hosts.PUT("/:id", s.updateHost)
	hosts.DELETE("/:id", s.deleteHost)
	hosts.POST("/:id/fillup", s.fillupHost)
	hosts.POST("/:id/clean", s.cleanHost)
	hosts.POST("/:id/reset", s.resetHost)
	hosts.POST("/:id/refresh", s.refreshHost)
}

// requestLogger logs one line per request
func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		s.logger.Info("request",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Request().URL.Path),
			zap.Int("status", c.Response().Status),
			zap.Duration("latency", time.Since(start)))
		return err
	}
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
