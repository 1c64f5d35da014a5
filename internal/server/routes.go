package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo.GET("/version", s.handleVersion)

	// Event stream lifecycle. The authenticated user id arrives in the
	// X-User-ID header, set by the upstream auth layer.
	s.echo.GET("/api/events", s.handleConnect)
	s.echo.DELETE("/api/events", s.handleDisconnect)

	// Board subscriptions for the caller's open connection
	s.echo.PUT("/api/events/boards/:boardID", s.handleSubscribe)
	s.echo.DELETE("/api/events/boards/:boardID", s.handleUnsubscribe)

	// Connection status queries
	s.echo.GET("/api/events/status/:userID", s.handleStatus)
}
