package server

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/taskflow/realtime/internal/version"
)

func (s *Server) handleLiveness(c echo.Context) error {
	uptime := time.Since(s.startTime).Seconds()
	return c.JSON(200, map[string]any{
		"status":      "ok",
		"uptime":      uptime,
		"connections": s.registry.Count(),
	})
}

func (s *Server) handleReadiness(c echo.Context) error {
	// Without a relay there is no external dependency to wait for.
	if s.relay == nil {
		return c.JSON(200, map[string]string{"status": "ready"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	if err := s.relay.Ping(ctx); err != nil {
		return c.JSON(503, map[string]any{
			"status":       "unhealthy",
			"failed_check": "relay",
			"error":        err.Error(),
		})
	}

	return c.JSON(200, map[string]string{"status": "ready"})
}

func (s *Server) handleVersion(c echo.Context) error {
	return c.JSON(200, version.Get())
}
