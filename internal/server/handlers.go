package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/taskflow/realtime/internal/event"
)

const userIDHeader = "X-User-ID"

func userIDFrom(c echo.Context) (int64, error) {
	return strconv.ParseInt(c.Request().Header.Get(userIDHeader), 10, 64)
}

// handleConnect opens the caller's SSE stream and blocks until the client
// disconnects, the absolute session timeout expires, or the connection is
// replaced/evicted. The transport lifetime lives here; the registry only
// reacts to it.
func (s *Server) handleConnect(c echo.Context) error {
	userID, err := userIDFrom(c)
	if err != nil {
		return c.String(http.StatusBadRequest, "Invalid user id")
	}

	response := c.Response()
	response.Header().Set(echo.HeaderContentType, "text/event-stream")
	response.Header().Set("Cache-Control", "no-cache")
	response.Header().Set("Connection", "keep-alive")
	response.WriteHeader(http.StatusOK)
	response.Flush()

	conn := s.registry.Open(userID, newEventStream(response))
	s.broadcaster.SendToUser(userID, event.Connected())

	ctx, cancel := context.WithTimeout(c.Request().Context(), s.config.SessionTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		// Client went away or the session hit its maximum duration.
		s.registry.Release(conn)
	case <-conn.Done():
		// Replaced by a reconnect, evicted, or explicitly closed.
	}

	// The writer goroutine must have exited before the response ends.
	<-conn.Done()
	return nil
}

func (s *Server) handleDisconnect(c echo.Context) error {
	userID, err := userIDFrom(c)
	if err != nil {
		return c.String(http.StatusBadRequest, "Invalid user id")
	}

	s.registry.Close(userID)
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleSubscribe(c echo.Context) error {
	userID, err := userIDFrom(c)
	if err != nil {
		return c.String(http.StatusBadRequest, "Invalid user id")
	}
	boardID, err := strconv.ParseInt(c.Param("boardID"), 10, 64)
	if err != nil {
		return c.String(http.StatusBadRequest, "Invalid board id")
	}

	s.registry.Subscribe(userID, boardID)
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleUnsubscribe(c echo.Context) error {
	userID, err := userIDFrom(c)
	if err != nil {
		return c.String(http.StatusBadRequest, "Invalid user id")
	}
	boardID, err := strconv.ParseInt(c.Param("boardID"), 10, 64)
	if err != nil {
		return c.String(http.StatusBadRequest, "Invalid board id")
	}

	s.registry.Unsubscribe(userID, boardID)
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleStatus(c echo.Context) error {
	userID, err := strconv.ParseInt(c.Param("userID"), 10, 64)
	if err != nil {
		return c.String(http.StatusBadRequest, "Invalid user id")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"userId":      userID,
		"connected":   s.registry.IsConnected(userID),
		"connections": s.registry.Count(),
	})
}
