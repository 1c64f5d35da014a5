package server

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/taskflow/realtime/internal/broadcast"
	"github.com/taskflow/realtime/internal/config"
	"github.com/taskflow/realtime/internal/sse"
)

// relayPinger is the minimal interface for relay readiness checks; nil when
// the service runs without a relay.
type relayPinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	echo        *echo.Echo
	config      *config.Config
	registry    *sse.Registry
	broadcaster *broadcast.Broadcaster
	relay       relayPinger
	startTime   time.Time
}

func NewServer(cfg *config.Config, registry *sse.Registry, broadcaster *broadcast.Broadcaster, relay relayPinger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	srv := &Server{
		echo:        e,
		config:      cfg,
		registry:    registry,
		broadcaster: broadcaster,
		relay:       relay,
		startTime:   time.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	return s.echo.Start(":" + s.config.Port)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
