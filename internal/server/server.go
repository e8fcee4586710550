package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/noteboard/noteboard/internal/config"
	"github.com/noteboard/noteboard/internal/domain"
	apperrors "github.com/noteboard/noteboard/internal/errors"
	"github.com/noteboard/noteboard/internal/storage"
)

const (
	maxConnectionsPerIP  = 32
	connectionsPerSecond = 10.0
	connectionBurst      = 20
)

// boardHub is the slice of the sync engine the HTTP layer needs.
type boardHub interface {
	Connect(conn *websocket.Conn) (uuid.UUID, error)
	Disconnect(sessionID uuid.UUID)
	HandleInbound(sessionID uuid.UUID, payload []byte)
	SessionCount() int
	Notes(limit int) []domain.Note
}

type Server struct {
	echo      *echo.Echo
	config    *config.Config
	hub       boardHub
	store     storage.Store
	limits    *ConnectionLimits
	startTime time.Time
}

func NewServer(cfg *config.Config, hub boardHub, store storage.Store) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(apperrors.Middleware())

	srv := &Server{
		echo:      e,
		config:    cfg,
		hub:       hub,
		store:     store,
		limits:    NewConnectionLimits(int64(cfg.MaxWebSocketConnections), maxConnectionsPerIP, connectionsPerSecond, connectionBurst),
		startTime: time.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
