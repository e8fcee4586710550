package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/noteboard/noteboard/internal/domain"
	apperrors "github.com/noteboard/noteboard/internal/errors"
	"github.com/noteboard/noteboard/internal/metrics"
	"github.com/noteboard/noteboard/internal/version"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // board is embeddable from any origin
	},
}

func (s *Server) handleWebSocket(c echo.Context) error {
	ip := c.RealIP()

	ok, reason := s.limits.Acquire(ip)
	if !ok {
		metrics.WebSocketConnectionsRejected.WithLabelValues(string(reason)).Inc()
		slog.Warn("Rejected WebSocket connection", "ip", ip, "reason", reason)
		if reason == LimitReasonRate {
			return c.String(http.StatusTooManyRequests, "Too many connection attempts")
		}
		return c.String(http.StatusServiceUnavailable, "Connection limit reached")
	}
	defer s.limits.Release(ip)

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade WebSocket: %w", err)
	}

	sessionID, err := s.hub.Connect(conn)
	if err != nil {
		slog.Error("Failed to register session", "error", err)
		conn.Close()
		return nil
	}

	// Read pump blocks until the connection closes.
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			break
		}
		s.hub.HandleInbound(sessionID, payload)
	}

	s.hub.Disconnect(sessionID)

	return nil
}

func (s *Server) handleListNotes(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return apperrors.ValidationError("limit must be a non-negative integer").WithContext("limit", raw)
		}
		limit = parsed
	}

	board := s.hub.Notes(limit)
	if board == nil {
		board = []domain.Note{}
	}

	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"notes":   board,
		"count":   len(board),
	})
}

func (s *Server) handleVersion(c echo.Context) error {
	return c.JSON(http.StatusOK, version.Get())
}

func (s *Server) handleLiveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).Seconds(),
	})
}

func (s *Server) handleHealth(c echo.Context) error {
	storeStatus := "unbound"
	if s.store.Bound() {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		if err := s.store.Ping(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]any{
				"status":       "unhealthy",
				"failed_check": "storage",
				"error":        err.Error(),
			})
		}
		storeStatus = "connected"
	}

	return c.JSON(http.StatusOK, map[string]any{
		"status":            "ok",
		"storeStatus":       storeStatus,
		"connectedSessions": s.hub.SessionCount(),
	})
}
