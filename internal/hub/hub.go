// Package hub implements the realtime synchronization engine: the session
// registry, the message router, and the fan-out broadcaster.
//
// All shared state (sessions, the note store) is owned by a single goroutine
// reached via a command channel (no mutexes). Per-connection write goroutines
// absorb slow clients; the durable store is only ever touched through the
// persistence batcher, never on the broadcast path.
package hub

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/noteboard/noteboard/internal/domain"
	"github.com/noteboard/noteboard/internal/metrics"
	"github.com/noteboard/noteboard/internal/notes"
	"github.com/noteboard/noteboard/internal/protocol"
)

const (
	commandTimeout = 5 * time.Second
	stopTimeout    = 10 * time.Second
)

// Persister is the slow-path sink for durable mutations. The hub enqueues
// and moves on; it never waits on storage.
type Persister interface {
	EnqueueCreate(note domain.Note)
	EnqueueUpdate(noteID string, x, y float64, ts int64)
	EnqueueDelete(noteID string)
}

// Options tune the hub. Zero values take the defaults below.
type Options struct {
	IdleTimeout   time.Duration // evict sessions with no inbound frame for this long
	SweepInterval time.Duration // cadence of the idle sweep
}

const (
	defaultIdleTimeout   = 30 * time.Minute
	defaultSweepInterval = time.Minute
)

func (o Options) withDefaults() Options {
	if o.IdleTimeout == 0 {
		o.IdleTimeout = defaultIdleTimeout
	}
	if o.SweepInterval == 0 {
		o.SweepInterval = defaultSweepInterval
	}
	return o
}

// --- Command types ---

type hubCmd interface{ isHubCmd() }

type baseHubCmd struct{}

func (baseHubCmd) isHubCmd() {}

type connectCmd struct {
	baseHubCmd
	connection   *websocket.Conn
	replyChannel chan uuid.UUID
}

type disconnectCmd struct {
	baseHubCmd
	sessionID uuid.UUID
}

type inboundCmd struct {
	baseHubCmd
	sessionID uuid.UUID
	payload   []byte
}

// touchCmd marks a session alive without carrying a frame (transport pong).
type touchCmd struct {
	baseHubCmd
	sessionID uuid.UUID
}

type sessionCountCmd struct {
	baseHubCmd
	replyChannel chan int
}

type snapshotCmd struct {
	baseHubCmd
	limit        int
	replyChannel chan []domain.Note
}

type stopHubCmd struct {
	baseHubCmd
}

// Hub is the engine actor.
type Hub struct {
	cmdCh    chan hubCmd
	clock    clockwork.Clock
	sessions map[uuid.UUID]*session
	store    *notes.Store
	persist  Persister
	opts     Options
	done     chan struct{}
}

// New creates a hub around the given note store and starts its goroutine.
func New(store *notes.Store, persist Persister, clock clockwork.Clock, opts Options) *Hub {
	h := &Hub{
		cmdCh:    make(chan hubCmd, 256),
		clock:    clock,
		sessions: make(map[uuid.UUID]*session),
		store:    store,
		persist:  persist,
		opts:     opts.withDefaults(),
		done:     make(chan struct{}),
	}
	go h.run()
	return h
}

// Connect registers a freshly upgraded connection and pushes the
// connection_established frame. Returns the new session id.
func (h *Hub) Connect(conn *websocket.Conn) (uuid.UUID, error) {
	replyCh := make(chan uuid.UUID, 1)
	select {
	case h.cmdCh <- connectCmd{connection: conn, replyChannel: replyCh}:
	case <-h.done:
		return uuid.Nil, fmt.Errorf("hub is stopped")
	}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case id := <-replyCh:
		return id, nil
	case <-h.done:
		return uuid.Nil, fmt.Errorf("hub is stopped")
	case <-timer.Chan():
		return uuid.Nil, fmt.Errorf("connect command timed out after %v", commandTimeout)
	}
}

// Disconnect removes a session. Idempotent: unknown ids are a no-op.
func (h *Hub) Disconnect(sessionID uuid.UUID) {
	select {
	case h.cmdCh <- disconnectCmd{sessionID: sessionID}:
	case <-h.done:
	}
}

// HandleInbound routes one raw frame from a session's read pump.
func (h *Hub) HandleInbound(sessionID uuid.UUID, payload []byte) {
	select {
	case h.cmdCh <- inboundCmd{sessionID: sessionID, payload: payload}:
	case <-h.done:
	}
}

// SessionCount returns the number of live sessions. Returns 0 after the hub
// stops and -1 on timeout.
func (h *Hub) SessionCount() int {
	replyCh := make(chan int, 1)
	select {
	case h.cmdCh <- sessionCountCmd{replyChannel: replyCh}:
	case <-h.done:
		return 0
	}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case count := <-replyCh:
		return count
	case <-h.done:
		return 0
	case <-timer.Chan():
		slog.Warn("SessionCount timed out", "timeout", commandTimeout)
		return -1
	}
}

// Notes returns a copy of the current note set without mutating engine state.
func (h *Hub) Notes(limit int) []domain.Note {
	replyCh := make(chan []domain.Note, 1)
	select {
	case h.cmdCh <- snapshotCmd{limit: limit, replyChannel: replyCh}:
	case <-h.done:
		return nil
	}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case snapshot := <-replyCh:
		return snapshot
	case <-h.done:
		return nil
	case <-timer.Chan():
		slog.Warn("Notes snapshot timed out", "timeout", commandTimeout)
		return nil
	}
}

// Stop closes every session and shuts the hub down. Idempotent: calling it
// on a stopped hub returns immediately.
func (h *Hub) Stop() {
	select {
	case h.cmdCh <- stopHubCmd{}:
	case <-h.done:
		return
	}

	timer := h.clock.NewTimer(stopTimeout)
	defer timer.Stop()

	select {
	case <-h.done:
		slog.Info("Hub stopped gracefully")
	case <-timer.Chan():
		slog.Warn("Hub stop timeout exceeded", "timeout", stopTimeout)
	}
}

func (h *Hub) run() {
	sweeper := h.clock.NewTicker(h.opts.SweepInterval)
	defer sweeper.Stop()

	for {
		select {
		case cmd := <-h.cmdCh:
			switch c := cmd.(type) {
			case connectCmd:
				h.handleConnect(c)
			case disconnectCmd:
				h.handleDisconnect(c.sessionID, "")
			case inboundCmd:
				h.handleInbound(c)
			case touchCmd:
				h.handleTouch(c.sessionID)
			case sessionCountCmd:
				c.replyChannel <- len(h.sessions)
			case snapshotCmd:
				c.replyChannel <- h.store.Snapshot(c.limit)
			case stopHubCmd:
				h.handleStop()
				close(h.done)
				return
			default:
				slog.Warn("Hub received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
			}
		case <-sweeper.Chan():
			h.sweepIdleSessions()
		}
	}
}

func (h *Hub) handleConnect(c connectCmd) {
	id := uuid.New()

	// A heartbeat pong counts as liveness even when the client sends no
	// frames, so the idle sweep only evicts truly silent connections.
	onPong := func() {
		select {
		case h.cmdCh <- touchCmd{sessionID: id}:
		case <-h.done:
		}
	}

	s := &session{
		id:       id,
		lastSeen: h.clock.Now(),
		writer:   newSessionWriter(c.connection, h.clock, onPong),
	}
	h.sessions[s.id] = s
	metrics.HubConnectedSessions.Set(float64(len(h.sessions)))

	h.sendTo(s, protocol.NewConnectionEstablished(s.id.String(), h.nowMs()))
	slog.Debug("Session connected", "session_id", s.id.String(), "total_sessions", len(h.sessions))

	c.replyChannel <- s.id
}

// handleDisconnect removes a session; removing an already-absent id is a
// no-op. A non-empty closeReason is sent to the peer as a close frame.
// A known identity is announced to the remaining sessions as user_left.
func (h *Hub) handleDisconnect(sessionID uuid.UUID, closeReason string) {
	s, exists := h.sessions[sessionID]
	if !exists {
		return
	}

	delete(h.sessions, sessionID)
	metrics.HubConnectedSessions.Set(float64(len(h.sessions)))

	if closeReason == "" {
		s.writer.stop()
	} else {
		s.writer.stopGraceful(closeReason)
	}

	if s.identity != nil {
		h.broadcast(protocol.NewUserLeft(*s.identity, h.nowMs()), sessionID)
	}
	slog.Info("Session disconnected", "session_id", sessionID.String(), "remaining_sessions", len(h.sessions))
}

// broadcast serializes once and delivers to every live session except the
// excluded one. Failed deliveries are collected during the pass and the
// sessions removed afterwards; a dropped frame is not redelivered.
func (h *Hub) broadcast(frame any, exclude uuid.UUID) {
	data, err := json.Marshal(frame)
	if err != nil {
		slog.Error("Failed to marshal broadcast frame", "error", err)
		return
	}

	var failed []uuid.UUID
	for id, s := range h.sessions {
		if id == exclude {
			continue
		}
		if !s.writer.trySend(data) {
			failed = append(failed, id)
		}
	}

	for _, id := range failed {
		slog.Warn("Evicting session after failed delivery", "session_id", id.String())
		metrics.HubSlowSessionsEvicted.Inc()
		h.handleDisconnect(id, "")
	}
}

// sendTo delivers a frame to a single session, evicting it on failure.
func (h *Hub) sendTo(s *session, frame any) {
	data, err := json.Marshal(frame)
	if err != nil {
		slog.Error("Failed to marshal frame", "error", err)
		return
	}
	if !s.writer.trySend(data) {
		slog.Warn("Evicting session after failed delivery", "session_id", s.id.String())
		metrics.HubSlowSessionsEvicted.Inc()
		h.handleDisconnect(s.id, "")
	}
}

func (h *Hub) handleTouch(sessionID uuid.UUID) {
	if s, exists := h.sessions[sessionID]; exists {
		s.lastSeen = h.clock.Now()
	}
}

func (h *Hub) sweepIdleSessions() {
	cutoff := h.clock.Now().Add(-h.opts.IdleTimeout)

	var idle []uuid.UUID
	for id, s := range h.sessions {
		if s.lastSeen.Before(cutoff) {
			idle = append(idle, id)
		}
	}

	for _, id := range idle {
		slog.Info("Evicting idle session", "session_id", id.String(), "idle_timeout", h.opts.IdleTimeout)
		metrics.WebSocketIdleDisconnects.Inc()
		h.handleDisconnect(id, "idle timeout")
	}
}

func (h *Hub) handleStop() {
	slog.Info("Hub shutting down", "sessions", len(h.sessions))
	for id, s := range h.sessions {
		s.writer.stopGraceful("Server shutting down")
		delete(h.sessions, id)
	}
	metrics.HubConnectedSessions.Set(0)
}

func (h *Hub) nowMs() int64 {
	return h.clock.Now().UnixMilli()
}
