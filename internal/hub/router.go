package hub

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/noteboard/noteboard/internal/domain"
	"github.com/noteboard/noteboard/internal/metrics"
	"github.com/noteboard/noteboard/internal/protocol"
)

// handleInbound is the message router: it decodes, validates, and dispatches
// one frame. Malformed frames never crash the router; they produce an error
// reply and leave all state untouched. Broadcast always happens before the
// durable enqueue and never waits on it.
func (h *Hub) handleInbound(c inboundCmd) {
	s, exists := h.sessions[c.sessionID]
	if !exists {
		return
	}
	s.lastSeen = h.clock.Now()

	frame, err := protocol.Decode(c.payload)
	if err != nil {
		slog.Debug("Malformed frame", "session_id", s.id.String(), "error", err)
		metrics.HubFramesTotal.WithLabelValues("malformed", "error").Inc()
		h.sendTo(s, protocol.NewError("malformed frame"))
		return
	}

	kind := frame.Kind()
	if err := h.routeFrame(s, kind, frame); err != nil {
		metrics.HubFramesTotal.WithLabelValues(kind, "error").Inc()
		h.sendTo(s, protocol.NewError(err.Error()))
		return
	}
	metrics.HubFramesTotal.WithLabelValues(kind, "ok").Inc()
}

// routeFrame returns an error only for failures that warrant an error frame
// to the sender (protocol and authorization errors). Not-found conditions
// are logged and treated as a no-op.
func (h *Hub) routeFrame(s *session, kind string, frame *protocol.Inbound) error {
	switch kind {
	case protocol.KindAuth:
		return h.handleAuth(s, frame)
	case protocol.KindLoadNotes:
		h.sendTo(s, protocol.NewNotesLoaded(h.store.Snapshot(domain.MaxNotes), h.nowMs()))
		return nil
	case protocol.KindSyncRequest:
		h.sendTo(s, protocol.NewSyncResponse(h.store.Snapshot(domain.MaxNotes), frame.EventTime(h.nowMs())))
		return nil
	case protocol.KindCreateNote:
		return h.handleCreateNote(s, frame)
	case protocol.KindUpdateNote:
		return h.handleUpdateNote(s, frame)
	case protocol.KindDeleteNote:
		return h.handleDeleteNote(s, frame)
	case protocol.KindPing:
		h.sendTo(s, protocol.NewPong(frame.EventTime(h.nowMs())))
		return nil
	default:
		return errors.New("unknown frame type: " + kind)
	}
}

func (h *Hub) handleAuth(s *session, frame *protocol.Inbound) error {
	if frame.User == nil || frame.User.ID == "" {
		return errors.New("auth frame missing user identity")
	}

	s.identity = frame.User
	now := h.nowMs()

	h.sendTo(s, protocol.NewAuthSuccess(*s.identity, now))
	h.broadcast(protocol.NewUserJoined(*s.identity, now), s.id)

	slog.Info("Session authenticated", "session_id", s.id.String(), "user_id", s.identity.ID, "user_name", s.identity.Name)
	return nil
}

func (h *Hub) handleCreateNote(s *session, frame *protocol.Inbound) error {
	if !s.authenticated() {
		return domain.ErrNotAuthenticated
	}
	if frame.Note == nil || frame.Note.ID == "" {
		return domain.ErrInvalidNote
	}

	note := *frame.Note
	now := h.nowMs()

	// The server is authoritative about authorship and timestamps.
	note.AuthorID = s.identity.ID
	note.Author = s.identity.Name
	if note.CreatedAt == 0 {
		note.CreatedAt = now
	}
	if note.LastUpdated == 0 {
		note.LastUpdated = note.CreatedAt
	}

	evicted, err := h.store.Create(note)
	if errors.Is(err, domain.ErrNoteExists) {
		// Redelivered create: already applied, nothing to broadcast.
		slog.Debug("Duplicate create ignored", "note_id", note.ID)
		return nil
	}
	if err != nil {
		return err
	}

	for _, id := range evicted {
		slog.Info("Evicted oldest note at capacity", "note_id", id)
		h.persist.EnqueueDelete(id)
	}
	metrics.HubNotesLive.Set(float64(h.store.Len()))

	// Fast path first: everyone, including the sender, sees the create; the
	// sender's optimistic copy de-duplicates by id.
	h.broadcast(protocol.NewNoteCreated(note, now, s.displayName()), uuid.Nil)
	metrics.HubBroadcastsTotal.WithLabelValues(protocol.KindNoteCreated).Inc()

	h.persist.EnqueueCreate(note)
	return nil
}

func (h *Hub) handleUpdateNote(s *session, frame *protocol.Inbound) error {
	if !s.authenticated() {
		return domain.ErrNotAuthenticated
	}
	noteID := frame.TargetNote()
	if noteID == "" || frame.X == nil || frame.Y == nil {
		return errors.New("update frame missing noteId or coordinates")
	}

	existing, ok := h.store.Get(noteID)
	if !ok {
		slog.Debug("Update for unknown note ignored", "note_id", noteID)
		return nil
	}
	if existing.AuthorID != s.identity.ID {
		return domain.ErrNotAuthorized
	}

	ts := frame.EventTime(h.nowMs())
	note, err := h.store.UpdatePosition(noteID, *frame.X, *frame.Y, ts)
	if errors.Is(err, domain.ErrStaleUpdate) {
		// Last-write-wins: an older timestamp loses silently.
		return nil
	}
	if err != nil {
		return err
	}

	// Everyone except the sender; the sender already rendered the move.
	h.broadcast(protocol.NewNoteUpdated(note.ID, note.X, note.Y, ts, s.displayName()), s.id)
	metrics.HubBroadcastsTotal.WithLabelValues(protocol.KindNoteUpdated).Inc()

	h.persist.EnqueueUpdate(note.ID, note.X, note.Y, ts)
	return nil
}

func (h *Hub) handleDeleteNote(s *session, frame *protocol.Inbound) error {
	if !s.authenticated() {
		return domain.ErrNotAuthenticated
	}
	noteID := frame.TargetNote()
	if noteID == "" {
		return errors.New("delete frame missing noteId")
	}

	_, err := h.store.Delete(noteID, s.identity.ID)
	if errors.Is(err, domain.ErrNoteNotFound) {
		slog.Debug("Delete for unknown note ignored", "note_id", noteID)
		return nil
	}
	if err != nil {
		return err
	}
	metrics.HubNotesLive.Set(float64(h.store.Len()))

	h.broadcast(protocol.NewNoteDeleted(noteID, h.nowMs(), s.displayName()), uuid.Nil)
	metrics.HubBroadcastsTotal.WithLabelValues(protocol.KindNoteDeleted).Inc()

	h.persist.EnqueueDelete(noteID)
	return nil
}
