// Package protocol defines the wire frames exchanged over the realtime
// WebSocket connection. Inbound frames carry a `type` field, optionally
// compacted to `t` with short field aliases (id/x/y/ts/c) for the
// high-frequency position updates.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/noteboard/noteboard/internal/domain"
)

// Inbound frame kinds.
const (
	KindAuth        = "auth"
	KindLoadNotes   = "load_notes"
	KindSyncRequest = "sync_request"
	KindCreateNote  = "create_note"
	KindDeleteNote  = "delete_note"
	KindUpdateNote  = "update_note"
	KindPing        = "ping"
)

// compactUpdate is the one-letter alias for update_note.
const compactUpdate = "u"

// Inbound is the decoded envelope of a client frame. Fields are a superset
// of all frame kinds; Kind selects which ones are meaningful.
type Inbound struct {
	Type string `json:"type,omitempty"`
	T    string `json:"t,omitempty"`

	User *domain.Identity `json:"user,omitempty"`
	Note *domain.Note     `json:"note,omitempty"`

	NoteID string `json:"noteId,omitempty"`
	ID     string `json:"id,omitempty"` // compact alias for noteId

	X *float64 `json:"x,omitempty"`
	Y *float64 `json:"y,omitempty"`

	Timestamp int64 `json:"timestamp,omitempty"`
	TS        int64 `json:"ts,omitempty"` // compact alias for timestamp

	SenderID string `json:"senderId,omitempty"`
	C        string `json:"c,omitempty"` // compact alias for senderId
}

// Decode parses a raw frame. A frame without any recognizable type field is
// an error; payload field validation is left to the router.
func Decode(data []byte) (*Inbound, error) {
	var f Inbound
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	if f.Kind() == "" {
		return nil, fmt.Errorf("frame missing type field")
	}
	return &f, nil
}

// Kind returns the canonical frame kind, expanding compact aliases.
func (f *Inbound) Kind() string {
	kind := f.Type
	if kind == "" {
		kind = f.T
	}
	if kind == compactUpdate {
		return KindUpdateNote
	}
	return kind
}

// TargetNote returns the referenced note id, preferring the long form.
func (f *Inbound) TargetNote() string {
	if f.NoteID != "" {
		return f.NoteID
	}
	return f.ID
}

// EventTime returns the client-supplied timestamp, falling back to the given
// server time when the frame carries none.
func (f *Inbound) EventTime(fallback int64) int64 {
	if f.Timestamp != 0 {
		return f.Timestamp
	}
	if f.TS != 0 {
		return f.TS
	}
	return fallback
}

// Sender returns the caller-supplied sender id, if any.
func (f *Inbound) Sender() string {
	if f.SenderID != "" {
		return f.SenderID
	}
	return f.C
}
