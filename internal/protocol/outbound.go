package protocol

import "github.com/noteboard/noteboard/internal/domain"

// Outbound frame kinds.
const (
	KindConnectionEstablished = "connection_established"
	KindAuthSuccess           = "auth_success"
	KindUserJoined            = "user_joined"
	KindUserLeft              = "user_left"
	KindNotesLoaded           = "notes_loaded"
	KindSyncResponse          = "sync_response"
	KindNoteCreated           = "note_created"
	KindNoteUpdated           = "note_updated"
	KindNoteDeleted           = "note_deleted"
	KindPong                  = "pong"
	KindError                 = "error"
)

type ConnectionEstablished struct {
	Type      string `json:"type"`
	ClientID  string `json:"clientId"`
	Timestamp int64  `json:"timestamp"`
}

func NewConnectionEstablished(clientID string, ts int64) ConnectionEstablished {
	return ConnectionEstablished{Type: KindConnectionEstablished, ClientID: clientID, Timestamp: ts}
}

type AuthSuccess struct {
	Type      string          `json:"type"`
	User      domain.Identity `json:"user"`
	Timestamp int64           `json:"timestamp"`
}

func NewAuthSuccess(user domain.Identity, ts int64) AuthSuccess {
	return AuthSuccess{Type: KindAuthSuccess, User: user, Timestamp: ts}
}

type UserPresence struct {
	Type      string          `json:"type"`
	User      domain.Identity `json:"user"`
	Timestamp int64           `json:"timestamp"`
}

func NewUserJoined(user domain.Identity, ts int64) UserPresence {
	return UserPresence{Type: KindUserJoined, User: user, Timestamp: ts}
}

func NewUserLeft(user domain.Identity, ts int64) UserPresence {
	return UserPresence{Type: KindUserLeft, User: user, Timestamp: ts}
}

type NotesLoaded struct {
	Type      string        `json:"type"`
	Notes     []domain.Note `json:"notes"`
	Count     int           `json:"count"`
	Timestamp int64         `json:"timestamp"`
}

func NewNotesLoaded(notes []domain.Note, ts int64) NotesLoaded {
	return NotesLoaded{Type: KindNotesLoaded, Notes: notes, Count: len(notes), Timestamp: ts}
}

// NewSyncResponse is the same snapshot as NewNotesLoaded, echoing the
// caller-supplied timestamp so clients can correlate the round trip.
func NewSyncResponse(notes []domain.Note, echoTS int64) NotesLoaded {
	return NotesLoaded{Type: KindSyncResponse, Notes: notes, Count: len(notes), Timestamp: echoTS}
}

type NoteCreated struct {
	Type      string      `json:"type"`
	Note      domain.Note `json:"note"`
	Timestamp int64       `json:"timestamp"`
	From      string      `json:"from,omitempty"`
}

func NewNoteCreated(note domain.Note, ts int64, from string) NoteCreated {
	return NoteCreated{Type: KindNoteCreated, Note: note, Timestamp: ts, From: from}
}

type NoteUpdated struct {
	Type      string  `json:"type"`
	NoteID    string  `json:"noteId"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Timestamp int64   `json:"timestamp"`
	From      string  `json:"from,omitempty"`
}

func NewNoteUpdated(noteID string, x, y float64, ts int64, from string) NoteUpdated {
	return NoteUpdated{Type: KindNoteUpdated, NoteID: noteID, X: x, Y: y, Timestamp: ts, From: from}
}

type NoteDeleted struct {
	Type      string `json:"type"`
	NoteID    string `json:"noteId"`
	Timestamp int64  `json:"timestamp"`
	From      string `json:"from,omitempty"`
}

func NewNoteDeleted(noteID string, ts int64, from string) NoteDeleted {
	return NoteDeleted{Type: KindNoteDeleted, NoteID: noteID, Timestamp: ts, From: from}
}

type Pong struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

func NewPong(ts int64) Pong {
	return Pong{Type: KindPong, Timestamp: ts}
}

type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewError(message string) Error {
	return Error{Type: KindError, Message: message}
}
