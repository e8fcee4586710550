package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/noteboard/noteboard/internal/domain"
)

const (
	// BoardKey is the fixed key holding the aggregate note list.
	BoardKey = "notes:board"

	contentTypeJSON = "application/json"
)

// NoteKey returns the per-note object key mirroring an individual note for
// one-off recovery.
func NoteKey(id string) string {
	return "note:" + id
}

// LoadBoard reads the aggregate note list. An absent key yields an empty
// board; corrupt payloads are logged and treated as empty rather than
// failing the caller.
func LoadBoard(ctx context.Context, store Store) ([]domain.Note, error) {
	data, err := store.Get(ctx, BoardKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load board: %w", err)
	}
	if data == nil {
		return []domain.Note{}, nil
	}

	var notes []domain.Note
	if err := json.Unmarshal(data, &notes); err != nil {
		slog.Error("Discarding corrupt board payload", "key", BoardKey, "error", err)
		return []domain.Note{}, nil
	}
	return notes, nil
}

// SaveBoard writes the aggregate note list, truncating to the most recent
// domain.MaxNotes entries.
func SaveBoard(ctx context.Context, store Store, notes []domain.Note) error {
	if len(notes) > domain.MaxNotes {
		notes = notes[len(notes)-domain.MaxNotes:]
	}

	data, err := json.Marshal(notes)
	if err != nil {
		return fmt.Errorf("failed to marshal board: %w", err)
	}
	if err := store.Put(ctx, BoardKey, data, contentTypeJSON); err != nil {
		return fmt.Errorf("failed to save board: %w", err)
	}
	return nil
}

// SaveNote mirrors one note under its individual object key.
func SaveNote(ctx context.Context, store Store, note domain.Note) error {
	data, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("failed to marshal note %s: %w", note.ID, err)
	}
	if err := store.Put(ctx, NoteKey(note.ID), data, contentTypeJSON); err != nil {
		return fmt.Errorf("failed to save note %s: %w", note.ID, err)
	}
	return nil
}

// DeleteNote removes the individual object key for a note.
func DeleteNote(ctx context.Context, store Store, id string) error {
	if err := store.Delete(ctx, NoteKey(id)); err != nil {
		return fmt.Errorf("failed to delete note %s: %w", id, err)
	}
	return nil
}
