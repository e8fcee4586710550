package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noteboard/noteboard/internal/domain"
)

// memStore is a map-backed Store for tests.
type memStore struct {
	data map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	return m.data[key], nil
}

func (m *memStore) Put(_ context.Context, key string, data []byte, _ string) error {
	m.data[key] = data
	return nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func (m *memStore) Ping(context.Context) error { return nil }
func (m *memStore) Bound() bool                { return true }

func TestLoadBoard_AbsentKeyYieldsEmptyBoard(t *testing.T) {
	notes, err := LoadBoard(context.Background(), newMemStore())
	require.NoError(t, err)
	assert.Empty(t, notes)
	assert.NotNil(t, notes)
}

func TestLoadBoard_CorruptPayloadYieldsEmptyBoard(t *testing.T) {
	store := newMemStore()
	store.data[BoardKey] = []byte("{definitely not json")

	notes, err := LoadBoard(context.Background(), store)
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestSaveThenLoadBoard(t *testing.T) {
	store := newMemStore()
	board := []domain.Note{
		{ID: "n1", X: 10, Y: 20, AuthorID: "a", Author: "Alice"},
		{ID: "n2", X: 30, Y: 40, AuthorID: "b", Author: "Bob"},
	}

	require.NoError(t, SaveBoard(context.Background(), store, board))

	got, err := LoadBoard(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, board, got)
}

func TestSaveBoard_TruncatesToMaxNotes(t *testing.T) {
	store := newMemStore()
	board := make([]domain.Note, domain.MaxNotes+10)
	for i := range board {
		board[i] = domain.Note{ID: fmt.Sprintf("n%d", i)}
	}

	require.NoError(t, SaveBoard(context.Background(), store, board))

	got, err := LoadBoard(context.Background(), store)
	require.NoError(t, err)
	require.Len(t, got, domain.MaxNotes)
	assert.Equal(t, "n10", got[0].ID) // oldest entries dropped
}

func TestSaveNoteAndDeleteNote(t *testing.T) {
	store := newMemStore()
	note := domain.Note{ID: "n1", Content: "hello"}

	require.NoError(t, SaveNote(context.Background(), store, note))

	data := store.data[NoteKey("n1")]
	require.NotNil(t, data)
	var got domain.Note
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, note, got)

	require.NoError(t, DeleteNote(context.Background(), store, "n1"))
	assert.Nil(t, store.data[NoteKey("n1")])
}

func TestNoopStore_DegradesGracefully(t *testing.T) {
	var store Store = NoopStore{}

	notes, err := LoadBoard(context.Background(), store)
	require.NoError(t, err)
	assert.Empty(t, notes)

	assert.NoError(t, SaveBoard(context.Background(), store, []domain.Note{{ID: "n1"}}))
	assert.NoError(t, DeleteNote(context.Background(), store, "n1"))
	assert.False(t, store.Bound())
}
