package persist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noteboard/noteboard/internal/domain"
	"github.com/noteboard/noteboard/internal/storage"
)

// memStore is a thread-safe map-backed Store with optional failure injection.
type memStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	failing bool
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return nil, errors.New("injected storage failure")
	}
	return m.data[key], nil
}

func (m *memStore) Put(_ context.Context, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return errors.New("injected storage failure")
	}
	m.data[key] = data
	return nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return errors.New("injected storage failure")
	}
	delete(m.data, key)
	return nil
}

func (m *memStore) Ping(context.Context) error { return nil }
func (m *memStore) Bound() bool                { return true }

func (m *memStore) setFailing(failing bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failing = failing
}

func (m *memStore) board(t *testing.T) []domain.Note {
	t.Helper()
	notes, err := storage.LoadBoard(context.Background(), m)
	require.NoError(t, err)
	return notes
}

func note(id string) domain.Note {
	return domain.Note{ID: id, AuthorID: "a1", Author: "Alice"}
}

func fastOptions() Options {
	return Options{
		DebounceDelay: 10 * time.Millisecond,
		FlushInterval: 20 * time.Millisecond,
	}
}

func TestBatcher_CreateReachesDurableStore(t *testing.T) {
	store := newMemStore()
	b := NewBatcher(store, clockwork.NewRealClock(), fastOptions())
	defer b.Stop()

	b.EnqueueCreate(note("n1"))

	require.Eventually(t, func() bool {
		board := store.board(t)
		return len(board) == 1 && board[0].ID == "n1"
	}, time.Second, 5*time.Millisecond)

	// Per-note mirror written alongside the aggregate list.
	data, err := store.Get(context.Background(), storage.NoteKey("n1"))
	require.NoError(t, err)
	assert.NotNil(t, data)
}

func TestBatcher_DebounceKeepsOnlyNewestUpdate(t *testing.T) {
	store := newMemStore()
	require.NoError(t, storage.SaveBoard(context.Background(), store, []domain.Note{note("n1")}))

	b := NewBatcher(store, clockwork.NewRealClock(), fastOptions())
	defer b.Stop()

	// Rapid drag: every update restarts the quiet window; only the last
	// position within it may reach the store.
	b.EnqueueUpdate("n1", 1, 1, 100)
	b.EnqueueUpdate("n1", 2, 2, 200)
	b.EnqueueUpdate("n1", 30, 20, 300)

	require.Eventually(t, func() bool {
		board := store.board(t)
		return len(board) == 1 && board[0].X == 30 && board[0].Y == 20 && board[0].LastUpdated == 300
	}, time.Second, 5*time.Millisecond)
}

func TestBatcher_DeleteCancelsPendingOpsForID(t *testing.T) {
	store := newMemStore()
	require.NoError(t, storage.SaveBoard(context.Background(), store, []domain.Note{note("n1")}))

	b := NewBatcher(store, clockwork.NewRealClock(), fastOptions())

	// Update still debouncing, then a delete for the same id: the update must
	// never surface, and the note disappears from the durable board.
	b.EnqueueUpdate("n1", 50, 50, 500)
	b.EnqueueDelete("n1")

	require.Eventually(t, func() bool {
		return len(store.board(t)) == 0
	}, time.Second, 5*time.Millisecond)

	b.Stop()
	assert.Empty(t, store.board(t))
}

func TestBatcher_QueueOverflowDropsNewOps(t *testing.T) {
	store := newMemStore()
	b := NewBatcher(store, clockwork.NewRealClock(), Options{
		QueueCap:      5,
		BatchSize:     100,
		FlushInterval: time.Hour, // only the final Stop flush should run
		DebounceDelay: time.Millisecond,
	})

	for i := range 10 {
		b.EnqueueCreate(note(fmt.Sprintf("n%d", i)))
	}

	require.Eventually(t, func() bool {
		return b.QueueDepth() == 5
	}, time.Second, 5*time.Millisecond)

	// Queued operations still flush normally.
	b.Stop()
	board := store.board(t)
	require.Len(t, board, 5)
	assert.Equal(t, "n0", board[0].ID)
	assert.Equal(t, "n4", board[4].ID)
}

func TestBatcher_BacklogRetriggersFlush(t *testing.T) {
	store := newMemStore()
	b := NewBatcher(store, clockwork.NewRealClock(), Options{
		BatchSize:     2,
		FlushInterval: time.Hour, // flushes chain off the batch threshold
		DebounceDelay: time.Millisecond,
	})
	defer b.Stop()

	for i := range 5 {
		b.EnqueueCreate(note(fmt.Sprintf("n%d", i)))
	}

	require.Eventually(t, func() bool {
		return len(store.board(t)) >= 4
	}, time.Second, 5*time.Millisecond)
}

func TestBatcher_StorageFailureIsSwallowed(t *testing.T) {
	store := newMemStore()
	store.setFailing(true)

	b := NewBatcher(store, clockwork.NewRealClock(), fastOptions())

	b.EnqueueCreate(note("n1"))
	time.Sleep(100 * time.Millisecond) // let at least one failing flush run

	// Engine must keep accepting work after storage failures.
	store.setFailing(false)
	b.EnqueueCreate(note("n2"))

	require.Eventually(t, func() bool {
		board := store.board(t)
		return len(board) == 1 && board[0].ID == "n2"
	}, time.Second, 5*time.Millisecond)

	b.Stop()
}

func TestBatcher_StopDrainsDebouncedUpdates(t *testing.T) {
	store := newMemStore()
	require.NoError(t, storage.SaveBoard(context.Background(), store, []domain.Note{note("n1")}))

	b := NewBatcher(store, clockwork.NewRealClock(), Options{
		DebounceDelay: time.Hour, // would never fire on its own
		FlushInterval: time.Hour,
	})

	b.EnqueueUpdate("n1", 7, 8, 900)
	b.Stop()

	board := store.board(t)
	require.Len(t, board, 1)
	assert.Equal(t, 7.0, board[0].X)
	assert.Equal(t, int64(900), board[0].LastUpdated)
}

func TestBatcher_UpdateWithoutMatchLeavesBoardUntouched(t *testing.T) {
	store := newMemStore()
	b := NewBatcher(store, clockwork.NewRealClock(), fastOptions())

	b.EnqueueUpdate("ghost", 1, 2, 3)
	b.Stop()

	// No match found: nothing written back, board key still absent.
	data, err := store.Get(context.Background(), storage.BoardKey)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestGroupOps_NewestUpdateWinsPerID(t *testing.T) {
	g := groupOps([]Op{
		{Kind: OpUpdate, NoteID: "n1", X: 1, Y: 1, TS: 100},
		{Kind: OpUpdate, NoteID: "n1", X: 9, Y: 9, TS: 300},
		{Kind: OpUpdate, NoteID: "n1", X: 5, Y: 5, TS: 200},
	})

	require.Len(t, g.updates, 1)
	assert.Equal(t, positionUpdate{x: 9, y: 9, ts: 300}, g.updates["n1"])
}

func TestGroupOps_DeleteCancelsCreateAndUpdate(t *testing.T) {
	g := groupOps([]Op{
		{Kind: OpCreate, NoteID: "n1", Note: note("n1")},
		{Kind: OpUpdate, NoteID: "n1", X: 1, Y: 1, TS: 100},
		{Kind: OpCreate, NoteID: "n2", Note: note("n2")},
		{Kind: OpDelete, NoteID: "n1"},
	})

	assert.Empty(t, g.updates)
	require.Len(t, g.creates, 1)
	assert.Equal(t, "n2", g.creates[0].ID)
	assert.Contains(t, g.deletes, "n1")
}
