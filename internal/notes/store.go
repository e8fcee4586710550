// Package notes holds the authoritative in-memory note set.
//
// The Store is NOT safe for concurrent use. It is owned by the hub actor and
// every mutation is funneled through that single goroutine; the HTTP surface
// only ever sees copies taken via Snapshot.
package notes

import (
	"github.com/noteboard/noteboard/internal/domain"
)

// Store maps note id to note, preserving creation order for eviction.
type Store struct {
	byID  map[string]*domain.Note
	order []string // note ids, oldest first
	cap   int
}

// NewStore creates a store capped at domain.MaxNotes.
func NewStore() *Store {
	return NewStoreWithCap(domain.MaxNotes)
}

// NewStoreWithCap creates a store with an explicit capacity.
func NewStoreWithCap(capacity int) *Store {
	return &Store{
		byID: make(map[string]*domain.Note),
		cap:  capacity,
	}
}

// Len returns the number of live notes.
func (s *Store) Len() int {
	return len(s.byID)
}

// Get returns a copy of the note, or false if absent.
func (s *Store) Get(id string) (domain.Note, bool) {
	n, ok := s.byID[id]
	if !ok {
		return domain.Note{}, false
	}
	return *n, true
}

// Snapshot returns up to limit notes in creation order. limit <= 0 means the
// full store. The result is a deep copy safe to hand to other goroutines.
func (s *Store) Snapshot(limit int) []domain.Note {
	if limit <= 0 || limit > len(s.order) {
		limit = len(s.order)
	}
	out := make([]domain.Note, 0, limit)
	for _, id := range s.order[len(s.order)-limit:] {
		out = append(out, *s.byID[id])
	}
	return out
}

// Create inserts a note. A redelivered create with an already-known id is
// rejected with domain.ErrNoteExists so it cannot duplicate the note. When
// the store is over capacity the oldest notes are evicted; their ids are
// returned so callers can reconcile downstream state.
func (s *Store) Create(note domain.Note) ([]string, error) {
	if note.ID == "" {
		return nil, domain.ErrInvalidNote
	}
	if _, exists := s.byID[note.ID]; exists {
		return nil, domain.ErrNoteExists
	}

	n := note
	s.byID[n.ID] = &n
	s.order = append(s.order, n.ID)

	var evicted []string
	for len(s.order) > s.cap {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.byID, oldest)
		evicted = append(evicted, oldest)
	}
	return evicted, nil
}

// UpdatePosition moves a note using last-write-wins on the carried timestamp:
// an update older than the stored LastUpdated is rejected as stale, so frames
// arriving out of order still converge on the highest timestamp.
func (s *Store) UpdatePosition(id string, x, y float64, ts int64) (domain.Note, error) {
	n, ok := s.byID[id]
	if !ok {
		return domain.Note{}, domain.ErrNoteNotFound
	}
	if ts < n.LastUpdated {
		return *n, domain.ErrStaleUpdate
	}
	n.X = x
	n.Y = y
	n.LastUpdated = ts
	return *n, nil
}

// Delete removes a note after checking ownership. requesterID must equal the
// note's AuthorID.
func (s *Store) Delete(id, requesterID string) (domain.Note, error) {
	n, ok := s.byID[id]
	if !ok {
		return domain.Note{}, domain.ErrNoteNotFound
	}
	if n.AuthorID != requesterID {
		return domain.Note{}, domain.ErrNotAuthorized
	}

	delete(s.byID, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return *n, nil
}

// Seed replaces the store contents with a recovered board, keeping the given
// order as creation order. Used once at startup; duplicate ids keep the first
// occurrence.
func (s *Store) Seed(board []domain.Note) {
	s.byID = make(map[string]*domain.Note, len(board))
	s.order = s.order[:0]
	for _, note := range board {
		if note.ID == "" {
			continue
		}
		if _, exists := s.byID[note.ID]; exists {
			continue
		}
		n := note
		s.byID[n.ID] = &n
		s.order = append(s.order, n.ID)
	}
	for len(s.order) > s.cap {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.byID, oldest)
	}
}
