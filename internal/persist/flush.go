package persist

import (
	"context"
	"log/slog"

	"github.com/noteboard/noteboard/internal/domain"
	"github.com/noteboard/noteboard/internal/metrics"
	"github.com/noteboard/noteboard/internal/storage"
)

type positionUpdate struct {
	x, y float64
	ts   int64
}

// batchGroups is one drained batch regrouped by operation kind. Deletes win:
// a delete cancels same-id creates and updates within the batch.
type batchGroups struct {
	creates []domain.Note
	updates map[string]positionUpdate // newest per note id
	deletes map[string]struct{}
}

func groupOps(batch []Op) batchGroups {
	g := batchGroups{
		updates: make(map[string]positionUpdate),
		deletes: make(map[string]struct{}),
	}

	for _, op := range batch {
		switch op.Kind {
		case OpCreate:
			g.creates = append(g.creates, op.Note)
		case OpUpdate:
			if prev, ok := g.updates[op.NoteID]; ok && prev.ts > op.TS {
				continue
			}
			g.updates[op.NoteID] = positionUpdate{x: op.X, y: op.Y, ts: op.TS}
		case OpDelete:
			g.deletes[op.NoteID] = struct{}{}
		}
	}

	if len(g.deletes) > 0 {
		kept := g.creates[:0]
		for _, note := range g.creates {
			if _, deleted := g.deletes[note.ID]; deleted {
				continue
			}
			kept = append(kept, note)
		}
		g.creates = kept
		for id := range g.deletes {
			delete(g.updates, id)
		}
	}

	return g
}

// flush applies one batch to the durable store, group by group. Every failure
// is logged and swallowed: durable state may lag memory until the next
// successful cycle, which is the declared trade-off of the slow path.
func (b *Batcher) flush(batch []Op) {
	start := b.clock.Now()
	defer func() {
		metrics.PersistFlushDuration.Observe(b.clock.Since(start).Seconds())
	}()

	g := groupOps(batch)
	failed := false

	if len(g.creates) > 0 {
		if err := b.applyCreates(g.creates); err != nil {
			slog.Error("Failed to persist creates", "count", len(g.creates), "error", err)
			metrics.StorageErrorsTotal.WithLabelValues("create").Inc()
			failed = true
		} else {
			metrics.PersistOpsFlushedTotal.WithLabelValues("create").Add(float64(len(g.creates)))
		}
	}

	if len(g.updates) > 0 {
		if err := b.applyUpdates(g.updates); err != nil {
			slog.Error("Failed to persist updates", "count", len(g.updates), "error", err)
			metrics.StorageErrorsTotal.WithLabelValues("update").Inc()
			failed = true
		} else {
			metrics.PersistOpsFlushedTotal.WithLabelValues("update").Add(float64(len(g.updates)))
		}
	}

	if len(g.deletes) > 0 {
		if err := b.applyDeletes(g.deletes); err != nil {
			slog.Error("Failed to persist deletes", "count", len(g.deletes), "error", err)
			metrics.StorageErrorsTotal.WithLabelValues("delete").Inc()
			failed = true
		} else {
			metrics.PersistOpsFlushedTotal.WithLabelValues("delete").Add(float64(len(g.deletes)))
		}
	}

	if failed {
		metrics.PersistFlushesTotal.WithLabelValues("error").Inc()
	} else {
		metrics.PersistFlushesTotal.WithLabelValues("ok").Inc()
	}
}

func (b *Batcher) applyCreates(creates []domain.Note) error {
	ctx, cancel := context.WithTimeout(context.Background(), b.opts.StoreTimeout)
	defer cancel()

	board, err := storage.LoadBoard(ctx, b.store)
	if err != nil {
		return err
	}
	board = append(board, creates...)
	if err := storage.SaveBoard(ctx, b.store, board); err != nil {
		return err
	}

	// Per-note mirrors are best effort on top of the aggregate list.
	for _, note := range creates {
		if err := storage.SaveNote(ctx, b.store, note); err != nil {
			slog.Warn("Failed to mirror note object", "note_id", note.ID, "error", err)
		}
	}
	return nil
}

func (b *Batcher) applyUpdates(updates map[string]positionUpdate) error {
	ctx, cancel := context.WithTimeout(context.Background(), b.opts.StoreTimeout)
	defer cancel()

	board, err := storage.LoadBoard(ctx, b.store)
	if err != nil {
		return err
	}

	matched := false
	for i := range board {
		u, ok := updates[board[i].ID]
		if !ok {
			continue
		}
		board[i].X = u.x
		board[i].Y = u.y
		board[i].LastUpdated = u.ts
		matched = true
	}
	if !matched {
		return nil
	}
	return storage.SaveBoard(ctx, b.store, board)
}

func (b *Batcher) applyDeletes(deletes map[string]struct{}) error {
	ctx, cancel := context.WithTimeout(context.Background(), b.opts.StoreTimeout)
	defer cancel()

	board, err := storage.LoadBoard(ctx, b.store)
	if err != nil {
		return err
	}

	kept := board[:0]
	for _, note := range board {
		if _, deleted := deletes[note.ID]; deleted {
			continue
		}
		kept = append(kept, note)
	}

	for id := range deletes {
		if err := storage.DeleteNote(ctx, b.store, id); err != nil {
			slog.Warn("Failed to delete note object", "note_id", id, "error", err)
		}
	}

	if len(kept) == len(board) {
		return nil
	}
	return storage.SaveBoard(ctx, b.store, kept)
}
