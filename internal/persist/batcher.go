// Package persist implements the debounced, batched persistence pipeline
// between the in-memory board and the durable blob store.
//
// The Batcher is the slow path: the hub broadcasts first and enqueues here
// without waiting. A single goroutine owns the pending-operation queue and the
// per-note debounce timers (command channel, no mutexes); flushes run on a
// separate goroutine so storage latency never blocks new enqueues.
package persist

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/noteboard/noteboard/internal/domain"
	"github.com/noteboard/noteboard/internal/metrics"
	"github.com/noteboard/noteboard/internal/storage"
)

// OpKind discriminates pending persistence operations.
type OpKind int

const (
	OpCreate OpKind = iota
	OpUpdate
	OpDelete
)

func (k OpKind) String() string {
	switch k {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Op is one pending durable-store operation.
type Op struct {
	Kind   OpKind
	NoteID string
	Note   domain.Note // create only
	X, Y   float64     // update only
	TS     int64       // update only
}

// Options tune the batcher. Zero values take the defaults below.
type Options struct {
	QueueCap      int           // pending ops before new ones are dropped
	BatchSize     int           // max ops drained per flush
	FlushInterval time.Duration // periodic flush cadence
	DebounceDelay time.Duration // quiet period coalescing position updates
	StoreTimeout  time.Duration // per-group storage deadline
}

const (
	defaultQueueCap      = 1000
	defaultBatchSize     = 200
	defaultFlushInterval = time.Second
	defaultDebounceDelay = 100 * time.Millisecond
	defaultStoreTimeout  = 2 * time.Second
)

func (o Options) withDefaults() Options {
	if o.QueueCap == 0 {
		o.QueueCap = defaultQueueCap
	}
	if o.BatchSize == 0 {
		o.BatchSize = defaultBatchSize
	}
	if o.FlushInterval == 0 {
		o.FlushInterval = defaultFlushInterval
	}
	if o.DebounceDelay == 0 {
		o.DebounceDelay = defaultDebounceDelay
	}
	if o.StoreTimeout == 0 {
		o.StoreTimeout = defaultStoreTimeout
	}
	return o
}

// --- Command types ---

type batcherCmd interface{ isBatcherCmd() }

type baseBatcherCmd struct{}

func (baseBatcherCmd) isBatcherCmd() {}

type enqueueCmd struct {
	baseBatcherCmd
	op Op
}

type debounceFiredCmd struct {
	baseBatcherCmd
	noteID string
}

type flushDoneCmd struct {
	baseBatcherCmd
}

type queueDepthCmd struct {
	baseBatcherCmd
	replyChannel chan int
}

type stopCmd struct {
	baseBatcherCmd
	doneChannel chan struct{}
}

// debounceEntry is a cancellable scheduled update for one note id.
type debounceEntry struct {
	timer clockwork.Timer
	op    Op
}

// Batcher coalesces and flushes pending operations to the durable store.
type Batcher struct {
	cmdCh chan batcherCmd
	clock clockwork.Clock
	store storage.Store
	opts  Options

	queue     []Op
	debounced map[string]*debounceEntry
	flushing  bool
	stopping  bool
	stopDone  chan struct{}
	done      chan struct{}
}

// NewBatcher creates a batcher and starts its goroutine.
func NewBatcher(store storage.Store, clock clockwork.Clock, opts Options) *Batcher {
	b := &Batcher{
		cmdCh:     make(chan batcherCmd, 256),
		clock:     clock,
		store:     store,
		opts:      opts.withDefaults(),
		debounced: make(map[string]*debounceEntry),
		done:      make(chan struct{}),
	}
	go b.run()
	return b
}

// EnqueueCreate queues a durable create for a freshly inserted note.
func (b *Batcher) EnqueueCreate(note domain.Note) {
	b.send(Op{Kind: OpCreate, NoteID: note.ID, Note: note})
}

// EnqueueUpdate schedules a position update. Updates for the same note id
// within the debounce window collapse to the newest one.
func (b *Batcher) EnqueueUpdate(noteID string, x, y float64, ts int64) {
	b.send(Op{Kind: OpUpdate, NoteID: noteID, X: x, Y: y, TS: ts})
}

// EnqueueDelete queues a durable delete. Any pending create or update for the
// same note id still waiting in the batcher is cancelled.
func (b *Batcher) EnqueueDelete(noteID string) {
	b.send(Op{Kind: OpDelete, NoteID: noteID})
}

// send is non-blocking: if the command channel is saturated the operation is
// dropped and logged, matching the bounded-memory contract of the queue.
func (b *Batcher) send(op Op) {
	select {
	case b.cmdCh <- enqueueCmd{op: op}:
	default:
		slog.Warn("Persistence command channel full, dropping operation",
			"kind", op.Kind.String(), "note_id", op.NoteID)
		metrics.PersistOpsDroppedTotal.Inc()
	}
}

// QueueDepth returns the number of queued operations (debounced updates not
// yet queued are excluded).
func (b *Batcher) QueueDepth() int {
	replyCh := make(chan int, 1)
	select {
	case b.cmdCh <- queueDepthCmd{replyChannel: replyCh}:
		return <-replyCh
	case <-b.done:
		return 0
	}
}

// Stop flushes everything still pending (including debounced updates) and
// shuts the batcher down. Blocks until the final flush completed.
func (b *Batcher) Stop() {
	doneCh := make(chan struct{})
	select {
	case b.cmdCh <- stopCmd{doneChannel: doneCh}:
		<-doneCh
	case <-b.done:
	}
}

func (b *Batcher) run() {
	defer close(b.done)

	ticker := b.clock.NewTicker(b.opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case cmd := <-b.cmdCh:
			switch c := cmd.(type) {
			case enqueueCmd:
				b.handleEnqueue(c.op)
			case debounceFiredCmd:
				b.handleDebounceFired(c.noteID)
			case flushDoneCmd:
				b.handleFlushDone()
				if b.stopping && !b.flushing {
					close(b.stopDone)
					return
				}
			case queueDepthCmd:
				c.replyChannel <- len(b.queue)
			case stopCmd:
				b.handleStop(c)
				if !b.flushing {
					close(b.stopDone)
					return
				}
			default:
				slog.Warn("Batcher received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
			}
		case <-ticker.Chan():
			b.maybeFlush()
		}
	}
}

func (b *Batcher) handleEnqueue(op Op) {
	switch op.Kind {
	case OpUpdate:
		b.scheduleUpdate(op)
	case OpDelete:
		b.cancelPending(op.NoteID)
		b.push(op)
	default:
		b.push(op)
	}
}

// scheduleUpdate restarts the per-note debounce window. Cancellation of the
// superseded timer is explicit: the entry map is the single source of truth
// for what is still scheduled.
func (b *Batcher) scheduleUpdate(op Op) {
	if entry, ok := b.debounced[op.NoteID]; ok {
		entry.timer.Stop()
		entry.op = op
		entry.timer = b.newDebounceTimer(op.NoteID)
		return
	}
	b.debounced[op.NoteID] = &debounceEntry{
		op:    op,
		timer: b.newDebounceTimer(op.NoteID),
	}
}

func (b *Batcher) newDebounceTimer(noteID string) clockwork.Timer {
	return b.clock.AfterFunc(b.opts.DebounceDelay, func() {
		select {
		case b.cmdCh <- debounceFiredCmd{noteID: noteID}:
		case <-b.done:
		}
	})
}

func (b *Batcher) handleDebounceFired(noteID string) {
	entry, ok := b.debounced[noteID]
	if !ok {
		return // cancelled by a delete in the meantime
	}
	delete(b.debounced, noteID)
	b.push(entry.op)
}

// cancelPending drops the debounce entry and any queued create/update for the
// given note id.
func (b *Batcher) cancelPending(noteID string) {
	if entry, ok := b.debounced[noteID]; ok {
		entry.timer.Stop()
		delete(b.debounced, noteID)
	}

	kept := b.queue[:0]
	for _, op := range b.queue {
		if op.NoteID == noteID && op.Kind != OpDelete {
			continue
		}
		kept = append(kept, op)
	}
	b.queue = kept
	metrics.PersistQueueDepth.Set(float64(len(b.queue)))
}

func (b *Batcher) push(op Op) {
	if len(b.queue) >= b.opts.QueueCap {
		slog.Warn("Persistence queue full, dropping operation",
			"kind", op.Kind.String(), "note_id", op.NoteID, "queue_cap", b.opts.QueueCap)
		metrics.PersistOpsDroppedTotal.Inc()
		return
	}

	b.queue = append(b.queue, op)
	metrics.PersistQueueDepth.Set(float64(len(b.queue)))

	if len(b.queue) >= b.opts.BatchSize {
		b.maybeFlush()
	}
}

// maybeFlush drains one batch and hands it to a flush goroutine. Only one
// flush runs at a time; the queue itself is touched only on this goroutine.
func (b *Batcher) maybeFlush() {
	if b.flushing || len(b.queue) == 0 {
		return
	}

	n := min(len(b.queue), b.opts.BatchSize)
	batch := make([]Op, n)
	copy(batch, b.queue[:n])
	b.queue = append(b.queue[:0], b.queue[n:]...)
	metrics.PersistQueueDepth.Set(float64(len(b.queue)))

	b.flushing = true
	go func() {
		b.flush(batch)
		select {
		case b.cmdCh <- flushDoneCmd{}:
		case <-b.done:
		}
	}()
}

func (b *Batcher) handleFlushDone() {
	b.flushing = false
	if b.stopping {
		b.drainForStop()
		return
	}
	// Re-trigger immediately if a backlog remains.
	if len(b.queue) > 0 {
		b.maybeFlush()
	}
}

func (b *Batcher) handleStop(c stopCmd) {
	b.stopping = true
	b.stopDone = c.doneChannel
	b.drainForStop()
}

// drainForStop promotes all debounced updates into the queue and keeps
// flushing until nothing is left.
func (b *Batcher) drainForStop() {
	for noteID, entry := range b.debounced {
		entry.timer.Stop()
		delete(b.debounced, noteID)
		b.queue = append(b.queue, entry.op)
	}
	if len(b.queue) > 0 {
		b.maybeFlush()
	}
}
