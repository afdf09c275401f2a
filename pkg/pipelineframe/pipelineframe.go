// Package pipelineframe implements the Pipeline Frame: the
// synchronization cell wrapping one named frame, with blocking sync
// handles and overflow-dropping async handles. The overflow discipline
// follows an OverflowDropOldest mailbox strategy, over a typed Update
// channel instead of an untyped message queue.
package pipelineframe

import (
	"context"
	"sync"
	"time"

	"flowline/pkg/errs"
	"flowline/pkg/frame"
)

// Kind distinguishes a new-data notification from a producer retiring.
type Kind int

const (
	Replace Kind = iota
	Kill
)

func (k Kind) String() string {
	if k == Kill {
		return "kill"
	}
	return "replace"
}

// Update is the message type carried on both the sync and async channels.
type Update struct {
	Source    string
	Timestamp time.Time
	Kind      Kind
}

// PipelineFrame is the named broadcast cell. The label is fixed at
// construction; lazy/eagerCache/dirty are protected by mu, which is held
// only across the replace or the cache refresh, never across I/O.
type PipelineFrame struct {
	label string

	mu         sync.RWMutex
	lazy       frame.Frame
	eagerCache frame.Frame
	dirty      bool

	syncCh  chan Update // bounded; broadcaster retries with backoff when full
	asyncCh chan Update // bounded; broadcaster overflows oldest-dropped

	closeOnce sync.Once
}

// New constructs an empty Pipeline Frame with the given per-frame channel
// buffer size.
func New(label string, bufferSize int) *PipelineFrame {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &PipelineFrame{
		label:   label,
		syncCh:  make(chan Update, bufferSize),
		asyncCh: make(chan Update, bufferSize),
	}
}

// Label returns the frame's registry name.
func (pf *PipelineFrame) Label() string { return pf.label }

// Close retires the frame's channels. Safe to call more than once.
func (pf *PipelineFrame) Close() {
	pf.closeOnce.Do(func() {
		close(pf.syncCh)
		close(pf.asyncCh)
	})
}

// Extract returns a clone of the current lazy frame without touching the
// eager cache or dirty flag.
func (pf *PipelineFrame) Extract() frame.Frame {
	pf.mu.RLock()
	defer pf.mu.RUnlock()
	return pf.lazy.Clone()
}

// ExtractClone returns an eager materialization, refreshing the cache
// under exclusive access if dirty is set.
func (pf *PipelineFrame) ExtractClone() (frame.Frame, error) {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	if pf.dirty {
		collected, err := pf.lazy.Collect()
		if err != nil {
			return frame.Frame{}, errs.PipelineWrap("pipelineframe.extract_clone", err, "frame %q", pf.label)
		}
		pf.eagerCache = collected
		pf.dirty = false
	}
	return pf.eagerCache.Clone(), nil
}

// replace installs a new lazy frame and marks the cache dirty. Exclusive
// access is held only for the duration of this assignment.
func (pf *PipelineFrame) replace(f frame.Frame) {
	pf.mu.Lock()
	pf.lazy = f
	pf.dirty = true
	pf.mu.Unlock()
}

// seed installs a frame without broadcasting, for Results Registry
// initial seeding via insert().
func (pf *PipelineFrame) seed(f frame.Frame) {
	pf.mu.Lock()
	pf.lazy = f
	pf.eagerCache = f
	pf.dirty = false
	pf.mu.Unlock()
}

// Seed is the public entry point for Results Registry's insert(name, frame).
func (pf *PipelineFrame) Seed(f frame.Frame) { pf.seed(f) }

// --- sync handles ---

// BroadcastHandle is a blocking producer handle bound to one source name.
type BroadcastHandle struct {
	pf     *PipelineFrame
	source string
}

func (pf *PipelineFrame) BroadcastHandle(sourceName string) BroadcastHandle {
	return BroadcastHandle{pf: pf, source: sourceName}
}

// Broadcast replaces the frame and enqueues one Replace message. If the
// sync channel is full the handle retries with bounded exponential
// backoff, then drops the message and returns nil; a closed channel (the
// consumer side has already shut down) is returned as a PipelineError
// rather than a panic.
func (h BroadcastHandle) Broadcast(f frame.Frame) error {
	h.pf.replace(f)
	return h.enqueue(Update{Source: h.source, Timestamp: time.Now(), Kind: Replace})
}

func (h BroadcastHandle) enqueue(u Update) (err error) {
	// A send on a closed channel panics even inside a select, so every
	// attempt below is covered by this recover.
	defer func() {
		if r := recover(); r != nil {
			err = errs.Pipeline("pipelineframe.broadcast", "send on closed channel")
		}
	}()
	backoff := time.Millisecond
	const maxAttempts = 6
	for attempt := 0; attempt < maxAttempts; attempt++ {
		select {
		case h.pf.syncCh <- u:
			return nil
		default:
		}
		time.Sleep(backoff)
		backoff *= 2
	}
	// Final non-blocking attempt; a still-full channel drops the message.
	return safeSend(h.pf.syncCh, u)
}

func safeSend(ch chan Update, u Update) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errs.Pipeline("pipelineframe.broadcast", "send on closed channel")
		}
	}()
	select {
	case ch <- u:
		return nil
	default:
		return nil // drop: message loss tolerated, not caller-blocking
	}
}

// ListenHandle is a blocking consumer handle.
type ListenHandle struct {
	pf       *PipelineFrame
	consumer string
}

func (pf *PipelineFrame) ListenHandle(consumerName string) ListenHandle {
	return ListenHandle{pf: pf, consumer: consumerName}
}

// Listen blocks for one message, failing with a PipelineError if the
// channel is disconnected.
func (h ListenHandle) Listen(ctx context.Context) (Update, error) {
	select {
	case u, ok := <-h.pf.syncCh:
		if !ok {
			return Update{}, errs.Pipeline("pipelineframe.listen", "channel disconnected")
		}
		return u, nil
	case <-ctx.Done():
		return Update{}, ctx.Err()
	}
}

// ForceListen is non-blocking: it drains one pending message if present,
// else synthesizes an anonymous Replace so callers (sync_exec's initial
// snapshot) always get something to distribute.
func (h ListenHandle) ForceListen() Update {
	select {
	case u, ok := <-h.pf.syncCh:
		if ok {
			return u
		}
	default:
	}
	return Update{Timestamp: time.Now(), Kind: Replace}
}

// --- async handles ---

// AsyncBroadcastHandle behaves like BroadcastHandle but never blocks: a
// full async channel drops its oldest pending message to make room.
type AsyncBroadcastHandle struct {
	pf     *PipelineFrame
	source string
}

func (pf *PipelineFrame) AsyncBroadcastHandle(sourceName string) AsyncBroadcastHandle {
	return AsyncBroadcastHandle{pf: pf, source: sourceName}
}

func (h AsyncBroadcastHandle) Broadcast(f frame.Frame) {
	h.pf.replace(f)
	h.enqueue(Update{Source: h.source, Timestamp: time.Now(), Kind: Replace})
}

// Kill emits a Kill update on the async channel without replacing the
// frame's data.
func (h AsyncBroadcastHandle) Kill() {
	h.enqueue(Update{Source: h.source, Timestamp: time.Now(), Kind: Kill})
}

func (h AsyncBroadcastHandle) enqueue(u Update) {
	defer func() { recover() }() // channel may already be closed; non-fatal
	select {
	case h.pf.asyncCh <- u:
		return
	default:
	}
	select {
	case <-h.pf.asyncCh: // drop oldest
	default:
	}
	select {
	case h.pf.asyncCh <- u:
	default:
	}
}

// AsyncListenHandle is the non-blocking-overflow counterpart of ListenHandle.
type AsyncListenHandle struct {
	pf       *PipelineFrame
	consumer string
}

func (pf *PipelineFrame) AsyncListenHandle(consumerName string) AsyncListenHandle {
	return AsyncListenHandle{pf: pf, consumer: consumerName}
}

func (h AsyncListenHandle) Listen(ctx context.Context) (Update, error) {
	select {
	case u, ok := <-h.pf.asyncCh:
		if !ok {
			return Update{}, errs.Pipeline("pipelineframe.listen_async", "channel disconnected")
		}
		return u, nil
	case <-ctx.Done():
		return Update{}, ctx.Err()
	}
}

func (h AsyncListenHandle) ForceListen() Update {
	select {
	case u, ok := <-h.pf.asyncCh:
		if ok {
			return u
		}
	default:
	}
	return Update{Timestamp: time.Now(), Kind: Replace}
}
