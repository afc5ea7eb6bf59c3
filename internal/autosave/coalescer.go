// Package autosave coalesces bursts of note edits into single durable
// writes. A per-note debounce state machine (Idle → Pending → Committing →
// Idle) sits in front of the store's single-writer path.
//
// Concurrency model: one owner goroutine owns all mutable state (the
// per-note pending writes and their timers). Public methods communicate
// with this loop through channels, so no mutexes are required. Timer
// callbacks never touch state; they only send the note id back into the
// loop.
package autosave

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/starford/noteforge/internal/apperr"
	"github.com/starford/noteforge/internal/checksum"
)

// Snapshot is the latest edited state of a note, as captured from the
// editor. The coalescer keeps only the newest snapshot per note.
type Snapshot struct {
	Title string
	Body  string
	Tags  []string
}

func (s Snapshot) sum() string {
	return checksum.Snapshot(s.Title, s.Body, s.Tags)
}

// CommitFunc persists a snapshot through the store's single-writer path.
type CommitFunc func(ctx context.Context, id int64, snap Snapshot) error

// ResultFunc is called after every commit attempt: err is nil on success
// and an *apperr.FlushError when the write failed and the snapshot was
// retained. Called from the owner loop, so it must not block.
type ResultFunc func(id int64, err error)

type state int

const (
	stateIdle state = iota
	statePending
	stateCommitting
)

// pendingWrite is the per-note debounce state. It exists only while a note
// has unflushed edits and is destroyed on successful commit.
type pendingWrite struct {
	snap    Snapshot
	version uint64
	state   state
	timer   *time.Timer
}

type editReq struct {
	id   int64
	snap Snapshot
}

type flushReq struct {
	ctx   context.Context
	id    int64 // flushAll when < 0
	reply chan error
}

type pendingReq struct {
	id    int64
	reply chan bool
}

// Coalescer debounces edits per note id.
type Coalescer struct {
	interval time.Duration
	commit   CommitFunc
	onResult ResultFunc

	editCh   chan editReq
	fireCh   chan int64
	flushCh  chan flushReq
	cancelCh chan int64
	pendCh   chan pendingReq

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// New creates a coalescer and starts its owner loop. onResult may be nil.
func New(interval time.Duration, commit CommitFunc, onResult ResultFunc) *Coalescer {
	if interval <= 0 {
		interval = 600 * time.Millisecond
	}
	c := &Coalescer{
		interval: interval,
		commit:   commit,
		onResult: onResult,
		editCh:   make(chan editReq, 64),
		fireCh:   make(chan int64, 64),
		flushCh:  make(chan flushReq),
		cancelCh: make(chan int64),
		pendCh:   make(chan pendingReq),
		stopCh:   make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go c.run()
	return c
}

func (c *Coalescer) run() {
	defer close(c.stopped)

	// entries holds debounce state per note; committed remembers the digest
	// of each note's last persisted snapshot so unchanged edits produce
	// zero writes.
	entries := make(map[int64]*pendingWrite)
	committed := make(map[int64]string)

	arm := func(id int64, e *pendingWrite) {
		if e.timer != nil {
			e.timer.Stop()
		}
		e.timer = time.AfterFunc(c.interval, func() {
			select {
			case c.fireCh <- id:
			case <-c.stopCh:
			}
		})
	}

	// commitEntry attempts to persist the entry's snapshot. On failure the
	// entry reverts to Pending with the snapshot retained and the timer
	// re-armed for retry; unsaved data is never discarded. The one
	// exception is a missing note: retrying against a deleted row can
	// never succeed, so the entry is dropped after reporting once.
	commitEntry := func(ctx context.Context, id int64, e *pendingWrite) error {
		if e.timer != nil {
			e.timer.Stop()
			e.timer = nil
		}
		if e.snap.sum() == committed[id] {
			// Nothing changed since the last commit: idempotent skip.
			delete(entries, id)
			return nil
		}
		e.state = stateCommitting
		version := e.version
		if err := c.commit(ctx, id, e.snap); err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				delete(entries, id)
				delete(committed, id)
			} else {
				e.state = statePending
				arm(id, e)
			}
			ferr := &apperr.FlushError{NoteID: id, Err: err}
			if c.onResult != nil {
				c.onResult(id, ferr)
			}
			return ferr
		}
		committed[id] = e.snap.sum()
		if e.version == version {
			delete(entries, id)
		} else {
			// A newer version slipped in while the write was in flight:
			// it becomes the follow-on pending state.
			e.state = statePending
			arm(id, e)
		}
		if c.onResult != nil {
			c.onResult(id, nil)
		}
		return nil
	}

	applyEdit := func(req editReq) {
		e := entries[req.id]
		if e == nil {
			e = &pendingWrite{}
			entries[req.id] = e
		}
		// Coalescing, not queuing: the snapshot is replaced in place and
		// the version counter bumps.
		e.snap = req.snap
		e.version++
		e.state = statePending
		arm(req.id, e)
	}

	// drainEdits applies any edits already queued so a flush always sees
	// the caller's latest snapshot.
	drainEdits := func() {
		for {
			select {
			case req := <-c.editCh:
				applyEdit(req)
			default:
				return
			}
		}
	}

	for {
		select {
		case <-c.stopCh:
			for _, e := range entries {
				if e.timer != nil {
					e.timer.Stop()
				}
			}
			return

		case req := <-c.editCh:
			applyEdit(req)

		case id := <-c.fireCh:
			e := entries[id]
			if e == nil || e.state != statePending {
				continue // stale fire from a cancelled timer
			}
			_ = commitEntry(context.Background(), id, e)

		case req := <-c.flushCh:
			drainEdits()
			if req.id >= 0 {
				e := entries[req.id]
				if e == nil {
					req.reply <- nil
					continue
				}
				req.reply <- commitEntry(req.ctx, req.id, e)
				continue
			}
			var errs []error
			for id, e := range entries {
				if err := commitEntry(req.ctx, id, e); err != nil {
					errs = append(errs, err)
				}
			}
			req.reply <- errors.Join(errs...)

		case id := <-c.cancelCh:
			drainEdits()
			if e := entries[id]; e != nil {
				if e.timer != nil {
					e.timer.Stop()
				}
				delete(entries, id)
			}
			delete(committed, id)

		case req := <-c.pendCh:
			_, ok := entries[req.id]
			req.reply <- ok
		}
	}
}

// Edit records the latest snapshot for a note and (re)starts its debounce
// timer. Edits received while a previous commit is in flight are not lost:
// they form the follow-on pending state and commit after it.
func (c *Coalescer) Edit(id int64, snap Snapshot) {
	if c.closed.Load() {
		return
	}
	select {
	case c.editCh <- editReq{id: id, snap: snap}:
	case <-c.stopped:
	}
}

// Flush cancels any pending timer for the note and commits its latest
// snapshot immediately, synchronously with respect to the caller. A note
// with no unflushed edits produces zero writes and returns nil.
func (c *Coalescer) Flush(ctx context.Context, id int64) error {
	return c.flush(ctx, id)
}

// FlushAll commits every note with unflushed edits. Used on shutdown and
// before export so the file sees the latest content.
func (c *Coalescer) FlushAll(ctx context.Context) error {
	return c.flush(ctx, -1)
}

func (c *Coalescer) flush(ctx context.Context, id int64) error {
	if c.closed.Load() {
		return nil
	}
	reply := make(chan error, 1)
	select {
	case c.flushCh <- flushReq{ctx: ctx, id: id, reply: reply}:
	case <-c.stopped:
		return nil
	}
	select {
	case err := <-reply:
		return err
	case <-c.stopped:
		return nil
	}
}

// Cancel discards any unflushed edits for a note. Used when the note is
// deleted so a late debounce fire cannot resurrect it.
func (c *Coalescer) Cancel(id int64) {
	if c.closed.Load() {
		return
	}
	select {
	case c.cancelCh <- id:
	case <-c.stopped:
	}
}

// Pending reports whether the note currently has unflushed edits.
func (c *Coalescer) Pending(id int64) bool {
	if c.closed.Load() {
		return false
	}
	reply := make(chan bool, 1)
	select {
	case c.pendCh <- pendingReq{id: id, reply: reply}:
	case <-c.stopped:
		return false
	}
	select {
	case ok := <-reply:
		return ok
	case <-c.stopped:
		return false
	}
}

// Close stops the owner loop. Callers should FlushAll first; Close drops
// whatever is still pending.
func (c *Coalescer) Close() {
	if c.closed.CompareAndSwap(false, true) {
		close(c.stopCh)
	}
	<-c.stopped
}
