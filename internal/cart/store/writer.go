package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/angelmondragon/packfinderz-cart/internal/cart"
)

// ErrClosed is reported for writes requested after Close.
var ErrClosed = errors.New("cart store closed")

type jobOp int

const (
	opSave jobOp = iota + 1
	opClear
)

// writeJob is shared by every mutation whose write it covers. done is closed once err is
// final.
type writeJob struct {
	op    jobOp
	state cart.State
	done  chan struct{}
	err   error
}

func (j *writeJob) wait(ctx context.Context) error {
	select {
	case <-j.done:
		return j.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// writer serializes asynchronous persistence for one store. At most one write is in flight;
// requests arriving meanwhile collapse into a single pending job carrying the latest
// snapshot, so the backing store never moves backwards past a later commit.
type writer struct {
	run     func(ctx context.Context, op jobOp, state cart.State) error
	timeout time.Duration

	mu      sync.Mutex
	pending *writeJob
	closed  bool

	wake   chan struct{}
	quit   chan struct{}
	exited chan struct{}
}

func newWriter(timeout time.Duration, run func(ctx context.Context, op jobOp, state cart.State) error) *writer {
	w := &writer{
		run:     run,
		timeout: timeout,
		wake:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
		exited:  make(chan struct{}),
	}
	go w.loop()
	return w
}

// enqueue must be called in commit order; the store calls it with its state lock held.
func (w *writer) enqueue(op jobOp, state cart.State) *writeJob {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		job := &writeJob{op: op, state: state, done: make(chan struct{}), err: ErrClosed}
		close(job.done)
		return job
	}
	if w.pending != nil {
		w.pending.op = op
		w.pending.state = state
		return w.pending
	}
	w.pending = &writeJob{op: op, state: state, done: make(chan struct{})}
	select {
	case w.wake <- struct{}{}:
	default:
	}
	return w.pending
}

func (w *writer) take() *writeJob {
	w.mu.Lock()
	defer w.mu.Unlock()
	job := w.pending
	w.pending = nil
	return job
}

func (w *writer) loop() {
	defer close(w.exited)
	for {
		select {
		case <-w.wake:
			w.drain()
		case <-w.quit:
			w.drain()
			return
		}
	}
}

func (w *writer) drain() {
	for job := w.take(); job != nil; job = w.take() {
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		job.err = w.run(ctx, job.op, job.state)
		cancel()
		close(job.done)
	}
}

// close flushes the pending write and stops the goroutine.
func (w *writer) close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		<-w.exited
		return
	}
	w.closed = true
	w.mu.Unlock()
	close(w.quit)
	<-w.exited
}
