// Package coordinator serializes access to the typechecker thread: one
// goroutine runs everything (fast-path commits, slow-path
// reindex-and-typecheck, and file reads), so no two operations ever see
// the global snapshot mid-mutation (spec.md §5, "Single typechecker
// thread").
package coordinator

import (
	"context"
	"fmt"
	"sync"

	"gemcheck/internal/logging"
)

// Typechecker is the single-threaded state the coordinator serializes
// access to. Callers never touch it directly; they submit closures that
// receive it.
type Typechecker interface{}

// Config controls queue depth and worker behavior.
type Config struct {
	QueueSize int
}

// DefaultConfig returns the default coordinator configuration.
func DefaultConfig() Config {
	return Config{QueueSize: 64}
}

// task is one unit of work queued onto the typechecker thread.
type task struct {
	ctx  context.Context
	fn   func(Typechecker)
	done chan struct{}
}

// Coordinator runs a single worker goroutine that drains a task queue in
// order, plus at most one cancelable slow-path task in flight at a time.
type Coordinator struct {
	tc     Typechecker
	logger *logging.Logger

	queue chan task
	done  chan struct{}
	wg    sync.WaitGroup

	mu           sync.Mutex
	slowCancel   context.CancelFunc
	slowEpoch    uint64
	slowRunning  bool
}

// New returns a Coordinator over tc, not yet started.
func New(tc Typechecker, logger *logging.Logger, config Config) *Coordinator {
	if config.QueueSize <= 0 {
		config.QueueSize = 64
	}
	return &Coordinator{
		tc:     tc,
		logger: logger,
		queue:  make(chan task, config.QueueSize),
		done:   make(chan struct{}),
	}
}

// Start launches the single worker goroutine.
func (c *Coordinator) Start() {
	c.wg.Add(1)
	go c.worker()
}

// Stop shuts the worker down and waits for the task it is running, if
// any, to return; tasks still queued may be dropped without running.
func (c *Coordinator) Stop() {
	close(c.done)
	c.wg.Wait()
}

func (c *Coordinator) worker() {
	defer c.wg.Done()
	for {
		select {
		case t := <-c.queue:
			c.run(t)
		case <-c.done:
			return
		}
	}
}

func (c *Coordinator) run(t task) {
	defer close(t.done)
	select {
	case <-t.ctx.Done():
		return
	default:
	}
	t.fn(c.tc)
}

// SyncRun submits fn to the typechecker thread and blocks until it has
// run, for operations that need an up-to-date answer before returning
// (spec.md §5, "readFile blocks on the queue").
func (c *Coordinator) SyncRun(ctx context.Context, fn func(Typechecker)) error {
	t := task{ctx: ctx, fn: fn, done: make(chan struct{})}
	select {
	case c.queue <- t:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return fmt.Errorf("coordinator: stopped")
	}
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AsyncRun enqueues fn without waiting for it to run, for slow-path
// typechecking that a later fast-path commit is free to race ahead of
// on the LSP surface (spec.md §5, "fast path does not wait on slow
// path").
func (c *Coordinator) AsyncRun(fn func(Typechecker)) error {
	t := task{ctx: context.Background(), fn: fn, done: make(chan struct{})}
	select {
	case c.queue <- t:
		return nil
	case <-c.done:
		return fmt.Errorf("coordinator: stopped")
	}
}

// RunSlowPath launches a cancelable slow-path typecheck at epoch,
// replacing any slow path already in flight the way
// ckb's internal/watcher.Debouncer replaces its single pending closure -- only
// the newest one is guaranteed to run to completion, and TryCancel on an
// older epoch always fails once superseded.
func (c *Coordinator) RunSlowPath(epoch uint64, fn func(ctx context.Context, tc Typechecker)) {
	ctx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	if c.slowCancel != nil {
		c.slowCancel()
	}
	c.slowCancel = cancel
	c.slowEpoch = epoch
	c.slowRunning = true
	c.mu.Unlock()

	err := c.AsyncRun(func(tc Typechecker) {
		defer func() {
			c.mu.Lock()
			if c.slowEpoch == epoch {
				c.slowRunning = false
			}
			c.mu.Unlock()
		}()
		fn(ctx, tc)
	})
	if err != nil {
		c.logger.Warn("slow path not scheduled, coordinator stopped", map[string]interface{}{
			"epoch": epoch,
		})
	}
}

// TryCancelSlowPath attempts to cancel the in-flight slow path at epoch.
// It fails once that epoch's task has returned or was already canceled,
// or once a newer epoch has superseded it -- internal/lsp.New wires this
// in as the committer's TryCancelSlowPath callback (spec.md §4.6).
func (c *Coordinator) TryCancelSlowPath(epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.slowEpoch != epoch || !c.slowRunning || c.slowCancel == nil {
		return false
	}
	c.slowCancel()
	c.slowRunning = false
	return true
}
