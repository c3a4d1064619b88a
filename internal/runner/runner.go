// Package runner provides the application's main execution context: a
// single cooperative worker that executes submitted units of work in order.
//
// All I/O-bound application work (history queries, rendering, outbound
// sends) runs here. Other goroutines (notably the scheduler's timer loop)
// hand work over via Submit, which is safe to call from any goroutine and
// never blocks the caller.
package runner

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	logx "cloudrank/pkg/logx"
)

// ErrNotAccepting is returned by Submit when the runner is stopped or its
// queue is full. Callers decide whether to retry later.
var ErrNotAccepting = errors.New("runner not accepting work")

// Future tracks a submitted unit of work.
// Callbacks attached via OnDone run on the runner worker after completion.
type Future struct {
	mu    sync.Mutex
	done  chan struct{}
	err   error
	cbs   []func(error)
	fired bool
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Done is closed once the unit of work has finished.
func (f *Future) Done() <-chan struct{} { return f.done }

// Err returns the completion error. Only meaningful after Done is closed.
func (f *Future) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// OnDone attaches a completion callback. If the work already completed, the
// callback fires immediately on the calling goroutine.
func (f *Future) OnDone(cb func(error)) {
	if cb == nil {
		return
	}
	f.mu.Lock()
	if f.fired {
		err := f.err
		f.mu.Unlock()
		cb(err)
		return
	}
	f.cbs = append(f.cbs, cb)
	f.mu.Unlock()
}

func (f *Future) complete(err error) {
	f.mu.Lock()
	if f.fired {
		f.mu.Unlock()
		return
	}
	f.fired = true
	f.err = err
	cbs := f.cbs
	f.cbs = nil
	f.mu.Unlock()

	close(f.done)
	for _, cb := range cbs {
		cb(err)
	}
}

type unit struct {
	name string
	run  func(ctx context.Context) error
	fut  *Future
}

// Runner owns the single worker goroutine and its submission queue.
type Runner struct {
	mu sync.Mutex

	log logx.Logger

	queueSize int
	queue     chan unit
	stopCh    chan struct{}
	wg        sync.WaitGroup
	runCtx    context.Context
	runCancel context.CancelFunc
}

func New(queueSize int, log logx.Logger) *Runner {
	if queueSize <= 0 {
		queueSize = 64
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Runner{queueSize: queueSize, log: log}
}

// Start spawns the worker. Idempotent.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopCh != nil {
		return
	}
	r.stopCh = make(chan struct{})
	r.queue = make(chan unit, r.queueSize)
	r.runCtx, r.runCancel = context.WithCancel(ctx)

	queue := r.queue
	stopCh := r.stopCh
	runCtx := r.runCtx

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.worker(runCtx, stopCh, queue)
	}()
	r.log.Info("runner started", logx.Int("queue_cap", r.queueSize))
}

// Stop signals the worker to exit and waits, bounded by ctx.
// Work still queued is completed with a cancellation error.
func (r *Runner) Stop(ctx context.Context) {
	r.mu.Lock()
	if r.stopCh == nil {
		r.mu.Unlock()
		return
	}
	stopCh := r.stopCh
	cancel := r.runCancel
	queue := r.queue
	r.stopCh = nil
	r.queue = nil
	r.runCancel = nil
	r.mu.Unlock()

	close(stopCh)
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		// Fail whatever was still queued so no Future hangs forever.
		for {
			select {
			case u := <-queue:
				u.fut.complete(context.Canceled)
			default:
				close(done)
				return
			}
		}
	}()

	select {
	case <-done:
		r.log.Info("runner stopped")
	case <-ctx.Done():
		r.log.Warn("runner stop timed out; worker exits in background")
	}
}

// Submit enqueues fn for execution on the runner worker. It is thread-safe
// and non-blocking: when the runner is stopped or saturated it returns
// ErrNotAccepting instead of dropping the work silently.
func (r *Runner) Submit(name string, fn func(ctx context.Context) error) (*Future, error) {
	if fn == nil {
		return nil, errors.New("nil work function")
	}
	r.mu.Lock()
	queue := r.queue
	running := r.stopCh != nil
	r.mu.Unlock()

	if !running || queue == nil {
		return nil, fmt.Errorf("%w: not running", ErrNotAccepting)
	}

	fut := newFuture()
	select {
	case queue <- unit{name: name, run: fn, fut: fut}:
		return fut, nil
	default:
		return nil, fmt.Errorf("%w: queue full (cap %d)", ErrNotAccepting, cap(queue))
	}
}

// QueueLen reports the number of queued-but-unstarted units.
func (r *Runner) QueueLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.queue == nil {
		return 0
	}
	return len(r.queue)
}

func (r *Runner) worker(ctx context.Context, stopCh chan struct{}, queue chan unit) {
	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case u := <-queue:
			r.execOne(ctx, u)
		}
	}
}

func (r *Runner) execOne(ctx context.Context, u unit) {
	start := time.Now()
	var err error
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("panic in %s: %v", u.name, rec)
				r.log.Error("work unit panicked",
					logx.String("unit", u.name),
					logx.Any("panic", rec),
					logx.String("stack", string(debug.Stack())))
			}
		}()
		err = u.run(ctx)
	}()

	if err != nil && !errors.Is(err, context.Canceled) {
		r.log.Warn("work unit failed", logx.String("unit", u.name), logx.Duration("took", time.Since(start)), logx.Err(err))
	} else {
		r.log.Debug("work unit done", logx.String("unit", u.name), logx.Duration("took", time.Since(start)))
	}
	u.fut.complete(err)
}
