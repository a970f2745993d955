package thread

import (
	"context"
	"sync"
	"time"
)

// Scheduler moves blocking work off the owner goroutine and hands the
// continuation back to it. Continuations run one at a time on the owner, so
// loader state is never touched concurrently.
type Scheduler interface {
	// Go runs work asynchronously and then runs the returned continuation
	// (if non-nil) on the owner.
	Go(work func(ctx context.Context) func())
	// After runs fn on the owner once d has elapsed.
	After(d time.Duration, fn func())
}

// Loop is a goroutine-owned Scheduler: continuations queue on a channel and
// run on whichever goroutine calls Run or Drain.
type Loop struct {
	ctx    context.Context
	cancel context.CancelFunc
	queue  chan func()
	wg     sync.WaitGroup

	mu      sync.Mutex
	pending int
	idle    chan struct{}
}

// NewLoop returns a loop bound to ctx.
func NewLoop(ctx context.Context) *Loop {
	ctx, cancel := context.WithCancel(ctx)
	return &Loop{
		ctx:    ctx,
		cancel: cancel,
		queue:  make(chan func(), 64),
	}
}

// Go implements Scheduler.
func (l *Loop) Go(work func(ctx context.Context) func()) {
	l.add()
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.deliver(work(l.ctx))
	}()
}

// After implements Scheduler.
func (l *Loop) After(d time.Duration, fn func()) {
	l.add()
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			l.deliver(fn)
		case <-l.ctx.Done():
			l.done()
		}
	}()
}

// Post queues fn to run on the owner. Surface events from other goroutines
// enter the loader this way.
func (l *Loop) Post(fn func()) {
	l.add()
	l.deliver(fn)
}

func (l *Loop) deliver(fn func()) {
	if fn == nil {
		fn = func() {}
	}
	select {
	case l.queue <- fn:
	case <-l.ctx.Done():
		l.done()
	}
}

func (l *Loop) add() {
	l.mu.Lock()
	l.pending++
	l.mu.Unlock()
}

func (l *Loop) done() {
	l.mu.Lock()
	l.pending--
	if l.pending == 0 && l.idle != nil {
		close(l.idle)
		l.idle = nil
	}
	l.mu.Unlock()
}

// Run executes continuations until ctx is cancelled or Close is called.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case fn := <-l.queue:
			fn()
			l.done()
		case <-ctx.Done():
			return ctx.Err()
		case <-l.ctx.Done():
			return l.ctx.Err()
		}
	}
}

// Drain executes continuations until no work or timers are outstanding.
func (l *Loop) Drain(ctx context.Context) error {
	for {
		l.mu.Lock()
		if l.pending == 0 {
			l.mu.Unlock()
			return nil
		}
		if l.idle == nil {
			l.idle = make(chan struct{})
		}
		idle := l.idle
		l.mu.Unlock()

		select {
		case fn := <-l.queue:
			fn()
			l.done()
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		case <-l.ctx.Done():
			return l.ctx.Err()
		}
	}
}

// Close cancels outstanding work and waits for its goroutines to exit.
func (l *Loop) Close() {
	l.cancel()
	l.wg.Wait()
}
