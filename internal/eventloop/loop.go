package eventloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrAlreadyRunning = errors.New("loop: run called multiple times")
	ErrStopped        = errors.New("loop: stopped")
)

// Config controls the behaviour of the loop.
type Config struct {
	QueueSize int
	Logger    *slog.Logger
}

// Loop runs submitted work and expired timers one at a time on the goroutine
// that called Run. Everything scheduled through it shares that goroutine, so
// callbacks never need locking against each other.
type Loop struct {
	queue  chan func()
	logger *slog.Logger

	running  atomic.Bool
	stopOnce sync.Once
	quit     chan struct{}
	done     chan struct{}
}

// New creates a Loop with the supplied configuration.
func New(cfg Config) *Loop {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		queue:  make(chan func(), queueSize),
		logger: logger,
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Run executes callbacks until Stop is called or ctx is cancelled. It must be
// called once. Run returns nil after Stop and ctx.Err() after cancellation.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(l.done)

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("loop_context_cancelled", "error", ctx.Err())
			l.Stop()
			return ctx.Err()
		case <-l.quit:
			return nil
		case fn := <-l.queue:
			l.invoke(fn)
		}
	}
}

// invoke runs one callback. A panic is logged and swallowed so a single bad
// callback cannot take the loop down.
func (l *Loop) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("loop_callback_panic", "panic", r)
		}
	}()
	fn()
}

// Submit enqueues fn to run on the loop goroutine.
func (l *Loop) Submit(ctx context.Context, fn func()) error {
	select {
	case <-l.quit:
		return ErrStopped
	default:
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.quit:
		return ErrStopped
	case l.queue <- fn:
		return nil
	}
}

// Invoke runs fn on the loop goroutine and waits for its result. Once Invoke
// has returned ctx.Err() or ErrStopped, fn is guaranteed not to run; once fn
// has started, Invoke reports fn's own result.
func (l *Loop) Invoke(ctx context.Context, fn func() error) error {
	var claimed atomic.Bool // set by whichever side decides fn's fate first
	result := make(chan error, 1)
	err := l.Submit(ctx, func() {
		if !claimed.CompareAndSwap(false, true) {
			return
		}
		defer func() {
			if r := recover(); r != nil {
				result <- fmt.Errorf("loop: callback panicked: %v", r)
				panic(r)
			}
		}()
		result <- fn()
	})
	if err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		if claimed.CompareAndSwap(false, true) {
			return ctx.Err()
		}
		return <-result
	case <-l.quit:
		if claimed.CompareAndSwap(false, true) {
			return ErrStopped
		}
		return <-result
	}
}

// AfterFunc schedules fn to run on the loop goroutine once d has elapsed.
func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	t := &loopTimer{}
	t.timer = time.AfterFunc(d, func() {
		l.post(func() {
			// the timer may have been cancelled while this callback sat in the queue
			if !t.claim() {
				return
			}
			fn()
		})
	})
	return t
}

// post hands fn to the loop, giving up once the loop has stopped.
func (l *Loop) post(fn func()) {
	select {
	case l.queue <- fn:
	case <-l.quit:
	}
}

// Stop makes Run return. Queued callbacks that have not started are dropped.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		close(l.quit)
	})
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// loopTimer's state moves from pending to either fired or cancelled, once.
type loopTimer struct {
	timer *time.Timer
	state atomic.Int32
}

const (
	timerPending int32 = iota
	timerFired
	timerCancelled
)

func (t *loopTimer) claim() bool {
	return t.state.CompareAndSwap(timerPending, timerFired)
}

func (t *loopTimer) Cancel() bool {
	t.timer.Stop()
	return t.state.CompareAndSwap(timerPending, timerCancelled)
}
