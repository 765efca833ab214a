package loop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bft-labs/cachenanny/pkg/log"
)

// Common loop errors.
var (
	ErrAlreadyRunning  = errors.New("loop: already running")
	ErrStopped         = errors.New("loop: stopped")
	ErrShutdownTimeout = errors.New("loop: shutdown timeout")
)

// Dispatcher runs functions one at a time.
type Dispatcher interface {
	Post(fn func())
}

// Scheduler arms recurring timers whose ticks run on a Dispatcher.
type Scheduler interface {
	Every(d time.Duration, fn func()) Timer
}

// Timer is a recurring timer. Stop is idempotent and may be called from
// inside the timer's own tick.
type Timer interface {
	Stop()
}

// State represents the lifecycle state of a Loop.
type State int

const (
	StateStopped State = iota
	StateRunning
	StateStopping
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	default:
		return "Unknown"
	}
}

// Loop is the production Dispatcher and Scheduler.
type Loop struct {
	mu      sync.RWMutex
	state   State
	started bool

	queue  chan func()
	done   chan struct{}
	wg     sync.WaitGroup
	logger log.Logger
}

// New creates a loop with a queue of the given capacity.
func New(logger log.Logger, buffer int) *Loop {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	if buffer < 0 {
		buffer = 0
	}
	return &Loop{
		state:  StateStopped,
		queue:  make(chan func(), buffer),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// State returns the current loop state.
func (l *Loop) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Run executes posted functions until ctx is canceled. It returns
// ctx.Err(), or ErrAlreadyRunning if the loop was started before.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return ErrAlreadyRunning
	}
	l.started = true
	l.state = StateRunning
	l.mu.Unlock()

	l.logger.Debug("loop running")

	for {
		select {
		case <-ctx.Done():
			l.shutdown()
			return ctx.Err()
		case fn := <-l.queue:
			fn()
		}
	}
}

func (l *Loop) shutdown() {
	l.mu.Lock()
	l.state = StateStopping
	l.mu.Unlock()

	close(l.done)

	l.mu.Lock()
	l.state = StateStopped
	l.mu.Unlock()

	l.logger.Debug("loop stopped")
}

// Post queues fn. It blocks while the queue is full and drops fn once the
// loop has stopped.
func (l *Loop) Post(fn func()) {
	l.postOr(fn, nil)
}

func (l *Loop) postOr(fn func(), cancel <-chan struct{}) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.queue <- fn:
		return true
	case <-l.done:
		return false
	case <-cancel:
		return false
	}
}

// Call runs fn on the loop and waits for it to return. It must not be
// called from the loop goroutine.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		fn()
	}

	select {
	case <-l.done:
		return ErrStopped
	default:
	}

	select {
	case l.queue <- wrapped:
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Every arms a recurring timer. Ticks are posted to the loop; a tick that
// is still queued when the timer stops is dropped.
func (l *Loop) Every(d time.Duration, fn func()) Timer {
	t := &ticker{stop: make(chan struct{})}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()

		tk := time.NewTicker(d)
		defer tk.Stop()

		for {
			select {
			case <-t.stop:
				return
			case <-l.done:
				return
			case <-tk.C:
				l.postOr(func() {
					if t.stopped.Load() {
						return
					}
					fn()
				}, t.stop)
			}
		}
	}()

	return t
}

// WaitWithTimeout waits for all timer goroutines to exit.
// Returns ErrShutdownTimeout if the timeout expires.
func (l *Loop) WaitWithTimeout(timeout time.Duration) error {
	finished := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-time.After(timeout):
		l.logger.Warn("loop shutdown timeout", log.Duration("timeout", timeout))
		return ErrShutdownTimeout
	}
}

type ticker struct {
	stop    chan struct{}
	once    sync.Once
	stopped atomic.Bool
}

func (t *ticker) Stop() {
	t.once.Do(func() {
		t.stopped.Store(true)
		close(t.stop)
	})
}
