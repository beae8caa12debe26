package eventloop

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrStopped is returned by Do when the loop has stopped.
var ErrStopped = errors.New("eventloop: stopped")

// Logger defines the logging interface used by the loop.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Loop runs submitted tasks one at a time on a single goroutine.
//
// Everything that touches the component registry, bindings or hosts is
// submitted here, so those types never need locks. Tasks run in FIFO order.
// The queue is unbounded, so Post never blocks, even from inside a task.
//
// Do must not be called from inside a task: the task would wait for itself.
//
// Thread Safety:
//   - Do, Post and Stop are safe for concurrent use.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	stopped bool
	started bool

	wake   chan struct{}
	done   chan struct{}
	logger Logger
}

// New creates a loop. Call Run to start processing.
func New() *Loop {
	return &Loop{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger used to report panicking tasks.
func (l *Loop) SetLogger(logger Logger) {
	l.logger = logger
}

// Run processes tasks until ctx is cancelled or Stop is called. Tasks still
// queued at that point are dropped and waiting Do callers get ErrStopped.
// Only the first call to Run does anything.
func (l *Loop) Run(ctx context.Context) {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return
	}
	l.started = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.stopped = true
		l.queue = nil
		l.mu.Unlock()
		close(l.done)
	}()

	for {
		task, ok := l.next()
		if !ok {
			return
		}
		if task == nil {
			select {
			case <-ctx.Done():
				return
			case <-l.wake:
			}
			continue
		}
		l.run(task)
	}
}

// next pops the head of the queue. It returns (nil, true) when the queue is
// empty and (nil, false) once the loop is stopped.
func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopped {
		return nil, false
	}
	if len(l.queue) == 0 {
		return nil, true
	}
	task := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return task, true
}

func (l *Loop) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("event loop task panicked", "panic", r)
		}
	}()
	task()
}

// Post enqueues fn. It never blocks. After the loop has stopped fn is
// silently dropped.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Do runs fn on the loop and waits for its result. A panic inside fn is
// returned as an error.
//
// Returns:
//   - the error returned by fn
//   - ctx.Err() if ctx ends first (fn may still run later)
//   - ErrStopped if the loop stops before fn runs
func (l *Loop) Do(ctx context.Context, fn func() error) error {
	l.mu.Lock()
	stopped := l.stopped
	l.mu.Unlock()
	if stopped {
		return ErrStopped
	}

	result := make(chan error, 1)
	l.Post(func() {
		defer func() {
			if r := recover(); r != nil {
				result <- fmt.Errorf("eventloop: task panicked: %v", r)
			}
		}()
		result <- fn()
	})

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		select {
		case err := <-result:
			return err
		default:
			return ErrStopped
		}
	}
}

// Stop ends Run after the current task. It is safe to call more than once
// and before Run.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.stopped = true
	started := l.started
	l.started = true
	l.mu.Unlock()

	if !started {
		// Run will never execute; release waiters.
		close(l.done)
		return
	}

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Done is closed once the loop has finished.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}
