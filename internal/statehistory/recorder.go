package statehistory

import (
	"sync"
	"sync/atomic"

	"github.com/nerrad567/gray-logic-runtime/internal/component"
	"github.com/nerrad567/gray-logic-runtime/internal/infrastructure/influxdb"
)

// defaultQueueSize bounds state changes waiting to be written.
const defaultQueueSize = 1024

// Logger defines the logging interface used by the statehistory package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Writer stores state points. *influxdb.Client satisfies it.
type Writer interface {
	WriteComponentState(s influxdb.ComponentState) bool
}

// Recorder writes component state changes to a Writer.
//
// Thread Safety:
//   - Observe is safe to call from any goroutine and never blocks.
type Recorder struct {
	writer   Writer
	instance string
	logger   Logger

	queue chan influxdb.ComponentState
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once

	written atomic.Int64
	dropped atomic.Int64
}

// NewRecorder creates a recorder that tags points with instance.
func NewRecorder(writer Writer, instance string, logger Logger) *Recorder {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Recorder{
		writer:   writer,
		instance: instance,
		logger:   logger,
		queue:    make(chan influxdb.ComponentState, defaultQueueSize),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the writing worker.
func (r *Recorder) Start() {
	go r.run()
}

// Stop writes what is already queued and stops the worker.
func (r *Recorder) Stop() {
	r.once.Do(func() { close(r.stop) })
	<-r.done
}

// Observe queues the state carried by c. Removals carry no state and are
// ignored.
func (r *Recorder) Observe(c component.Change) {
	switch c.Kind {
	case component.ChangeState:
		r.enqueue(r.point(c, c.Member, c.Value))
	case component.ChangeAdded:
		for member, value := range c.State {
			r.enqueue(r.point(c, member, value))
		}
	}
}

// Written returns how many points the writer accepted.
func (r *Recorder) Written() int64 {
	return r.written.Load()
}

// Dropped returns how many points were discarded because the queue was full.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

func (r *Recorder) point(c component.Change, member string, value any) influxdb.ComponentState {
	return influxdb.ComponentState{
		Instance:    r.instance,
		ComponentID: c.ComponentID,
		Plugin:      c.Plugin,
		Member:      member,
		Value:       value,
		Time:        c.Time,
	}
}

func (r *Recorder) enqueue(s influxdb.ComponentState) {
	select {
	case <-r.stop:
		return
	default:
	}

	select {
	case r.queue <- s:
	default:
		if r.dropped.Add(1) == 1 {
			r.logger.Warn("state history queue full, dropping points", "component_id", s.ComponentID)
		}
	}
}

func (r *Recorder) run() {
	defer close(r.done)

	for {
		select {
		case s := <-r.queue:
			r.write(s)
		case <-r.stop:
			for {
				select {
				case s := <-r.queue:
					r.write(s)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(s influxdb.ComponentState) {
	if r.writer.WriteComponentState(s) {
		r.written.Add(1)
		return
	}
	r.logger.Debug("state not recorded", "component_id", s.ComponentID, "member", s.Member)
}
