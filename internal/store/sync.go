package store

import (
	"context"
	"sync"
	"time"
)

// DefaultDebounce is the quiet period used when none is configured.
const DefaultDebounce = 2 * time.Second

// Logger defines the logging interface used by the store package.
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

// SaveObserver is told about the outcome of every save.
type SaveObserver func(err error, elapsed time.Duration)

// SyncOption configures a SyncManager.
type SyncOption func(*SyncManager)

// WithLogger sets the logger used for background save failures.
func WithLogger(logger Logger) SyncOption {
	return func(m *SyncManager) { m.logger = logger }
}

// WithSaveObserver installs an observer called after every save attempt.
func WithSaveObserver(fn SaveObserver) SyncOption {
	return func(m *SyncManager) { m.observer = fn }
}

// SyncManager writes a store back to its backend after a quiet period.
//
// Every mutation of the store re-arms a single timer, so a burst of
// mutations inside one window produces one save holding the final state.
// A failed background save is logged and leaves the store dirty; there is
// no automatic retry.
type SyncManager struct {
	store  *Store
	delay  time.Duration
	logger Logger

	observer SaveObserver

	mu     sync.Mutex
	timer  *time.Timer
	armed  uint64
	closed bool
}

// NewSyncManager attaches a debounced writer to s. A delay <= 0 selects
// DefaultDebounce.
func NewSyncManager(s *Store, delay time.Duration, opts ...SyncOption) *SyncManager {
	if delay <= 0 {
		delay = DefaultDebounce
	}

	m := &SyncManager{
		store:  s,
		delay:  delay,
		logger: noopLogger{},
	}
	for _, opt := range opts {
		opt(m)
	}

	s.setOnChange(m.schedule)
	return m
}

// Store returns the managed store.
func (m *SyncManager) Store() *Store {
	return m.store
}

// schedule cancels any pending save and arms a new one.
func (m *SyncManager) schedule() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	if m.timer != nil {
		m.timer.Stop()
	}
	m.armed++
	seq := m.armed
	m.timer = time.AfterFunc(m.delay, func() { m.tick(seq) })
}

// tick runs a debounced save. A tick whose timer was superseded after it
// already fired does nothing.
func (m *SyncManager) tick(seq uint64) {
	m.mu.Lock()
	if m.closed || seq != m.armed {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	m.mu.Unlock()

	if err := m.save(context.Background()); err != nil {
		m.logger.Error("background store save failed", "error", err)
	}
}

// Flush cancels the pending timer and saves immediately, dirty or not.
// The error is returned to the caller; the store stays dirty on failure.
func (m *SyncManager) Flush(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.cancelTimerLocked()
	m.mu.Unlock()

	return m.save(ctx)
}

// Close stops the timer and, if the store is dirty, saves synchronously
// before returning. Later mutations no longer schedule saves.
func (m *SyncManager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.cancelTimerLocked()
	m.mu.Unlock()

	if !m.store.Dirty() {
		return nil
	}
	return m.save(ctx)
}

// Pending reports whether a debounced save is armed.
func (m *SyncManager) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timer != nil
}

func (m *SyncManager) cancelTimerLocked() {
	m.armed++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *SyncManager) save(ctx context.Context) error {
	start := time.Now()
	err := m.store.Save(ctx)
	elapsed := time.Since(start)

	if m.observer != nil {
		m.observer(err, elapsed)
	}
	if err == nil {
		m.logger.Debug("store saved", "duration", elapsed)
	}
	return err
}
