package builtin

import (
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-runtime/internal/plugin"
)

// Ticker member and config item names.
const (
	StateTicks     = "ticks"
	StateEnabled   = "enabled"
	ActionEnable   = "enable"
	ConfigInterval = "interval_ms"
	ConfigEnabled  = "enabled"
)

// minTickerInterval keeps a misconfigured ticker from flooding the event loop.
const minTickerInterval = 10 * time.Millisecond

// Ticker returns the metadata of the core/ticker plugin.
func Ticker() *plugin.Metadata {
	return &plugin.Metadata{
		Module:      Module,
		Name:        "ticker",
		Description: "Counts ticks on a fixed interval while enabled",
		Members: []plugin.Member{
			{Name: StateTicks, Type: plugin.MemberState, ValueType: plugin.ValueInteger, Description: "Ticks since the component started"},
			{Name: StateEnabled, Type: plugin.MemberState, ValueType: plugin.ValueBool, Description: "Whether the ticker is running"},
			{Name: ActionEnable, Type: plugin.MemberAction, ValueType: plugin.ValueBool, Description: "Start or stop the ticker"},
		},
		ConfigItems: []plugin.ConfigItem{
			{Name: ConfigInterval, ValueType: plugin.ValueInteger, Default: float64(1000), Description: "Tick interval in milliseconds"},
			{Name: ConfigEnabled, ValueType: plugin.ValueBool, Default: true, Description: "Start enabled"},
		},
		Factory: newTicker,
	}
}

// ticker runs a time.Ticker in its own goroutine. Counting happens on the
// event loop via Post, so ticks is only touched there.
type ticker struct {
	sink     plugin.StateSink
	interval time.Duration
	ticks    int

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

func newTicker(config map[string]any, sink plugin.StateSink) (plugin.Logic, error) {
	ms, ok := toInt(config[ConfigInterval])
	if !ok {
		return nil, fmt.Errorf("ticker: %s must be an integer", ConfigInterval)
	}
	interval := time.Duration(ms) * time.Millisecond
	if interval < minTickerInterval {
		return nil, fmt.Errorf("ticker: %s must be at least %d", ConfigInterval, minTickerInterval.Milliseconds())
	}

	t := &ticker{sink: sink, interval: interval}
	if err := sink.Set(StateTicks, 0); err != nil {
		return nil, err
	}

	enabled, _ := config[ConfigEnabled].(bool)
	if err := t.setEnabled(enabled); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *ticker) Execute(action string, value any) error {
	if action != ActionEnable {
		return fmt.Errorf("ticker: unsupported action %q", action)
	}
	enabled, _ := value.(bool)
	return t.setEnabled(enabled)
}

func (t *ticker) setEnabled(enabled bool) error {
	if enabled {
		t.start()
	} else {
		t.halt()
	}
	return t.sink.Set(StateEnabled, enabled)
}

func (t *ticker) start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stop != nil {
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	t.stop, t.done = stop, done

	go func() {
		defer close(done)
		tk := time.NewTicker(t.interval)
		defer tk.Stop()

		for {
			select {
			case <-stop:
				return
			case <-tk.C:
				t.sink.Post(t.tick)
			}
		}
	}()
}

// tick runs on the event loop.
func (t *ticker) tick() {
	t.ticks++
	_ = t.sink.Set(StateTicks, t.ticks) //nolint:errcheck // Member is declared; only fails after destroy
}

func (t *ticker) halt() {
	t.mu.Lock()
	stop, done := t.stop, t.done
	t.stop, t.done = nil, nil
	t.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
}

func (t *ticker) Close() error {
	t.halt()
	return nil
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int64(n), true
	default:
		return 0, false
	}
}
