package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/gray-logic-runtime/internal/binding"
)

var (
	descComponents = prometheus.NewDesc(
		namespace+"_components",
		"Components registered in the runtime.",
		nil, nil,
	)
	descBindings = prometheus.NewDesc(
		namespace+"_bindings",
		"Bindings by lifecycle state.",
		[]string{"state"}, nil,
	)
)

// bindingStates lists every state reported, so absent states read as zero.
var bindingStates = []binding.State{
	binding.StateInactive,
	binding.StateError,
	binding.StateActive,
	binding.StateClosed,
}

// runtimeCollector reads inventory gauges from the manager on each scrape.
type runtimeCollector struct {
	src     Source
	timeout time.Duration
}

var _ prometheus.Collector = &runtimeCollector{}

func newRuntimeCollector(src Source, timeout time.Duration) *runtimeCollector {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &runtimeCollector{src: src, timeout: timeout}
}

// Describe implements the prometheus.Collector interface.
func (c *runtimeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descComponents
	ch <- descBindings
}

// Collect implements the prometheus.Collector interface. A source that
// cannot answer (for instance during shutdown) contributes nothing.
func (c *runtimeCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if components, err := c.src.LiveComponents(ctx); err == nil {
		ch <- prometheus.MustNewConstMetric(descComponents, prometheus.GaugeValue, float64(len(components)))
	}

	statuses, err := c.src.BindingStatuses(ctx)
	if err != nil {
		return
	}
	counts := make(map[binding.State]int, len(bindingStates))
	for _, st := range statuses {
		counts[st.State]++
	}
	for _, state := range bindingStates {
		ch <- prometheus.MustNewConstMetric(descBindings, prometheus.GaugeValue, float64(counts[state]), string(state))
	}
}
