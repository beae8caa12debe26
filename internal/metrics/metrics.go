package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/gray-logic-runtime/internal/binding"
	"github.com/nerrad567/gray-logic-runtime/internal/component"
)

const namespace = "graylogic_runtime"

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics owns the runtime's Prometheus registry and collectors.
//
// Thread Safety:
//   - All observer methods are safe for concurrent use.
type Metrics struct {
	registry *prometheus.Registry

	forwards     *prometheus.CounterVec
	saves        *prometheus.CounterVec
	saveDuration prometheus.Histogram
	stateChanges prometheus.Counter
	rpcCalls     *prometheus.CounterVec
}

// New creates the runtime metrics on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		forwards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "binding_forwards_total",
			Help:      "Values forwarded by active bindings, by result.",
		}, []string{"result"}),
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_saves_total",
			Help:      "Store saves attempted, by result.",
		}, []string{"result"}),
		saveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_save_duration_seconds",
			Help:      "Time taken by store saves.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		stateChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_changes_total",
			Help:      "Component state changes observed.",
		}),
		rpcCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_calls_total",
			Help:      "Procedure calls served, by method and response code.",
		}, []string{"method", "code"}),
	}

	m.registry.MustRegister(
		m.forwards,
		m.saves,
		m.saveDuration,
		m.stateChanges,
		m.rpcCalls,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Pre-create result series so they read as zero before the first event.
	for _, result := range []string{ResultOK, ResultError} {
		m.forwards.WithLabelValues(result)
		m.saves.WithLabelValues(result)
	}
	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// ObserveForward counts one forwarded binding value. It has the shape of
// binding.ForwardObserver.
func (m *Metrics) ObserveForward(_ binding.Config, err error) {
	m.forwards.WithLabelValues(result(err)).Inc()
}

// ObserveSave records one store save. It has the shape of store.SaveObserver.
func (m *Metrics) ObserveSave(err error, elapsed time.Duration) {
	m.saves.WithLabelValues(result(err)).Inc()
	m.saveDuration.Observe(elapsed.Seconds())
}

// ObserveChange counts state changes reported by component.Watch.
func (m *Metrics) ObserveChange(c component.Change) {
	if c.Kind == component.ChangeState {
		m.stateChanges.Inc()
	}
}

// ObserveCall counts one served procedure call with its response code
// ("" for success is recorded as "ok").
func (m *Metrics) ObserveCall(method, code string) {
	if code == "" {
		code = ResultOK
	}
	m.rpcCalls.WithLabelValues(method, code).Inc()
}

// RegisterSource adds scrape-time gauges read from src.
func (m *Metrics) RegisterSource(src Source, timeout time.Duration) error {
	return m.registry.Register(newRuntimeCollector(src, timeout))
}

// RegisterSinkCounter exposes a counter kept by an observer sink, such as
// the state publisher's dropped changes. name becomes the metric name
// suffix and sink its "sink" label.
func (m *Metrics) RegisterSinkCounter(name, sink, help string, read func() float64) error {
	return m.registry.Register(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace:   namespace,
		Name:        name,
		Help:        help,
		ConstLabels: prometheus.Labels{"sink": sink},
	}, read))
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}

// Source reports live runtime inventory. *manager.Manager satisfies it.
type Source interface {
	LiveComponents(ctx context.Context) ([]component.Info, error)
	BindingStatuses(ctx context.Context) ([]binding.Status, error)
}
