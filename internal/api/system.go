package api

import (
	"database/sql"
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/gray-logic-runtime/internal/binding"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string           `json:"timestamp"`
	Version       string           `json:"version"`
	Instance      string           `json:"instance"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Runtime       RuntimeMetrics   `json:"runtime"`
	WebSocket     WSMetrics        `json:"websocket"`
	MQTT          MQTTMetrics      `json:"mqtt"`
	Components    ComponentMetrics `json:"components"`
	Bindings      BindingMetrics   `json:"bindings"`
	Database      *DatabaseMetrics `json:"database,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int   `json:"connected_clients"`
	DroppedMessages  int64 `json:"dropped_messages"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// ComponentMetrics counts live and skipped components.
type ComponentMetrics struct {
	Live    int `json:"live"`
	Skipped int `json:"skipped"`
}

// BindingMetrics counts bindings by state.
type BindingMetrics struct {
	Enabled bool           `json:"enabled"`
	Total   int            `json:"total"`
	ByState map[string]int `json:"by_state"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleSystem returns runtime, transport and component statistics.
func (s *Server) handleSystem(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		Instance:      s.instance,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
			DroppedMessages:  s.hub.Dropped(),
		},
		Bindings: BindingMetrics{
			Enabled: s.runtime.BindingsEnabled(),
			ByState: map[string]int{
				string(binding.StateInactive): 0,
				string(binding.StateError):    0,
				string(binding.StateActive):   0,
			},
		},
	}

	if s.bus != nil {
		metrics.MQTT.Connected = s.bus.IsConnected()
	}

	ctx := r.Context()
	live, err := s.runtime.LiveComponents(ctx)
	if err != nil {
		writeCallError(w, err)
		return
	}
	skipped, err := s.runtime.Skipped(ctx)
	if err != nil {
		writeCallError(w, err)
		return
	}
	metrics.Components = ComponentMetrics{Live: len(live), Skipped: len(skipped)}

	statuses, err := s.runtime.BindingStatuses(ctx)
	if err != nil {
		writeCallError(w, err)
		return
	}
	metrics.Bindings.Total = len(statuses)
	for _, st := range statuses {
		metrics.Bindings.ByState[string(st.State)]++
	}

	if s.db != nil {
		dbStats := s.db.Stats()
		metrics.Database = &DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}

// DBStats reports connection pool statistics. *database.DB satisfies it.
type DBStats interface {
	Stats() sql.DBStats
}

// Bus reports MQTT connectivity. *mqtt.Client satisfies it.
type Bus interface {
	IsConnected() bool
}
