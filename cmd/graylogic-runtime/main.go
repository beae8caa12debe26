// Gray Logic Component Runtime
//
// This is the main entry point of the component runtime. The runtime
// hosts plugin-backed components, forwards state between them through
// bindings and persists the desired configuration, so that a building
// controller restarts into the same set of components and bindings.
//
// Procedures are reachable over MQTT (graylogic/runtime/{instance}/rpc/...)
// and over the HTTP API; both dispatch through the same procedure table.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/gray-logic-runtime/internal/api"
	"github.com/nerrad567/gray-logic-runtime/internal/binding"
	"github.com/nerrad567/gray-logic-runtime/internal/component"
	"github.com/nerrad567/gray-logic-runtime/internal/eventloop"
	"github.com/nerrad567/gray-logic-runtime/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-runtime/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-runtime/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-runtime/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-runtime/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-runtime/internal/manager"
	"github.com/nerrad567/gray-logic-runtime/internal/metrics"
	"github.com/nerrad567/gray-logic-runtime/internal/plugin"
	"github.com/nerrad567/gray-logic-runtime/internal/plugin/builtin"
	"github.com/nerrad567/gray-logic-runtime/internal/presence"
	"github.com/nerrad567/gray-logic-runtime/internal/process"
	"github.com/nerrad567/gray-logic-runtime/internal/rpc"
	"github.com/nerrad567/gray-logic-runtime/internal/statehistory"
	"github.com/nerrad567/gray-logic-runtime/internal/store"
	"github.com/nerrad567/gray-logic-runtime/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

const (
	// defaultConfigPath is used when GRAYLOGIC_RUNTIME_CONFIG is unset.
	defaultConfigPath = "configs/runtime.yaml"

	// shutdownTimeout bounds closing components and the final store flush.
	shutdownTimeout = 15 * time.Second

	// metricsSourceTimeout bounds the registry snapshot taken per scrape.
	metricsSourceTimeout = 2 * time.Second
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Start order is infrastructure (database, MQTT, InfluxDB), then the event
// loop and manager, then the transports. Deferred cleanup runs in reverse,
// so transports stop accepting work before components are closed and the
// store gets its final flush.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // Linear startup sequence
	log := logging.Default()
	log.Info("starting Gray Logic runtime",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version).With("instance", cfg.Instance.ID)
	log.Info("configuration loaded",
		"path", configPath,
		"store_backend", cfg.Store.Backend,
		"level", cfg.Logging.Level,
	)

	// Database (sqlite store backend only)
	var db *database.DB
	if cfg.Store.Backend == config.StoreBackendSQLite {
		db, err = openDatabase(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
	}

	// MQTT (optional)
	var mqttClient *mqtt.Client
	var tracker *presence.Tracker
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT, cfg.Instance.ID)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		mqttClient.SetLogger(log.Subsystem("mqtt"))
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})

		tracker = presence.NewTracker(mqttClient, cfg.Instance.ID)
		tracker.SetLogger(log.Subsystem("presence"))
		tracker.OnPeer(func(p presence.Peer) {
			log.Info("runtime instance presence", "peer", p.Instance, "status", p.Status, "reason", p.Reason)
		})
		if startErr := tracker.Start(); startErr != nil {
			return fmt.Errorf("starting presence tracker: %w", startErr)
		}
		defer tracker.Stop()
	} else {
		log.Info("MQTT disabled, procedures reachable over HTTP only")
	}

	// InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	// Event loop
	loop := eventloop.New()
	loop.SetLogger(log.Subsystem("eventloop"))
	go loop.Run(context.Background())
	defer func() {
		loop.Stop()
		<-loop.Done()
	}()

	// Plugins
	catalog := plugin.NewCatalog()
	if err := builtin.Register(catalog, cfg.Instance.ID); err != nil {
		return fmt.Errorf("registering builtin plugins: %w", err)
	}
	registry := component.NewRegistry(catalog)

	// Store
	runner := process.NewRunner()
	runner.SetLogger(log.Subsystem("process"))
	backend, err := store.NewBackend(cfg, store.BackendDeps{Runner: runner, DB: db})
	if err != nil {
		return fmt.Errorf("creating store backend: %w", err)
	}

	met := metrics.New()
	syncer := store.NewSyncManager(store.New(backend), cfg.DebounceDelay(),
		store.WithLogger(log.Subsystem("store")),
		store.WithSaveObserver(met.ObserveSave),
	)

	// Bindings need presence tracking when configured to
	bindingsEnabled := cfg.Bindings.Enabled
	if bindingsEnabled && cfg.Bindings.RequirePresence && (tracker == nil || !tracker.Available()) {
		log.Warn("bindings disabled: presence tracking unavailable")
		bindingsEnabled = false
	}

	var hub *api.Hub
	if cfg.API.Enabled {
		hub = api.NewHub(cfg.WebSocket, log.Subsystem("websocket"))
	}

	bindingOpts := []binding.Option{binding.WithForwardObserver(met.ObserveForward)}
	if hub != nil {
		bindingOpts = append(bindingOpts, binding.WithStateObserver(hub.ObserveBinding))
	}

	// Manager
	mgr := manager.New(manager.Options{
		Instance:        cfg.Instance.ID,
		BindingsEnabled: bindingsEnabled,
	}, manager.Deps{
		Loop:           loop,
		Catalog:        catalog,
		Registry:       registry,
		Sync:           syncer,
		Logger:         log.Subsystem("manager"),
		BindingOptions: bindingOpts,
	})
	if err := mgr.Init(ctx); err != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if closeErr := syncer.Close(closeCtx); closeErr != nil {
			log.Error("error closing store", "error", closeErr)
		}
		return fmt.Errorf("initialising manager: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("closing components")
		if closeErr := mgr.Close(closeCtx); closeErr != nil {
			log.Error("error closing manager", "error", closeErr)
		}
	}()

	if err := met.RegisterSource(mgr, metricsSourceTimeout); err != nil {
		return fmt.Errorf("registering metrics source: %w", err)
	}

	// Change observers. Each one is non-blocking; I/O runs on workers.
	observers := []func(component.Change){met.ObserveChange}
	if hub != nil {
		observers = append(observers, hub.Observe)
	}
	if mqttClient != nil {
		publisher := presence.NewStatePublisher(mqttClient, cfg.Instance.ID,
			presence.WithPublisherLogger(log.Subsystem("presence")))
		publisher.Start()
		defer publisher.Stop()
		observers = append(observers, publisher.Observe)
		if err := met.RegisterSinkCounter("observer_dropped_total", "mqtt",
			"Changes discarded because a sink queue was full.",
			func() float64 { return float64(publisher.Dropped()) }); err != nil {
			return fmt.Errorf("registering publisher metrics: %w", err)
		}
	}
	if influxClient != nil {
		recorder := statehistory.NewRecorder(influxClient, cfg.Instance.ID, log.Subsystem("statehistory"))
		recorder.Start()
		defer recorder.Stop()
		observers = append(observers, recorder.Observe)
		if err := met.RegisterSinkCounter("observer_dropped_total", "influxdb",
			"Changes discarded because a sink queue was full.",
			func() float64 { return float64(recorder.Dropped()) }); err != nil {
			return fmt.Errorf("registering history metrics: %w", err)
		}
		if err := met.RegisterSinkCounter("sink_write_errors_total", "influxdb",
			"Background writes rejected by a sink.",
			func() float64 { return float64(influxClient.WriteErrors()) }); err != nil {
			return fmt.Errorf("registering history metrics: %w", err)
		}
	}

	var stopWatch func()
	if err := loop.Do(ctx, func() error {
		stopWatch = component.Watch(registry, func(c component.Change) {
			for _, observe := range observers {
				observe(c)
			}
		})
		return nil
	}); err != nil {
		return fmt.Errorf("watching components: %w", err)
	}
	defer func() {
		// Stop before the manager closes, so shutdown does not read as
		// component removal downstream.
		//nolint:errcheck // Loop is still running here
		loop.Do(context.Background(), func() error {
			stopWatch()
			return nil
		})
	}()

	procedures := rpc.NewServer(mgr)

	// MQTT RPC transport
	if mqttClient != nil {
		transport := rpc.NewMQTTTransport(procedures, mqttClient, cfg.Instance.ID,
			rpc.WithTransportLogger(log.Subsystem("rpc")),
			rpc.WithQoS(byte(cfg.MQTT.QoS)), //nolint:gosec // Validated to 0-2
			rpc.WithCallObserver(met.ObserveCall),
		)
		if err := transport.Start(ctx); err != nil {
			return fmt.Errorf("starting RPC transport: %w", err)
		}
		defer transport.Stop()
		log.Info("RPC transport started", "procedures", procedures.Methods())
	}

	// HTTP API
	if cfg.API.Enabled {
		deps := api.Deps{
			Config:       cfg.API,
			WS:           cfg.WebSocket,
			Security:     cfg.Security,
			Logger:       log.Subsystem("api"),
			Instance:     cfg.Instance.ID,
			Version:      version,
			Procedures:   procedures,
			Runtime:      mgr,
			Metrics:      met.Handler(),
			Hub:          hub,
			CallObserver: met.ObserveCall,
		}
		if tracker != nil {
			deps.Presence = tracker
		}
		if mqttClient != nil {
			deps.Bus = mqttClient
			deps.Remote = rpc.NewCaller(mqttClient)
		}
		if db != nil {
			deps.DB = db
		}

		apiServer, err := api.New(deps)
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := apiServer.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	skipped, err := mgr.Skipped(ctx)
	if err != nil {
		return fmt.Errorf("reading skipped components: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal",
		"bindings_enabled", bindingsEnabled,
		"skipped_components", len(skipped),
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_RUNTIME_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_RUNTIME_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// openDatabase opens the SQLite database and applies the embedded migrations.
func openDatabase(ctx context.Context, cfg *config.Config, log *logging.Logger) (*database.DB, error) {
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	applied, err := db.Migrate(ctx, migrations.FS)
	if err != nil {
		db.Close() //nolint:errcheck // Already failing
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", db.Path(), "migrations_applied", applied)
	return db, nil
}

// healthCheck verifies the enabled infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection (nil unless the sqlite backend is used)
//   - mqttClient: MQTT client (nil if disabled)
//   - influxClient: InfluxDB client (nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
