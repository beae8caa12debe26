package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-runtime/internal/binding"
	"github.com/nerrad567/gray-logic-runtime/internal/component"
	"github.com/nerrad567/gray-logic-runtime/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-runtime/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-runtime/internal/presence"
	"github.com/nerrad567/gray-logic-runtime/internal/rpc"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// remoteCallTimeout bounds a procedure call forwarded to another instance.
const remoteCallTimeout = 10 * time.Second

// Runtime reports runtime-wide status for the health and system endpoints.
// *manager.Manager satisfies it.
type Runtime interface {
	BindingsEnabled() bool
	Skipped(ctx context.Context) (map[string]string, error)
	LiveComponents(ctx context.Context) ([]component.Info, error)
	BindingStatuses(ctx context.Context) ([]binding.Status, error)
}

// Presence lists runtime instances seen on the bus. *presence.Tracker
// satisfies it.
type Presence interface {
	Available() bool
	Peers() []presence.Peer
}

// Remote invokes procedures on another runtime instance. *rpc.Caller
// satisfies it.
type Remote interface {
	Call(ctx context.Context, instance, method string, params, out any) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Instance string
	Version  string

	// Procedures is the procedure table every REST route dispatches to.
	Procedures *rpc.Server

	Runtime Runtime

	// Optional.
	Presence     Presence
	Bus          Bus
	Remote       Remote
	DB           DBStats
	Metrics      http.Handler
	Hub          *Hub
	CallObserver func(method, code string)
}

// Server is the HTTP API server for the component runtime.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	secCfg     config.SecurityConfig
	logger     *logging.Logger
	instance   string
	version    string
	procedures *rpc.Server
	runtime    Runtime
	presence   Presence
	bus        Bus
	remote     Remote
	db         DBStats
	metrics    http.Handler
	observer   func(method, code string)
	tickets    *ticketStore
	startTime  time.Time

	server *http.Server
	hub    *Hub
	cancel context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Procedures == nil {
		return nil, fmt.Errorf("procedure table is required")
	}
	if deps.Runtime == nil {
		return nil, fmt.Errorf("runtime is required")
	}

	hub := deps.Hub
	if hub == nil {
		hub = NewHub(deps.WS, deps.Logger)
	}

	return &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		secCfg:     deps.Security,
		logger:     deps.Logger,
		instance:   deps.Instance,
		version:    deps.Version,
		procedures: deps.Procedures,
		runtime:    deps.Runtime,
		presence:   deps.Presence,
		bus:        deps.Bus,
		remote:     deps.Remote,
		db:         deps.DB,
		metrics:    deps.Metrics,
		observer:   deps.CallObserver,
		tickets:    newTicketStore(),
		startTime:  time.Now(),
		hub:        hub,
	}, nil
}

// Hub returns the WebSocket hub, for wiring event observers.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the routed HTTP handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections.
//
// The listener is bound before Start returns, so a port that is in use is
// reported here rather than logged later.
//
// Parameters:
//   - ctx: Parent context for background goroutines (hub, ticket cleanup)
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	go s.cleanTicketsLoop(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("listening on %s: %w", s.server.Addr, err)
	}

	s.logger.Info("API server starting", "address", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
