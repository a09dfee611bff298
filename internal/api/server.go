package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/gpio-remote-core/internal/audit"
	"github.com/nerrad567/gpio-remote-core/internal/bridges/gpio"
	"github.com/nerrad567/gpio-remote-core/internal/infrastructure/config"
	"github.com/nerrad567/gpio-remote-core/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Controller is the part of the GPIO bridge the API drives.
// *gpio.Bridge satisfies it.
type Controller interface {
	GetMetrics() gpio.BridgeMetrics
	Connections() []gpio.ConnectionStatus
	Items() []gpio.BindingSnapshot
	Item(item string) (gpio.BindingSnapshot, bool)
	HandleCommand(ctx context.Context, item string, cmd gpio.CommandMessage) (gpio.PinEvent, error)
}

// CommandLog lists audited commands. *audit.SQLiteRepository satisfies it.
type CommandLog interface {
	List(ctx context.Context, filter audit.Filter) (*audit.ListResult, error)
}

// StateSource delivers published item states for the live stream.
type StateSource interface {
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Bridge   Controller
	Commands CommandLog  // optional: /commands returns 503 without it
	States   StateSource // optional: the stream carries nothing without it

	// Gatherer backs /metrics. Without one the endpoint serves an empty
	// registry; the process-wide default registry is never read.
	Gatherer prometheus.Gatherer

	Version string
}

// Server is the diagnostics and control HTTP API.
//
// It is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	secCfg    config.SecurityConfig
	logger    *logging.Logger
	bridge    Controller
	commands  CommandLog
	states    StateSource
	gatherer  prometheus.Gatherer
	version   string
	startTime time.Time
	server    *http.Server
	hub       *Hub
	cancel    context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, bridge)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Bridge == nil {
		return nil, fmt.Errorf("bridge is required")
	}

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.NewRegistry()
	}

	return &Server{
		cfg:       deps.Config,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		bridge:    deps.Bridge,
		commands:  deps.Commands,
		states:    deps.States,
		gatherer:  gatherer,
		version:   deps.Version,
		startTime: time.Now(),
		hub:       NewHub(deps.Logger),
	}, nil
}

// Start begins listening for HTTP connections.
//
// It starts the stream hub, subscribes to item state updates for the
// live stream, and launches the HTTP listener in a background goroutine.
// The server can be stopped with Close().
//
// Parameters:
//   - ctx: Context for background goroutines (not the listener lifetime)
//
// Returns:
//   - error: If the state subscription cannot be set up
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)

	if err := s.subscribeStateUpdates(); err != nil {
		s.logger.Warn("failed to subscribe to state updates for the stream", "error", err)
	}

	s.server = s.httpServer()

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// httpServer builds the listener configuration from the API settings.
func (s *Server) httpServer() *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
	}
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
