// GPIO remote runtime.
//
// gpioremote keeps one WebSocket connection per networked GPIO device
// server, turns item commands from MQTT or the HTTP API into pin events,
// and routes device telemetry back to item state on the MQTT bus.
//
// For the binding grammar and command tokens, see internal/bridges/gpio.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	_ "github.com/nerrad567/gpio-remote-core/migrations"

	"github.com/nerrad567/gpio-remote-core/internal/api"
	"github.com/nerrad567/gpio-remote-core/internal/audit"
	"github.com/nerrad567/gpio-remote-core/internal/bridges/gpio"
	"github.com/nerrad567/gpio-remote-core/internal/infrastructure/config"
	"github.com/nerrad567/gpio-remote-core/internal/infrastructure/database"
	"github.com/nerrad567/gpio-remote-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/gpio-remote-core/internal/infrastructure/logging"
	"github.com/nerrad567/gpio-remote-core/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// newRootCommand builds the CLI. The root command runs the service.
func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "gpioremote",
		Short:        "Bridge networked GPIO device servers to an MQTT command and state bus",
		Version:      fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Cancel on Ctrl+C or SIGTERM; SIGHUP is handled by run.
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return run(ctx, configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", getConfigPath(),
		"configuration file (default from GPIOREMOTE_CONFIG)")

	root.AddCommand(
		newTokenCommand(&configPath),
		newValidateCommand(&configPath),
	)
	return root
}

// getConfigPath returns the configuration file path.
// Uses GPIOREMOTE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GPIOREMOTE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// run is the service, separated from main for testability.
//
// Parameters:
//   - ctx: Cancelled on shutdown signals
//   - configPath: YAML configuration file
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, configPath string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting gpioremote",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Bad bindings are a startup error, before any connection is made.
	items, err := gpio.LoadItems(cfg.GPIO.ItemsFile)
	if err != nil {
		return fmt.Errorf("loading items: %w", err)
	}
	registry := gpio.NewRegistry(items)
	log.Info("items loaded",
		"path", cfg.GPIO.ItemsFile,
		"items", registry.Len(),
		"endpoints", len(registry.Endpoints()),
	)

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	commandLog := audit.NewSQLiteRepository(db.DB)
	recorder := startRecorder(commandLog, log)
	defer func() {
		log.Info("flushing command log")
		recorder.Stop()
	}()

	mqttClient, err := mqtt.Connect(cfg.MQTT, cfg.Bridge.ID)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", mqttClient.ClientID(),
	)

	// Telemetry history is optional.
	var influxClient *influxdb.Client
	var readings gpio.ReadingRecorder
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB, cfg.Bridge.ID)
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
		readings = influxRecorder{client: influxClient}
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	bus := &mqttBridgeAdapter{client: mqttClient}

	bridge, err := gpio.NewBridge(gpio.BridgeOptions{
		BridgeID:   cfg.Bridge.ID,
		Version:    version,
		MQTTClient: bus,
		QoS:        byte(cfg.MQTT.QoS),
		Registry:   registry,
		Factory: gpio.WebSocketFactory(gpio.DialerConfig{
			Scheme:           cfg.GPIO.Scheme,
			Path:             cfg.GPIO.Path,
			HandshakeTimeout: cfg.GetConnectTimeout(),
			WriteTimeout:     cfg.GetDeviceWriteTimeout(),
			Logger:           log,
		}),
		RefreshInterval: cfg.GetRefreshInterval(),
		HealthInterval:  cfg.GetHealthInterval(),
		Readings:        readings,
		Commands:        recorder,
		Logger:          log,
	})
	if err != nil {
		return fmt.Errorf("creating GPIO bridge: %w", err)
	}
	metrics := prometheus.NewRegistry()
	metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := bridge.RegisterMetrics(metrics); err != nil {
		return err
	}

	if err := bridge.Start(ctx); err != nil {
		return fmt.Errorf("starting GPIO bridge: %w", err)
	}
	defer func() {
		log.Info("stopping GPIO bridge")
		bridge.Stop()
	}()

	if cfg.API.Enabled {
		server, apiErr := api.New(api.Deps{
			Config:   cfg.API,
			Security: cfg.Security,
			Logger:   log,
			Bridge:   bridge,
			Commands: commandLog,
			States:   bus,
			Gatherer: metrics,
			Version:  version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	var current gpio.Provider = items
	for {
		select {
		case <-ctx.Done():
			log.Info("shutdown signal received, cleaning up")
			// Deferred calls run in reverse: API, bridge, InfluxDB,
			// MQTT, command log, database.
			return nil
		case <-hup:
			next, err := reloadItems(cfg.GPIO.ItemsFile, registry, current)
			if err != nil {
				log.Error("items reload failed, keeping previous bindings", "error", err)
				continue
			}
			current = next
			bridge.Refresh()
			log.Info("items reloaded",
				"items", registry.Len(),
				"endpoints", len(registry.Endpoints()),
			)
			if influxClient != nil {
				influxClient.WriteItemsReload(registry.Len(), len(registry.Endpoints()))
			}
		}
	}
}

// startRecorder starts the command log writer. It is not tied to the run
// context: the writer outlives the shutdown signal, and the deferred Stop
// drains what the bridge queued while stopping.
func startRecorder(repo audit.Repository, log audit.Logger) *audit.Recorder {
	recorder := audit.NewRecorder(repo, log)
	recorder.Start(context.Background())
	return recorder
}

// reloadItems swaps the items file provider in registry. The new set is
// added before the old one is removed so lookups never see an empty
// registry. On error the registry is untouched.
func reloadItems(path string, registry *gpio.Registry, current gpio.Provider) (gpio.Provider, error) {
	next, err := gpio.LoadItems(path)
	if err != nil {
		return nil, err
	}
	registry.AddProvider(next)
	registry.RemoveProvider(current)
	return next, nil
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	// Device connections are not checked: an unreachable device degrades
	// health but never blocks startup.
	return nil
}
