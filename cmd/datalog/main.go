// Datalog Core - Karabo historic data services
//
// This is the main entry point for the datalog service bundle. One
// process hosts:
//   - the data log reader (property history and configuration-from-past
//     slots backed by the time-series store)
//   - the logger-map registry broadcast (device -> reader routing)
//   - the project database (domains, versioned items, load/save slots)
//   - the archive write path (device signals into the time-series store,
//     optional)
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/datalog-core/migrations"

	"github.com/nerrad567/datalog-core/internal/archiver"
	"github.com/nerrad567/datalog-core/internal/influx"
	"github.com/nerrad567/datalog-core/internal/infrastructure/config"
	"github.com/nerrad567/datalog-core/internal/infrastructure/database"
	"github.com/nerrad567/datalog-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/datalog-core/internal/infrastructure/logging"
	"github.com/nerrad567/datalog-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/datalog-core/internal/manager"
	"github.com/nerrad567/datalog-core/internal/project"
	"github.com/nerrad567/datalog-core/internal/reader"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// loggerMapRefreshInterval is how often the registry rescans the store
// for new device measurements.
const loggerMapRefreshInterval = time.Minute

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Datalog Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open the project database
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

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Project store on top of the database
	projectRepo := project.NewSQLiteRepository(db.DB)
	projectStore := project.NewStore(projectRepo, cfg.Project.DefaultDomain)
	projectStore.SetLogger(log)
	log.Info("project store initialised", "default_domain", cfg.Project.DefaultDomain)

	// Connect to the time-series store (read path)
	store := influx.New(cfg.Influx)
	if err := store.Connect(ctx); err != nil {
		return fmt.Errorf("connecting to time-series store: %w", err)
	}
	log.Info("time-series store connected",
		"url", cfg.Influx.URL,
		"database", cfg.Influx.Database,
	)

	readerSvc := reader.New(store, cfg.Reader, log)

	// Logger-map registry: which reader instance archives which device
	registry := manager.NewRegistry(store, cfg.Influx.Database, cfg.Service.ID)
	registry.SetLogger(log)

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
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

	// Set up MQTT logging callbacks
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	qos := byte(cfg.MQTT.QoS)

	// Publish the logger map as a retained signal; wire the broadcast
	// before the first refresh so the initial map goes out too.
	manager.Broadcast(registry, mqttClient, cfg.Service.ID, qos)
	if refreshErr := registry.Refresh(ctx); refreshErr != nil {
		return fmt.Errorf("loading logger map: %w", refreshErr)
	}
	log.Info("logger map initialised", "devices", len(registry.Snapshot()))

	// Periodic rescan picks up devices that start logging after boot
	go func() {
		ticker := time.NewTicker(loggerMapRefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if refreshErr := registry.Refresh(ctx); refreshErr != nil {
					log.Warn("logger map refresh failed", "error", refreshErr)
				}
			}
		}
	}()

	// Serve the slot surface
	responder := mqtt.NewResponder(mqttClient, cfg.Service.ID, qos)
	defer func() {
		if closeErr := responder.Close(); closeErr != nil {
			log.Error("error closing responder", "error", closeErr)
		}
	}()
	if err := reader.RegisterSlots(responder, readerSvc); err != nil {
		return fmt.Errorf("registering reader slots: %w", err)
	}
	if err := project.RegisterSlots(responder, projectStore); err != nil {
		return fmt.Errorf("registering project slots: %w", err)
	}
	log.Info("slot surface registered", "instance_id", cfg.Service.ID)

	// Archive write path (optional)
	var archClient *influxdb.Client
	if cfg.Archiver.Enabled {
		archClient, err = influxdb.Connect(cfg.Influx, cfg.Archiver)
		if err != nil {
			return fmt.Errorf("connecting archive writer: %w", err)
		}
		defer func() {
			log.Info("closing archive writer")
			if closeErr := archClient.Close(); closeErr != nil {
				log.Error("error closing archive writer", "error", closeErr)
			}
		}()
		archClient.SetOnError(func(err error) {
			log.Error("archive write error", "error", err)
		})

		arch := archiver.New(archClient)
		arch.SetLogger(log)
		if listenErr := archiver.Listen(arch, mqttClient, qos); listenErr != nil {
			return fmt.Errorf("subscribing archiver: %w", listenErr)
		}
		log.Info("archiver listening",
			"batch_size", cfg.Archiver.BatchSize,
			"flush_interval", cfg.Archiver.FlushInterval,
		)
	} else {
		log.Info("archiver disabled")
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, readerSvc, archClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. Archive writer (if enabled)
	// 2. Responder, MQTT
	// 3. Database

	log.Info("Datalog Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses DATALOG_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("DATALOG_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// archClient may be nil when the archiver is disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, readerSvc *reader.Service, archClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	// The reader check exercises the store query path end to end.
	if err := readerSvc.HealthCheck(ctx); err != nil {
		return fmt.Errorf("reader: %w", err)
	}

	if archClient != nil {
		if err := archClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("archive writer: %w", err)
		}
	}

	return nil
}
