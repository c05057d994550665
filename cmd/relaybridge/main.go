// relaybridge connects a Wink Relay wall switch to an MQTT broker.
//
// Button presses, relay state and sensor readings are published under a
// configurable topic prefix; relay and screen commands are accepted from
// the broker. See internal/bridges/relay for the topic scheme.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/relay-bridge/migrations"

	"github.com/nerrad567/relay-bridge/internal/api"
	"github.com/nerrad567/relay-bridge/internal/bridges/relay"
	"github.com/nerrad567/relay-bridge/internal/device"
	"github.com/nerrad567/relay-bridge/internal/device/sim"
	"github.com/nerrad567/relay-bridge/internal/infrastructure/config"
	"github.com/nerrad567/relay-bridge/internal/infrastructure/database"
	"github.com/nerrad567/relay-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/relay-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/relay-bridge/internal/netprobe"
	"github.com/nerrad567/relay-bridge/internal/process"
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
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Any error it returns is a startup failure; once the bridge is running it
// only returns when ctx is cancelled.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting relay bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
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

	if len(cfg.Device.StartupCommands) > 0 {
		runner := process.NewRunner(log.Component("startup"))
		if err := runner.RunAll(ctx, process.CommandsFromArgv(cfg.Device.StartupCommands)); err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("running startup commands: %w", ctx.Err())
			}
			log.Warn("startup commands failed, continuing", "error", err)
		}
	}

	probe := netprobe.New(netprobe.Config{
		Address: cfg.Probe.Address,
		Port:    cfg.Probe.Port,
		Count:   cfg.Probe.Count,
		Wait:    time.Duration(cfg.Probe.Wait) * time.Second,
	}, log.Component("netprobe"))
	if err := probe.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for network: %w", err)
	}

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	applied, _, err := db.GetMigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}
	log.Info("database ready", "path", db.Path(), "migrations_applied", len(applied))

	driver, err := newDriver(ctx, cfg.Device, device.NewSQLiteStateRepository(db.DB), log.Component("device"))
	if err != nil {
		return fmt.Errorf("creating device driver: %w", err)
	}

	bridgeCfg := relay.ConfigFrom(cfg)
	mqttClient := mqtt.NewClient(cfg.MQTT, relay.StatusTopic(bridgeCfg.TopicPrefix))
	mqttClient.SetLogger(log.Component("mqtt"))

	bridge, err := relay.NewBridge(relay.Options{
		Config:    bridgeCfg,
		Device:    driver,
		Transport: mqttClient,
		Logger:    log.Component("bridge"),
	})
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}

	if cfg.API.Enabled {
		srv, err := startAPI(ctx, cfg.API, log, bridge, driver, db, mqttClient)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	log.Info("connecting to broker",
		"address", cfg.MQTT.Address,
		"client_id", cfg.MQTT.ClientID,
	)
	if err := bridge.Run(ctx); err != nil {
		if errors.Is(err, relay.ErrConnectFailed) {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		return err
	}

	log.Info("shutdown complete")
	return nil
}

// newDriver builds the configured device driver.
func newDriver(ctx context.Context, cfg config.DeviceConfig, repo device.StateRepository, log *logging.Logger) (device.Driver, error) {
	switch cfg.Driver {
	case "sim":
		return sim.New(ctx, sim.Options{
			ScreenTimeout:      time.Duration(cfg.ScreenTimeout) * time.Second,
			ProximityThreshold: cfg.ProximityThreshold,
			SensorInterval:     time.Duration(cfg.SensorInterval) * time.Second,
			Repository:         repo,
			Logger:             log,
		})
	default:
		return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}
}

// startAPI starts the status API. Simulation endpoints are enabled when the
// driver accepts synthetic input.
func startAPI(ctx context.Context, cfg config.APIConfig, log *logging.Logger, bridge *relay.Bridge, driver device.Driver, db *database.DB, broker *mqtt.Client) (*api.Server, error) {
	deps := api.Deps{
		Config:   cfg,
		Logger:   log.Component("api"),
		Bridge:   bridge,
		Database: db,
		Broker:   broker,
		Version:  version,
	}
	if inj, ok := driver.(device.Injector); ok {
		deps.Injector = inj
	}

	srv, err := api.New(deps)
	if err != nil {
		return nil, fmt.Errorf("creating API server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting API server: %w", err)
	}
	return srv, nil
}

// getConfigPath returns the configuration file path.
// Checks RELAYBRIDGE_CONFIG environment variable first, then uses default.
func getConfigPath() string {
	if path := os.Getenv("RELAYBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
