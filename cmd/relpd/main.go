//file: cmd/relpd/main.go

package main

import (
	"log"
	"time"

	flag "github.com/spf13/pflag"

	"relp-ingest/config"
	"relp-ingest/internal/app"
	"relp-ingest/internal/lifecycle"
	"relp-ingest/internal/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	flags := parseFlags()

	// Bootstrap logger from the initial configuration. The config file is
	// re-read on every reload so a SIGHUP picks up listener and pipeline
	// changes.
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	appLogger, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		return err
	}
	defer appLogger.Sync()

	// Create app factory function; called on startup and on each reload
	createApp := func() (lifecycle.Application, error) {
		cfg, err := loadConfig(flags)
		if err != nil {
			return nil, err
		}
		return app.NewApp(cfg)
	}

	// Run with reload support (handles SIGHUP automatically)
	return lifecycle.RunWithReload(createApp, appLogger)
}

type cliFlags struct {
	configPath      string
	metricsAddr     string
	metricsPath     string
	metricsInterval time.Duration
}

// parseFlags parses command line arguments
func parseFlags() cliFlags {
	var f cliFlags
	flag.StringVar(&f.configPath, "config", "config/config.yaml", "path to config file (YAML or JSON)")

	// Metrics overrides
	flag.StringVar(&f.metricsAddr, "metrics-addr", "", "override metrics server address (empty = use config)")
	flag.StringVar(&f.metricsPath, "metrics-path", "", "override metrics endpoint path (empty = use config)")
	flag.DurationVar(&f.metricsInterval, "metrics-interval", 0, "override metrics collection interval (0 = use config)")

	flag.Parse()
	return f
}

// loadConfig loads configuration and applies command line overrides
func loadConfig(f cliFlags) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	cfg.ApplyOverrides(f.metricsAddr, f.metricsPath, f.metricsInterval)
	return cfg, nil
}
