//file: internal/app/setup.go

package app

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"relp-ingest/internal/input"
	"relp-ingest/internal/logger"
	"relp-ingest/internal/metrics"
	"relp-ingest/internal/pipeline"
)

// setupLogger initializes the application logger
func (a *App) setupLogger() error {
	var err error
	a.logger, err = logger.NewLogger(&a.config.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// setupMetrics initializes the metrics system and HTTP server
func (a *App) setupMetrics() error {
	if !a.config.Metrics.Enabled {
		a.logger.Info("metrics disabled")
		return nil
	}

	// Initialize metrics registry
	reg := prometheus.NewRegistry()
	var err error
	a.metrics, err = metrics.NewMetrics(reg)
	if err != nil {
		return fmt.Errorf("failed to create metrics service: %w", err)
	}

	// Parse metrics update interval
	updateInterval, err := time.ParseDuration(a.config.Metrics.UpdateInterval)
	if err != nil {
		return fmt.Errorf("invalid metrics update interval: %w", err)
	}

	// Create and start metrics collector
	a.metricsCollector = metrics.NewMetricsCollector(a.metrics, updateInterval)
	a.metricsCollector.Start()

	// Setup HTTP metrics server
	if err := a.setupMetricsServer(reg); err != nil {
		return fmt.Errorf("failed to setup metrics server: %w", err)
	}

	a.logger.Info("metrics initialized successfully",
		"address", a.config.Metrics.Address,
		"path", a.config.Metrics.Path,
		"updateInterval", updateInterval)

	return nil
}

// setupMetricsServer creates and starts the HTTP metrics server
func (a *App) setupMetricsServer(reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle(a.config.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		Registry:          reg,
		EnableOpenMetrics: true,
	}))

	a.httpServer = &http.Server{
		Addr:    a.config.Metrics.Address,
		Handler: mux,
	}

	// Start server in background
	go func() {
		a.logger.Info("starting metrics server",
			"address", a.config.Metrics.Address,
			"path", a.config.Metrics.Path)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	return nil
}

// setupRouting builds the routing table from the declared ruleset names
func (a *App) setupRouting() error {
	a.table = pipeline.NewTable(a.config.Routing.Default, a.config.Routing.Rulesets)
	a.logger.Info("routing table initialized",
		"rulesets", len(a.config.Routing.Rulesets),
		"default", a.config.Routing.Default)
	return nil
}

// setupPipeline creates the downstream submitter. In "nats" mode events are
// published to a NATS subject per ruleset; in "channel" mode they are handed
// to an in-process queue whose consumer only drains and counts (useful for
// embedding and for running without a broker).
func (a *App) setupPipeline() error {
	switch a.config.Pipeline.Mode {
	case "nats":
		sub, err := pipeline.NewNATSSubmitter(&a.config.Pipeline.NATS, a.logger, a.metrics)
		if err != nil {
			return err
		}
		a.submitter = sub

	case "channel":
		sub, err := pipeline.NewChannelSubmitter(
			a.config.Pipeline.BufferSize,
			a.config.Pipeline.Overflow,
			a.logger,
			a.metrics,
		)
		if err != nil {
			return err
		}
		a.submitter = sub
		a.startChannelDrain(sub)

	default:
		return fmt.Errorf("unknown pipeline mode %q", a.config.Pipeline.Mode)
	}

	a.logger.Info("pipeline initialized", "mode", a.config.Pipeline.Mode)
	return nil
}

// startChannelDrain consumes the channel submitter's queue until it closes.
func (a *App) startChannelDrain(sub *pipeline.ChannelSubmitter) {
	a.drainWG.Add(1)
	go func() {
		defer a.drainWG.Done()
		for msg := range sub.Messages() {
			a.logger.Debug("event drained from pipeline queue",
				"id", msg.ID.String(),
				"from", msg.ReceivedFromIP,
				"bytes", len(msg.RawPayload))
		}
	}()
}

// setupInput loads, checks and activates the listener generation, then
// wraps the resulting engine in the run-loop service.
func (a *App) setupInput() error {
	policy, err := input.ParseErrorPolicy(a.config.Input.OnError)
	if err != nil {
		return err
	}

	a.gens = input.NewGenerations(a.logger)
	callback := input.NewCallback(
		a.config.Input.Name,
		a.gens,
		a.table,
		a.submitter,
		policy,
		a.logger,
		a.metrics,
	)
	a.registrar = input.NewRegistrar(
		a.config.Network,
		callback,
		a.config.Input.MaxFrameSize,
		a.logger,
		a.metrics,
	)

	mc, err := a.gens.LoadFrom(a.config)
	if err != nil {
		return err
	}
	if err := a.gens.Check(mc, a.table); err != nil {
		return err
	}
	if err := a.gens.Activate(mc, a.registrar); err != nil {
		return err
	}

	a.service = input.NewService(a.registrar.Engine(), a.logger, a.metrics)

	a.logger.Info("input activated",
		"input", a.config.Input.Name,
		"listeners", a.registrar.FinalizedCount(),
		"ruleset", mc.Ruleset().Name)
	return nil
}
