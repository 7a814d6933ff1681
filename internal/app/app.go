//file: internal/app/app.go

// Package app assembles the RELP input daemon: configuration, logging,
// metrics, the routing table, the downstream submitter, and the listener
// subsystem with its run-loop service.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"relp-ingest/config"
	"relp-ingest/internal/input"
	"relp-ingest/internal/logger"
	"relp-ingest/internal/metrics"
	"relp-ingest/internal/pipeline"
)

// App represents the daemon with all its components
type App struct {
	config           *config.Config
	logger           *logger.Logger
	metrics          *metrics.Metrics
	metricsCollector *metrics.MetricsCollector
	httpServer       *http.Server

	table     *pipeline.Table
	submitter pipeline.Submitter

	gens      *input.Generations
	registrar *input.Registrar
	service   *input.Service

	drainWG sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

// NewApp creates a daemon instance with all components initialized. The
// listener generation is loaded, checked and activated here, before the
// run loop starts: socket binding errors surface at construction time.
func NewApp(cfg *config.Config) (*App, error) {
	app := &App{config: cfg}

	// Initialize components in dependency order
	if err := app.setupLogger(); err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}

	if err := app.setupMetrics(); err != nil {
		return nil, fmt.Errorf("failed to setup metrics: %w", err)
	}

	if err := app.setupRouting(); err != nil {
		return nil, fmt.Errorf("failed to setup routing: %w", err)
	}

	if err := app.setupPipeline(); err != nil {
		return nil, fmt.Errorf("failed to setup pipeline: %w", err)
	}

	if err := app.setupInput(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to setup input: %w", err)
	}

	return app, nil
}

// Run starts the receive loop and waits for shutdown signal
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a.logger.Info("starting RELP input",
		"input", a.config.Input.Name,
		"listeners", a.registrar.FinalizedCount(),
		"pipelineMode", a.config.Pipeline.Mode,
		"metricsEnabled", a.config.Metrics.Enabled)

	return a.service.Run(ctx)
}

// Close gracefully shuts down all application components
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		a.closeErr = a.close()
	})
	return a.closeErr
}

func (a *App) close() error {
	a.logger.Info("closing application components")

	var errs []error

	// Stop the receive loop and unwind sessions first so nothing submits
	// into a closed pipeline.
	if a.service != nil {
		a.service.Stop()
	}
	if a.registrar != nil {
		if eng := a.registrar.Engine(); eng != nil {
			if err := eng.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close engine: %w", err))
			}
		}
	}

	// Close submitter; the channel drain goroutine exits when its queue
	// closes.
	if a.submitter != nil {
		if err := a.submitter.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close submitter: %w", err))
		}
	}
	a.drainWG.Wait()

	// Release the listener generation. The engine was already closed above;
	// generation teardown never touches it.
	if a.gens != nil {
		if active := a.gens.Active(); active != nil {
			a.gens.Free(active)
		}
	}

	// Stop metrics collector
	if a.metricsCollector != nil {
		a.metricsCollector.Stop()
	}

	// Shutdown HTTP server
	if a.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown metrics server: %w", err))
		}
	}

	// Sync logger
	if a.logger != nil {
		if err := a.logger.Sync(); err != nil {
			// Don't add sync errors to the error list as they're often benign
			a.logger.Debug("logger sync completed", "error", err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %v", errs)
	}

	return nil
}
