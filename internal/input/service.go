//file: internal/input/service.go

package input

import (
	"context"
	"fmt"
	"sync/atomic"

	"relp-ingest/internal/logger"
	"relp-ingest/internal/metrics"
	"relp-ingest/internal/relp"
)

// RunState is the run-loop state machine: Idle -> Running -> StopRequested
// -> Stopped. Stopped is terminal; running again requires a fresh engine.
type RunState int32

const (
	RunIdle RunState = iota
	RunRunning
	RunStopRequested
	RunStopped
)

// Service owns the blocking receive loop. The engine's run primitive is
// executed on a dedicated goroutine; Stop (or context cancellation) asks
// the engine to stop via its idempotent, asynchronously safe request-stop
// entry point, so no wakeup is lost regardless of whether the loop has
// entered its wait yet.
type Service struct {
	engine  *relp.Engine
	log     *logger.Logger
	metrics *metrics.Metrics
	state   atomic.Int32
}

// NewService wraps a fully registered engine. metrics may be nil.
func NewService(engine *relp.Engine, log *logger.Logger, m *metrics.Metrics) *Service {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Service{engine: engine, log: log, metrics: m}
}

// State returns the current run-loop state.
func (s *Service) State() RunState {
	return RunState(s.state.Load())
}

// Run executes the blocking receive loop until a stop is requested or the
// engine fails. A stop requested before Run is honored immediately: the
// loop returns without having received anything.
func (s *Service) Run(ctx context.Context) error {
	switch s.State() {
	case RunRunning:
		return fmt.Errorf("input: run loop already running")
	case RunStopped:
		return fmt.Errorf("input: run loop finished; a fresh engine is required to run again")
	}

	s.state.Store(int32(RunRunning))
	s.setEngineStateMetric(metrics.EngineStateRunning)
	s.log.Info("entering receive loop", "listeners", s.engine.NumListeners())

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.engine.Run()
	}()

	var err error
	select {
	case <-ctx.Done():
		s.Stop()
		err = <-errCh
	case err = <-errCh:
	}

	s.state.Store(int32(RunStopped))
	s.setEngineStateMetric(metrics.EngineStateStopped)
	if err != nil {
		s.log.Error("receive loop ended with error", "error", err)
		return err
	}
	s.log.Debug("receive loop ended")
	return nil
}

// Stop requests termination of the receive loop. It is idempotent and safe
// to call at any point: before the loop has started waiting, while it is
// blocked, or after a stop was already requested.
func (s *Service) Stop() {
	s.state.CompareAndSwap(int32(RunIdle), int32(RunStopRequested))
	s.state.CompareAndSwap(int32(RunRunning), int32(RunStopRequested))
	s.setEngineStateMetric(metrics.EngineStateStopRequested)
	s.log.Debug("termination requested, telling engine to stop")
	s.engine.RequestStop()
}

func (s *Service) setEngineStateMetric(state float64) {
	if s.metrics != nil {
		s.metrics.SetEngineState(state)
	}
}
