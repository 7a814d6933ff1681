//file: internal/input/module.go

// Package input implements the RELP listener subsystem: per-generation
// module configuration, listener registration against the shared protocol
// engine, the receive callback that turns deliveries into pipeline
// messages, and the run-loop service with its cooperative stop protocol.
package input

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"relp-ingest/config"
	"relp-ingest/internal/logger"
	"relp-ingest/internal/pipeline"
)

// ConfigState tracks a ModuleConfig generation through its lifecycle.
type ConfigState int

const (
	ConfigLoading ConfigState = iota
	ConfigChecked
	ConfigActive
	ConfigFreed
)

// ErrLoadInProgress is returned when a second load generation is begun
// before the first finished.
var ErrLoadInProgress = errors.New("input: a config load is already in progress")

// ErrNoValidListeners is returned at activation when not a single listener
// could be registered.
var ErrNoValidListeners = errors.New("input: no valid listeners, refusing to run")

// ConfigError describes a configuration problem scoped to one listener or
// parameter. It aborts only the offending listener, never the module.
type ConfigError struct {
	Listener string
	Param    string
	Reason   string
}

func (e *ConfigError) Error() string {
	if e.Listener == "" {
		return fmt.Sprintf("input: parameter %q: %s", e.Param, e.Reason)
	}
	return fmt.Sprintf("input: listener %q, parameter %q: %s", e.Listener, e.Param, e.Reason)
}

// ModuleConfig is one configuration generation: the ordered listener list
// plus the single shared routing target. All listeners of a generation bind
// to the same target; the engine is shared, so per-listener routing is not
// supported.
type ModuleConfig struct {
	listeners   []config.ListenerConfig
	rulesetName string
	ruleset     *pipeline.Ruleset
	state       ConfigState
}

// AddListener appends a structured listener definition. A missing port is a
// configuration error that aborts only this listener.
func (mc *ModuleConfig) AddListener(lc config.ListenerConfig) error {
	if mc.state != ConfigLoading {
		return fmt.Errorf("input: cannot add listener in state %d", mc.state)
	}
	if lc.Port == "" {
		return &ConfigError{Param: "port", Reason: "port must be specified, listener ignored"}
	}
	mc.listeners = append(mc.listeners, lc)
	return nil
}

// AddPort appends a listener via the legacy single-value form: just a port,
// every other option at its default.
func (mc *ModuleConfig) AddPort(port string) error {
	return mc.AddListener(config.ListenerConfig{Port: port})
}

// Listeners returns the listener list in declaration order.
func (mc *ModuleConfig) Listeners() []config.ListenerConfig {
	return mc.listeners
}

// Ruleset returns the resolved routing target, nil before Check.
func (mc *ModuleConfig) Ruleset() *pipeline.Ruleset {
	return mc.ruleset
}

// State returns the generation's lifecycle state.
func (mc *ModuleConfig) State() ConfigState {
	return mc.state
}

// Generations is the explicit registry of module-config generations. At
// most two exist concurrently: one loading and one active. Promotion
// happens only during single-threaded setup; the active pointer is read by
// every receive-callback invocation.
type Generations struct {
	log *logger.Logger

	mu      sync.Mutex
	loading *ModuleConfig
	active  atomic.Pointer[ModuleConfig]
}

// NewGenerations creates an empty generation registry.
func NewGenerations(log *logger.Logger) *Generations {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Generations{log: log}
}

// BeginLoad starts a new load generation. Only one may load at a time.
func (g *Generations) BeginLoad() (*ModuleConfig, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.loading != nil {
		return nil, ErrLoadInProgress
	}
	g.loading = &ModuleConfig{state: ConfigLoading}
	return g.loading, nil
}

// LoadFrom assembles a load generation from the validated configuration.
// Both the structured listener blocks and the legacy port shorthand append
// to the same list; a bad listener is reported and skipped.
func (g *Generations) LoadFrom(cfg *config.Config) (*ModuleConfig, error) {
	mc, err := g.BeginLoad()
	if err != nil {
		return nil, err
	}
	mc.rulesetName = cfg.Routing.Target

	for i, lc := range cfg.Input.Listeners {
		if err := mc.AddListener(lc); err != nil {
			g.log.Warn("skipping invalid listener", "index", i, "error", err)
		}
	}
	for _, port := range cfg.Input.Ports {
		if err := mc.AddPort(port); err != nil {
			g.log.Warn("skipping invalid legacy listener", "port", port, "error", err)
		}
	}
	return mc, nil
}

// Check resolves the routing-target name against the table. An unknown name
// is a warning and falls back to the default target; it never aborts the
// check.
func (g *Generations) Check(mc *ModuleConfig, table *pipeline.Table) error {
	if mc.state != ConfigLoading {
		return fmt.Errorf("input: check requires a loading generation, got state %d", mc.state)
	}

	if mc.rulesetName == "" {
		mc.ruleset = table.Default()
	} else {
		rs, err := table.Resolve(mc.rulesetName)
		if errors.Is(err, pipeline.ErrRulesetNotFound) {
			g.log.Warn("ruleset not found, using default ruleset instead",
				"ruleset", mc.rulesetName)
			rs = table.Default()
		} else if err != nil {
			return fmt.Errorf("input: ruleset lookup failed: %w", err)
		}
		mc.ruleset = rs
	}

	mc.state = ConfigChecked
	return nil
}

// Activate registers every listener of a checked generation and promotes it
// to the generation consulted by the receive callback. Engine-stage
// failures abort activation; per-listener failures are isolated, but zero
// surviving listeners means the module refuses to run. Must complete before
// the run loop starts (and before privilege reduction, where the host
// process supports it: socket binding may need elevated rights).
func (g *Generations) Activate(mc *ModuleConfig, reg *Registrar) error {
	if mc.state != ConfigChecked {
		return fmt.Errorf("input: activate requires a checked generation, got state %d", mc.state)
	}

	for i, lc := range mc.listeners {
		if err := reg.Register(lc); err != nil {
			if errors.Is(err, ErrEngineSetup) {
				return err
			}
			g.log.Error("listener registration failed",
				"index", i,
				"port", lc.Port,
				"error", err)
		}
	}
	if reg.FinalizedCount() == 0 {
		return ErrNoValidListeners
	}

	mc.state = ConfigActive
	g.active.Store(mc)

	g.mu.Lock()
	if g.loading == mc {
		g.loading = nil
	}
	g.mu.Unlock()
	return nil
}

// Active returns the generation consulted by the receive callback, nil if
// none has been promoted yet.
func (g *Generations) Active() *ModuleConfig {
	return g.active.Load()
}

// Free releases a generation's listener definitions. The protocol engine is
// not freed here: it outlives config generations and is destroyed only at
// module teardown.
func (g *Generations) Free(mc *ModuleConfig) {
	g.mu.Lock()
	if g.loading == mc {
		g.loading = nil
	}
	g.mu.Unlock()
	g.active.CompareAndSwap(mc, nil)
	mc.listeners = nil
	mc.ruleset = nil
	mc.state = ConfigFreed
}
