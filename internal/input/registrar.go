//file: internal/input/registrar.go

package input

import (
	"errors"
	"fmt"

	"relp-ingest/config"
	"relp-ingest/internal/logger"
	"relp-ingest/internal/metrics"
	"relp-ingest/internal/relp"
)

// ErrEngineSetup marks a failure while constructing or configuring the
// shared engine. It is fatal: without a usable engine no pending listener
// can be registered.
var ErrEngineSetup = errors.New("input: engine setup failed")

// Registrar builds per-listener protocol-engine listeners and lazily
// constructs the shared engine on the first registration. It must only be
// used during single-threaded setup, never concurrently and never while
// the engine is running.
type Registrar struct {
	log          *logger.Logger
	metrics      *metrics.Metrics
	network      config.NetworkConfig
	callback     *Callback
	maxFrameSize int

	engine    *relp.Engine
	finalized int
}

// NewRegistrar creates a registrar. metrics may be nil.
func NewRegistrar(network config.NetworkConfig, cb *Callback, maxFrameSize int, log *logger.Logger, m *metrics.Metrics) *Registrar {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Registrar{
		log:          log,
		metrics:      m,
		network:      network,
		callback:     cb,
		maxFrameSize: maxFrameSize,
	}
}

// Register constructs and finalizes one listener. The shared engine is
// constructed on the first call and configured exactly once, before any
// listener is added: debug sink, address family, the required syslog
// command, the receive callback, and reverse-DNS mode unless DNS is
// disabled by global network policy.
func (r *Registrar) Register(lc config.ListenerConfig) error {
	if r.engine == nil {
		eng := relp.NewEngine(r.log)
		if err := eng.SetAddressFamily(listenNetwork(r.network.Family)); err != nil {
			return fmt.Errorf("%w: %v", ErrEngineSetup, err)
		}
		eng.EnableCommand(relp.CmdSyslog, relp.CommandRequired)
		eng.SetReceiveHandler(r.callback.OnReceive)
		if !r.network.DisableDNS {
			eng.SetDNSLookup(true)
		}
		eng.SetMaxFrameSize(r.maxFrameSize)
		r.engine = eng
	}

	if lc.Port == "" {
		return &ConfigError{Param: "port", Reason: "port must be specified, listener ignored"}
	}

	lsn := r.engine.NewListener()
	lsn.SetPort(lc.Port)
	if lc.TLS.Enable {
		lsn.EnableTLS()
		if lc.TLS.Compression {
			lsn.EnableTLSCompression()
		}
		if lc.TLS.DHBits > 0 {
			lsn.SetDHBits(lc.TLS.DHBits)
		}
		// An absent priority string passes through as absent; the engine
		// default applies. It is never coerced to an empty string.
		lsn.SetPriority(lc.TLS.PriorityString)
		lsn.SetTLSFiles(lc.TLS.CertFile, lc.TLS.KeyFile, lc.TLS.CAFile)
	}

	if err := r.engine.FinalizeListener(lsn); err != nil {
		return fmt.Errorf("input: listener on port %q: %w", lc.Port, err)
	}
	r.finalized++
	if r.metrics != nil {
		r.metrics.SetListenersActive(float64(r.finalized))
	}
	return nil
}

// Engine returns the shared engine, nil before the first registration.
func (r *Registrar) Engine() *relp.Engine {
	return r.engine
}

// FinalizedCount reports how many listeners registered successfully.
func (r *Registrar) FinalizedCount() int {
	return r.finalized
}

// listenNetwork maps the global address-family preference onto a listen
// network name.
func listenNetwork(family string) string {
	switch family {
	case "ipv4":
		return "tcp4"
	case "ipv6":
		return "tcp6"
	default:
		return "tcp"
	}
}
