//file: internal/relp/listener.go

package relp

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
)

// ErrMissingPort is returned when a listener is finalized without a port.
var ErrMissingPort = errors.New("relp: listener port must be set before finalize")

// Listener is one endpoint of the engine. It is configured between
// construction and finalize and immutable afterwards.
type Listener struct {
	engine *Engine

	port        string
	tlsEnabled  bool
	compression bool
	dhBits      int
	priority    *string
	certFile    string
	keyFile     string
	caFile      string

	tlsConf   *tls.Config
	netLsn    net.Listener
	finalized bool
}

// NewListener constructs an unbound listener attached to the engine. The
// listener does not accept connections until it is finalized.
func (e *Engine) NewListener() *Listener {
	return &Listener{engine: e}
}

// SetPort sets the textual port or service spec to bind to. Required.
func (l *Listener) SetPort(port string) {
	l.port = port
}

// EnableTLS turns on transport encryption for this listener.
func (l *Listener) EnableTLS() {
	l.tlsEnabled = true
}

// EnableTLSCompression turns on per-frame payload compression. Only
// meaningful on a TLS listener.
func (l *Listener) EnableTLSCompression() {
	l.compression = true
}

// SetDHBits selects the key-exchange strength. Zero keeps engine defaults.
func (l *Listener) SetDHBits(bits int) {
	l.dhBits = bits
}

// SetPriority installs the cipher/priority directive. A nil value means
// "not provided" and keeps the engine default priority; it is distinct
// from an empty string, which is rejected at finalize.
func (l *Listener) SetPriority(priority *string) {
	l.priority = priority
}

// SetTLSFiles sets the certificate, key and optional client-CA paths.
func (l *Listener) SetTLSFiles(certFile, keyFile, caFile string) {
	l.certFile = certFile
	l.keyFile = keyFile
	l.caFile = caFile
}

// Port returns the configured bind port.
func (l *Listener) Port() string { return l.port }

// TLSEnabled reports whether transport encryption is on.
func (l *Listener) TLSEnabled() bool { return l.tlsEnabled }

// CompressionEnabled reports whether frame compression is on.
func (l *Listener) CompressionEnabled() bool { return l.compression }

// DHBits returns the configured key-exchange strength.
func (l *Listener) DHBits() int { return l.dhBits }

// Priority returns the configured priority directive, nil if not provided.
func (l *Listener) Priority() *string { return l.priority }

// Addr returns the bound address after finalize, nil before.
func (l *Listener) Addr() net.Addr {
	if l.netLsn == nil {
		return nil
	}
	return l.netLsn.Addr()
}

// FinalizeListener binds the listener socket and adds the listener to the
// engine's accept set. A failure affects only this listener; previously
// finalized listeners stay usable. Must not be called while running.
func (e *Engine) FinalizeListener(l *Listener) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEngineClosed
	}
	if e.running {
		e.mu.Unlock()
		return ErrEngineRunning
	}
	e.mu.Unlock()

	if l.finalized {
		return fmt.Errorf("relp: listener on port %s already finalized", l.port)
	}
	if l.port == "" {
		return ErrMissingPort
	}

	if l.tlsEnabled {
		conf, err := l.buildTLSConfig()
		if err != nil {
			return fmt.Errorf("relp: listener on port %s: %w", l.port, err)
		}
		l.tlsConf = conf
	}

	netLsn, err := net.Listen(e.family, net.JoinHostPort("", l.port))
	if err != nil {
		return fmt.Errorf("relp: cannot bind port %s: %w", l.port, err)
	}
	if l.tlsConf != nil {
		netLsn = tls.NewListener(netLsn, l.tlsConf)
	}
	l.netLsn = netLsn
	l.finalized = true

	e.mu.Lock()
	e.listeners = append(e.listeners, l)
	e.mu.Unlock()

	e.log.Info("listener finalized",
		"port", l.port,
		"addr", netLsn.Addr().String(),
		"tls", l.tlsEnabled,
		"compression", l.compression)
	return nil
}
