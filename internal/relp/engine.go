//file: internal/relp/engine.go

package relp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"relp-ingest/internal/logger"
)

// DefaultMaxFrameSize bounds a single frame payload unless overridden.
const DefaultMaxFrameSize = 128 * 1024

// dnsLookupTimeout bounds the reverse-DNS lookup per new session.
const dnsLookupTimeout = 2 * time.Second

var (
	// ErrNoListeners is returned by Run when no listener was finalized.
	ErrNoListeners = errors.New("relp: no finalized listeners")
	// ErrEngineClosed is returned for operations on a destructed engine.
	ErrEngineClosed = errors.New("relp: engine closed")
	// ErrEngineRunning is returned when setup is attempted mid-run.
	ErrEngineRunning = errors.New("relp: engine already running")
	// ErrNoReceiveHandler is returned by Run when no handler is installed.
	ErrNoReceiveHandler = errors.New("relp: no receive handler installed")
)

// CommandState controls whether a protocol command may carry events.
type CommandState int

const (
	CommandForbidden CommandState = iota
	CommandAllowed
	CommandRequired
)

// ReceiveFunc is invoked synchronously for every fully received event.
// Returning a non-nil error rejects the event and terminates the delivering
// session; returning nil acknowledges the event and continues.
type ReceiveFunc func(host, ip string, payload []byte) error

// Engine is the shared protocol engine. It is constructed once, configured
// exactly once immediately after construction (command set, address family,
// DNS mode, receive handler), then populated with listeners and run.
// Configuration and listener registration are single-threaded setup
// operations; only RequestStop is safe to call concurrently with Run.
type Engine struct {
	log          *logger.Logger
	family       string
	dnsLookup    bool
	commands     map[string]CommandState
	recv         ReceiveFunc
	maxFrameSize int

	mu        sync.Mutex
	listeners []*Listener
	sessions  map[net.Conn]struct{}
	running   bool
	closed    bool

	stopCh    chan struct{}
	stopOnce  sync.Once
	sessionWG sync.WaitGroup
}

// NewEngine constructs an engine with default settings: dual-stack TCP, no
// DNS lookups, no event commands enabled.
func NewEngine(log *logger.Logger) *Engine {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Engine{
		log:          log,
		family:       "tcp",
		commands:     make(map[string]CommandState),
		maxFrameSize: DefaultMaxFrameSize,
		sessions:     make(map[net.Conn]struct{}),
		stopCh:       make(chan struct{}),
	}
}

// SetAddressFamily selects the listen network: tcp, tcp4 or tcp6.
func (e *Engine) SetAddressFamily(family string) error {
	switch family {
	case "tcp", "tcp4", "tcp6":
		e.family = family
		return nil
	default:
		return fmt.Errorf("relp: unsupported address family %q", family)
	}
}

// SetDNSLookup enables reverse-DNS resolution of peer addresses. When
// disabled, the peer IP doubles as the peer hostname.
func (e *Engine) SetDNSLookup(enabled bool) {
	e.dnsLookup = enabled
}

// EnableCommand sets the acceptance state of an event-bearing command.
// Required commands must be offered by every connecting client.
func (e *Engine) EnableCommand(name string, state CommandState) {
	e.commands[name] = state
}

// SetReceiveHandler installs the event callback. Must be set before Run.
func (e *Engine) SetReceiveHandler(fn ReceiveFunc) {
	e.recv = fn
}

// SetMaxFrameSize overrides the per-frame payload bound.
func (e *Engine) SetMaxFrameSize(n int) {
	if n > 0 {
		e.maxFrameSize = n
	}
}

// NumListeners reports how many listeners have been finalized.
func (e *Engine) NumListeners() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners)
}

// Listeners returns the finalized listeners in registration order.
func (e *Engine) Listeners() []*Listener {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Listener(nil), e.listeners...)
}

// Run enters the blocking receive loop: it accepts sessions on every
// finalized listener and invokes the receive handler per event. It returns
// nil after RequestStop (including a stop requested before Run was entered)
// or the first unrecoverable listener error.
func (e *Engine) Run() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEngineClosed
	}
	if e.running {
		e.mu.Unlock()
		return ErrEngineRunning
	}
	if e.recv == nil {
		e.mu.Unlock()
		return ErrNoReceiveHandler
	}
	if len(e.listeners) == 0 {
		e.mu.Unlock()
		return ErrNoListeners
	}

	// A stop requested before the loop entered its wait must win without
	// accepting a single session.
	select {
	case <-e.stopCh:
		listeners := append([]*Listener(nil), e.listeners...)
		e.mu.Unlock()
		closeListeners(listeners)
		return nil
	default:
	}

	e.running = true
	listeners := append([]*Listener(nil), e.listeners...)
	e.mu.Unlock()

	errCh := make(chan error, len(listeners))
	var acceptWG sync.WaitGroup
	for _, l := range listeners {
		acceptWG.Add(1)
		go func(l *Listener) {
			defer acceptWG.Done()
			e.acceptLoop(l, errCh)
		}(l)
	}

	var runErr error
	select {
	case <-e.stopCh:
	case runErr = <-errCh:
		e.RequestStop()
	}

	closeListeners(listeners)
	acceptWG.Wait()
	e.closeSessions()
	e.sessionWG.Wait()

	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
	return runErr
}

// RequestStop asks the run loop to terminate. It is idempotent and safe to
// call from any goroutine at any time: before Run has entered its wait,
// while it is blocked, or after a stop was already requested.
func (e *Engine) RequestStop() {
	e.stopOnce.Do(func() {
		close(e.stopCh)
	})
}

// Close destructs the engine: requests a stop and closes every listener
// socket. After Close the engine cannot be run again; a fresh engine must
// be constructed.
func (e *Engine) Close() error {
	e.RequestStop()
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	listeners := append([]*Listener(nil), e.listeners...)
	e.mu.Unlock()
	closeListeners(listeners)
	e.closeSessions()
	e.sessionWG.Wait()
	return nil
}

func (e *Engine) acceptLoop(l *Listener, errCh chan<- error) {
	for {
		conn, err := l.netLsn.Accept()
		if err != nil {
			select {
			case <-e.stopCh:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			// Accept-path failure is unrecoverable for this run; surface it
			// as the loop's outcome and let the supervisor decide.
			errCh <- fmt.Errorf("relp: accept on port %s failed: %w", l.port, err)
			return
		}
		e.sessionWG.Add(1)
		go func() {
			defer e.sessionWG.Done()
			e.serveConn(l, conn)
		}()
	}
}

func (e *Engine) trackSession(conn net.Conn) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	e.sessions[conn] = struct{}{}
	return true
}

func (e *Engine) untrackSession(conn net.Conn) {
	e.mu.Lock()
	delete(e.sessions, conn)
	e.mu.Unlock()
}

// closeSessions force-closes all live session connections so blocked reads
// return promptly during shutdown.
func (e *Engine) closeSessions() {
	e.mu.Lock()
	conns := make([]net.Conn, 0, len(e.sessions))
	for c := range e.sessions {
		conns = append(conns, c)
	}
	e.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
}

// peerIdentity derives the provenance pair for a session. The IP is always
// the literal peer address; the hostname is its reverse-DNS name when
// lookups are enabled, otherwise the IP again.
func (e *Engine) peerIdentity(conn net.Conn) (host, ip string) {
	ip = conn.RemoteAddr().String()
	if h, _, err := net.SplitHostPort(ip); err == nil {
		ip = h
	}
	host = ip
	if e.dnsLookup {
		ctx, cancel := context.WithTimeout(context.Background(), dnsLookupTimeout)
		defer cancel()
		if names, err := net.DefaultResolver.LookupAddr(ctx, ip); err == nil && len(names) > 0 {
			host = strings.TrimSuffix(names[0], ".")
		}
	}
	return host, ip
}

// requiredCommands lists the commands every client must offer.
func (e *Engine) requiredCommands() []string {
	var req []string
	for name, state := range e.commands {
		if state == CommandRequired {
			req = append(req, name)
		}
	}
	return req
}

// enabledCommands lists the commands this engine accepts events on.
func (e *Engine) enabledCommands() []string {
	var cmds []string
	for name, state := range e.commands {
		if state == CommandAllowed || state == CommandRequired {
			cmds = append(cmds, name)
		}
	}
	return cmds
}

func closeListeners(listeners []*Listener) {
	for _, l := range listeners {
		if l.netLsn != nil {
			l.netLsn.Close()
		}
	}
}
