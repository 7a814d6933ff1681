//file: internal/relp/session.go

package relp

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"
)

// sessionIdleTimeout closes sessions that deliver nothing for too long.
const sessionIdleTimeout = 5 * time.Minute

// session is the server side of one client connection. Sessions are fully
// independent: no state is shared between them beyond the engine handle.
type session struct {
	engine   *Engine
	listener *Listener
	conn     net.Conn
	r        *bufio.Reader
	w        *bufio.Writer

	host string
	ip   string

	open     bool
	compress bool
}

func (e *Engine) serveConn(l *Listener, conn net.Conn) {
	defer conn.Close()
	if !e.trackSession(conn) {
		return
	}
	defer e.untrackSession(conn)

	host, ip := e.peerIdentity(conn)
	s := &session{
		engine:   e,
		listener: l,
		conn:     conn,
		r:        bufio.NewReader(conn),
		w:        bufio.NewWriter(conn),
		host:     host,
		ip:       ip,
	}

	e.log.Debug("session opened", "peer", ip, "port", l.port)
	if err := s.run(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
		e.log.Debug("session ended", "peer", ip, "error", err)
		return
	}
	e.log.Debug("session closed", "peer", ip)
}

func (s *session) run() error {
	for {
		s.conn.SetReadDeadline(time.Now().Add(sessionIdleTimeout))
		f, err := ReadFrame(s.r, s.engine.maxFrameSize)
		if err != nil {
			return err
		}

		switch f.Command {
		case CmdOpen:
			err = s.handleOpen(f)
		case CmdClose:
			s.respond(f.Txnr, 200, "OK", "")
			s.w.Flush()
			return nil
		default:
			err = s.handleEvent(f)
		}
		if err != nil {
			return err
		}
	}
}

// handleOpen negotiates the session: the client's offers must include every
// command this engine requires, and compression is granted only when both
// sides ask for it.
func (s *session) handleOpen(f *Frame) error {
	offers := parseOffers(f.Data)

	clientCmds := strings.Split(offers["commands"], ",")
	for _, required := range s.engine.requiredCommands() {
		if !containsToken(clientCmds, required) {
			s.respond(f.Txnr, 500, fmt.Sprintf("required command %q not offered", required), "")
			s.w.Flush()
			return fmt.Errorf("relp: client did not offer required command %q", required)
		}
	}

	serverOffers := []string{
		"relp_version=0",
		"relp_software=relp-ingest,1.0",
		"commands=" + strings.Join(s.engine.enabledCommands(), ","),
	}
	if s.listener.compression && offers["compression"] == "deflate" {
		s.compress = true
		serverOffers = append(serverOffers, "compression=deflate")
	}

	s.open = true
	s.respond(f.Txnr, 200, "OK", strings.Join(serverOffers, "\n"))
	return s.w.Flush()
}

// handleEvent dispatches an event-bearing frame to the receive handler.
// A handler rejection closes the session with a serverclose; protocol-level
// problems (unknown command, event before open) are answered with an error
// response but also terminate the session.
func (s *session) handleEvent(f *Frame) error {
	state, known := s.engine.commands[f.Command]
	if !known || state == CommandForbidden {
		s.respond(f.Txnr, 500, fmt.Sprintf("command %q not enabled", f.Command), "")
		s.w.Flush()
		return fmt.Errorf("relp: command %q not enabled", f.Command)
	}
	if !s.open {
		s.respond(f.Txnr, 500, "session not open", "")
		s.w.Flush()
		return fmt.Errorf("relp: event before open")
	}

	payload := f.Data
	if s.compress {
		decompressed, err := inflate(f.Data, s.engine.maxFrameSize)
		if err != nil {
			s.respond(f.Txnr, 500, "malformed compressed payload", "")
			s.w.Flush()
			return fmt.Errorf("relp: inflate failed: %w", err)
		}
		payload = decompressed
	}

	if err := s.engine.recv(s.host, s.ip, payload); err != nil {
		// Handler asked to terminate: reject the event and close.
		s.respond(f.Txnr, 500, "event rejected", "")
		WriteFrame(s.w, &Frame{Txnr: 0, Command: CmdServerClose})
		s.w.Flush()
		return fmt.Errorf("relp: receive handler rejected event: %w", err)
	}
	s.respond(f.Txnr, 200, "OK", "")
	return s.w.Flush()
}

// respond writes an rsp frame echoing the request txnr. The body is the
// status line, optionally followed by response data.
func (s *session) respond(txnr uint64, code int, msg, data string) {
	body := fmt.Sprintf("%d %s", code, msg)
	if data != "" {
		body += "\n" + data
	}
	WriteFrame(s.w, &Frame{Txnr: txnr, Command: CmdRsp, Data: []byte(body)})
}

// parseOffers decodes "name=value" lines from an open frame body.
func parseOffers(data []byte) map[string]string {
	offers := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name, value, _ := strings.Cut(line, "=")
		offers[name] = value
	}
	return offers
}

func containsToken(tokens []string, want string) bool {
	for _, t := range tokens {
		if strings.TrimSpace(t) == want {
			return true
		}
	}
	return false
}

// inflate decompresses a deflate-compressed frame payload, bounded by the
// engine's frame size limit.
func inflate(data []byte, limit int) ([]byte, error) {
	fr := flate.NewReader(bytes.NewReader(data))
	defer fr.Close()
	out, err := io.ReadAll(io.LimitReader(fr, int64(limit)+1))
	if err != nil {
		return nil, err
	}
	if len(out) > limit {
		return nil, fmt.Errorf("decompressed payload exceeds limit %d", limit)
	}
	return out, nil
}
