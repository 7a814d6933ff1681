//file: internal/relp/client.go

package relp

import (
	"bufio"
	"bytes"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"
)

// ErrSessionClosed is returned when the server closed the session.
var ErrSessionClosed = errors.New("relp: session closed by server")

// ClientOption configures a Client before it dials.
type ClientOption func(*Client)

// WithClientTLS dials over TLS with the given configuration.
func WithClientTLS(conf *tls.Config) ClientOption {
	return func(c *Client) { c.tlsConf = conf }
}

// WithCompression requests deflate frame compression during open. The
// server may decline; Compressed reports the negotiated state.
func WithCompression() ClientOption {
	return func(c *Client) { c.wantCompress = true }
}

// WithTimeout bounds each dial, send and response round-trip.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// Client is a minimal protocol client used by the CLI and by tests. It is
// not safe for concurrent use.
type Client struct {
	conn net.Conn
	r    *bufio.Reader
	w    *bufio.Writer
	txnr uint64

	tlsConf      *tls.Config
	wantCompress bool
	compress     bool
	timeout      time.Duration
}

// Dial connects to a listener and performs the open negotiation, offering
// the syslog command (and compression when requested).
func Dial(addr string, opts ...ClientOption) (*Client, error) {
	c := &Client{timeout: 10 * time.Second}
	for _, opt := range opts {
		opt(c)
	}

	dialer := &net.Dialer{Timeout: c.timeout}
	var (
		conn net.Conn
		err  error
	)
	if c.tlsConf != nil {
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, c.tlsConf)
	} else {
		conn, err = dialer.Dial("tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("relp: dial %s: %w", addr, err)
	}
	c.conn = conn
	c.r = bufio.NewReader(conn)
	c.w = bufio.NewWriter(conn)

	if err := c.openSession(); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) openSession() error {
	offers := []string{
		"relp_version=0",
		"relp_software=relp-ingest,1.0",
		"commands=" + CmdSyslog,
	}
	if c.wantCompress {
		offers = append(offers, "compression=deflate")
	}

	c.txnr++
	if err := c.roundTripFrame(&Frame{Txnr: c.txnr, Command: CmdOpen, Data: []byte(strings.Join(offers, "\n"))}); err != nil {
		return err
	}
	return nil
}

// Send delivers one event payload and waits for its acknowledgement.
func (c *Client) Send(payload []byte) error {
	data := payload
	if c.compress {
		compressed, err := deflateBytes(payload)
		if err != nil {
			return fmt.Errorf("relp: compress payload: %w", err)
		}
		data = compressed
	}
	c.txnr++
	return c.roundTripFrame(&Frame{Txnr: c.txnr, Command: CmdSyslog, Data: data})
}

// Compressed reports whether frame compression was negotiated.
func (c *Client) Compressed() bool { return c.compress }

// Close ends the session with a close command and shuts the connection.
func (c *Client) Close() error {
	c.txnr++
	// Best effort: the connection may already be gone.
	c.conn.SetDeadline(time.Now().Add(c.timeout))
	if err := WriteFrame(c.w, &Frame{Txnr: c.txnr, Command: CmdClose}); err == nil {
		if err := c.w.Flush(); err == nil {
			ReadFrame(c.r, DefaultMaxFrameSize)
		}
	}
	return c.conn.Close()
}

// roundTripFrame writes a frame and consumes its response, decoding the
// status code and handling a serverclose in its place.
func (c *Client) roundTripFrame(f *Frame) error {
	c.conn.SetDeadline(time.Now().Add(c.timeout))
	if err := WriteFrame(c.w, f); err != nil {
		return err
	}
	if err := c.w.Flush(); err != nil {
		return err
	}

	rsp, err := ReadFrame(c.r, DefaultMaxFrameSize)
	if err != nil {
		return err
	}
	if rsp.Command == CmdServerClose {
		return ErrSessionClosed
	}
	if rsp.Command != CmdRsp {
		return fmt.Errorf("relp: unexpected response command %q", rsp.Command)
	}
	if rsp.Txnr != f.Txnr {
		return fmt.Errorf("relp: response txnr %d does not match request %d", rsp.Txnr, f.Txnr)
	}

	code, body := parseStatus(rsp.Data)
	if code != 200 {
		// A rejected event is followed by a serverclose; drain it so the
		// caller sees a consistent session-closed error on reuse.
		return fmt.Errorf("relp: server returned %d: %s", code, body)
	}

	if f.Command == CmdOpen {
		serverOffers := parseOffers(offersPart(rsp.Data))
		c.compress = c.wantCompress && serverOffers["compression"] == "deflate"
	}
	return nil
}

// parseStatus splits an rsp body into status code and message line.
func parseStatus(data []byte) (int, string) {
	line := string(data)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	codeStr, msg, _ := strings.Cut(line, " ")
	code, err := strconv.Atoi(codeStr)
	if err != nil {
		return 0, line
	}
	return code, msg
}

// offersPart returns the offer lines that follow the status line.
func offersPart(data []byte) []byte {
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return data[i+1:]
	}
	return nil
}

func deflateBytes(payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(payload); err != nil {
		return nil, err
	}
	if err := fw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
