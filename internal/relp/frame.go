//file: internal/relp/frame.go

// Package relp implements a reliable event logging protocol engine: framed,
// acknowledged delivery of log events over TCP with optional TLS and frame
// compression. The engine multiplexes any number of listeners, invokes a
// single receive handler per delivered event, and supports an idempotent,
// asynchronous stop request that interrupts the blocking run loop.
package relp

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// Protocol commands. A server session accepts open/close/rsp implicitly;
// event-bearing commands (syslog) must be enabled on the engine.
const (
	CmdOpen        = "open"
	CmdSyslog      = "syslog"
	CmdClose       = "close"
	CmdRsp         = "rsp"
	CmdServerClose = "serverclose"
)

const (
	// maxCommandLen bounds the command token of a frame header.
	maxCommandLen = 32
	// maxTxnr is the largest transaction number before wraparound.
	maxTxnr = 999999999
)

// Frame is one protocol frame: TXNR SP COMMAND SP DATALEN [SP DATA] LF.
type Frame struct {
	Txnr    uint64
	Command string
	Data    []byte
}

// ReadFrame reads and decodes a single frame. Payloads larger than maxData
// are rejected without consuming them, which poisons the stream; callers
// must treat any error as fatal to the session.
func ReadFrame(r *bufio.Reader, maxData int) (*Frame, error) {
	txnr, err := readNumber(r, ' ')
	if err != nil {
		return nil, err
	}
	if txnr > maxTxnr {
		return nil, fmt.Errorf("relp: txnr %d out of range", txnr)
	}

	cmd, delim, err := readToken(r)
	if err != nil {
		return nil, err
	}
	f := &Frame{Txnr: txnr, Command: cmd}

	// A header may end directly after the command (no datalen field means
	// zero-length data, as sent by some minimal clients).
	if delim == '\n' {
		return f, nil
	}

	datalen, err := readNumber(r, 0)
	if err != nil {
		return nil, err
	}
	if datalen > uint64(maxData) {
		return nil, fmt.Errorf("relp: frame data length %d exceeds limit %d", datalen, maxData)
	}
	if datalen > 0 {
		f.Data = make([]byte, datalen)
		if _, err := io.ReadFull(r, f.Data); err != nil {
			return nil, fmt.Errorf("relp: short frame data: %w", err)
		}
	}

	// Trailer
	b, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if b != '\n' {
		return nil, fmt.Errorf("relp: missing frame trailer (got %q)", b)
	}
	return f, nil
}

// WriteFrame encodes and writes a single frame. The caller owns flushing.
func WriteFrame(w io.Writer, f *Frame) error {
	if _, err := fmt.Fprintf(w, "%d %s %d", f.Txnr, f.Command, len(f.Data)); err != nil {
		return err
	}
	if len(f.Data) > 0 {
		if _, err := w.Write([]byte{' '}); err != nil {
			return err
		}
		if _, err := w.Write(f.Data); err != nil {
			return err
		}
	}
	_, err := w.Write([]byte{'\n'})
	return err
}

// readNumber reads ASCII digits terminated by delim. A delim of 0 accepts
// either a space or the frame trailer; the trailer is pushed back so the
// caller sees it.
func readNumber(r *bufio.Reader, delim byte) (uint64, error) {
	var buf []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		if b >= '0' && b <= '9' {
			if len(buf) >= 19 {
				return 0, fmt.Errorf("relp: numeric field too long")
			}
			buf = append(buf, b)
			continue
		}
		if b == delim || (delim == 0 && (b == ' ' || b == '\n')) {
			if b == '\n' && delim == 0 {
				if err := r.UnreadByte(); err != nil {
					return 0, err
				}
			}
			break
		}
		return 0, fmt.Errorf("relp: unexpected byte %q in numeric field", b)
	}
	if len(buf) == 0 {
		return 0, fmt.Errorf("relp: empty numeric field")
	}
	return strconv.ParseUint(string(buf), 10, 64)
}

// readToken reads the command token and reports which delimiter ended it.
func readToken(r *bufio.Reader) (string, byte, error) {
	var buf []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", 0, err
		}
		if b == ' ' || b == '\n' {
			if len(buf) == 0 {
				return "", 0, fmt.Errorf("relp: empty command")
			}
			return string(buf), b, nil
		}
		if len(buf) >= maxCommandLen {
			return "", 0, fmt.Errorf("relp: command token too long")
		}
		buf = append(buf, b)
	}
}
