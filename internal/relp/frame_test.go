//file: internal/relp/frame_test.go

package relp

import (
	"bufio"
	"bytes"
	"strings"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		frame Frame
	}{
		{
			name:  "event frame with payload",
			frame: Frame{Txnr: 2, Command: CmdSyslog, Data: []byte("<13>test message")},
		},
		{
			name:  "open frame with offers",
			frame: Frame{Txnr: 1, Command: CmdOpen, Data: []byte("relp_version=0\ncommands=syslog")},
		},
		{
			name:  "close frame without data",
			frame: Frame{Txnr: 3, Command: CmdClose},
		},
		{
			name:  "payload with embedded newline and NUL",
			frame: Frame{Txnr: 4, Command: CmdSyslog, Data: []byte("line1\nline2\x00tail")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteFrame(&buf, &tt.frame); err != nil {
				t.Fatalf("WriteFrame() error = %v", err)
			}

			got, err := ReadFrame(bufio.NewReader(&buf), DefaultMaxFrameSize)
			if err != nil {
				t.Fatalf("ReadFrame() error = %v", err)
			}
			if got.Txnr != tt.frame.Txnr {
				t.Errorf("Txnr = %d, want %d", got.Txnr, tt.frame.Txnr)
			}
			if got.Command != tt.frame.Command {
				t.Errorf("Command = %q, want %q", got.Command, tt.frame.Command)
			}
			if !bytes.Equal(got.Data, tt.frame.Data) {
				t.Errorf("Data = %q, want %q", got.Data, tt.frame.Data)
			}
		})
	}
}

func TestReadFrameHeaderOnlyForm(t *testing.T) {
	// Minimal clients may end the header right after the command.
	got, err := ReadFrame(bufio.NewReader(strings.NewReader("5 close\n")), DefaultMaxFrameSize)
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	if got.Txnr != 5 || got.Command != CmdClose || len(got.Data) != 0 {
		t.Errorf("got %+v, want txnr=5 command=close no data", got)
	}
}

func TestReadFrameRejectsOversizedPayload(t *testing.T) {
	var buf bytes.Buffer
	payload := bytes.Repeat([]byte("x"), 100)
	if err := WriteFrame(&buf, &Frame{Txnr: 1, Command: CmdSyslog, Data: payload}); err != nil {
		t.Fatalf("WriteFrame() error = %v", err)
	}

	if _, err := ReadFrame(bufio.NewReader(&buf), 99); err == nil {
		t.Fatal("ReadFrame() accepted payload above the limit")
	}
}

func TestReadFrameMalformedInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty txnr", " syslog 4 data\n"},
		{"non-numeric txnr", "abc syslog 4 data\n"},
		{"txnr out of range", "1000000000 syslog 0\n"},
		{"empty command", "1  4 data\n"},
		{"command too long", "1 " + strings.Repeat("c", 40) + " 0\n"},
		{"short data", "1 syslog 10 abc"},
		{"missing trailer", "1 syslog 4 dataX"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadFrame(bufio.NewReader(strings.NewReader(tt.input)), DefaultMaxFrameSize); err == nil {
				t.Errorf("ReadFrame(%q) succeeded, want error", tt.input)
			}
		})
	}
}
