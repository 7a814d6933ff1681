//file: internal/pipeline/message_test.go

package pipeline

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
)

func TestNewMessageStampsIdentity(t *testing.T) {
	msg := NewMessage("relp")
	if msg.InputName != "relp" {
		t.Errorf("InputName = %q, want relp", msg.InputName)
	}
	if msg.ID == uuid.Nil {
		t.Error("ID is nil, want a fresh UUID")
	}
	if msg.ReceivedAt.IsZero() {
		t.Error("ReceivedAt is zero, want a timestamp")
	}
}

func TestSetRawPayloadCopies(t *testing.T) {
	original := []byte("payload with \x00 NUL")
	msg := NewMessage("relp")
	msg.SetRawPayload(original)

	original[0] = 'X'
	if bytes.Equal(msg.RawPayload, original) {
		t.Error("RawPayload aliases the caller's buffer")
	}
	if !bytes.Contains(msg.RawPayload, []byte{0}) {
		t.Error("embedded NUL byte was not preserved")
	}
}

func TestHasFlag(t *testing.T) {
	msg := NewMessage("relp")
	msg.Flags = FlagParseHostname | FlagNeedsParsing

	if !msg.HasFlag(FlagParseHostname) {
		t.Error("HasFlag(FlagParseHostname) = false")
	}
	if !msg.HasFlag(FlagNeedsParsing) {
		t.Error("HasFlag(FlagNeedsParsing) = false")
	}

	msg.Flags = FlagNeedsParsing
	if msg.HasFlag(FlagParseHostname) {
		t.Error("HasFlag(FlagParseHostname) = true, want false")
	}
}
