//file: internal/pipeline/message.go

// Package pipeline models the internal message produced per received event
// and its handoff to the downstream processing pipeline.
package pipeline

import (
	"time"

	"github.com/google/uuid"
)

// ParseFlag marks downstream parsing work a message still needs.
type ParseFlag uint8

const (
	// FlagParseHostname marks the payload's hostname as unparsed.
	FlagParseHostname ParseFlag = 1 << iota
	// FlagNeedsParsing marks the payload as needing a full parse.
	FlagNeedsParsing
)

// Message is one received event on its way downstream. Ownership transfers
// to the pipeline on a successful Submit; the producer must not touch the
// message afterwards.
type Message struct {
	ID         uuid.UUID
	InputName  string
	RawPayload []byte

	ReceivedFromHost string
	ReceivedFromIP   string

	Ruleset    *Ruleset
	Flags      ParseFlag
	ReceivedAt time.Time
}

// NewMessage allocates a message stamped with the input identity tag.
func NewMessage(inputName string) *Message {
	return &Message{
		ID:         uuid.New(),
		InputName:  inputName,
		ReceivedAt: time.Now().UTC(),
	}
}

// SetRawPayload copies the delivered bytes into the message. Payloads are
// length-bounded byte sequences; embedded NUL bytes are preserved.
func (m *Message) SetRawPayload(payload []byte) {
	m.RawPayload = append([]byte(nil), payload...)
}

// HasFlag reports whether the message carries the given parse flag.
func (m *Message) HasFlag(f ParseFlag) bool {
	return m.Flags&f != 0
}
