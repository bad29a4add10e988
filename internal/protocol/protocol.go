// Package protocol defines the JSON messages exchanged between the editor
// and a renderer/input host.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

const Version = "1.0"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeInput   = "INPUT"
	TypeFrame   = "FRAME"
	TypeError   = "ERROR"
)

var (
	ErrUnexpectedType  = errors.New("unexpected message type")
	ErrVersionMismatch = errors.New("protocol version mismatch")
)

// BaseMessage carries the fields every message has.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// Decode unmarshals b into v once its type is typ and its version matches.
func Decode(b []byte, typ string, v any) error {
	base, err := DecodeBase(b)
	if err != nil {
		return err
	}
	if base.Type != typ {
		return fmt.Errorf("%w: got %q, want %q", ErrUnexpectedType, base.Type, typ)
	}
	if base.ProtocolVersion != Version {
		return fmt.Errorf("%w: got %q, want %q", ErrVersionMismatch, base.ProtocolVersion, Version)
	}
	return json.Unmarshal(b, v)
}

// CodeFor is the ERROR code reported for a Decode failure.
func CodeFor(err error) string {
	if errors.Is(err, ErrVersionMismatch) {
		return ErrProtoVersion
	}
	return ErrProtoBadRequest
}
