// Package protocol implements the JSON wire format of spec §6.1: every
// message is a single event name plus a payload object. The envelope is
// {type, payload}, after the corpus's {type, data} convention; the function-per-
// message-kind shape mirrors the teacher's binary Protocol type, now
// encoding/decoding JSON instead of packed bytes.
package protocol

import (
	"encoding/json"
	"errors"
)

// ErrUnknownEvent names an envelope Type that matches no known event.
// No function in this package returns it.
var ErrUnknownEvent = errors.New("protocol: unknown event")

// Envelope is the transport framing: one event name plus a payload
// object (spec §6.1).
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Protocol encodes and decodes Envelopes and their typed payloads.
type Protocol struct{}

// New creates a Protocol.
func New() *Protocol { return &Protocol{} }

// DecodeEnvelope parses the outer {type, payload} frame.
func (p *Protocol) DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// Encode wraps payload under event and marshals the envelope.
func (p *Protocol) Encode(event string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: event, Payload: body})
}

// DecodePayload unmarshals an envelope's payload into dst.
func (p *Protocol) DecodePayload(env Envelope, dst interface{}) error {
	if len(env.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(env.Payload, dst)
}

// MustEncode encodes and panics on error; used only for payload types
// constructed entirely from server-computed values that are always
// JSON-marshalable (no user-controlled strings with invalid UTF-8 can
// reach it, since the router sanitizes input first).
func (p *Protocol) MustEncode(event string, payload interface{}) []byte {
	data, err := p.Encode(event, payload)
	if err != nil {
		panic(err)
	}
	return data
}
