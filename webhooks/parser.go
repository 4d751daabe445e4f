package webhooks

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

// Envelope is a delivery decoded without a known payload shape. Data keeps
// the nested JSON structure; numbers are json.Number so amounts keep their
// precision.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// TypedEnvelope is a delivery whose data is decoded into T.
type TypedEnvelope[T any] struct {
	Event string `json:"event"`
	Data  T      `json:"data"`
}

// ParseGeneric decodes payload into an Envelope. It does not check whether
// the event is recognized.
func ParseGeneric(payload []byte) (Envelope, error) {
	var envelope Envelope
	if err := decodePayload(payload, &envelope); err != nil {
		return Envelope{}, err
	}
	event, err := requireEvent(envelope.Event)
	if err != nil {
		return Envelope{}, err
	}
	envelope.Event = event
	return envelope, nil
}

// ParseTyped decodes payload into a TypedEnvelope[T]. Field names match
// case-insensitively, unknown fields are ignored and absent optional fields
// stay nil.
func ParseTyped[T any](payload []byte) (TypedEnvelope[T], error) {
	var envelope TypedEnvelope[T]
	if err := decodePayload(payload, &envelope); err != nil {
		return TypedEnvelope[T]{}, err
	}
	event, err := requireEvent(envelope.Event)
	if err != nil {
		return TypedEnvelope[T]{}, err
	}
	envelope.Event = event
	return envelope, nil
}

// PeekEvent returns the event name of payload without decoding its data.
func PeekEvent(payload []byte) (string, error) {
	var head struct {
		Event string `json:"event"`
	}
	if err := decodePayload(payload, &head); err != nil {
		return "", err
	}
	return requireEvent(head.Event)
}

func decodePayload(payload []byte, target any) error {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return &DecodeError{Reason: "payload is empty"}
	}
	if bytes.Equal(trimmed, []byte("null")) {
		return &DecodeError{Reason: "payload is null"}
	}
	if trimmed[0] != '{' {
		return &DecodeError{Reason: "payload is not a json object"}
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()
	if err := decoder.Decode(target); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return &DecodeError{Reason: "payload does not match the expected shape", Err: err}
		}
		return &DecodeError{Reason: "payload is not well-formed json", Err: err}
	}
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return &DecodeError{Reason: "payload has trailing data"}
	}
	return nil
}

// requireEvent returns event exactly as it arrived; membership is checked
// later against the raw name.
func requireEvent(event string) (string, error) {
	if event == "" {
		return "", &DecodeError{Reason: "event name is missing"}
	}
	return event, nil
}
