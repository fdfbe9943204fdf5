// Copyright 2026 The Wraith Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DecodeError reports a malformed wire message. Field names the
// offending field when one can be identified. A DecodeError applies to
// the one message being decoded; it never terminates the daemon.
type DecodeError struct {
	Field  string
	Reason string
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return "decoding event: " + e.Reason
	}
	return fmt.Sprintf("decoding event: field %q: %s", e.Field, e.Reason)
}

// wireEvent is the flat wire shape: payload fields sit at the top
// level next to the envelope fields, discriminated by event_type.
// Pointer fields distinguish "absent" from a present zero value.
type wireEvent struct {
	ID        string     `json:"id,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Level     *Level     `json:"level,omitempty"`
	EventType Kind       `json:"event_type"`

	Tool           string  `json:"tool,omitempty"`
	Command        string  `json:"command,omitempty"`
	DurationMS     *uint64 `json:"duration_ms,omitempty"`
	ErrorType      string  `json:"error_type,omitempty"`
	ExceptionType  string  `json:"exception_type,omitempty"`
	Traceback      *string `json:"traceback,omitempty"`
	ValidationType string  `json:"validation_type,omitempty"`
	Details        *string `json:"details,omitempty"`
	ParentPID      *int    `json:"parent_pid,omitempty"`
	Reason         string  `json:"reason,omitempty"`

	Context *Context `json:"context,omitempty"`
}

// MarshalJSON encodes the event in the flat wire shape.
func (e Event) MarshalJSON() ([]byte, error) {
	if e.Payload == nil {
		return nil, errors.New("event: cannot marshal event with nil payload")
	}

	timestamp := e.Timestamp.UTC()
	level := e.Level
	context := e.Context
	w := wireEvent{
		ID:        e.ID,
		Timestamp: &timestamp,
		Level:     &level,
		EventType: e.Payload.Kind(),
		Context:   &context,
	}

	switch p := e.Payload.(type) {
	case ToolInvoked:
		w.Tool, w.Command = p.Tool, p.Command
	case ToolSucceeded:
		duration := p.DurationMS
		w.Tool, w.Command, w.DurationMS = p.Tool, p.Command, &duration
	case ToolFailed:
		duration := p.DurationMS
		w.Tool, w.Command, w.ErrorType, w.DurationMS = p.Tool, p.Command, p.ErrorType, &duration
	case ExceptionUnhandled:
		w.Tool, w.ExceptionType, w.Traceback = p.Tool, p.ExceptionType, p.Traceback
	case ValidationFailed:
		w.Tool, w.ValidationType, w.Details = p.Tool, p.ValidationType, p.Details
	case DaemonStarted:
		pid := p.ParentPID
		w.ParentPID = &pid
	case DaemonStopping:
		w.Reason = p.Reason
	}

	return json.Marshal(w)
}

// UnmarshalJSON decodes the flat wire shape. Missing id and timestamp
// are tolerated (the daemon stamps both at receipt); everything else is
// validated and reported as a *DecodeError.
func (e *Event) UnmarshalJSON(data []byte) error {
	decoded, err := decodeWire(data)
	if err != nil {
		return err
	}
	*e = decoded
	return nil
}

// DecodeSubmission parses one client submission: the event wire shape
// minus id and timestamp. Client-supplied values for those fields are
// ignored — the daemon assigns identity at receipt.
func DecodeSubmission(data []byte) (Level, Payload, Context, error) {
	decoded, err := decodeWire(data)
	if err != nil {
		return 0, nil, Context{}, err
	}
	return decoded.Level, decoded.Payload, decoded.Context, nil
}

func decodeWire(data []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		var decodeErr *DecodeError
		if errors.As(err, &decodeErr) {
			return Event{}, decodeErr
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return Event{}, &DecodeError{Field: typeErr.Field, Reason: "wrong type"}
		}
		return Event{}, &DecodeError{Reason: "malformed JSON"}
	}

	if w.Level == nil {
		return Event{}, &DecodeError{Field: "level", Reason: "missing"}
	}
	if w.EventType == "" {
		return Event{}, &DecodeError{Field: "event_type", Reason: "missing"}
	}
	payload, err := w.payload()
	if err != nil {
		return Event{}, err
	}
	if w.Context == nil {
		return Event{}, &DecodeError{Field: "context", Reason: "missing"}
	}
	if err := w.Context.validate(); err != nil {
		return Event{}, err
	}

	decoded := Event{
		ID:      w.ID,
		Level:   *w.Level,
		Payload: payload,
		Context: *w.Context,
	}
	if w.Timestamp != nil {
		decoded.Timestamp = w.Timestamp.UTC()
	}
	return decoded, nil
}

// payload assembles the variant selected by event_type, validating the
// fields that variant requires.
func (w *wireEvent) payload() (Payload, error) {
	switch w.EventType {
	case KindToolInvoked:
		if err := w.require("tool", w.Tool, "command", w.Command); err != nil {
			return nil, err
		}
		return ToolInvoked{Tool: w.Tool, Command: w.Command}, nil

	case KindToolSucceeded:
		if err := w.require("tool", w.Tool, "command", w.Command); err != nil {
			return nil, err
		}
		if w.DurationMS == nil {
			return nil, &DecodeError{Field: "duration_ms", Reason: "missing"}
		}
		return ToolSucceeded{Tool: w.Tool, Command: w.Command, DurationMS: *w.DurationMS}, nil

	case KindToolFailed:
		if err := w.require("tool", w.Tool, "command", w.Command, "error_type", w.ErrorType); err != nil {
			return nil, err
		}
		if w.DurationMS == nil {
			return nil, &DecodeError{Field: "duration_ms", Reason: "missing"}
		}
		return ToolFailed{Tool: w.Tool, Command: w.Command, ErrorType: w.ErrorType, DurationMS: *w.DurationMS}, nil

	case KindExceptionUnhandled:
		if err := w.require("tool", w.Tool, "exception_type", w.ExceptionType); err != nil {
			return nil, err
		}
		return ExceptionUnhandled{Tool: w.Tool, ExceptionType: w.ExceptionType, Traceback: w.Traceback}, nil

	case KindValidationFailed:
		if err := w.require("tool", w.Tool, "validation_type", w.ValidationType); err != nil {
			return nil, err
		}
		return ValidationFailed{Tool: w.Tool, ValidationType: w.ValidationType, Details: w.Details}, nil

	case KindDaemonStarted:
		if w.ParentPID == nil {
			return nil, &DecodeError{Field: "parent_pid", Reason: "missing"}
		}
		return DaemonStarted{ParentPID: *w.ParentPID}, nil

	case KindDaemonStopping:
		if w.Reason == "" {
			return nil, &DecodeError{Field: "reason", Reason: "missing"}
		}
		return DaemonStopping{Reason: w.Reason}, nil
	}

	return nil, &DecodeError{Field: "event_type", Reason: fmt.Sprintf("unknown event type %q", string(w.EventType))}
}

// require checks alternating name/value pairs for non-empty values,
// returning a DecodeError naming the first missing field.
func (w *wireEvent) require(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			return &DecodeError{Field: pairs[i], Reason: "missing"}
		}
	}
	return nil
}
