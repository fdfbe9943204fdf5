// Copyright 2026 The Wraith Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"encoding/json"
	"fmt"
)

// Level is the ordered severity of an event.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
	LevelCritical
	LevelFatal
)

// levelNames maps levels to their wire form. The wire uses UPPERCASE
// strings.
var levelNames = map[Level]string{
	LevelDebug:    "DEBUG",
	LevelInfo:     "INFO",
	LevelWarning:  "WARNING",
	LevelError:    "ERROR",
	LevelCritical: "CRITICAL",
	LevelFatal:    "FATAL",
}

// String returns the wire form of the level.
func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// Urgent reports whether an event at this level triggers an immediate
// buffer flush (Critical and above).
func (l Level) Urgent() bool { return l >= LevelCritical }

// ParseLevel converts a wire-form severity string into a Level.
func ParseLevel(s string) (Level, error) {
	for level, name := range levelNames {
		if name == s {
			return level, nil
		}
	}
	return 0, &DecodeError{Field: "level", Reason: fmt.Sprintf("unknown severity %q", s)}
}

// MarshalJSON encodes the level as its UPPERCASE wire string.
func (l Level) MarshalJSON() ([]byte, error) {
	name, ok := levelNames[l]
	if !ok {
		return nil, fmt.Errorf("event: cannot marshal unknown level %d", int(l))
	}
	return json.Marshal(name)
}

// UnmarshalJSON decodes an UPPERCASE wire string into a Level.
func (l *Level) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return &DecodeError{Field: "level", Reason: "not a string"}
	}
	level, err := ParseLevel(s)
	if err != nil {
		return err
	}
	*l = level
	return nil
}
