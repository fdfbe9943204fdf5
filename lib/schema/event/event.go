// Copyright 2026 The Wraith Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"time"

	"github.com/google/uuid"
)

// Event is one anonymized record of tool behavior. Events are immutable
// after construction: the id is generated exactly once, the timestamp
// is stamped at creation, and the context is never replaced.
type Event struct {
	// ID is unique across the daemon's lifetime and never reused.
	ID string

	// Timestamp is the creation time in UTC.
	Timestamp time.Time

	// Level is the ordered severity.
	Level Level

	// Payload carries the variant-specific fields.
	Payload Payload

	// Context is the anonymized per-installation metadata.
	Context Context
}

// New constructs an Event stamped at the given time with a fresh
// unique id. The timestamp is normalized to UTC.
func New(at time.Time, level Level, payload Payload, context Context) Event {
	return Event{
		ID:        uuid.NewString(),
		Timestamp: at.UTC(),
		Level:     level,
		Payload:   payload,
		Context:   context,
	}
}

// Urgent reports whether the event's severity triggers an immediate
// buffer flush.
func (e Event) Urgent() bool { return e.Level.Urgent() }

// Batch is an ordered sequence of events, arrival order preserved. A
// batch is produced exactly once per buffer flush and consumed exactly
// once by the dispatcher.
type Batch struct {
	Events []Event `json:"events"`
}
