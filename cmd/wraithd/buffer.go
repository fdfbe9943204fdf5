// Copyright 2026 The Wraith Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/autonops/wraith/lib/clock"
	"github.com/autonops/wraith/lib/schema/event"
)

// Buffer holds pending events between flushes. A flush detaches the
// whole accumulated slice under the mutex; a fresh slice becomes the
// insertion target in the same critical section, so events arriving
// concurrently with a flush land in exactly one generation — never
// both, never neither.
//
// The buffer never performs network I/O. Thread-safe.
type Buffer struct {
	mu sync.Mutex

	events []event.Event

	// oldestAt is the insertion time of the oldest held event. Zero
	// when the buffer is empty.
	oldestAt time.Time

	// urgent records that the current generation holds an event with
	// an urgent severity. Cleared on detach.
	urgent bool

	// dropped counts events rejected at the hard capacity limit.
	dropped uint64

	clock      clock.Clock
	flushCount int
	flushAge   time.Duration
	hardCap    int
}

// hardCapMultiplier bounds the buffer at a multiple of the flush
// threshold. Insertions beyond the bound are rejected and counted.
const hardCapMultiplier = 2

// NewBuffer creates a Buffer that detaches a batch when flushCount
// events accumulate or the oldest event reaches flushAge.
func NewBuffer(clk clock.Clock, flushCount int, flushAge time.Duration) *Buffer {
	if flushCount <= 0 {
		panic(fmt.Sprintf("buffer: flushCount must be positive, got %d", flushCount))
	}
	return &Buffer{
		clock:      clk,
		flushCount: flushCount,
		flushAge:   flushAge,
		hardCap:    flushCount * hardCapMultiplier,
	}
}

// Insert appends the event. triggered reports that the buffer wants
// an immediate flush: the insert reached the count threshold or the
// event carries an urgent severity. The caller detaches with Take
// once it has somewhere to put the batch; when it doesn't (all
// dispatch slots busy), events keep accumulating until the hard cap,
// where further inserts are rejected and counted (accepted false).
func (b *Buffer) Insert(e event.Event) (triggered, accepted bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.events) >= b.hardCap {
		b.dropped++
		return false, false
	}

	if len(b.events) == 0 {
		b.oldestAt = b.clock.Now()
	}
	b.events = append(b.events, e)
	if e.Urgent() {
		b.urgent = true
	}

	return len(b.events) >= b.flushCount || b.urgent, true
}

// TakeIfTriggered detaches the accumulated batch when the count
// threshold is met or an urgent event is pending. Called from the
// daemon's tick loop so a trigger that found no free dispatch slot at
// insert time is re-evaluated every tick instead of waiting out the
// age backstop. Returns nil when no trigger is pending.
func (b *Buffer) TakeIfTriggered() []event.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.events) >= b.flushCount || b.urgent {
		return b.detachLocked()
	}
	return nil
}

// TakeIfAged detaches the accumulated batch when the oldest event has
// been held for at least the flush age. Called from the daemon's tick
// loop. Returns nil when the buffer is empty or still young.
func (b *Buffer) TakeIfAged() []event.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.events) == 0 {
		return nil
	}
	if b.clock.Now().Sub(b.oldestAt) < b.flushAge {
		return nil
	}
	return b.detachLocked()
}

// Take unconditionally detaches the accumulated batch. Used on the
// drain path. Returns nil when the buffer is empty.
func (b *Buffer) Take() []event.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.events) == 0 {
		return nil
	}
	return b.detachLocked()
}

// Len returns the number of buffered events.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

// Dropped returns the number of events rejected at the capacity limit.
func (b *Buffer) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// detachLocked swaps out the accumulated slice. Caller holds the mutex.
func (b *Buffer) detachLocked() []event.Event {
	batch := b.events
	b.events = nil
	b.oldestAt = time.Time{}
	b.urgent = false
	return batch
}
