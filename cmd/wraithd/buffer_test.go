// Copyright 2026 The Wraith Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/autonops/wraith/lib/clock"
	"github.com/autonops/wraith/lib/schema/event"
)

func testEvent(level event.Level, command string) event.Event {
	return event.New(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), level,
		event.ToolInvoked{Tool: "migrateiq", Command: command},
		event.Context{
			InstallationID: "test-install",
			ToolVersion:    "1.0.0",
			PythonVersion:  "3.12.1",
			OS:             "linux",
		})
}

func TestBufferSizeTrigger(t *testing.T) {
	fakeClock := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	buffer := NewBuffer(fakeClock, 25, 30*time.Second)

	for i := 0; i < 24; i++ {
		triggered, accepted := buffer.Insert(testEvent(event.LevelInfo, fmt.Sprintf("cmd-%d", i)))
		if !accepted {
			t.Fatalf("insert %d rejected", i)
		}
		if triggered {
			t.Fatalf("unexpected trigger at %d events", i+1)
		}
	}

	triggered, accepted := buffer.Insert(testEvent(event.LevelInfo, "cmd-24"))
	if !accepted || !triggered {
		t.Fatalf("expected trigger on 25th insert, got triggered=%v accepted=%v", triggered, accepted)
	}

	batch := buffer.Take()
	if len(batch) != 25 {
		t.Fatalf("expected batch of 25, got %d", len(batch))
	}
	// Insertion order survives the detach.
	for i, e := range batch {
		invoked := e.Payload.(event.ToolInvoked)
		if invoked.Command != fmt.Sprintf("cmd-%d", i) {
			t.Fatalf("event %d out of order: %q", i, invoked.Command)
		}
	}
	if buffer.Len() != 0 {
		t.Fatalf("expected empty buffer after take, got %d", buffer.Len())
	}
}

func TestBufferSeverityTrigger(t *testing.T) {
	fakeClock := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	buffer := NewBuffer(fakeClock, 25, 30*time.Second)

	triggered, _ := buffer.Insert(testEvent(event.LevelCritical, "boom"))
	if !triggered {
		t.Fatal("expected immediate trigger for critical event")
	}
	if batch := buffer.Take(); len(batch) != 1 {
		t.Fatalf("expected batch of 1, got %d", len(batch))
	}

	// Below Critical, no severity trigger.
	triggered, _ = buffer.Insert(testEvent(event.LevelError, "merely-bad"))
	if triggered {
		t.Fatal("unexpected trigger for error-level event")
	}
}

func TestBufferAgeTrigger(t *testing.T) {
	fakeClock := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	buffer := NewBuffer(fakeClock, 25, 30*time.Second)

	buffer.Insert(testEvent(event.LevelInfo, "lonely"))

	if batch := buffer.TakeIfAged(); batch != nil {
		t.Fatalf("expected no batch before the age threshold, got %d events", len(batch))
	}

	fakeClock.Advance(29 * time.Second)
	if batch := buffer.TakeIfAged(); batch != nil {
		t.Fatal("expected no batch at 29s")
	}

	fakeClock.Advance(time.Second)
	batch := buffer.TakeIfAged()
	if len(batch) != 1 {
		t.Fatalf("expected batch of 1 at 30s, got %d", len(batch))
	}
	if buffer.Len() != 0 {
		t.Fatalf("expected empty buffer, got %d", buffer.Len())
	}
}

func TestBufferAgeTracksOldestAcrossGenerations(t *testing.T) {
	fakeClock := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	buffer := NewBuffer(fakeClock, 25, 30*time.Second)

	buffer.Insert(testEvent(event.LevelInfo, "first"))
	fakeClock.Advance(30 * time.Second)
	if batch := buffer.TakeIfAged(); len(batch) != 1 {
		t.Fatalf("expected first batch, got %d events", len(batch))
	}

	// The age window restarts with the next generation's first event.
	buffer.Insert(testEvent(event.LevelInfo, "second"))
	if batch := buffer.TakeIfAged(); batch != nil {
		t.Fatal("fresh generation must not inherit the old generation's age")
	}
	fakeClock.Advance(30 * time.Second)
	if batch := buffer.TakeIfAged(); len(batch) != 1 {
		t.Fatalf("expected second batch, got %d events", len(batch))
	}
}

func TestBufferHardCapRejectsAndCounts(t *testing.T) {
	fakeClock := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	buffer := NewBuffer(fakeClock, 5, 30*time.Second)

	// Nobody takes the triggered batches, as when all dispatch slots
	// are busy. The buffer absorbs up to 2x the threshold.
	for i := 0; i < 10; i++ {
		_, accepted := buffer.Insert(testEvent(event.LevelInfo, fmt.Sprintf("cmd-%d", i)))
		if !accepted {
			t.Fatalf("insert %d rejected below hard cap", i)
		}
	}

	for i := 0; i < 3; i++ {
		_, accepted := buffer.Insert(testEvent(event.LevelInfo, "overflow"))
		if accepted {
			t.Fatalf("insert %d accepted at hard cap", i)
		}
	}

	if buffer.Dropped() != 3 {
		t.Fatalf("expected 3 dropped, got %d", buffer.Dropped())
	}
	if buffer.Len() != 10 {
		t.Fatalf("expected 10 buffered, got %d", buffer.Len())
	}
}

func TestBufferTickReevaluatesPendingTriggers(t *testing.T) {
	fakeClock := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	buffer := NewBuffer(fakeClock, 5, 30*time.Second)

	// Urgent events pile up while nobody takes the triggered batches,
	// as when every dispatch slot is busy. The next tick must flush
	// them without waiting out the age backstop.
	for i := 0; i < 10; i++ {
		buffer.Insert(testEvent(event.LevelCritical, fmt.Sprintf("crit-%d", i)))
	}

	fakeClock.Advance(time.Second)
	batch := buffer.TakeIfTriggered()
	if len(batch) != 10 {
		t.Fatalf("expected 10 events on the first tick, got %d", len(batch))
	}
	if buffer.Len() != 0 {
		t.Fatalf("expected empty buffer after detach, got %d", buffer.Len())
	}

	// The urgent marker does not leak into the next generation.
	buffer.Insert(testEvent(event.LevelInfo, "calm"))
	if batch := buffer.TakeIfTriggered(); batch != nil {
		t.Fatalf("expected no pending trigger, got %d events", len(batch))
	}
}

func TestBufferTickReevaluatesCountThreshold(t *testing.T) {
	fakeClock := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	buffer := NewBuffer(fakeClock, 5, 30*time.Second)

	for i := 0; i < 4; i++ {
		buffer.Insert(testEvent(event.LevelInfo, fmt.Sprintf("cmd-%d", i)))
	}
	if batch := buffer.TakeIfTriggered(); batch != nil {
		t.Fatalf("expected no trigger below the count threshold, got %d events", len(batch))
	}

	buffer.Insert(testEvent(event.LevelInfo, "cmd-4"))
	if batch := buffer.TakeIfTriggered(); len(batch) != 5 {
		t.Fatalf("expected 5 events once the threshold is met, got %d", len(batch))
	}
}

func TestBufferPendingUrgentBelowCount(t *testing.T) {
	fakeClock := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	buffer := NewBuffer(fakeClock, 25, 30*time.Second)

	buffer.Insert(testEvent(event.LevelInfo, "before"))
	buffer.Insert(testEvent(event.LevelFatal, "boom"))
	buffer.Insert(testEvent(event.LevelInfo, "after"))

	// A single urgent event keeps the trigger pending regardless of
	// count or age.
	batch := buffer.TakeIfTriggered()
	if len(batch) != 3 {
		t.Fatalf("expected 3 events, got %d", len(batch))
	}
}

func TestBufferTakeEmpty(t *testing.T) {
	fakeClock := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	buffer := NewBuffer(fakeClock, 25, 30*time.Second)

	if batch := buffer.Take(); batch != nil {
		t.Fatalf("expected nil batch from empty buffer, got %d events", len(batch))
	}
}

func TestBufferNoLossAcrossConcurrentInsertAndFlush(t *testing.T) {
	fakeClock := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	buffer := NewBuffer(fakeClock, 1<<20, time.Hour)

	const producers = 8
	const perProducer = 500

	var produced sync.WaitGroup
	for p := 0; p < producers; p++ {
		produced.Add(1)
		go func(p int) {
			defer produced.Done()
			for i := 0; i < perProducer; i++ {
				buffer.Insert(testEvent(event.LevelInfo, fmt.Sprintf("p%d-%d", p, i)))
			}
		}(p)
	}

	// Flush concurrently with the inserts.
	seen := make(map[string]int)
	flushDone := make(chan struct{})
	batches := make(chan []event.Event, 64)
	go func() {
		defer close(flushDone)
		for batch := range batches {
			for _, e := range batch {
				seen[e.ID]++
			}
		}
	}()

	stop := make(chan struct{})
	var flusher sync.WaitGroup
	flusher.Add(1)
	go func() {
		defer flusher.Done()
		for {
			select {
			case <-stop:
				return
			default:
				if batch := buffer.Take(); batch != nil {
					batches <- batch
				}
			}
		}
	}()

	produced.Wait()
	close(stop)
	flusher.Wait()
	if batch := buffer.Take(); batch != nil {
		batches <- batch
	}
	close(batches)
	<-flushDone

	if len(seen) != producers*perProducer {
		t.Fatalf("expected %d distinct events, got %d", producers*perProducer, len(seen))
	}
	for id, count := range seen {
		if count != 1 {
			t.Fatalf("event %s appeared in %d batches", id, count)
		}
	}
}
