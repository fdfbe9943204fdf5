// Copyright 2026 The Wraith Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/autonops/wraith/lib/clock"
)

// fakeChecker scripts parent liveness. Thread-safe: the monitor polls
// from its own goroutine.
type fakeChecker struct {
	mu    sync.Mutex
	alive bool
	err   error
}

func (f *fakeChecker) Alive(int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive, f.err
}

func (f *fakeChecker) set(alive bool, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alive = alive
	f.err = err
}

func startMonitor(t *testing.T, checker *fakeChecker, fakeClock *clock.FakeClock) *Monitor {
	t.Helper()
	monitor := NewMonitor(4242, checker, fakeClock, discardLogger(), 5*time.Second, 5*time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go monitor.Run(ctx)

	// The tick loop must be registered before tests advance the clock.
	fakeClock.WaitForTimers(1)
	return monitor
}

func waitForReason(t *testing.T, monitor *Monitor) string {
	t.Helper()
	select {
	case reason := <-monitor.Shutdown():
		return reason
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for shutdown request")
		return ""
	}
}

func TestMonitorParentExit(t *testing.T) {
	checker := &fakeChecker{alive: true}
	fakeClock := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	monitor := startMonitor(t, checker, fakeClock)

	fakeClock.Advance(5 * time.Second)
	select {
	case reason := <-monitor.Shutdown():
		t.Fatalf("unexpected shutdown %q with live parent", reason)
	default:
	}

	checker.set(false, nil)
	fakeClock.Advance(5 * time.Second)
	if reason := waitForReason(t, monitor); reason != reasonParentExited {
		t.Fatalf("expected %q, got %q", reasonParentExited, reason)
	}
}

func TestMonitorLivenessErrorTreatedAlive(t *testing.T) {
	checker := &fakeChecker{alive: false, err: errors.New("probe failed")}
	fakeClock := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	monitor := startMonitor(t, checker, fakeClock)

	// Several failed probes must not trigger a parent-exit shutdown.
	for i := 0; i < 3; i++ {
		fakeClock.Advance(5 * time.Second)
	}
	select {
	case reason := <-monitor.Shutdown():
		if reason == reasonParentExited {
			t.Fatalf("probe error must not be treated as a dead parent")
		}
	default:
	}
}

func TestMonitorIdleTimeout(t *testing.T) {
	checker := &fakeChecker{alive: true}
	fakeClock := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	monitor := startMonitor(t, checker, fakeClock)

	fakeClock.Advance(5 * time.Minute)
	if reason := waitForReason(t, monitor); reason != reasonIdleTimeout {
		t.Fatalf("expected %q, got %q", reasonIdleTimeout, reason)
	}
}

func TestMonitorTouchResetsIdleWindow(t *testing.T) {
	checker := &fakeChecker{alive: true}
	fakeClock := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	monitor := startMonitor(t, checker, fakeClock)

	fakeClock.Advance(4 * time.Minute)
	monitor.Touch()

	// Only four minutes have passed since the touch: still active.
	fakeClock.Advance(4 * time.Minute)
	select {
	case reason := <-monitor.Shutdown():
		t.Fatalf("unexpected shutdown %q after recent activity", reason)
	default:
	}

	fakeClock.Advance(time.Minute)
	if reason := waitForReason(t, monitor); reason != reasonIdleTimeout {
		t.Fatalf("expected %q, got %q", reasonIdleTimeout, reason)
	}
}
