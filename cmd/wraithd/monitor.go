// Copyright 2026 The Wraith Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/autonops/wraith/lib/clock"
	"github.com/autonops/wraith/lib/liveness"
)

// Shutdown reasons reported by the monitor and carried into the
// daemon_stopping event.
const (
	reasonParentExited = "parent exited"
	reasonIdleTimeout  = "idle timeout"
	reasonSignal       = "shutdown signal"
)

// Monitor watches the parent process and the daemon's activity. When
// the parent dies or nothing has arrived for the idle timeout, it
// requests a drain through the Shutdown channel. Liveness probe
// errors are logged and treated as alive: a broken probe must not
// kill an otherwise healthy daemon.
type Monitor struct {
	parentPID     int
	checker       liveness.Checker
	clock         clock.Clock
	logger        *slog.Logger
	checkInterval time.Duration
	idleTimeout   time.Duration

	mu           sync.Mutex
	lastActivity time.Time

	// shutdown carries the first shutdown reason. Capacity 1; later
	// requests are discarded.
	shutdown chan string
}

// NewMonitor creates a Monitor for the given parent pid. The idle
// window starts at creation.
func NewMonitor(parentPID int, checker liveness.Checker, clk clock.Clock, logger *slog.Logger, checkInterval, idleTimeout time.Duration) *Monitor {
	return &Monitor{
		parentPID:     parentPID,
		checker:       checker,
		clock:         clk,
		logger:        logger,
		checkInterval: checkInterval,
		idleTimeout:   idleTimeout,
		lastActivity:  clk.Now(),
		shutdown:      make(chan string, 1),
	}
}

// Touch resets the idle window. Called by the listener on every
// accepted connection and decoded event.
func (m *Monitor) Touch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastActivity = m.clock.Now()
}

// Shutdown returns the channel that delivers the shutdown reason.
func (m *Monitor) Shutdown() <-chan string {
	return m.shutdown
}

// Run checks parent liveness and idleness on a fixed tick until the
// context is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := m.clock.NewTicker(m.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.check()
		case <-ctx.Done():
			return
		}
	}
}

func (m *Monitor) check() {
	alive, err := m.checker.Alive(m.parentPID)
	if err != nil {
		m.logger.Warn("parent liveness check failed", "error", err, "parent_pid", m.parentPID)
	} else if !alive {
		m.request(reasonParentExited)
		return
	}

	m.mu.Lock()
	idle := m.clock.Now().Sub(m.lastActivity)
	m.mu.Unlock()
	if idle >= m.idleTimeout {
		m.request(reasonIdleTimeout)
	}
}

// request records the shutdown reason. Only the first request wins.
func (m *Monitor) request(reason string) {
	select {
	case m.shutdown <- reason:
	default:
	}
}
