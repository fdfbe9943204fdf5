// Copyright 2026 The Wraith Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/autonops/wraith/lib/clock"
	"github.com/autonops/wraith/lib/liveness"
	"github.com/autonops/wraith/lib/schema/event"
)

// State is the daemon lifecycle phase.
type State int32

const (
	StateStarting State = iota
	StateRunning
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Drain tuning. Draining stops accepting, gives open connections a
// short grace period, then makes one final dispatch attempt. The
// whole sequence is bounded by drainDeadline; the daemon exits 0 no
// matter how far it got.
const (
	drainDeadline        = 3 * time.Second
	connectionGrace      = 500 * time.Millisecond
	finalDispatchTimeout = 2 * time.Second
)

// Daemon wires the listener, buffer, dispatcher, and monitor together
// and owns the Starting -> Running -> Draining -> Stopped lifecycle.
type Daemon struct {
	buffer     *Buffer
	dispatcher *Dispatcher
	listener   *Listener
	monitor    *Monitor
	clock      clock.Clock
	logger     *slog.Logger

	// selfContext is attached to the daemon's own lifecycle events
	// (daemon_started, daemon_stopping).
	selfContext event.Context
	parentPID   int

	tickInterval time.Duration

	// dispatchCtx governs in-flight dispatch goroutines. It outlives
	// the run context so that batches started before a drain can
	// finish inside the drain window.
	dispatchCtx context.Context

	state atomic.Int32
}

// DaemonConfig configures a Daemon. All fields are required.
type DaemonConfig struct {
	SocketPath  string
	ParentPID   int
	Sender      Sender
	Checker     liveness.Checker
	Clock       clock.Clock
	Logger      *slog.Logger
	SelfContext event.Context

	FlushCount    int
	FlushAge      time.Duration
	TickInterval  time.Duration
	IdleTimeout   time.Duration
	CheckInterval time.Duration
}

// NewDaemon assembles the daemon's components. The socket is not
// bound until Run.
func NewDaemon(config DaemonConfig) *Daemon {
	d := &Daemon{
		buffer:       NewBuffer(config.Clock, config.FlushCount, config.FlushAge),
		clock:        config.Clock,
		logger:       config.Logger,
		selfContext:  config.SelfContext,
		parentPID:    config.ParentPID,
		tickInterval: config.TickInterval,
	}
	d.dispatcher = NewDispatcher(config.Sender, config.Clock, config.Logger)
	d.monitor = NewMonitor(config.ParentPID, config.Checker, config.Clock, config.Logger,
		config.CheckInterval, config.IdleTimeout)
	d.listener = NewListener(config.SocketPath, config.Clock, config.Logger,
		d.Intake, d.monitor.Touch)
	return d
}

// State returns the current lifecycle phase.
func (d *Daemon) State() State {
	return State(d.state.Load())
}

func (d *Daemon) setState(s State) {
	d.state.Store(int32(s))
}

// Intake accepts one event from the listener. It only takes the
// buffer mutex; a triggered flush detaches the batch only if a
// dispatch slot is free, so the intake path never waits on the
// network. With all slots busy, events keep buffering until the hard
// cap turns further inserts into counted drops.
func (d *Daemon) Intake(e event.Event) {
	triggered, accepted := d.buffer.Insert(e)
	if !accepted {
		d.logger.Debug("event rejected at buffer capacity", "total_dropped", d.buffer.Dropped())
		return
	}
	if triggered {
		d.dispatcher.TryDispatch(d.dispatchCtx, d.buffer.Take)
	}
}

// Run executes the daemon lifecycle: bind the socket (the one fatal
// startup error), run all components until the context is cancelled
// or the monitor requests shutdown, then drain. Returns nil on every
// shutdown path after a successful bind.
func (d *Daemon) Run(ctx context.Context) error {
	d.setState(StateStarting)

	if err := d.listener.Bind(); err != nil {
		return err
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	defer stopDispatch()
	d.dispatchCtx = dispatchCtx

	listenerDone := make(chan error, 1)
	go func() {
		listenerDone <- d.listener.Serve(runCtx)
	}()
	go d.monitor.Run(runCtx)
	go d.runTicks(runCtx)

	d.Intake(event.New(d.clock.Now(), event.LevelInfo,
		event.DaemonStarted{ParentPID: d.parentPID}, d.selfContext))

	d.setState(StateRunning)
	d.logger.Info("daemon running", "parent_pid", d.parentPID)

	var reason string
	select {
	case <-ctx.Done():
		reason = reasonSignal
	case reason = <-d.monitor.Shutdown():
	}

	d.drain(stop, listenerDone, reason)
	return nil
}

// drain runs the shutdown sequence: stop accepting, grace period for
// open connections, record the stopping event, force-detach the
// buffer, one final dispatch attempt. Every step is best-effort and
// the whole sequence is capped by drainDeadline.
func (d *Daemon) drain(stop context.CancelFunc, listenerDone <-chan error, reason string) {
	d.setState(StateDraining)
	d.logger.Info("draining", "reason", reason)

	drainCtx, cancel := context.WithTimeout(context.Background(), drainDeadline)
	defer cancel()

	stop()

	// Grace period for connections accepted just before the stop.
	select {
	case <-d.clock.After(connectionGrace):
	case <-drainCtx.Done():
	}
	select {
	case <-listenerDone:
	case <-drainCtx.Done():
	}

	final := d.buffer.Take()
	final = append(final, event.New(d.clock.Now(), event.LevelInfo,
		event.DaemonStopping{Reason: reason}, d.selfContext))

	finalCtx, cancelFinal := context.WithTimeout(drainCtx, finalDispatchTimeout)
	defer cancelFinal()
	if err := d.dispatcher.DispatchFinal(finalCtx, final); err != nil {
		d.logger.Warn("final dispatch failed", "error", err, "events", len(final))
	}

	// Let in-flight dispatches finish inside the drain window.
	inFlightDone := make(chan struct{})
	go func() {
		d.dispatcher.Wait()
		close(inFlightDone)
	}()
	select {
	case <-inFlightDone:
	case <-drainCtx.Done():
	}

	d.logger.Info("daemon stopped",
		"reason", reason,
		"delivered", d.dispatcher.Delivered(),
		"dispatch_dropped", d.dispatcher.Dropped(),
		"buffer_dropped", d.buffer.Dropped(),
		"decode_failures", d.listener.DecodeFailures(),
	)
	d.setState(StateStopped)
}

// runTicks re-evaluates the flush triggers every tick. A pending
// count or urgent trigger left behind by a slot-starved insert goes
// first; otherwise a batch whose oldest event has reached the flush
// age is detached. Either way the batch takes the dispatcher's normal
// slot-wait path.
func (d *Daemon) runTicks(ctx context.Context) {
	ticker := d.clock.NewTicker(d.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			batch := d.buffer.TakeIfTriggered()
			if batch == nil {
				batch = d.buffer.TakeIfAged()
			}
			if batch != nil {
				d.dispatcher.Dispatch(d.dispatchCtx, batch)
			}
		case <-ctx.Done():
			return
		}
	}
}
