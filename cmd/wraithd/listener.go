// Copyright 2026 The Wraith Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/autonops/wraith/lib/clock"
	"github.com/autonops/wraith/lib/schema/event"
)

// Listener tuning. Each connection carries exactly one JSON submission
// and gets no response; clients write and disconnect. Submissions are
// small, so the read deadline and size limit are tight.
const (
	maxConnections = 32
	readDeadline   = 250 * time.Millisecond
	maxMessageSize = 64 * 1024
)

// Listener accepts event submissions on the daemon's unix socket. Each
// accepted connection is handled on its own goroutine, bounded by a
// semaphore; at the bound, connections are accepted and immediately
// closed so clients never block on a busy daemon.
type Listener struct {
	path   string
	clock  clock.Clock
	logger *slog.Logger

	// intake receives each decoded, stamped event. It must not block:
	// the daemon's intake path only takes the buffer mutex.
	intake func(event.Event)

	// touch marks activity for the idle monitor. Called on every
	// accepted connection and again per decoded event.
	touch func()

	listener net.Listener
	sem      chan struct{}
	wg       sync.WaitGroup

	decodeFailures atomic.Uint64
}

// NewListener creates a Listener for the given socket path. Call Bind
// before Serve.
func NewListener(path string, clk clock.Clock, logger *slog.Logger, intake func(event.Event), touch func()) *Listener {
	return &Listener{
		path:   path,
		clock:  clk,
		logger: logger,
		intake: intake,
		touch:  touch,
		sem:    make(chan struct{}, maxConnections),
	}
}

// Bind creates the unix socket. A stale socket file from a previous
// run is removed first. Bind failure is the one fatal startup error.
func (l *Listener) Bind() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", l.path, err)
	}

	listener, err := net.Listen("unix", l.path)
	if err != nil {
		return fmt.Errorf("binding socket %s: %w", l.path, err)
	}
	l.listener = listener
	return nil
}

// Serve runs the accept loop until the context is cancelled, then
// closes the listener, waits for active connections, and removes the
// socket file. Accept errors other than shutdown are logged and the
// loop continues.
func (l *Listener) Serve(ctx context.Context) error {
	if l.listener == nil {
		panic("listener: Serve called before Bind")
	}

	// Closing the listener unblocks Accept when the context ends.
	shutdown := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-shutdown:
		}
		l.listener.Close()
	}()
	defer close(shutdown)

	for {
		conn, err := l.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			l.logger.Warn("accept failed", "error", err)
			continue
		}

		l.touch()

		select {
		case l.sem <- struct{}{}:
		default:
			// At the connection bound: shed load instead of queueing.
			conn.Close()
			continue
		}

		l.wg.Add(1)
		go func() {
			defer func() {
				<-l.sem
				l.wg.Done()
			}()
			l.handle(conn)
		}()
	}

	l.wg.Wait()
	os.Remove(l.path)
	return nil
}

// handle reads one submission from the connection. Fire-and-forget:
// nothing is ever written back, and per-message failures only count
// and log.
func (l *Listener) handle(conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(readDeadline))

	data, err := io.ReadAll(io.LimitReader(conn, maxMessageSize+1))
	if err != nil {
		l.decodeFailures.Add(1)
		l.logger.Debug("submission read failed", "error", err)
		return
	}
	if len(data) > maxMessageSize {
		l.decodeFailures.Add(1)
		l.logger.Debug("submission rejected", "reason", "message too large", "limit", maxMessageSize)
		return
	}

	level, payload, eventContext, err := event.DecodeSubmission(data)
	if err != nil {
		l.decodeFailures.Add(1)
		l.logger.Debug("submission rejected", "error", err)
		return
	}

	l.touch()
	l.intake(event.New(l.clock.Now(), level, payload, eventContext))
}

// DecodeFailures returns the number of connections whose submission
// could not be read or decoded.
func (l *Listener) DecodeFailures() uint64 {
	return l.decodeFailures.Load()
}
