// Copyright 2026 The Wraith Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/autonops/wraith/lib/clock"
	"github.com/autonops/wraith/lib/schema/event"
	"github.com/autonops/wraith/lib/version"
)

// Sender delivers one batch to the ingestion endpoint. The dispatcher
// uses this interface so that tests can substitute a fake
// implementation with scripted failures.
type Sender interface {
	Send(ctx context.Context, batch event.Batch) error
}

// httpSender posts JSON batches to the ingestion endpoint.
type httpSender struct {
	endpoint  string
	client    *http.Client
	userAgent string
}

// newHTTPSender creates a Sender that posts to the given endpoint.
// Per-attempt timeouts come from the request context, not the client.
func newHTTPSender(endpoint string) Sender {
	return &httpSender{
		endpoint:  endpoint,
		client:    &http.Client{},
		userAgent: "wraithd/" + version.Short(),
	}
}

// Send posts the batch. Any 2xx status counts as delivered; everything
// else is a failed attempt.
func (s *httpSender) Send(ctx context.Context, batch event.Batch) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("encoding batch: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("User-Agent", s.userAgent)

	response, err := s.client.Do(request)
	if err != nil {
		return fmt.Errorf("posting batch: %w", err)
	}
	defer response.Body.Close()
	// Drain so the connection can be reused.
	io.Copy(io.Discard, io.LimitReader(response.Body, 4096))

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return fmt.Errorf("posting batch: endpoint returned %s", response.Status)
	}
	return nil
}

// Dispatch tuning. A batch gets dispatchAttempts tries, each bounded
// by attemptTimeout, with dispatchBackoff waits between them. At most
// maxInFlight dispatches run concurrently; a batch that cannot claim a
// slot within slotWait is dropped.
const (
	dispatchAttempts = 3
	attemptTimeout   = 10 * time.Second
	maxInFlight      = 2
	slotWait         = 250 * time.Millisecond
)

var dispatchBackoff = [...]time.Duration{500 * time.Millisecond, time.Second}

// Dispatcher ships detached batches to the ingestion endpoint without
// ever blocking the intake path. Exhausted retries and slot overload
// both end in drop-and-count; no batch is retried beyond its attempts
// and nothing is persisted.
type Dispatcher struct {
	sender Sender
	clock  clock.Clock
	logger *slog.Logger

	// slots bounds concurrent in-flight dispatches.
	slots chan struct{}
	wg    sync.WaitGroup

	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// NewDispatcher creates a Dispatcher shipping through the given Sender.
func NewDispatcher(sender Sender, clk clock.Clock, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		sender: sender,
		clock:  clk,
		logger: logger,
		slots:  make(chan struct{}, maxInFlight),
	}
}

// TryDispatch reserves a dispatch slot without waiting, then detaches
// a batch through take and ships it. Used on the intake path, which
// must never block: when no slot is free, it returns false and the
// caller's events stay buffered. The detach happens only after the
// slot is held, so a batch is never left stranded between buffer and
// dispatcher.
func (d *Dispatcher) TryDispatch(ctx context.Context, take func() []event.Event) bool {
	select {
	case d.slots <- struct{}{}:
	default:
		return false
	}

	events := take()
	if len(events) == 0 {
		<-d.slots
		return true
	}

	d.wg.Add(1)
	go func() {
		defer func() {
			<-d.slots
			d.wg.Done()
		}()
		d.deliver(ctx, events)
	}()
	return true
}

// Dispatch ships the batch in its own goroutine and returns promptly.
// When no dispatch slot frees up within the slot wait, the batch is
// dropped and counted.
func (d *Dispatcher) Dispatch(ctx context.Context, events []event.Event) {
	if len(events) == 0 {
		return
	}

	// Fast path first so no timer is created when a slot is free.
	select {
	case d.slots <- struct{}{}:
	default:
		select {
		case d.slots <- struct{}{}:
		case <-d.clock.After(slotWait):
			d.dropped.Add(uint64(len(events)))
			d.logger.Warn("dispatch overloaded, dropping batch",
				"events", len(events),
				"in_flight", len(d.slots),
			)
			return
		case <-ctx.Done():
			d.dropped.Add(uint64(len(events)))
			return
		}
	}

	d.wg.Add(1)
	go func() {
		defer func() {
			<-d.slots
			d.wg.Done()
		}()
		d.deliver(ctx, events)
	}()
}

// deliver runs the bounded retry loop for one batch.
func (d *Dispatcher) deliver(ctx context.Context, events []event.Event) {
	batch := event.Batch{Events: events}

	for attempt := 1; attempt <= dispatchAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		err := d.sender.Send(attemptCtx, batch)
		cancel()

		if err == nil {
			d.delivered.Add(uint64(len(events)))
			return
		}
		if ctx.Err() != nil {
			break
		}

		if attempt < dispatchAttempts {
			backoff := dispatchBackoff[attempt-1]
			d.logger.Debug("batch send failed, will retry",
				"error", err,
				"attempt", attempt,
				"backoff", backoff,
			)
			select {
			case <-d.clock.After(backoff):
			case <-ctx.Done():
				d.dropped.Add(uint64(len(events)))
				return
			}
			continue
		}

		d.logger.Warn("batch dropped after exhausted retries",
			"error", err,
			"events", len(events),
			"attempts", dispatchAttempts,
		)
	}

	d.dropped.Add(uint64(len(events)))
}

// DispatchFinal makes one synchronous send attempt under the caller's
// deadline. Used on the drain path, where retry budgets no longer
// apply. The returned error is for logging only; the daemon exits 0
// either way.
func (d *Dispatcher) DispatchFinal(ctx context.Context, events []event.Event) error {
	if len(events) == 0 {
		return nil
	}
	if err := d.sender.Send(ctx, event.Batch{Events: events}); err != nil {
		d.dropped.Add(uint64(len(events)))
		return err
	}
	d.delivered.Add(uint64(len(events)))
	return nil
}

// Wait blocks until all in-flight dispatches finish.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Delivered returns the number of events confirmed by the endpoint.
func (d *Dispatcher) Delivered() uint64 { return d.delivered.Load() }

// Dropped returns the number of events abandoned by the dispatcher.
func (d *Dispatcher) Dropped() uint64 { return d.dropped.Load() }
