// Copyright 2026 The Wraith Authors
// SPDX-License-Identifier: Apache-2.0

// Wraith-ingest-mock is a drop-in replacement for the remote ingestion
// endpoint in integration tests and manual daemon runs. It accepts the
// daemon's batch protocol exactly (POST /events with a JSON batch),
// stores everything in memory, and exposes query routes so tests can
// verify events were received.
//
// Routes:
//   - POST /events: accepts a batch, stores its events
//   - GET /healthz: liveness probe
//   - GET /stats: stored event counts, total and per event type
package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/autonops/wraith/lib/httpserver"
	"github.com/autonops/wraith/lib/process"
	"github.com/autonops/wraith/lib/schema/event"
	"github.com/autonops/wraith/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	listen := flag.String("listen", "127.0.0.1:8089", "TCP listen address")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		version.Print("wraith-ingest-mock")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	mock := &ingestMock{logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /events", mock.handleEvents)
	mux.HandleFunc("GET /healthz", mock.handleHealthz)
	mux.HandleFunc("GET /stats", mock.handleStats)

	server := httpserver.New(httpserver.Config{
		Address: *listen,
		Handler: mux,
		Logger:  logger,
	})
	return server.Serve(ctx)
}

// ingestMock stores received events in memory.
type ingestMock struct {
	logger *slog.Logger

	mu       sync.Mutex
	events   []event.Event
	rejected uint64
}

// maxBatchBytes bounds a single batch body. The daemon's own intake
// limit is far below this; anything larger is not a wraithd client.
const maxBatchBytes = 4 * 1024 * 1024

func (m *ingestMock) handleEvents(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBatchBytes))
	if err != nil {
		http.Error(w, "reading body", http.StatusBadRequest)
		return
	}

	var batch event.Batch
	if err := json.Unmarshal(body, &batch); err != nil {
		m.mu.Lock()
		m.rejected++
		m.mu.Unlock()
		m.logger.Warn("rejected batch", "error", err)
		http.Error(w, "malformed batch", http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.events = append(m.events, batch.Events...)
	total := len(m.events)
	m.mu.Unlock()

	m.logger.Info("batch accepted", "events", len(batch.Events), "total", total)
	w.WriteHeader(http.StatusAccepted)
}

func (m *ingestMock) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "ok\n")
}

// statsResponse is the GET /stats wire shape.
type statsResponse struct {
	Total    int            `json:"total"`
	Rejected uint64         `json:"rejected"`
	ByType   map[string]int `json:"by_type"`
}

func (m *ingestMock) handleStats(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	response := statsResponse{
		Total:    len(m.events),
		Rejected: m.rejected,
		ByType:   make(map[string]int),
	}
	for _, e := range m.events {
		response.ByType[string(e.Payload.Kind())]++
	}
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
