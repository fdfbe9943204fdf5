// Copyright 2026 The Wraith Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/autonops/wraith/lib/clock"
	"github.com/autonops/wraith/lib/config"
	"github.com/autonops/wraith/lib/liveness"
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
	parentPID := flag.Int("parent-pid", 0,
		"pid of the parent process to watch (required)")
	foreground := flag.Bool("foreground", false,
		"log at debug level to the terminal instead of daemon-style JSON")
	socketPath := flag.String("socket", "",
		"unix socket path (default <state-dir>/wraith.sock)")
	endpoint := flag.String("endpoint", "",
		"ingestion endpoint URL (default from WRAITH_SERVER_URL or built-in)")
	stateDir := flag.String("state-dir", "",
		"state directory (default ~/.infraiq)")
	flushCount := flag.Int("flush-count", 25,
		"buffered event count that triggers a flush")
	flushAge := flag.Duration("flush-age", 30*time.Second,
		"age of the oldest buffered event that triggers a flush")
	tickInterval := flag.Duration("tick-interval", time.Second,
		"how often the age-based flush condition is evaluated")
	idleTimeout := flag.Duration("idle-timeout", 5*time.Minute,
		"shut down after this long without any event activity")
	checkInterval := flag.Duration("check-interval", 5*time.Second,
		"how often parent liveness and idleness are checked")
	showVersion := flag.Bool("version", false, "print version and exit")

	flag.Parse()

	if *showVersion {
		version.Print("wraithd")
		return nil
	}

	if *parentPID <= 0 {
		return fmt.Errorf("--parent-pid is required and must be positive")
	}

	logger := newLogger(*foreground)

	dir := *stateDir
	if dir == "" {
		resolved, err := config.DefaultStateDir()
		if err != nil {
			return err
		}
		dir = resolved
	}

	// Kill switches are checked once; a disabled daemon exits 0
	// without binding the socket or starting any tickers.
	disabled, source, err := config.TelemetryDisabled(dir)
	if err != nil {
		logger.Warn("settings check failed, telemetry stays enabled", "error", err)
	}
	if disabled {
		logger.Info("telemetry disabled, exiting", "source", source)
		return nil
	}

	installationID, err := config.InstallationID(dir)
	if err != nil {
		// A fresh unpersisted id still works for this run.
		logger.Warn("installation id not persisted", "error", err)
	}

	socket := *socketPath
	if socket == "" {
		socket = config.SocketPath(dir)
	}
	url := *endpoint
	if url == "" {
		url = config.Endpoint()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	daemon := NewDaemon(DaemonConfig{
		SocketPath: socket,
		ParentPID:  *parentPID,
		Sender:     newHTTPSender(url),
		Checker:    liveness.System(),
		Clock:      clock.Real(),
		Logger:     logger,
		SelfContext: event.Context{
			InstallationID: installationID,
			ToolVersion:    version.Short(),
			PythonVersion:  "N/A",
			OS:             runtime.GOOS,
		},
		FlushCount:    *flushCount,
		FlushAge:      *flushAge,
		TickInterval:  *tickInterval,
		IdleTimeout:   *idleTimeout,
		CheckInterval: *checkInterval,
	})

	logger.Info("starting",
		"socket", socket,
		"endpoint", url,
		"parent_pid", *parentPID,
		"flush_count", *flushCount,
		"flush_age", *flushAge,
		"idle_timeout", *idleTimeout,
	)

	return daemon.Run(ctx)
}

// newLogger builds the daemon logger: JSON on stderr at Info for
// normal operation, debug level in foreground mode with a text
// handler when stderr is a terminal.
func newLogger(foreground bool) *slog.Logger {
	if !foreground {
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	options := &slog.HandlerOptions{Level: slog.LevelDebug}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		return slog.New(slog.NewTextHandler(os.Stderr, options))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, options))
}
