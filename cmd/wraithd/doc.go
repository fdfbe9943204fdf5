// Copyright 2026 The Wraith Authors
// SPDX-License-Identifier: Apache-2.0

// wraithd is the local telemetry collection daemon. CLI tools connect
// to its unix socket and submit one JSON event per connection; the
// daemon buffers events and ships them to the remote ingestion
// endpoint in batches.
//
// The daemon is spawned by the first tool invocation and watches its
// parent process: when the parent exits, or when no events arrive for
// the idle timeout, the daemon drains its buffer and exits. Telemetry
// can be switched off with the INFRAIQ_TELEMETRY environment variable
// or the settings file; a disabled daemon exits immediately with
// status 0.
//
// Event loss is acceptable by design: on buffer overflow, dispatch
// overload, or exhausted retries, events are dropped and counted, and
// the daemon keeps running. Nothing here may ever fail a producing
// tool.
package main
