// Copyright 2026 The Wraith Authors
// SPDX-License-Identifier: Apache-2.0

// Package event defines the Wraith telemetry data types: the anonymized
// usage event, its severity levels, the per-installation context, and
// the batch wire format sent to the ingestion endpoint.
//
// The wire shape is one flat JSON object per event. Payload fields are
// flattened at the top level next to id, timestamp, level, and context,
// discriminated by the "event_type" field. Adding a new event type is a
// closed-set change: the payload variants form a sealed sum type and the
// codec in wire.go must be extended in step.
//
// Optional fields (os_version, traceback, details) are pointers and are
// omitted entirely from serialized output when nil. The ingestion
// schema relies on field absence to mean "unknown", distinct from an
// explicit empty value.
package event
