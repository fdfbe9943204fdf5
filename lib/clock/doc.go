// Copyright 2026 The Wraith Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time for testability. Production code injects
// Real(); tests inject Fake() and drive time deterministically with
// Advance. Every daemon component that waits on wall-clock time (flush
// age checks, retry backoff, monitor ticks) takes a Clock instead of
// calling the time package directly.
package clock
