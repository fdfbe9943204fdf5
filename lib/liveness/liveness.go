// Copyright 2026 The Wraith Authors
// SPDX-License-Identifier: Apache-2.0

package liveness

// Checker reports whether a process is alive. A non-nil error means
// the check itself could not be performed; callers should treat the
// process as alive in that case rather than shutting down on a
// transient probe failure.
type Checker interface {
	Alive(pid int) (bool, error)
}

// System returns a Checker backed by the operating system.
func System() Checker {
	return systemChecker{}
}
