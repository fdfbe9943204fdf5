// Copyright 2026 The Wraith Authors
// SPDX-License-Identifier: Apache-2.0

//go:build unix

package liveness

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

type systemChecker struct{}

// Alive probes the process with signal 0. ESRCH means the process is
// gone; EPERM means it exists but belongs to another user, which still
// counts as alive.
func (systemChecker) Alive(pid int) (bool, error) {
	err := unix.Kill(pid, 0)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, unix.ESRCH):
		return false, nil
	case errors.Is(err, unix.EPERM):
		return true, nil
	default:
		return true, fmt.Errorf("probing pid %d: %w", pid, err)
	}
}
