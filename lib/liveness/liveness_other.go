// Copyright 2026 The Wraith Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !unix

package liveness

import "errors"

type systemChecker struct{}

// Alive has no portable probe off unix; report alive with an error so
// the monitor logs the condition instead of killing the daemon.
func (systemChecker) Alive(pid int) (bool, error) {
	return true, errors.ErrUnsupported
}
