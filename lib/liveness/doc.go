// Copyright 2026 The Wraith Authors
// SPDX-License-Identifier: Apache-2.0

// Package liveness answers whether a process is still running.
//
// The daemon polls its parent through a Checker so that tests can
// substitute a fake and drive the parent-exit path deterministically.
package liveness
