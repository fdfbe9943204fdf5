// Copyright 2026 The Wraith Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides shared helpers for Wraith binary entrypoints.
package process
