// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for the remote-session
// packages.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// pattern so individual tests never call time.After directly.
// [Eventually] polls a condition that another goroutine is expected to
// make true (a reader goroutine enqueueing a packet, a background
// decode publishing an image). [Tick] drives anything with a
// Tick(time.Duration) method until a condition holds, which is how the
// end-to-end tests walk a host and a client through their state
// machines on real sockets.
//
// All helpers call t.Fatalf on failure rather than returning errors.
package testutil
