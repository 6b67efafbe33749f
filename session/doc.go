// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package session drives the two ends of a remote session.
//
// A [Host] listens for a client and streams its framebuffer while
// replaying the client's input. A [Client] connects to a host, retrying
// on a fixed interval, displays the framebuffer and forwards local
// input. Both embed a [Role], which owns the live connection and its
// channels.
//
// Everything except packet reception happens on the goroutine that
// calls Tick. Reception runs there too unless the role is switched to
// a background receiver with [Role.SetReceiveInBackground]. Replayed
// input events are posted to the role's [Queue] and run during the
// next Tick, so application input entry points are only ever called
// from the tick goroutine.
package session
