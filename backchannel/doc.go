// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package backchannel carries addressed osc messages over a reliable
// byte stream.
//
// A [Connection] owns one transport exclusively. Once started, a reader
// goroutine decodes length-prefixed packets into an inbound queue; the
// queue is drained and dispatched by [Connection.ReceivePackets] on
// whatever goroutine calls it, normally the session's tick loop or a
// dedicated background receiver. Handlers therefore never run on the
// reader goroutine.
//
// Per-address coalescing ([Connection.SetMessageOptions]) bounds how
// many undelivered messages for one address may wait in the queue.
// When a new message arrives for an address already at its limit, the
// oldest pending message for that address is dropped. The framebuffer
// channel uses a limit of one so that a slow consumer only ever sees the
// newest frame.
//
// Sends are serialized by a mutex held only for the write of one
// complete frame, so any number of goroutines may call
// [Connection.SendPacket] concurrently with each other and with the
// reader.
//
// Any transport error marks the connection disconnected. The
// connection does not reconnect; its owner discards it and creates a
// new one.
package backchannel
