// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package channel implements the typed streams that ride on a session's
// [backchannel.Connection].
//
// A channel is created in one [Mode]. A host sends framebuffer images
// and receives input events; a client does the reverse. Channels never
// hold the connection directly. They hold the session's [Handle] and
// resolve it once per operation, so a connection the session has
// dropped is simply unavailable rather than dangling.
//
// Work that would stall the tick loop (image encoding and decoding)
// runs on an [Executor]. Executors may refuse work when saturated; a
// refused frame is dropped and counted, which is the backpressure
// policy for video.
package channel
