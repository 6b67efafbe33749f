// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package input records local keyboard and touch events for a remote
// peer and replays the peer's events into the local input path.
//
// A [RecordingHandler] sits in front of the application's [Handler].
// Every event passing through it is, in order:
//
//  1. serialized and handed to the [Writer] when recording is on,
//  2. swallowed when consume-input is set, otherwise
//  3. forwarded to the target handler.
//
// Touch locations are recorded normalized to [0,1] against the local
// viewport and mapped back onto the playback window when replayed, so
// host and client windows need not be the same size.
//
// [RecordingHandler.PlayMessage] decodes a serialized event and posts
// its replay to a [Scheduler], normally the application's main loop,
// since input handlers are not safe to call from the network receiver.
// The replay re-enters the handler's own entry points, so the same
// record and consume rules apply to replayed events.
//
// Event payloads use a fixed little-endian layout: a character is a
// 4-byte code point, a bool one byte, an int32 four bytes and a
// [Vector2] two float32 values. [SessionRecorder] and [SessionPlayer]
// store and replay a timed sequence of such payloads as a CBOR file.
package input
