// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package termview shows a remote session in a terminal. A bubbletea
// [Model] drives the session's Tick from its own timer, paints the
// visible frame with half-block glyphs (two pixel rows per text row),
// and turns key presses and mouse drags into input events on a
// recording handler.
//
// Terminals report key presses but not releases, so every key press
// becomes a KeyDown, an optional KeyChar, and an immediate KeyUp.
// Ctrl+C quits the viewer and is not forwarded.
package termview
