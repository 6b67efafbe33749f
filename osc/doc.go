// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package osc implements the addressed, typed message format carried on
// a remote-session connection.
//
// A message is an address (a slash-separated path such as "/Screen" or
// "/MessageHandler/OnKeyDown") followed by an ordered sequence of typed
// arguments. The packet layout follows OSC 1.0: every item is padded to
// a four-byte boundary and multi-byte values are big-endian.
//
//	address      OSC-string (bytes, NUL, zero padding to 4)
//	type tags    OSC-string beginning with ','
//	arguments    one encoding per tag:
//	  'i'  int32              4 bytes
//	  'f'  float32            4 bytes IEEE 754
//	  'B'  bool               1 flag byte, padded to 4
//	  'c'  Char               4-byte code point
//	  's'  string             OSC-string
//	  'b'  []byte             int32 length, bytes, padded to 4
//	  'v'  Vector2            two float32
//
// On a stream transport each packet is preceded by its length as a
// big-endian uint32 ([WritePacket], [ReadPacket]), the OSC 1.0 stream
// convention.
//
// A Message is built once for sending and then treated as immutable.
// On receipt, the Read* methods extract arguments in order through an
// internal cursor; [Message.Rewind] resets it so several handlers
// registered on one address can each read the full argument list.
package osc
