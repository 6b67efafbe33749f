// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR encoding configuration for the
// remote-session file formats.
//
// The live wire protocol is OSC-style (see package osc) because both
// peers must agree on it byte for byte. Everything that is stored
// rather than streamed uses CBOR: recorded input sessions are a CBOR
// sequence of records, one per captured event. The encoder uses Core
// Deterministic Encoding (RFC 8949 §4.2) so the same recording always
// produces identical bytes.
//
// For buffer-oriented operations:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations (recording files):
//
//	encoder := codec.NewEncoder(file)
//	decoder := codec.NewDecoder(file)
//
// Types serialized here carry `cbor` struct tags only.
package codec
