// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package osc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxPacketSize is the largest packet accepted by [ReadPacket]. A
// full-resolution compressed frame fits comfortably; anything larger is
// treated as a corrupt length prefix rather than allocated.
const MaxPacketSize = 32 << 20

// ErrPacketTooLarge is returned when a length prefix exceeds
// MaxPacketSize.
var ErrPacketTooLarge = errors.New("osc packet exceeds maximum size")

// WritePacket writes one length-prefixed packet to w. The header and
// body go out in a single Write so that concurrent writers serialized
// by a mutex never interleave partial frames.
func WritePacket(w io.Writer, packet []byte) error {
	if len(packet) > MaxPacketSize {
		return fmt.Errorf("write packet: %w (%d bytes)", ErrPacketTooLarge, len(packet))
	}
	frame := make([]byte, 4+len(packet))
	binary.BigEndian.PutUint32(frame[:4], uint32(len(packet)))
	copy(frame[4:], packet)
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("write packet: %w", err)
	}
	return nil
}

// ReadPacket reads one length-prefixed packet from r. An io.EOF before
// the first header byte is returned unwrapped so callers can tell an
// orderly close from truncation.
func ReadPacket(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read packet header: %w", err)
	}
	length := binary.BigEndian.Uint32(header[:])
	if length > MaxPacketSize {
		return nil, fmt.Errorf("read packet: %w (%d bytes)", ErrPacketTooLarge, length)
	}
	packet := make([]byte, length)
	if _, err := io.ReadFull(r, packet); err != nil {
		return nil, fmt.Errorf("read packet body: %w", err)
	}
	return packet, nil
}

// WriteMessage encodes message and writes it as one framed packet.
func WriteMessage(w io.Writer, message *Message) error {
	packet, err := message.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode %s: %w", message.Address, err)
	}
	return WritePacket(w, packet)
}

// ReadMessage reads and decodes one framed packet.
func ReadMessage(r io.Reader) (*Message, error) {
	packet, err := ReadPacket(r)
	if err != nil {
		return nil, err
	}
	return Unmarshal(packet)
}
