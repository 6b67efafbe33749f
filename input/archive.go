// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package input

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrShortPayload is returned when an event payload ends before all of
// its fields are read.
var ErrShortPayload = errors.New("event payload too short")

// Payload sizes in bytes.
const (
	keyCharPayloadSize = 4 + 1
	keyPayloadSize     = 4 + 4 + 1
	touchPayloadSize   = 8 + 4 + 4
)

type archiveWriter struct{ buffer []byte }

func (w *archiveWriter) putInt32(value int32) { w.buffer = binary.LittleEndian.AppendUint32(w.buffer, uint32(value)) }
func (w *archiveWriter) putChar(value rune) { w.buffer = binary.LittleEndian.AppendUint32(w.buffer, uint32(value)) }

func (w *archiveWriter) putBool(value bool) {
	var flag byte
	if value {
		flag = 1
	}
	w.buffer = append(w.buffer, flag)
}

func (w *archiveWriter) putVector(value Vector2) {
	w.buffer = binary.LittleEndian.AppendUint32(w.buffer, math.Float32bits(value.X))
	w.buffer = binary.LittleEndian.AppendUint32(w.buffer, math.Float32bits(value.Y))
}

// archiveReader reads fields in order and remembers the first error.
type archiveReader struct {
	data   []byte
	offset int
	err    error
}

func (r *archiveReader) take(n int) []byte {
	if r.err != nil {
		return make([]byte, n)
	}
	if r.offset+n > len(r.data) {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrShortPayload, n, r.offset, len(r.data))
		return make([]byte, n)
	}
	chunk := r.data[r.offset : r.offset+n]
	r.offset += n
	return chunk
}

func (r *archiveReader) getInt32() int32 { return int32(binary.LittleEndian.Uint32(r.take(4))) }
func (r *archiveReader) getChar() rune { return rune(binary.LittleEndian.Uint32(r.take(4))) }
func (r *archiveReader) getBool() bool { return r.take(1)[0] != 0 }

func (r *archiveReader) getVector() Vector2 {
	x := math.Float32frombits(binary.LittleEndian.Uint32(r.take(4)))
	y := math.Float32frombits(binary.LittleEndian.Uint32(r.take(4)))
	return Vector2{X: x, Y: y}
}

// MarshalBinary encodes {character, isRepeat}.
func (e KeyCharEvent) MarshalBinary() ([]byte, error) {
	w := archiveWriter{buffer: make([]byte, 0, keyCharPayloadSize)}
	w.putChar(e.Character)
	w.putBool(e.IsRepeat)
	return w.buffer, nil
}

// UnmarshalBinary decodes a payload written by MarshalBinary.
func (e *KeyCharEvent) UnmarshalBinary(data []byte) error {
	r := archiveReader{data: data}
	e.Character = r.getChar()
	e.IsRepeat = r.getBool()
	return r.err
}

// MarshalBinary encodes {keyCode, characterCode, isRepeat}.
func (e KeyEvent) MarshalBinary() ([]byte, error) {
	w := archiveWriter{buffer: make([]byte, 0, keyPayloadSize)}
	w.putInt32(e.KeyCode)
	w.putChar(e.CharacterCode)
	w.putBool(e.IsRepeat)
	return w.buffer, nil
}

// UnmarshalBinary decodes a payload written by MarshalBinary.
func (e *KeyEvent) UnmarshalBinary(data []byte) error {
	r := archiveReader{data: data}
	e.KeyCode = r.getInt32()
	e.CharacterCode = r.getChar()
	e.IsRepeat = r.getBool()
	return r.err
}

// MarshalBinary encodes {location, touchIndex, controllerID}.
func (e TouchEvent) MarshalBinary() ([]byte, error) {
	w := archiveWriter{buffer: make([]byte, 0, touchPayloadSize)}
	w.putVector(e.Location)
	w.putInt32(e.TouchIndex)
	w.putInt32(e.ControllerID)
	return w.buffer, nil
}

// UnmarshalBinary decodes a payload written by MarshalBinary.
func (e *TouchEvent) UnmarshalBinary(data []byte) error {
	r := archiveReader{data: data}
	e.Location = r.getVector()
	e.TouchIndex = r.getInt32()
	e.ControllerID = r.getInt32()
	return r.err
}
