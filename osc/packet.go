// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package osc

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// MarshalBinary encodes the message as one OSC packet.
func (m *Message) MarshalBinary() ([]byte, error) {
	if !strings.HasPrefix(m.Address, "/") {
		return nil, fmt.Errorf("%w: address %q must begin with '/'", ErrMalformed, m.Address)
	}
	tags, err := m.TypeTags()
	if err != nil {
		return nil, err
	}

	size := paddedStringLength(m.Address) + paddedStringLength(","+tags)
	for _, argument := range m.Arguments {
		size += argumentLength(argument)
	}

	buffer := make([]byte, 0, size)
	buffer = appendString(buffer, m.Address)
	buffer = appendString(buffer, ","+tags)
	for _, argument := range m.Arguments {
		buffer = appendArgument(buffer, argument)
	}
	return buffer, nil
}

// Unmarshal decodes one OSC packet. The returned message's blob
// arguments alias data.
func Unmarshal(data []byte) (*Message, error) {
	reader := packetReader{data: data}

	address, err := reader.string()
	if err != nil {
		return nil, fmt.Errorf("read address: %w", err)
	}
	if !strings.HasPrefix(address, "/") {
		return nil, fmt.Errorf("%w: address %q must begin with '/'", ErrMalformed, address)
	}

	// A packet that ends after the address carries no arguments. Some
	// OSC senders omit the tag string entirely in that case.
	if reader.offset == len(data) {
		return &Message{Address: address}, nil
	}

	tags, err := reader.string()
	if err != nil {
		return nil, fmt.Errorf("%s: read type tags: %w", address, err)
	}
	if !strings.HasPrefix(tags, ",") {
		return nil, fmt.Errorf("%w: %s: type tag string %q does not begin with ','", ErrMalformed, address, tags)
	}
	tags = tags[1:]

	message := &Message{Address: address, Arguments: make([]any, 0, len(tags))}
	for index := 0; index < len(tags); index++ {
		argument, err := reader.argument(tags[index])
		if err != nil {
			return nil, fmt.Errorf("%s: argument %d (%c): %w", address, index, tags[index], err)
		}
		message.Arguments = append(message.Arguments, argument)
	}
	if reader.offset != len(data) {
		return nil, fmt.Errorf("%w: %s: %d trailing bytes", ErrMalformed, address, len(data)-reader.offset)
	}
	return message, nil
}

func pad4(n int) int { return (n + 3) &^ 3 }

// paddedStringLength is the encoded size of s: its bytes, at least one
// NUL, and zero padding to a multiple of four.
func paddedStringLength(s string) int { return pad4(len(s) + 1) }

func appendString(buffer []byte, s string) []byte {
	buffer = append(buffer, s...)
	for range paddedStringLength(s) - len(s) {
		buffer = append(buffer, 0)
	}
	return buffer
}

func argumentLength(argument any) int {
	switch value := argument.(type) {
	case int32, float32, bool, Char:
		return 4
	case string:
		return paddedStringLength(value)
	case []byte:
		return 4 + pad4(len(value))
	case Vector2:
		return 8
	}
	return 0
}

func appendArgument(buffer []byte, argument any) []byte {
	switch value := argument.(type) {
	case int32:
		buffer = binary.BigEndian.AppendUint32(buffer, uint32(value))
	case float32:
		buffer = binary.BigEndian.AppendUint32(buffer, math.Float32bits(value))
	case bool:
		var flag byte
		if value {
			flag = 1
		}
		buffer = append(buffer, flag, 0, 0, 0)
	case Char:
		buffer = binary.BigEndian.AppendUint32(buffer, uint32(value))
	case string:
		buffer = appendString(buffer, value)
	case []byte:
		buffer = binary.BigEndian.AppendUint32(buffer, uint32(len(value)))
		buffer = append(buffer, value...)
		for range pad4(len(value)) - len(value) {
			buffer = append(buffer, 0)
		}
	case Vector2:
		buffer = binary.BigEndian.AppendUint32(buffer, math.Float32bits(value.X))
		buffer = binary.BigEndian.AppendUint32(buffer, math.Float32bits(value.Y))
	}
	return buffer
}

type packetReader struct {
	data   []byte
	offset int
}

func (r *packetReader) take(n int) ([]byte, error) {
	if n < 0 || r.offset+n > len(r.data) {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, packet is %d bytes", ErrMalformed, n, r.offset, len(r.data))
	}
	chunk := r.data[r.offset : r.offset+n]
	r.offset += n
	return chunk, nil
}

func (r *packetReader) string() (string, error) {
	rest := r.data[r.offset:]
	end := -1
	for index, b := range rest {
		if b == 0 {
			end = index
			break
		}
	}
	if end < 0 {
		return "", fmt.Errorf("%w: unterminated string at offset %d", ErrMalformed, r.offset)
	}
	value := string(rest[:end])
	if _, err := r.take(paddedStringLength(value)); err != nil {
		return "", err
	}
	return value, nil
}

func (r *packetReader) uint32() (uint32, error) {
	chunk, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(chunk), nil
}

func (r *packetReader) argument(tag byte) (any, error) {
	switch tag {
	case TagInt32:
		value, err := r.uint32()
		return int32(value), err
	case TagFloat32:
		value, err := r.uint32()
		return math.Float32frombits(value), err
	case TagBool:
		chunk, err := r.take(4)
		if err != nil {
			return nil, err
		}
		return chunk[0] != 0, nil
	case TagChar:
		value, err := r.uint32()
		return Char(value), err
	case TagString:
		return r.string()
	case TagBlob:
		length, err := r.uint32()
		if err != nil {
			return nil, err
		}
		if length > uint32(len(r.data)) {
			return nil, fmt.Errorf("%w: blob length %d exceeds packet", ErrMalformed, length)
		}
		chunk, err := r.take(pad4(int(length)))
		if err != nil {
			return nil, err
		}
		return chunk[:length:length], nil
	case TagVector2:
		x, err := r.uint32()
		if err != nil {
			return nil, err
		}
		y, err := r.uint32()
		if err != nil {
			return nil, err
		}
		return Vector2{X: math.Float32frombits(x), Y: math.Float32frombits(y)}, nil
	default:
		return nil, fmt.Errorf("%w: unknown type tag %q", ErrMalformed, tag)
	}
}
