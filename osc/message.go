// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package osc

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed is wrapped by every decoding and argument-extraction
// failure.
var ErrMalformed = errors.New("malformed osc message")

// Type tags for the supported argument types.
const (
	TagInt32   byte = 'i'
	TagFloat32 byte = 'f'
	TagBool    byte = 'B'
	TagChar    byte = 'c'
	TagString  byte = 's'
	TagBlob    byte = 'b'
	TagVector2 byte = 'v'
)

// Char is a single character argument. It is distinct from int32 so
// that a character code and an integer key code keep their own tags on
// the wire.
type Char rune

// Vector2 is a pair of float32 values.
type Vector2 struct {
	X float32
	Y float32
}

// Message is one addressed packet.
type Message struct {
	// Address is the dispatch path. It must begin with '/'.
	Address string

	// Arguments holds values of type int32, float32, bool, Char,
	// string, []byte, or Vector2, in wire order.
	Arguments []any

	cursor int
}

// NewMessage returns a message for address carrying args.
func NewMessage(address string, args ...any) *Message {
	return &Message{Address: address, Arguments: args}
}

// AddInt32 appends an int32 argument and returns the message.
func (m *Message) AddInt32(value int32) *Message { return m.add(value) }

// AddFloat32 appends a float32 argument.
func (m *Message) AddFloat32(value float32) *Message { return m.add(value) }

// AddBool appends a bool argument.
func (m *Message) AddBool(value bool) *Message { return m.add(value) }

// AddChar appends a character argument.
func (m *Message) AddChar(value rune) *Message { return m.add(Char(value)) }

// AddString appends a string argument.
func (m *Message) AddString(value string) *Message { return m.add(value) }

// AddBlob appends a byte-slice argument. The slice is not copied.
func (m *Message) AddBlob(value []byte) *Message { return m.add(value) }

// AddVector2 appends a two-float argument.
func (m *Message) AddVector2(x, y float32) *Message { return m.add(Vector2{X: x, Y: y}) }

func (m *Message) add(value any) *Message {
	m.Arguments = append(m.Arguments, value)
	return m
}

// TypeTags returns the tag string for the message's arguments, without
// the leading ','. Unsupported argument types produce an error.
func (m *Message) TypeTags() (string, error) {
	var tags strings.Builder
	for index, argument := range m.Arguments {
		tag, err := tagOf(argument)
		if err != nil {
			return "", fmt.Errorf("argument %d: %w", index, err)
		}
		tags.WriteByte(tag)
	}
	return tags.String(), nil
}

func tagOf(argument any) (byte, error) {
	switch argument.(type) {
	case int32:
		return TagInt32, nil
	case float32:
		return TagFloat32, nil
	case bool:
		return TagBool, nil
	case Char:
		return TagChar, nil
	case string:
		return TagString, nil
	case []byte:
		return TagBlob, nil
	case Vector2:
		return TagVector2, nil
	default:
		return 0, fmt.Errorf("%w: unsupported argument type %T", ErrMalformed, argument)
	}
}

// Rewind resets the read cursor to the first argument.
func (m *Message) Rewind() { m.cursor = 0 }

// Remaining returns the number of arguments not yet read.
func (m *Message) Remaining() int { return len(m.Arguments) - m.cursor }

// ReadInt32 returns the next argument, which must be an int32.
func (m *Message) ReadInt32() (int32, error) { return readNext[int32](m) }

// ReadFloat32 returns the next argument, which must be a float32.
func (m *Message) ReadFloat32() (float32, error) { return readNext[float32](m) }

// ReadBool returns the next argument, which must be a bool.
func (m *Message) ReadBool() (bool, error) { return readNext[bool](m) }

// ReadChar returns the next argument, which must be a Char.
func (m *Message) ReadChar() (rune, error) {
	value, err := readNext[Char](m)
	return rune(value), err
}

// ReadString returns the next argument, which must be a string.
func (m *Message) ReadString() (string, error) { return readNext[string](m) }

// ReadBlob returns the next argument, which must be a blob. The
// returned slice aliases the message.
func (m *Message) ReadBlob() ([]byte, error) { return readNext[[]byte](m) }

// ReadVector2 returns the next argument, which must be a Vector2.
func (m *Message) ReadVector2() (Vector2, error) { return readNext[Vector2](m) }

func readNext[T any](m *Message) (T, error) {
	var zero T
	if m.cursor >= len(m.Arguments) {
		return zero, fmt.Errorf("%w: %s: read past argument %d", ErrMalformed, m.Address, len(m.Arguments))
	}
	value, ok := m.Arguments[m.cursor].(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s: argument %d is %T, want %T", ErrMalformed, m.Address, m.cursor, m.Arguments[m.cursor], zero)
	}
	m.cursor++
	return value, nil
}

// String returns a compact description for logs: the address and the
// tag string.
func (m *Message) String() string {
	tags, err := m.TypeTags()
	if err != nil {
		tags = "?"
	}
	return m.Address + " ," + tags
}
