// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package input

import (
	"bytes"
	"errors"
	"testing"
)

func TestKeyEventLayout(t *testing.T) {
	t.Parallel()

	data, err := KeyEvent{KeyCode: 65, CharacterCode: 'A', IsRepeat: true}.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary() error: %v", err)
	}
	want := []byte{65, 0, 0, 0, 'A', 0, 0, 0, 1}
	if !bytes.Equal(data, want) {
		t.Errorf("MarshalBinary() = %v, want %v", data, want)
	}
}

func TestEventPayloadRoundTrip(t *testing.T) {
	t.Parallel()

	t.Run("key char", func(t *testing.T) {
		t.Parallel()
		original := KeyCharEvent{Character: 'é', IsRepeat: true}
		data, _ := original.MarshalBinary()
		if len(data) != keyCharPayloadSize {
			t.Errorf("payload length = %d, want %d", len(data), keyCharPayloadSize)
		}
		var decoded KeyCharEvent
		if err := decoded.UnmarshalBinary(data); err != nil {
			t.Fatalf("UnmarshalBinary() error: %v", err)
		}
		if decoded != original {
			t.Errorf("decoded = %+v, want %+v", decoded, original)
		}
	})

	t.Run("key", func(t *testing.T) {
		t.Parallel()
		original := KeyEvent{KeyCode: -3, CharacterCode: 'z'}
		data, _ := original.MarshalBinary()
		var decoded KeyEvent
		if err := decoded.UnmarshalBinary(data); err != nil {
			t.Fatalf("UnmarshalBinary() error: %v", err)
		}
		if decoded != original {
			t.Errorf("decoded = %+v, want %+v", decoded, original)
		}
	})

	t.Run("touch", func(t *testing.T) {
		t.Parallel()
		original := TouchEvent{Location: Vector2{X: 0.25, Y: 0.75}, TouchIndex: 2, ControllerID: 1}
		data, _ := original.MarshalBinary()
		if len(data) != touchPayloadSize {
			t.Errorf("payload length = %d, want %d", len(data), touchPayloadSize)
		}
		var decoded TouchEvent
		if err := decoded.UnmarshalBinary(data); err != nil {
			t.Fatalf("UnmarshalBinary() error: %v", err)
		}
		if decoded != original {
			t.Errorf("decoded = %+v, want %+v", decoded, original)
		}
	})
}

func TestShortPayload(t *testing.T) {
	t.Parallel()

	var key KeyEvent
	if err := key.UnmarshalBinary([]byte{65, 0, 0, 0}); !errors.Is(err, ErrShortPayload) {
		t.Errorf("KeyEvent.UnmarshalBinary() error = %v, want ErrShortPayload", err)
	}
	var touch TouchEvent
	if err := touch.UnmarshalBinary(nil); !errors.Is(err, ErrShortPayload) {
		t.Errorf("TouchEvent.UnmarshalBinary() error = %v, want ErrShortPayload", err)
	}
	var char KeyCharEvent
	if err := char.UnmarshalBinary([]byte{'a', 0, 0, 0}); !errors.Is(err, ErrShortPayload) {
		t.Errorf("KeyCharEvent.UnmarshalBinary() error = %v, want ErrShortPayload", err)
	}
}
