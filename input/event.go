// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package input

// Event names, used as the last element of the wire address and as the
// record name in session files.
const (
	EventKeyChar      = "OnKeyChar"
	EventKeyUp        = "OnKeyUp"
	EventKeyDown      = "OnKeyDown"
	EventTouchStarted = "OnTouchStarted"
	EventTouchMoved   = "OnTouchMoved"
	EventTouchEnded   = "OnTouchEnded"
)

// EventNames lists every event name in a stable order.
var EventNames = []string{
	EventKeyChar,
	EventKeyUp,
	EventKeyDown,
	EventTouchStarted,
	EventTouchMoved,
	EventTouchEnded,
}

// Vector2 is a 2D point or size.
type Vector2 struct {
	X float32
	Y float32
}

// Add returns v + other.
func (v Vector2) Add(other Vector2) Vector2 { return Vector2{X: v.X + other.X, Y: v.Y + other.Y} }

// Mul returns the component-wise product.
func (v Vector2) Mul(other Vector2) Vector2 { return Vector2{X: v.X * other.X, Y: v.Y * other.Y} }

// IsZero reports whether either component is zero, which makes v
// unusable as a size.
func (v Vector2) IsZero() bool { return v.X == 0 || v.Y == 0 }

// Rect is a window placement in screen coordinates.
type Rect struct {
	Origin Vector2
	Size   Vector2
}

// Denormalize maps a [0,1] location onto the rectangle. A rectangle
// with no area returns normalized unchanged.
func (r Rect) Denormalize(normalized Vector2) Vector2 {
	if r.Size.IsZero() {
		return normalized
	}
	return r.Origin.Add(normalized.Mul(r.Size))
}

// Normalize maps location into [0,1] against viewport. A viewport with
// no area returns location unchanged.
func Normalize(location, viewport Vector2) Vector2 {
	if viewport.IsZero() {
		return location
	}
	return Vector2{X: location.X / viewport.X, Y: location.Y / viewport.Y}
}

// KeyCharEvent is a translated character.
type KeyCharEvent struct {
	Character rune
	IsRepeat  bool
}

// KeyEvent is a key press or release.
type KeyEvent struct {
	KeyCode       int32
	CharacterCode rune
	IsRepeat      bool
}

// TouchEvent is a touch or pointer contact.
type TouchEvent struct {
	Location     Vector2
	TouchIndex   int32
	ControllerID int32
}

// Handler is the application's input path. Each method reports
// whether the event was handled.
type Handler interface {
	OnKeyChar(event KeyCharEvent) bool
	OnKeyDown(event KeyEvent) bool
	OnKeyUp(event KeyEvent) bool
	OnTouchStarted(event TouchEvent) bool
	OnTouchMoved(event TouchEvent) bool
	OnTouchEnded(event TouchEvent) bool
}
