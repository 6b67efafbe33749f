// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package termview

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/bureau-foundation/remotesession/input"
)

// keyPress is one key as the remote side should see it. A zero
// character means the key produces no KeyChar.
type keyPress struct {
	code      int32
	character rune
}

// virtualKeys maps named terminal keys to virtual key codes.
var virtualKeys = map[tea.KeyType]keyPress{
	tea.KeyBackspace: {code: 8, character: '\b'},
	tea.KeyTab:       {code: 9, character: '\t'},
	tea.KeyEnter:     {code: 13, character: '\r'},
	tea.KeyEsc:       {code: 27},
	tea.KeySpace:     {code: 32, character: ' '},
	tea.KeyPgUp:      {code: 33},
	tea.KeyPgDown:    {code: 34},
	tea.KeyEnd:       {code: 35},
	tea.KeyHome:      {code: 36},
	tea.KeyLeft:      {code: 37},
	tea.KeyUp:        {code: 38},
	tea.KeyRight:     {code: 39},
	tea.KeyDown:      {code: 40},
	tea.KeyInsert:    {code: 45},
	tea.KeyDelete:    {code: 46},
}

// keyPresses translates a terminal key message. Pasted text yields one
// press per rune; unmapped control keys yield none.
func keyPresses(message tea.KeyMsg) []keyPress {
	if message.Type == tea.KeyRunes {
		presses := make([]keyPress, 0, len(message.Runes))
		for _, r := range message.Runes {
			presses = append(presses, keyPress{code: runeKeyCode(r), character: r})
		}
		return presses
	}
	if press, ok := virtualKeys[message.Type]; ok {
		return []keyPress{press}
	}
	return nil
}

// runeKeyCode follows the virtual key convention for printable ASCII:
// letters report their upper-case code. Other runes have no key code
// and travel as characters only.
func runeKeyCode(r rune) int32 {
	switch {
	case r >= 'a' && r <= 'z':
		return r - 'a' + 'A'
	case r >= ' ' && r < 0x7f:
		return r
	}
	return 0
}

// send delivers a press as down, char, up.
func (press keyPress) send(handler input.Handler) {
	event := input.KeyEvent{KeyCode: press.code, CharacterCode: press.character}
	handler.OnKeyDown(event)
	if press.character != 0 {
		handler.OnKeyChar(input.KeyCharEvent{Character: press.character})
	}
	handler.OnKeyUp(event)
}
