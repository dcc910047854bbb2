package tgui

import kit "checkinbot/internal/transport"

// Keyboard builds inline keyboard rows, one call to Row per visual row.
type Keyboard struct {
	rows [][]kit.Button
}

func NewKeyboard() *Keyboard { return &Keyboard{} }

// Row appends a row. Empty rows are ignored.
func (k *Keyboard) Row(btn ...kit.Button) *Keyboard {
	if len(btn) == 0 {
		return k
	}
	k.rows = append(k.rows, append([]kit.Button(nil), btn...))
	return k
}

// Btn creates a callback button with raw callback data (not encoded further).
func Btn(text, payload string) kit.Button {
	return kit.Button{Text: text, Payload: payload}
}

func (k *Keyboard) Len() int { return len(k.rows) }

// Rows returns the built rows, or nil when no row was added.
func (k *Keyboard) Rows() [][]kit.Button {
	if len(k.rows) == 0 {
		return nil
	}
	return k.rows
}
