// Package keyboard renders the inline markup used by administrative
// handlers.
package keyboard

import (
	tele "gopkg.in/telebot.v3"
)

// InlineButton is a lightweight button definition rendered into telebot
// markup by Build.
type InlineButton struct {
	Text string
	Data string // raw callback payload
}

// InlineKeyboardBuilder accumulates rows of buttons before rendering.
type InlineKeyboardBuilder struct {
	rows [][]InlineButton
}

func NewInlineKeyboard() *InlineKeyboardBuilder {
	return &InlineKeyboardBuilder{rows: make([][]InlineButton, 0)}
}

// AddRow appends a new row. Empty rows are ignored.
func (b *InlineKeyboardBuilder) AddRow(buttons ...InlineButton) *InlineKeyboardBuilder {
	if len(buttons) == 0 {
		return b
	}

	row := make([]InlineButton, len(buttons))
	copy(row, buttons)
	b.rows = append(b.rows, row)

	return b
}

// Build renders the accumulated rows into telebot reply markup.
func (b *InlineKeyboardBuilder) Build() *tele.ReplyMarkup {
	inline := make([][]tele.InlineButton, len(b.rows))
	for i, row := range b.rows {
		inline[i] = make([]tele.InlineButton, len(row))
		for j, btn := range row {
			inline[i][j] = tele.InlineButton{Text: btn.Text, Data: btn.Data}
		}
	}

	return &tele.ReplyMarkup{InlineKeyboard: inline}
}
