// Package keyboard builds telebot reply markups.
package keyboard

import tele "gopkg.in/telebot.v4"

// InlineBtn is an inline button before it is bound to a markup.
type InlineBtn struct {
	Text   string
	Unique string
	Data   string
}

// RemoveKeyboard returns a markup that hides the reply keyboard.
func RemoveKeyboard() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{RemoveKeyboard: true}
}

// ReplyButtons builds a resized reply keyboard that stays open between messages.
func ReplyButtons(rows ...[]string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{ResizeKeyboard: true, IsPersistent: true}
	keyboard := make([]tele.Row, 0, len(rows))
	for _, labels := range rows {
		row := make(tele.Row, 0, len(labels))
		for _, label := range labels {
			row = append(row, markup.Text(label))
		}
		keyboard = append(keyboard, row)
	}
	markup.Reply(keyboard...)
	return markup
}

// InlineButtonsRows builds an inline keyboard; the data of each button is
// encoded the way telebot routes "\f<unique>|<data>" callbacks.
func InlineButtonsRows(rows ...[]InlineBtn) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	keyboard := make([]tele.Row, 0, len(rows))
	for _, btns := range rows {
		row := make(tele.Row, 0, len(btns))
		for _, b := range btns {
			row = append(row, markup.Data(b.Text, b.Unique, b.Data))
		}
		keyboard = append(keyboard, row)
	}
	markup.Inline(keyboard...)
	return markup
}
