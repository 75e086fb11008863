// Package keyboard builds telebot reply markups from plain rows.
package keyboard

import tele "gopkg.in/telebot.v4"

// Button is one inline button. Unique routes the press to a callback
// handler and Data travels with it.
type Button struct {
	Label  string
	Unique string
	Data   string
}

// Menu returns a resized persistent keyboard, one row per slice.
// Empty rows are dropped.
func Menu(rows ...[]string) *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{ResizeKeyboard: true}
	out := make([]tele.Row, 0, len(rows))
	for _, labels := range rows {
		if len(labels) == 0 {
			continue
		}
		row := make(tele.Row, 0, len(labels))
		for _, l := range labels {
			row = append(row, m.Text(l))
		}
		out = append(out, row)
	}
	m.Reply(out...)
	return m
}

// Inline returns an inline keyboard. Empty rows are dropped.
func Inline(rows ...[]Button) *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{}
	out := make([]tele.Row, 0, len(rows))
	for _, buttons := range rows {
		if len(buttons) == 0 {
			continue
		}
		row := make(tele.Row, 0, len(buttons))
		for _, b := range buttons {
			row = append(row, m.Data(b.Label, b.Unique, b.Data))
		}
		out = append(out, row)
	}
	m.Inline(out...)
	return m
}
