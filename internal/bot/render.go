package bot

import (
	"fmt"

	tele "gopkg.in/telebot.v4"

	tghelpers "github.com/ilyosbek9531/expense-tracker-bot/core/telegram/helpers"
	"github.com/ilyosbek9531/expense-tracker-bot/core/telegram/keyboard"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/reply"
)

// render delivers msgs in order. Sends are synchronous so a later reply
// never overtakes an earlier one.
func render(c tele.Context, msgs []reply.Message) error {
	for _, m := range msgs {
		if err := renderOne(c, m); err != nil {
			return fmt.Errorf("render %s: %w", m.Kind, err)
		}
	}
	return nil
}

func renderOne(c tele.Context, m reply.Message) error {
	switch m.Kind {
	case reply.KindText:
		return tghelpers.SendText(c, m.Text)
	case reply.KindChoices:
		return tghelpers.SendText(c, m.Text, &tele.SendOptions{ReplyMarkup: inlineMarkup(m.Buttons)})
	case reply.KindMenu:
		return tghelpers.SendText(c, m.Text, &tele.SendOptions{ReplyMarkup: keyboard.Menu(m.Menu...)})
	case reply.KindEditChoices:
		if c.Callback() == nil || c.Callback().Message == nil {
			return nil
		}
		return tghelpers.EditMarkup(c, inlineMarkup(m.Buttons))
	case reply.KindAnimation:
		return tghelpers.SendAnimation(c, m.URL)
	}
	return fmt.Errorf("unsupported reply kind %d", m.Kind)
}

func inlineMarkup(rows [][]reply.Button) *tele.ReplyMarkup {
	out := make([][]keyboard.Button, len(rows))
	for i, row := range rows {
		out[i] = make([]keyboard.Button, len(row))
		for j, b := range row {
			out[i][j] = keyboard.Button{Label: b.Label, Unique: string(b.Data.Action), Data: b.Data.ID}
		}
	}
	return keyboard.Inline(out...)
}
