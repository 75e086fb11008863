// Package helpers sends replies for the update being handled and carries
// its correlation context.
package helpers

import (
	"sync/atomic"

	"github.com/ilyosbek9531/expense-tracker-bot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var dispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher routes later sends through d; nil sends inline.
func SetDispatcher(d *sender.Dispatcher) {
	dispatcher.Store(d)
}

func submit(c tele.Context, action, endpoint string, run func() error) error {
	return dispatcher.Load().Submit(BuildContext(c), action, endpoint, run)
}

// SendText sends plain text, with the first opts entry if given.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	args := make([]interface{}, 0, 1)
	if len(opts) > 0 && opts[0] != nil {
		args = append(args, opts[0])
	}
	return submit(c, "send.text", "sendMessage", func() error {
		return c.Send(text, args...)
	})
}

// SendAnimation sends the animation hosted at url.
func SendAnimation(c tele.Context, url string) error {
	return submit(c, "send.animation", "sendAnimation", func() error {
		return c.Send(&tele.Animation{File: tele.FromURL(url)})
	})
}

// EditMarkup replaces the inline keyboard of the message the callback came from.
func EditMarkup(c tele.Context, markup *tele.ReplyMarkup) error {
	return c.Edit(markup)
}
