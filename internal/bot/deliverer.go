package bot

import (
	"context"
	"errors"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"

	tg "github.com/ilyosbek9531/expense-tracker-bot/core/telegram"
	"github.com/ilyosbek9531/expense-tracker-bot/core/telegram/sender"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/notify"
)

// ErrNotStarted is returned by Deliver before the bot is running.
var ErrNotStarted = errors.New("telegram deliverer: bot not started")

// Sender is the subset of tele.API used for notices.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Deliverer pushes notices to chats other than the one being handled.
// Jobs go through the outbound dispatcher and Deliver waits for their
// final outcome; a saturated or closed queue falls back to sending inline.
type Deliverer struct {
	api  atomic.Pointer[Sender]
	disp atomic.Pointer[sender.Dispatcher]
}

var _ notify.Deliverer = (*Deliverer)(nil)

// Bind attaches the running bot. It is meant for RunOptions.OnStart.
func (d *Deliverer) Bind(_ context.Context, rt tg.Runtime) error {
	if rt.Bot != nil {
		d.Attach(rt.Bot, rt.Dispatcher)
	}
	return nil
}

// Attach sets the send target and an optional dispatcher.
func (d *Deliverer) Attach(api Sender, disp *sender.Dispatcher) {
	d.api.Store(&api)
	d.disp.Store(disp)
}

// Deliver sends the notice text, then its animation if any. A retried job
// never resends a part that already went out.
func (d *Deliverer) Deliver(ctx context.Context, n notify.Notice) error {
	p := d.api.Load()
	if p == nil {
		return ErrNotStarted
	}
	api := *p
	to := tele.ChatID(n.ChatID)

	var textSent bool
	run := func() error {
		if !textSent {
			if _, err := api.Send(to, n.Text); err != nil {
				return err
			}
			textSent = true
		}
		if n.AnimationURL != "" {
			if _, err := api.Send(to, &tele.Animation{File: tele.FromURL(n.AnimationURL)}); err != nil {
				return err
			}
		}
		return nil
	}

	return d.disp.Load().Do(ctx, "notify.deliver", "sendMessage", run)
}
