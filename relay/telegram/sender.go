// Package telegram binds the relay engine to telebot: it turns updates into
// engine events and renders engine messages as Telegram messages.
package telegram

import (
	"context"
	"log/slog"

	"github.com/m3rciful/feedbackbot/core/logger"
	tghelpers "github.com/m3rciful/feedbackbot/core/telegram/helpers"
	"github.com/m3rciful/feedbackbot/core/telegram/keyboard"
	tgsender "github.com/m3rciful/feedbackbot/core/telegram/sender"
	"github.com/m3rciful/feedbackbot/relay/chat"

	tele "gopkg.in/telebot.v4"
)

// API is the part of *tele.Bot the sender needs.
type API interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Sender delivers chat messages through the Telegram Bot API. Calls go
// through the dispatcher so transient failures are retried.
type Sender struct {
	api        API
	dispatcher *tgsender.Dispatcher
}

var _ chat.Sender = (*Sender)(nil)

// NewSender wires a sender. A nil dispatcher sends without retries.
func NewSender(api API, dispatcher *tgsender.Dispatcher) *Sender {
	return &Sender{api: api, dispatcher: dispatcher}
}

// Send implements chat.Sender.
func (s *Sender) Send(ctx context.Context, msg chat.Message) error {
	markup := Markup(msg)
	run := func() error {
		opts := []interface{}{tele.NoPreview}
		if markup != nil {
			opts = append(opts, markup)
		}
		_, err := s.api.Send(tele.ChatID(msg.Recipient), msg.Text, opts...)
		return err
	}

	var err error
	if s.dispatcher != nil {
		err = s.dispatcher.Do(ctx, "send_message", "sendMessage", run)
	} else {
		err = run()
	}
	if err != nil {
		logger.Debug(ctx, logger.CompSender, "send.result",
			slog.String("status", "fail"),
			slog.Int64("recipient", msg.Recipient),
		)
		return err
	}
	tghelpers.CountersFrom(ctx).Add(markup != nil)
	return nil
}

// Markup renders the actions of msg. Persistent actions become a reply
// keyboard, other actions inline buttons; a persistent message without
// actions removes the reply keyboard.
func Markup(msg chat.Message) *tele.ReplyMarkup {
	if len(msg.Actions) == 0 {
		if msg.Persistent {
			return keyboard.RemoveKeyboard()
		}
		return nil
	}

	if msg.Persistent {
		row := make([]string, 0, len(msg.Actions))
		for _, a := range msg.Actions {
			row = append(row, a.Label())
		}
		return keyboard.ReplyButtons(row)
	}

	var (
		rows    [][]keyboard.InlineBtn
		targets []keyboard.InlineBtn
	)
	for _, a := range msg.Actions {
		btn := keyboard.InlineBtn{Text: a.Label(), Unique: string(a.Kind), Data: a.Payload()}
		if a.Kind.TargetsInquiry() {
			targets = append(targets, btn)
			continue
		}
		rows = append(rows, []keyboard.InlineBtn{btn})
	}
	if len(targets) > 0 {
		rows = append(rows, targets)
	}
	return keyboard.InlineButtonsRows(rows...)
}
