package router

import (
	"strings"
	"time"

	tg "github.com/m3rciful/feedbackbot/core/telegram"
	"github.com/m3rciful/feedbackbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Dialogs reports whether a sender is in the middle of a dialog and handles
// their next message when they are.
type Dialogs interface {
	InProgress(userID int64) bool
	Continue(c tele.Context) error
}

// TextOptions controls fallback behaviour for text, document and other media updates.
type TextOptions struct {
	UnknownText     tele.HandlerFunc
	UnknownDocument tele.HandlerFunc
	UnknownMedia    tele.HandlerFunc
}

// TextRoutes builds handlers for text, document and media routing. A dialog
// in progress gets any of them first. Otherwise text resolves command aliases
// telebot did not match, then the registry's text fallback runs.
func TextRoutes(dialogs Dialogs, reg *tg.Registry, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		if c.Sender() == nil {
			return nil
		}

		if dialogs != nil && dialogs.InProgress(c.Sender().ID) {
			return handleWithSummary(c, "dialog", start, "", "", func() error {
				return dialogs.Continue(c)
			})
		}

		if reg != nil {
			text := c.Text()
			if !strings.HasPrefix(text, "/") {
				text = ""
			}
			if key, cmd, ok := reg.LookupCommand(text); ok && text != "" && cmd.Handler != nil {
				return handleWithSummary(c, normalizeHandlerName(key), start, "", "", func() error {
					return cmd.Handler(c)
				})
			}
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", start, "", "", func() error {
					return fb(c)
				})
			}
		}

		if opts.UnknownText != nil {
			return handleWithSummary(c, "unknown_text", start, "", "", func() error {
				return opts.UnknownText(c)
			})
		}

		logHandlerSummary(c, "unknown_text", start, "skip", "ok", nil)
		return nil
	}

	docHandler := func(c tele.Context) error {
		start := time.Now()
		if c.Sender() != nil && dialogs != nil && dialogs.InProgress(c.Sender().ID) {
			return handleWithSummary(c, "dialog", start, "", "", func() error {
				return dialogs.Continue(c)
			})
		}
		if opts.UnknownDocument != nil {
			return handleWithSummary(c, "unexpected_document", start, "", "", func() error {
				return opts.UnknownDocument(c)
			})
		}
		logHandlerSummary(c, "unexpected_document", start, "skip", "ok", nil)
		return nil
	}

	// Photos, stickers and the like arrive here unless a narrower media
	// endpoint is registered.
	mediaHandler := func(c tele.Context) error {
		start := time.Now()
		if c.Sender() != nil && dialogs != nil && dialogs.InProgress(c.Sender().ID) {
			return handleWithSummary(c, "dialog", start, "", "", func() error {
				return dialogs.Continue(c)
			})
		}
		if opts.UnknownMedia != nil {
			return handleWithSummary(c, "unexpected_media", start, "", "", func() error {
				return opts.UnknownMedia(c)
			})
		}
		logHandlerSummary(c, "unexpected_media", start, "skip", "ok", nil)
		return nil
	}

	return []tg.Route{
		{
			Endpoint: tele.OnText,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
		},
		{
			Endpoint: tele.OnDocument,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(docHandler)),
		},
		{
			Endpoint: tele.OnMedia,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(mediaHandler)),
		},
	}
}
