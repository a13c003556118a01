package middleware

import (
	tghelpers "github.com/m3rciful/feedbackbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

const countersKey = "counters"

// metricsContext counts replies sent through tele.Context. Messages sent
// with the bot directly are counted by the sender through the stored context.
type metricsContext struct {
	tele.Context
	counters *tghelpers.Counters
}

func hasKeyboard(opts []interface{}) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}

// Send proxies tele.Context.Send while updating message counters.
func (m metricsContext) Send(what interface{}, opts ...interface{}) error {
	err := m.Context.Send(what, opts...)
	if err == nil {
		m.counters.Add(hasKeyboard(opts))
	}
	return err
}

// Reply proxies tele.Context.Reply while updating message counters.
func (m metricsContext) Reply(what interface{}, opts ...interface{}) error {
	err := m.Context.Reply(what, opts...)
	if err == nil {
		m.counters.Add(hasKeyboard(opts))
	}
	return err
}

// MessageMetricsMiddleware attaches per-update counters to the context.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if _, ok := c.Get(countersKey).(*tghelpers.Counters); ok {
			return next(c)
		}
		counters := &tghelpers.Counters{}
		c.Set(countersKey, counters)
		tghelpers.StoreContext(c, tghelpers.WithCounters(tghelpers.BuildContext(c), counters))
		return next(metricsContext{Context: c, counters: counters})
	}
}

// GetCounters reads message count and keyboard presence flags from context.
func GetCounters(c tele.Context) (int, bool) {
	counters, _ := c.Get(countersKey).(*tghelpers.Counters)
	return counters.Messages(), counters.Keyboard()
}
