package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/feedbackbot/core/logger"
	tghelpers "github.com/m3rciful/feedbackbot/core/telegram/helpers"
)

func newContext(t *testing.T, updateID int) tele.Context {
	t.Helper()
	bot, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)
	return bot.NewContext(tele.Update{
		ID: updateID,
		Message: &tele.Message{
			Sender: &tele.User{ID: 42, Username: "anna"},
			Chat:   &tele.Chat{ID: 42, Type: tele.ChatPrivate},
			Text:   "hello",
		},
	})
}

func TestRecoverMiddleware(t *testing.T) {
	h := RecoverMiddleware(func(tele.Context) error { panic("boom") })
	err := h(newContext(t, 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestLoggerMiddlewareKeepsOuterContext(t *testing.T) {
	c := newContext(t, 2)
	var inner, outer string

	h := LoggerMiddleware(MessageMetricsMiddleware(LoggerMiddleware(func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		inner = logger.RIDFrom(ctx)
		tghelpers.CountersFrom(ctx).Add(true)
		return nil
	})))
	require.NoError(t, h(c))
	outer, _ = c.Get("rid").(string)

	assert.Equal(t, logger.BuildRID(2, 42, 42), outer)
	assert.Equal(t, outer, inner)

	msgs, kb := GetCounters(c)
	assert.Equal(t, 1, msgs)
	assert.True(t, kb)
}

func TestGetCountersWithoutMiddleware(t *testing.T) {
	msgs, kb := GetCounters(newContext(t, 3))
	assert.Zero(t, msgs)
	assert.False(t, kb)
}

func TestAlreadyLogged(t *testing.T) {
	assert.False(t, alreadyLogged(1001))
	assert.True(t, alreadyLogged(1001))
	assert.False(t, alreadyLogged(1002))
}
