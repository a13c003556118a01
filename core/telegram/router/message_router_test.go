package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/feedbackbot/core/telegram"
)

type fakeDialogs struct {
	active    map[int64]bool
	continued int
}

func (f *fakeDialogs) InProgress(userID int64) bool { return f.active[userID] }

func (f *fakeDialogs) Continue(tele.Context) error {
	f.continued++
	return nil
}

func routeFor(t *testing.T, routes []tg.Route, endpoint string) tele.HandlerFunc {
	t.Helper()
	for _, r := range routes {
		if r.Endpoint == endpoint {
			return r.Handler
		}
	}
	t.Fatalf("no route for %q", endpoint)
	return nil
}

func photoFrom(t *testing.T, userID int64) tele.Context {
	t.Helper()
	bot, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)
	return bot.NewContext(tele.Update{ID: 3, Message: &tele.Message{
		Sender: &tele.User{ID: userID},
		Chat:   &tele.Chat{ID: userID, Type: tele.ChatPrivate},
		Photo:  &tele.Photo{File: tele.File{FileID: "p1"}},
	}})
}

func TestMediaRouteContinuesDialog(t *testing.T) {
	dialogs := &fakeDialogs{active: map[int64]bool{5: true}}
	var unknown int
	routes := TextRoutes(dialogs, tg.NewRegistry(), TextOptions{
		UnknownMedia: func(tele.Context) error {
			unknown++
			return nil
		},
	})
	media := routeFor(t, routes, tele.OnMedia)

	require.NoError(t, media(photoFrom(t, 5)))
	assert.Equal(t, 1, dialogs.continued)
	assert.Zero(t, unknown)

	require.NoError(t, media(photoFrom(t, 6)))
	assert.Equal(t, 1, dialogs.continued)
	assert.Equal(t, 1, unknown)
}

func TestMediaRouteWithoutFallbackIsSkipped(t *testing.T) {
	dialogs := &fakeDialogs{}
	routes := TextRoutes(dialogs, tg.NewRegistry(), TextOptions{})
	assert.NoError(t, routeFor(t, routes, tele.OnMedia)(photoFrom(t, 5)))
	assert.Zero(t, dialogs.continued)
}

func TestTextRouteFallsBack(t *testing.T) {
	reg := tg.NewRegistry()
	var fallback int
	reg.SetTextFallback(func(tele.Context) error {
		fallback++
		return nil
	})
	dialogs := &fakeDialogs{active: map[int64]bool{5: true}}
	text := routeFor(t, TextRoutes(dialogs, reg, TextOptions{}), tele.OnText)

	bot, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)
	msg := func(userID int64) tele.Context {
		return bot.NewContext(tele.Update{ID: 4, Message: &tele.Message{
			Sender: &tele.User{ID: userID},
			Chat:   &tele.Chat{ID: userID, Type: tele.ChatPrivate},
			Text:   "hello",
		}})
	}

	require.NoError(t, text(msg(5)))
	require.NoError(t, text(msg(6)))
	assert.Equal(t, 1, dialogs.continued)
	assert.Equal(t, 1, fallback)
}
