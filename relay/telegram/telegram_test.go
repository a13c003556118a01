package telegram

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/feedbackbot/core/telegram"
	tghelpers "github.com/m3rciful/feedbackbot/core/telegram/helpers"
	tgsender "github.com/m3rciful/feedbackbot/core/telegram/sender"
	"github.com/m3rciful/feedbackbot/relay/chat"
)

type sentMessage struct {
	to     tele.Recipient
	text   string
	markup *tele.ReplyMarkup
}

type fakeAPI struct {
	sent []sentMessage
	err  error
}

func (f *fakeAPI) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	m := sentMessage{to: to, text: what.(string)}
	for _, o := range opts {
		if rm, ok := o.(*tele.ReplyMarkup); ok {
			m.markup = rm
		}
	}
	f.sent = append(f.sent, m)
	return &tele.Message{}, nil
}

func TestMarkup(t *testing.T) {
	assert.Nil(t, Markup(chat.Message{Text: "hi"}))
	assert.True(t, Markup(chat.Message{Persistent: true}).RemoveKeyboard)

	admin := Markup(chat.Message{Persistent: true, Actions: []chat.Action{
		chat.NewAction(chat.ActionAddAdmin), chat.NewAction(chat.ActionRecent),
	}})
	require.Len(t, admin.ReplyKeyboard, 1)
	require.Len(t, admin.ReplyKeyboard[0], 2)
	assert.Equal(t, "➕ Add administrator", admin.ReplyKeyboard[0][0].Text)
	assert.Empty(t, admin.InlineKeyboard)

	user := Markup(chat.Message{Actions: []chat.Action{
		chat.NewAction(chat.ActionQuestion), chat.NewAction(chat.ActionProblem), chat.NewAction(chat.ActionInitiative),
	}})
	require.Len(t, user.InlineKeyboard, 3)
	assert.Equal(t, "question", user.InlineKeyboard[0][0].Unique)

	inquiry := Markup(chat.Message{Actions: []chat.Action{
		chat.InquiryAction(chat.ActionReply, 7), chat.InquiryAction(chat.ActionDelete, 7),
	}})
	require.Len(t, inquiry.InlineKeyboard, 1)
	require.Len(t, inquiry.InlineKeyboard[0], 2)
	assert.Equal(t, "delete", inquiry.InlineKeyboard[0][1].Unique)
	assert.Contains(t, inquiry.InlineKeyboard[0][1].Data, "7")
}

func TestSenderSend(t *testing.T) {
	api := &fakeAPI{}
	d := tgsender.NewDispatcher(tgsender.Options{Workers: 1, MaxRetries: 0})
	t.Cleanup(d.Close)
	s := NewSender(api, d)

	counters := &tghelpers.Counters{}
	ctx := tghelpers.WithCounters(context.Background(), counters)
	require.NoError(t, s.Send(ctx, chat.Message{
		Recipient: 42,
		Text:      "hello",
		Actions:   []chat.Action{chat.NewAction(chat.ActionQuestion)},
	}))
	require.Len(t, api.sent, 1)
	assert.Equal(t, "42", api.sent[0].to.Recipient())
	assert.Equal(t, "hello", api.sent[0].text)
	assert.NotNil(t, api.sent[0].markup)
	assert.Equal(t, 1, counters.Messages())
	assert.True(t, counters.Keyboard())

	api.err = tele.ErrBlockedByUser
	err := s.Send(ctx, chat.Message{Recipient: 43, Text: "x"})
	assert.ErrorIs(t, err, tele.ErrBlockedByUser)
	assert.Equal(t, 1, counters.Messages())
}

func TestSenderWithoutDispatcher(t *testing.T) {
	api := &fakeAPI{}
	require.NoError(t, NewSender(api, nil).Send(context.Background(), chat.Message{Recipient: 1, Text: "plain"}))
	require.Len(t, api.sent, 1)
	assert.Nil(t, api.sent[0].markup)
}

func TestTextFrom(t *testing.T) {
	assert.Equal(t, chat.Text{Body: "hi"}, TextFrom(&tele.Message{Text: "hi"}))
	assert.Equal(t, "caption", TextFrom(&tele.Message{Caption: "caption"}).Body)

	fwd := TextFrom(&tele.Message{Text: "fw", Origin: &tele.MessageOrigin{
		Sender: &tele.User{ID: 77, Username: "dan", FirstName: "Dan"},
	}})
	require.NotNil(t, fwd.ForwardedFrom)
	assert.Equal(t, int64(77), fwd.ForwardedFrom.ID)
	assert.Equal(t, "dan", fwd.ForwardedFrom.Username)

	hidden := TextFrom(&tele.Message{Text: "fw", Origin: &tele.MessageOrigin{}})
	assert.Nil(t, hidden.ForwardedFrom)
}

type call struct {
	kind   string
	actor  chat.Actor
	action chat.Action
	text   chat.Text
	cmd    chat.CommandName
}

type fakeEngine struct {
	calls []call
	err   error
}

func (f *fakeEngine) Start(_ context.Context, a chat.Actor) error {
	f.calls = append(f.calls, call{kind: "start", actor: a})
	return f.err
}

func (f *fakeEngine) Action(_ context.Context, a chat.Actor, act chat.Action) error {
	f.calls = append(f.calls, call{kind: "action", actor: a, action: act})
	return f.err
}

func (f *fakeEngine) Text(_ context.Context, a chat.Actor, msg chat.Text) error {
	f.calls = append(f.calls, call{kind: "text", actor: a, text: msg})
	return f.err
}

func (f *fakeEngine) Command(_ context.Context, a chat.Actor, cmd chat.CommandName) error {
	f.calls = append(f.calls, call{kind: "command", actor: a, cmd: cmd})
	return f.err
}

type dialogSet map[int64]bool

func (d dialogSet) InProgress(id int64) bool { return d[id] }

var anna = &tele.User{ID: 100, Username: "anna", FirstName: "Anna"}

func newContext(t *testing.T, u tele.Update) tele.Context {
	t.Helper()
	bot, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)
	return bot.NewContext(u)
}

func privateMessage(text string) tele.Update {
	return tele.Update{ID: 1, Message: &tele.Message{
		Sender: anna,
		Chat:   &tele.Chat{ID: anna.ID, Type: tele.ChatPrivate},
		Text:   text,
	}}
}

func TestHandlersText(t *testing.T) {
	eng := &fakeEngine{}
	h := NewHandlers(eng, dialogSet{})

	require.NoError(t, h.Text(newContext(t, privateMessage("📋 Recent inquiries"))))
	require.NoError(t, h.Text(newContext(t, privateMessage("When is the meeting?"))))

	require.Len(t, eng.calls, 2)
	assert.Equal(t, "action", eng.calls[0].kind)
	assert.Equal(t, chat.NewAction(chat.ActionRecent), eng.calls[0].action)
	assert.Equal(t, "text", eng.calls[1].kind)
	assert.Equal(t, "When is the meeting?", eng.calls[1].text.Body)
	assert.Equal(t, chat.Actor{ID: 100, Username: "anna", FirstName: "Anna"}, eng.calls[1].actor)
}

func TestHandlersRejectGroups(t *testing.T) {
	eng := &fakeEngine{}
	u := privateMessage("hi")
	u.Message.Chat = &tele.Chat{ID: -5, Type: tele.ChatGroup}
	assert.Error(t, NewHandlers(eng, nil).Text(newContext(t, u)))
	assert.Empty(t, eng.calls)
}

func TestHandlersCallback(t *testing.T) {
	eng := &fakeEngine{}
	h := NewHandlers(eng, nil)
	cb := func(data string) tele.Update {
		return tele.Update{ID: 2, Callback: &tele.Callback{
			Sender:  anna,
			Data:    data,
			Message: &tele.Message{Chat: &tele.Chat{ID: anna.ID, Type: tele.ChatPrivate}},
		}}
	}

	require.NoError(t, h.Callback(newContext(t, cb("\freply|7"))))
	require.Len(t, eng.calls, 1)
	assert.Equal(t, chat.InquiryAction(chat.ActionReply, 7), eng.calls[0].action)

	err := h.Callback(newContext(t, cb("\freply|abc")))
	assert.ErrorIs(t, err, chat.ErrInvalidAction)
	assert.Len(t, eng.calls, 1)
}

func TestHandlersCommandAndErrors(t *testing.T) {
	boom := errors.New("boom")
	eng := &fakeEngine{err: boom}
	h := NewHandlers(eng, dialogSet{100: true})

	assert.ErrorIs(t, h.Command(chat.CommandUnadmin)(newContext(t, privateMessage("/unadm"))), boom)
	assert.ErrorIs(t, h.Start(newContext(t, privateMessage("/start"))), boom)
	assert.Equal(t, chat.CommandUnadmin, eng.calls[0].cmd)
	assert.Equal(t, "start", eng.calls[1].kind)
	assert.True(t, h.InProgress(100))
	assert.False(t, h.InProgress(200))
}

func TestRoutes(t *testing.T) {
	reg := tg.NewRegistry()
	routes, err := Routes(reg, NewHandlers(&fakeEngine{}, nil))
	require.NoError(t, err)

	endpoints := map[any]bool{}
	for _, r := range routes {
		endpoints[r.Endpoint] = true
	}
	for _, e := range []any{"/start", "/admin", "/unadmin", "/unadm", tele.OnCallback, tele.OnText, tele.OnDocument, tele.OnMedia} {
		assert.True(t, endpoints[e], "missing route %v", e)
	}
	assert.Len(t, reg.ListCallbacks(), 7)
	assert.NotNil(t, reg.TextFallback())

	_, err = Routes(reg, NewHandlers(&fakeEngine{}, nil))
	assert.Error(t, err, "callbacks cannot be registered twice")
}

func TestForwardedPhotoReachesDialog(t *testing.T) {
	eng := &fakeEngine{}
	routes, err := Routes(tg.NewRegistry(), NewHandlers(eng, dialogSet{100: true}))
	require.NoError(t, err)

	var media tele.HandlerFunc
	for _, r := range routes {
		if r.Endpoint == tele.OnMedia {
			media = r.Handler
		}
	}
	require.NotNil(t, media)

	u := privateMessage("")
	u.Message.Photo = &tele.Photo{File: tele.File{FileID: "p1"}}
	u.Message.Origin = &tele.MessageOrigin{Sender: &tele.User{ID: 400, Username: "dan"}}
	require.NoError(t, media(newContext(t, u)))

	require.Len(t, eng.calls, 1)
	assert.Equal(t, "text", eng.calls[0].kind)
	require.NotNil(t, eng.calls[0].text.ForwardedFrom)
	assert.Equal(t, int64(400), eng.calls[0].text.ForwardedFrom.ID)
}
