package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/feedbackbot/core/logger"
	tg "github.com/m3rciful/feedbackbot/core/telegram"
	"github.com/m3rciful/feedbackbot/core/telegram/callbacks"
	"github.com/m3rciful/feedbackbot/core/telegram/commands"
	tghelpers "github.com/m3rciful/feedbackbot/core/telegram/helpers"
	"github.com/m3rciful/feedbackbot/core/telegram/router"
	"github.com/m3rciful/feedbackbot/relay/chat"

	tele "gopkg.in/telebot.v4"
)

// Engine is the relay engine as seen by the transport.
type Engine interface {
	Start(ctx context.Context, actor chat.Actor) error
	Action(ctx context.Context, actor chat.Actor, a chat.Action) error
	Text(ctx context.Context, actor chat.Actor, msg chat.Text) error
	Command(ctx context.Context, actor chat.Actor, cmd chat.CommandName) error
}

// DialogTable reports which actors are mid-dialog.
type DialogTable interface {
	InProgress(actorID int64) bool
}

// Handlers turns telebot updates into engine events.
type Handlers struct {
	engine  Engine
	dialogs DialogTable
}

// NewHandlers wires the handlers.
func NewHandlers(engine Engine, dialogs DialogTable) *Handlers {
	return &Handlers{engine: engine, dialogs: dialogs}
}

var errNoSender = errors.New("telegram: update without sender")

// ActorFrom converts the sender of an update.
func ActorFrom(u *tele.User) (chat.Actor, bool) {
	if u == nil || u.ID == 0 {
		return chat.Actor{}, false
	}
	return chat.Actor{ID: u.ID, Username: u.Username, FirstName: u.FirstName, LastName: u.LastName}, true
}

// TextFrom converts an inbound message. The forwarded sender is kept only
// when Telegram discloses the user.
func TextFrom(m *tele.Message) chat.Text {
	if m == nil {
		return chat.Text{}
	}
	out := chat.Text{Body: m.Text}
	if out.Body == "" {
		out.Body = m.Caption
	}
	if m.Origin != nil {
		if a, ok := ActorFrom(m.Origin.Sender); ok {
			out.ForwardedFrom = &a
		}
	}
	return out
}

func (h *Handlers) actor(c tele.Context) (context.Context, chat.Actor, error) {
	ctx := tghelpers.BuildContext(c)
	a, ok := ActorFrom(c.Sender())
	if !ok {
		return ctx, chat.Actor{}, errNoSender
	}
	// Groups are ignored; the relay talks to people one on one.
	if ch := c.Chat(); ch != nil && ch.Type != tele.ChatPrivate {
		return ctx, chat.Actor{}, fmt.Errorf("telegram: unsupported chat type %q", ch.Type)
	}
	return ctx, a, nil
}

// Start handles /start.
func (h *Handlers) Start(c tele.Context) error {
	ctx, a, err := h.actor(c)
	if err != nil {
		return err
	}
	return h.engine.Start(ctx, a)
}

// Command returns the handler of a role command.
func (h *Handlers) Command(name chat.CommandName) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx, a, err := h.actor(c)
		if err != nil {
			return err
		}
		return h.engine.Command(ctx, a, name)
	}
}

// Callback handles an inline button press.
func (h *Handlers) Callback(c tele.Context) error {
	ctx, a, err := h.actor(c)
	if err != nil {
		return err
	}
	kind, payload := callbacks.Parse(c.Callback())
	action, err := chat.ParseAction(kind, payload)
	if err != nil {
		logger.Warn(ctx, logger.CompTG, "callback.invalid",
			slog.String("cb_key", logger.SanitizeLimit(kind, 64)),
			slog.String("payload", logger.SanitizeLimit(payload, 64)),
		)
		return err
	}
	return h.engine.Action(ctx, a, action)
}

// Text handles free text. Menu labels are actions in any dialog state, so
// pressing a menu button always restarts the selection.
func (h *Handlers) Text(c tele.Context) error {
	ctx, a, err := h.actor(c)
	if err != nil {
		return err
	}
	msg := TextFrom(c.Message())
	if msg.ForwardedFrom == nil {
		if action, ok := chat.ActionForLabel(msg.Body); ok {
			return h.engine.Action(ctx, a, action)
		}
	}
	return h.engine.Text(ctx, a, msg)
}

// InProgress implements router.Dialogs.
func (h *Handlers) InProgress(userID int64) bool {
	return h.dialogs != nil && h.dialogs.InProgress(userID)
}

// Continue implements router.Dialogs.
func (h *Handlers) Continue(c tele.Context) error {
	return h.Text(c)
}

var _ router.Dialogs = (*Handlers)(nil)

// Register adds the relay commands, callbacks and text fallback to reg.
func (h *Handlers) Register(reg *tg.Registry) error {
	reg.RegisterCommand("/start", commands.Command{Handler: h.Start, Description: "Main menu"})
	reg.RegisterCommand("/admin", commands.Command{Handler: h.Command(chat.CommandAdmin), Description: "Become an administrator"})
	reg.RegisterCommand("/unadmin", commands.Command{
		Handler:     h.Command(chat.CommandUnadmin),
		Description: "Stop being an administrator",
		Aliases:     []string{"unadm"},
	})

	kinds := []chat.ActionKind{
		chat.ActionQuestion, chat.ActionProblem, chat.ActionInitiative,
		chat.ActionReply, chat.ActionDelete, chat.ActionAddAdmin, chat.ActionRecent,
	}
	for _, k := range kinds {
		if err := reg.RegisterCallback(string(k), h.Callback); err != nil {
			return err
		}
	}
	reg.SetTextFallback(h.Text)
	return nil
}

// Routes registers the relay on reg and returns the telebot routes serving it.
func Routes(reg *tg.Registry, h *Handlers) ([]tg.Route, error) {
	if err := h.Register(reg); err != nil {
		return nil, err
	}
	routes := router.CommandRoutes(reg)
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	routes = append(routes, router.TextRoutes(h, reg, router.TextOptions{
		UnknownDocument: h.Text,
	})...)
	return routes, nil
}
