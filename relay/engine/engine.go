// Package engine runs the relay conversation: it classifies the actor,
// advances their dialog state, writes to the store and hands deliveries to
// the notification router.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/m3rciful/feedbackbot/core/logger"
	"github.com/m3rciful/feedbackbot/relay/chat"
	"github.com/m3rciful/feedbackbot/relay/dialog"
	"github.com/m3rciful/feedbackbot/relay/model"
	"github.com/m3rciful/feedbackbot/relay/notify"
	"github.com/m3rciful/feedbackbot/relay/roles"
	"github.com/m3rciful/feedbackbot/relay/store"
)

// ErrMalformedInput is returned when an administrator identifier cannot be parsed.
var ErrMalformedInput = errors.New("engine: malformed input")

// Options tune the engine.
type Options struct {
	// RecentLimit caps the recent inquiries listing.
	RecentLimit int
	// Greeting is shown to end-users on start.
	Greeting string
	// SelfGrant lets anyone become an administrator with the admin command.
	SelfGrant bool
}

// Engine handles typed chat events. It is safe for concurrent use; events of
// one actor must be delivered in order.
type Engine struct {
	store   store.Repository
	roles   *roles.Resolver
	dialogs dialog.Manager
	router  *notify.Router
	sender  chat.Sender
	opts    Options
}

// New wires an engine. repo should already be serialized.
func New(repo store.Repository, dialogs dialog.Manager, sender chat.Sender, opts Options) *Engine {
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = store.DefaultRecentLimit
	}
	if strings.TrimSpace(opts.Greeting) == "" {
		opts.Greeting = DefaultGreeting
	}
	return &Engine{
		store:   repo,
		roles:   roles.NewResolver(repo),
		dialogs: dialogs,
		router:  notify.NewRouter(repo, sender),
		sender:  sender,
		opts:    opts,
	}
}

// Dialogs exposes the dialog table.
func (e *Engine) Dialogs() dialog.Manager { return e.dialogs }

func (e *Engine) say(ctx context.Context, to int64, text string, actions ...chat.Action) error {
	return e.sender.Send(ctx, chat.Message{Recipient: to, Text: text, Actions: actions})
}

func (e *Engine) sayMenu(ctx context.Context, to int64, text string, admin bool) error {
	return e.sender.Send(ctx, chat.Message{Recipient: to, Text: text, Actions: Menu(admin), Persistent: admin})
}

// sayRoleMenu resolves the role first. A failed lookup falls back to the end-user menu.
func (e *Engine) sayRoleMenu(ctx context.Context, to int64, adminText, userText string) error {
	admin, err := e.roles.IsAdministrator(ctx, to)
	if err != nil {
		logger.Warn(ctx, logger.CompEngine, "role.resolve",
			slog.String("status", "fail"),
			slog.Int64("user_id", to),
			slog.String("err", err.Error()),
		)
	}
	if admin {
		return e.sayMenu(ctx, to, adminText, true)
	}
	return e.sayMenu(ctx, to, userText, false)
}

func (e *Engine) transition(ctx context.Context, actorID int64, from dialog.State, to dialog.State, err error) {
	if to == nil {
		e.dialogs.Clear(actorID)
		to = dialog.Idle{}
	} else {
		e.dialogs.Set(actorID, to)
	}
	logger.Debug(ctx, logger.CompEngine, "transition",
		slog.String("status", logger.Status(err)),
		slog.Int64("user_id", actorID),
		slog.String("from", from.Name()),
		slog.String("state", to.Name()),
	)
}

// failure reports a store failure, resets the actor and returns err.
func (e *Engine) failure(ctx context.Context, actorID int64, from dialog.State, err error) error {
	logger.Error(ctx, logger.CompEngine, "store.failure",
		slog.Int64("user_id", actorID),
		slog.String("state", from.Name()),
		slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
	)
	e.transition(ctx, actorID, from, nil, err)
	return errors.Join(err, e.say(ctx, actorID, textFailure))
}

// guard runs the role check for an administrator-only step. Store failures are
// reported and reset the actor; a denial leaves the state to the caller.
func (e *Engine) guard(ctx context.Context, actorID int64) error {
	err := e.roles.Guard(ctx, actorID)
	if err == nil {
		return nil
	}
	from := e.dialogs.Get(actorID)
	if errors.Is(err, roles.ErrPermissionDenied) {
		logger.Info(ctx, logger.CompEngine, "guard",
			slog.String("status", "fail"),
			slog.Int64("user_id", actorID),
			slog.String("state", from.Name()),
		)
		return errors.Join(err, e.sayMenu(ctx, actorID, textNoRights, false))
	}
	return e.failure(ctx, actorID, from, err)
}

// Start shows the role menu and abandons any dialog in progress.
func (e *Engine) Start(ctx context.Context, actor chat.Actor) error {
	from := e.dialogs.Get(actor.ID)
	if !dialog.IsIdle(from) {
		e.transition(ctx, actor.ID, from, nil, nil)
	}
	return e.sayRoleMenu(ctx, actor.ID, textAdminGreeting, e.opts.Greeting)
}

// Action handles a menu selection.
func (e *Engine) Action(ctx context.Context, actor chat.Actor, a chat.Action) error {
	from := e.dialogs.Get(actor.ID)

	if c, ok := a.Kind.Category(); ok {
		e.transition(ctx, actor.ID, from, dialog.AwaitingInquiryBody{Category: c}, nil)
		return e.say(ctx, actor.ID, bodyPrompts[c])
	}

	if err := e.guard(ctx, actor.ID); err != nil {
		return err
	}

	switch a.Kind {
	case chat.ActionAddAdmin:
		e.transition(ctx, actor.ID, from, dialog.AwaitingNewAdminIdentifier{}, nil)
		return e.say(ctx, actor.ID, textAddAdminPrompt)

	case chat.ActionRecent:
		return e.listRecent(ctx, actor.ID)

	case chat.ActionReply:
		inq, err := e.store.GetInquiry(ctx, a.InquiryID)
		if errors.Is(err, store.ErrNotFound) {
			e.transition(ctx, actor.ID, from, nil, err)
			return errors.Join(err, e.say(ctx, actor.ID, textNotFound))
		}
		if err != nil {
			return e.failure(ctx, actor.ID, from, err)
		}
		e.transition(ctx, actor.ID, from, dialog.AwaitingReplyText{InquiryID: inq.ID}, nil)
		return e.say(ctx, actor.ID, notify.ReplyPrompt(inq))

	case chat.ActionDelete:
		if err := e.store.DeleteInquiry(ctx, a.InquiryID); err != nil {
			return e.failure(ctx, actor.ID, from, err)
		}
		logger.Info(ctx, logger.CompEngine, "inquiry.delete",
			slog.String("status", "ok"),
			slog.Int64("inquiry_id", a.InquiryID),
			slog.Int64("admin_id", actor.ID),
		)
		return e.say(ctx, actor.ID, textDeleted(a.InquiryID))
	}
	return fmt.Errorf("%w: %s", chat.ErrInvalidAction, a)
}

func (e *Engine) listRecent(ctx context.Context, actorID int64) error {
	inquiries, err := e.store.ListRecentInquiries(ctx, e.opts.RecentLimit)
	if err != nil {
		return e.failure(ctx, actorID, e.dialogs.Get(actorID), err)
	}
	if len(inquiries) == 0 {
		return e.say(ctx, actorID, textNoInquiries)
	}
	var errs []error
	for _, inq := range inquiries {
		errs = append(errs, e.say(ctx, actorID, notify.Summary(inq), notify.InquiryActions(inq.ID)...))
	}
	return errors.Join(errs...)
}

// Text handles a free text message according to the actor's dialog state.
func (e *Engine) Text(ctx context.Context, actor chat.Actor, msg chat.Text) error {
	switch st := e.dialogs.Get(actor.ID).(type) {
	case dialog.AwaitingInquiryBody:
		return e.submitInquiry(ctx, actor, st, msg)
	case dialog.AwaitingNewAdminIdentifier:
		return e.addAdministrator(ctx, actor, st, msg)
	case dialog.AwaitingReplyText:
		return e.submitReply(ctx, actor, st, msg)
	default:
		return e.sayRoleMenu(ctx, actor.ID, textAdminIdle, textUserIdle)
	}
}

func (e *Engine) submitInquiry(ctx context.Context, actor chat.Actor, st dialog.AwaitingInquiryBody, msg chat.Text) (err error) {
	// The actor leaves the dialog whatever happens below.
	defer func() { e.transition(ctx, actor.ID, st, nil, err) }()

	inq, err := e.store.CreateInquiry(ctx, actor.Author(), st.Category, msg.Body)
	switch {
	case errors.Is(err, store.ErrEmptyBody):
		return errors.Join(err, e.say(ctx, actor.ID, textEmptyInquiry))
	case err != nil:
		logger.Error(ctx, logger.CompEngine, "inquiry.create",
			slog.Int64("user_id", actor.ID),
			slog.String("category", string(st.Category)),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return errors.Join(err, e.say(ctx, actor.ID, textFailure))
	}
	logger.Info(ctx, logger.CompEngine, "inquiry.create",
		slog.String("status", "ok"),
		slog.Int64("inquiry_id", inq.ID),
		slog.Int64("user_id", actor.ID),
		slog.String("category", string(inq.Category)),
	)

	ackErr := e.say(ctx, actor.ID, textThanks)
	if _, err := e.router.FanOut(ctx, inq); err != nil {
		logger.Error(ctx, logger.CompEngine, "inquiry.fanout",
			slog.Int64("inquiry_id", inq.ID),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
	}
	return errors.Join(ackErr, e.sayRoleMenu(ctx, actor.ID, textAdminGreeting, e.opts.Greeting))
}

func parseIdentifier(msg chat.Text) (int64, string, bool) {
	if msg.ForwardedFrom != nil && msg.ForwardedFrom.ID != 0 {
		return msg.ForwardedFrom.ID, msg.ForwardedFrom.Username, true
	}
	id, err := strconv.ParseInt(strings.TrimSpace(msg.Body), 10, 64)
	if err != nil || id <= 0 {
		return 0, "", false
	}
	return id, "", true
}

func (e *Engine) addAdministrator(ctx context.Context, actor chat.Actor, st dialog.AwaitingNewAdminIdentifier, msg chat.Text) error {
	if err := e.guard(ctx, actor.ID); err != nil {
		// Only administrators may hold this state.
		if e.dialogs.InProgress(actor.ID) {
			e.transition(ctx, actor.ID, st, nil, err)
		}
		return err
	}

	target, username, ok := parseIdentifier(msg)
	if !ok {
		logger.Debug(ctx, logger.CompEngine, "admin.identifier",
			slog.String("status", "fail"),
			slog.Int64("user_id", actor.ID),
			slog.String("payload", logger.SanitizeLimit(msg.Body, 64)),
		)
		return errors.Join(ErrMalformedInput, e.say(ctx, actor.ID, textBadIdentifier))
	}

	_, err := e.store.AddAdministrator(ctx, target, username, actor.ID)
	switch {
	case errors.Is(err, store.ErrAlreadyExists):
		e.transition(ctx, actor.ID, st, nil, err)
		return errors.Join(err,
			e.say(ctx, actor.ID, textAlreadyAdmin(target)),
			e.sayMenu(ctx, actor.ID, textAdminGreeting, true),
		)
	case err != nil:
		err = e.failure(ctx, actor.ID, st, err)
		return errors.Join(err, e.sayMenu(ctx, actor.ID, textAdminGreeting, true))
	}

	e.transition(ctx, actor.ID, st, nil, nil)
	sendErr := e.say(ctx, actor.ID, textAdminAdded(target))
	notified := e.router.NotifyGranted(ctx, target) == nil
	logger.Info(ctx, logger.CompEngine, "admin.add",
		slog.String("status", "ok"),
		slog.Int64("admin_id", target),
		slog.Int64("user_id", actor.ID),
		slog.Bool("notified", notified),
	)
	return errors.Join(sendErr, e.sayMenu(ctx, actor.ID, textAdminGreeting, true))
}

func (e *Engine) submitReply(ctx context.Context, actor chat.Actor, st dialog.AwaitingReplyText, msg chat.Text) (err error) {
	defer func() { e.transition(ctx, actor.ID, st, nil, err) }()

	if err := e.roles.Guard(ctx, actor.ID); err != nil {
		if errors.Is(err, roles.ErrPermissionDenied) {
			return errors.Join(err, e.sayMenu(ctx, actor.ID, textNoRights, false))
		}
		return errors.Join(err, e.say(ctx, actor.ID, textFailure))
	}

	inq, err := e.store.GetInquiry(ctx, st.InquiryID)
	if err == nil {
		var reply model.Reply
		// The inquiry may be deleted between the lookup and this write.
		reply, err = e.store.AddReply(ctx, inq.ID, actor.ID, msg.Body)
		if err == nil {
			return e.deliver(ctx, actor, inq, reply)
		}
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return errors.Join(err,
			e.say(ctx, actor.ID, textNotFound),
			e.sayMenu(ctx, actor.ID, textChooseAction, true),
		)
	case errors.Is(err, store.ErrEmptyBody):
		return errors.Join(err,
			e.say(ctx, actor.ID, textEmptyReply),
			e.sayMenu(ctx, actor.ID, textChooseAction, true),
		)
	default:
		logger.Error(ctx, logger.CompEngine, "reply.store",
			slog.Int64("inquiry_id", st.InquiryID),
			slog.Int64("admin_id", actor.ID),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return errors.Join(err, e.say(ctx, actor.ID, textFailure))
	}
}

func (e *Engine) deliver(ctx context.Context, actor chat.Actor, inq model.Inquiry, reply model.Reply) error {
	logger.Info(ctx, logger.CompEngine, "reply.store",
		slog.String("status", "ok"),
		slog.Int64("inquiry_id", inq.ID),
		slog.Int64("reply_id", reply.ID),
		slog.Int64("admin_id", actor.ID),
	)
	name := notify.AuthorName(inq.Author)
	confirm := textReplySent(name)
	if err := e.router.DeliverReply(ctx, inq, reply); err != nil {
		confirm = textReplyUndeliverable(name)
	}
	return errors.Join(
		e.say(ctx, actor.ID, confirm),
		e.sayMenu(ctx, actor.ID, textChooseAction, true),
	)
}

// Command handles the role commands.
func (e *Engine) Command(ctx context.Context, actor chat.Actor, cmd chat.CommandName) error {
	switch cmd {
	case chat.CommandAdmin:
		return e.grantSelf(ctx, actor)
	case chat.CommandUnadmin:
		return e.revokeSelf(ctx, actor)
	}
	return fmt.Errorf("engine: unknown command %q", cmd)
}

func (e *Engine) grantSelf(ctx context.Context, actor chat.Actor) error {
	if !e.opts.SelfGrant {
		admin, err := e.roles.IsAdministrator(ctx, actor.ID)
		if err != nil {
			return e.failure(ctx, actor.ID, e.dialogs.Get(actor.ID), err)
		}
		if !admin {
			return errors.Join(roles.ErrPermissionDenied, e.say(ctx, actor.ID, textSelfOff))
		}
	}

	_, err := e.store.AddAdministrator(ctx, actor.ID, actor.Username, actor.ID)
	switch {
	case errors.Is(err, store.ErrAlreadyExists):
		return errors.Join(err, e.sayMenu(ctx, actor.ID, textSelfAlreadyAdmin(), true))
	case err != nil:
		return e.failure(ctx, actor.ID, e.dialogs.Get(actor.ID), err)
	}
	logger.Info(ctx, logger.CompEngine, "admin.self_grant",
		slog.String("status", "ok"),
		slog.Int64("user_id", actor.ID),
		slog.String("username", actor.Username),
	)
	return e.sayMenu(ctx, actor.ID, textSelfAdded(actor.ID), true)
}

func (e *Engine) revokeSelf(ctx context.Context, actor chat.Actor) error {
	admin, err := e.roles.IsAdministrator(ctx, actor.ID)
	if err != nil {
		return e.failure(ctx, actor.ID, e.dialogs.Get(actor.ID), err)
	}
	if !admin {
		return e.say(ctx, actor.ID, textNotAdmin)
	}
	if err := e.store.RemoveAdministrator(ctx, actor.ID); err != nil {
		return e.failure(ctx, actor.ID, e.dialogs.Get(actor.ID), err)
	}
	// An administrator-only dialog cannot outlive the role.
	if from := e.dialogs.Get(actor.ID); !dialog.IsIdle(from) {
		e.transition(ctx, actor.ID, from, nil, nil)
	}
	logger.Info(ctx, logger.CompEngine, "admin.revoke",
		slog.String("status", "ok"),
		slog.Int64("user_id", actor.ID),
	)
	// Persistent without actions removes the administrator keyboard.
	return e.sender.Send(ctx, chat.Message{Recipient: actor.ID, Text: textUnadmin, Persistent: true})
}
