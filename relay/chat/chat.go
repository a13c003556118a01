// Package chat declares the transport-neutral events consumed by the relay
// engine and the messages it emits.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/m3rciful/feedbackbot/relay/model"
)

// ErrInvalidAction is returned for action identifiers that do not parse.
var ErrInvalidAction = errors.New("chat: invalid action")

// ActionKind names a selectable menu action.
type ActionKind string

const (
	ActionQuestion   ActionKind = "question"
	ActionProblem    ActionKind = "problem"
	ActionInitiative ActionKind = "initiative"
	ActionReply      ActionKind = "reply"
	ActionDelete     ActionKind = "delete"
	ActionAddAdmin   ActionKind = "add_admin"
	ActionRecent     ActionKind = "recent"
)

var labels = map[ActionKind]string{
	ActionQuestion:   "❓ Ask a question",
	ActionProblem:    "⚠️ Report a problem",
	ActionInitiative: "💡 Propose an initiative",
	ActionReply:      "✏️ Reply",
	ActionDelete:     "🗑️ Delete",
	ActionAddAdmin:   "➕ Add administrator",
	ActionRecent:     "📋 Recent inquiries",
}

// TargetsInquiry reports whether the kind carries an inquiry id.
func (k ActionKind) TargetsInquiry() bool {
	return k == ActionReply || k == ActionDelete
}

// Category maps the three submission kinds to their inquiry category.
func (k ActionKind) Category() (model.Category, bool) {
	c := model.Category(k)
	return c, c.Valid()
}

// Action is a menu action, validated once when it enters the relay.
type Action struct {
	Kind      ActionKind
	InquiryID int64
}

// NewAction builds an action that does not target an inquiry.
func NewAction(kind ActionKind) Action { return Action{Kind: kind} }

// InquiryAction builds a reply or delete action for an inquiry.
func InquiryAction(kind ActionKind, inquiryID int64) Action {
	return Action{Kind: kind, InquiryID: inquiryID}
}

// Label is the button text shown for the action.
func (a Action) Label() string {
	return labels[a.Kind]
}

// Payload is the data carried next to the kind, empty for kinds without an inquiry.
func (a Action) Payload() string {
	if !a.Kind.TargetsInquiry() {
		return ""
	}
	return strconv.FormatInt(a.InquiryID, 10)
}

func (a Action) String() string {
	if p := a.Payload(); p != "" {
		return string(a.Kind) + ":" + p
	}
	return string(a.Kind)
}

// ParseAction validates a kind and its payload.
func ParseAction(kind, payload string) (Action, error) {
	k := ActionKind(strings.TrimSpace(kind))
	if _, ok := labels[k]; !ok {
		return Action{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidAction, kind)
	}
	payload = strings.TrimSpace(payload)
	if !k.TargetsInquiry() {
		if payload != "" {
			return Action{}, fmt.Errorf("%w: %s takes no payload", ErrInvalidAction, k)
		}
		return NewAction(k), nil
	}
	id, err := strconv.ParseInt(payload, 10, 64)
	if err != nil || id <= 0 {
		return Action{}, fmt.Errorf("%w: %s needs an inquiry id, got %q", ErrInvalidAction, k, payload)
	}
	return InquiryAction(k, id), nil
}

// ParseIdentifier parses the "kind:id" form produced by String.
func ParseIdentifier(s string) (Action, error) {
	kind, payload, _ := strings.Cut(s, ":")
	return ParseAction(kind, payload)
}

// ActionForLabel maps button text back to an action without a payload.
func ActionForLabel(text string) (Action, bool) {
	text = strings.TrimSpace(text)
	for k, label := range labels {
		if k.TargetsInquiry() {
			continue
		}
		if label == text {
			return NewAction(k), true
		}
	}
	return Action{}, false
}

// Actor is the sender of an event.
type Actor struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// Author snapshots the actor for storage with an inquiry.
func (a Actor) Author() model.Author {
	return model.Author{ID: a.ID, Username: a.Username, FirstName: a.FirstName, LastName: a.LastName}
}

// Text is an inbound text message. ForwardedFrom is set when the message was
// forwarded from a user whose identity is visible.
type Text struct {
	Body          string
	ForwardedFrom *Actor
}

// CommandName is a slash command understood by the relay.
type CommandName string

const (
	CommandAdmin   CommandName = "admin"
	CommandUnadmin CommandName = "unadmin"
)

// ParseCommand accepts "admin", "/unadmin", "/unadm@botname" and similar forms.
func ParseCommand(s string) (CommandName, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "/")
	if i := strings.IndexAny(s, "@ "); i >= 0 {
		s = s[:i]
	}
	switch strings.ToLower(s) {
	case "admin":
		return CommandAdmin, true
	case "unadmin", "unadm":
		return CommandUnadmin, true
	}
	return "", false
}

// Message is one outbound chat message.
type Message struct {
	Recipient int64
	Text      string
	Actions   []Action
	// Persistent asks for the actions to be shown as a reply keyboard that
	// stays open, rather than buttons attached to the message. Persistent
	// with no actions removes the keyboard.
	Persistent bool
}

// Sender delivers messages to chat users.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg Message) error

func (f SenderFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }
