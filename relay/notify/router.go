// Package notify fans new inquiries out to administrators and delivers
// replies back to inquiry authors.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/feedbackbot/core/logger"
	"github.com/m3rciful/feedbackbot/relay/chat"
	"github.com/m3rciful/feedbackbot/relay/model"
)

// ErrUndeliverable marks a reply that was stored but could not be sent to its author.
var ErrUndeliverable = errors.New("notify: reply saved but undeliverable")

// AdminLister returns the current administrator ids.
type AdminLister interface {
	ListAdministrators(ctx context.Context) ([]int64, error)
}

// Report describes one fan-out.
type Report struct {
	// Recipients is the administrator snapshot taken when the fan-out started.
	Recipients []int64
	Delivered  []int64
	Failed     map[int64]error
}

// Partial reports whether some but not all recipients were reached.
func (r Report) Partial() bool {
	return len(r.Failed) > 0 && len(r.Delivered) > 0
}

// Router sends relay notifications through a chat.Sender.
type Router struct {
	admins AdminLister
	sender chat.Sender
}

// NewRouter wires the router to its administrator source and transport.
func NewRouter(admins AdminLister, sender chat.Sender) *Router {
	return &Router{admins: admins, sender: sender}
}

// InquiryActions are the buttons attached to an inquiry shown to administrators.
func InquiryActions(id int64) []chat.Action {
	return []chat.Action{
		chat.InquiryAction(chat.ActionReply, id),
		chat.InquiryAction(chat.ActionDelete, id),
	}
}

// FanOut sends the inquiry notice to every administrator listed at call time.
// Delivery failures are recorded per recipient and never stop the loop; the
// returned error is set only when the administrator list cannot be read.
func (r *Router) FanOut(ctx context.Context, inq model.Inquiry) (Report, error) {
	start := time.Now()
	ids, err := r.admins.ListAdministrators(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("fan-out inquiry %d: %w", inq.ID, err)
	}

	rep := Report{Recipients: ids, Failed: map[int64]error{}}
	text := Notice(inq)
	actions := InquiryActions(inq.ID)
	for _, id := range ids {
		err := r.sender.Send(ctx, chat.Message{Recipient: id, Text: text, Actions: actions})
		if err != nil {
			rep.Failed[id] = err
			logger.Warn(ctx, logger.CompNotify, "fanout.recipient",
				slog.String("status", "fail"),
				slog.Int64("inquiry_id", inq.ID),
				slog.Int64("admin_id", id),
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			)
			continue
		}
		rep.Delivered = append(rep.Delivered, id)
	}

	status := "ok"
	switch {
	case len(ids) == 0:
		status = "skip"
	case len(rep.Delivered) == 0 && len(rep.Failed) > 0:
		status = "fail"
	case rep.Partial():
		status = "partial"
	}
	logger.Info(ctx, logger.CompNotify, "fanout",
		slog.String("status", status),
		slog.Int64("inquiry_id", inq.ID),
		slog.String("category", string(inq.Category)),
		slog.Int("recipients", len(ids)),
		slog.Int("delivered", len(rep.Delivered)),
		slog.Int("failed", len(rep.Failed)),
		slog.Duration("duration", logger.Took(start)),
	)
	return rep, nil
}

// DeliverReply sends reply to the author of inq. A transport failure is
// returned wrapped in ErrUndeliverable.
func (r *Router) DeliverReply(ctx context.Context, inq model.Inquiry, reply model.Reply) error {
	err := r.sender.Send(ctx, chat.Message{Recipient: inq.Author.ID, Text: ReplyText(inq, reply)})
	logger.Info(ctx, logger.CompNotify, "reply.deliver",
		slog.String("status", logger.Status(err)),
		slog.Int64("inquiry_id", inq.ID),
		slog.Int64("user_id", inq.Author.ID),
		slog.Int64("admin_id", reply.ResponderID),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUndeliverable, err)
	}
	return nil
}

// NotifyGranted greets a newly added administrator.
func (r *Router) NotifyGranted(ctx context.Context, userID int64) error {
	err := r.sender.Send(ctx, chat.Message{Recipient: userID, Text: grantedText})
	if err != nil {
		logger.Warn(ctx, logger.CompNotify, "grant.notify",
			slog.String("status", "fail"),
			slog.Int64("admin_id", userID),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return fmt.Errorf("notify administrator %d: %w", userID, err)
	}
	return nil
}
