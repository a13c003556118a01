package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomock "go.uber.org/mock/gomock"

	"github.com/m3rciful/feedbackbot/relay/chat"
	"github.com/m3rciful/feedbackbot/relay/model"
)

type adminsFunc func(ctx context.Context) ([]int64, error)

func (f adminsFunc) ListAdministrators(ctx context.Context) ([]int64, error) { return f(ctx) }

func staticAdmins(ids ...int64) AdminLister {
	return adminsFunc(func(context.Context) ([]int64, error) { return ids, nil })
}

var question = model.Inquiry{
	ID:        7,
	Author:    model.Author{ID: 100, Username: "anna", FirstName: "Anna", LastName: "K"},
	Category:  model.CategoryQuestion,
	Body:      "When is the meeting?",
	CreatedAt: time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC),
}

func recipientIs(id int64) gomock.Matcher {
	return gomock.Cond(func(x any) bool {
		m, ok := x.(chat.Message)
		return ok && m.Recipient == id
	})
}

func TestFanOutReachesEverySnapshotAdmin(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := chat.NewMockSender(ctrl)

	for _, id := range []int64{1, 2, 3} {
		sender.EXPECT().Send(gomock.Any(), recipientIs(id)).DoAndReturn(func(_ context.Context, m chat.Message) error {
			assert.Contains(t, m.Text, "#7")
			assert.Contains(t, m.Text, "Anna K (@anna)")
			assert.Contains(t, m.Text, "When is the meeting?")
			assert.Equal(t, InquiryActions(7), m.Actions)
			assert.False(t, m.Persistent)
			return nil
		})
	}

	rep, err := NewRouter(staticAdmins(1, 2, 3), sender).FanOut(context.Background(), question)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, rep.Recipients)
	assert.Equal(t, []int64{1, 2, 3}, rep.Delivered)
	assert.Empty(t, rep.Failed)
}

func TestFanOutContinuesPastFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := chat.NewMockSender(ctrl)
	blocked := errors.New("bot was blocked by the user")

	gomock.InOrder(
		sender.EXPECT().Send(gomock.Any(), recipientIs(1)).Return(blocked),
		sender.EXPECT().Send(gomock.Any(), recipientIs(2)).Return(nil),
		sender.EXPECT().Send(gomock.Any(), recipientIs(3)).Return(blocked),
	)

	rep, err := NewRouter(staticAdmins(1, 2, 3), sender).FanOut(context.Background(), question)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, rep.Delivered)
	assert.Len(t, rep.Failed, 2)
	assert.ErrorIs(t, rep.Failed[1], blocked)
	assert.True(t, rep.Partial())
}

func TestFanOutTakesOneSnapshot(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := chat.NewMockSender(ctrl)

	calls := 0
	admins := adminsFunc(func(context.Context) ([]int64, error) {
		calls++
		if calls == 1 {
			return []int64{10, 20}, nil
		}
		return []int64{10, 20, 30}, nil
	})
	sender.EXPECT().Send(gomock.Any(), recipientIs(10)).Return(nil)
	sender.EXPECT().Send(gomock.Any(), recipientIs(20)).Return(nil)

	rep, err := NewRouter(admins, sender).FanOut(context.Background(), question)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, []int64{10, 20}, rep.Recipients)
}

func TestFanOutListFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := chat.NewMockSender(ctrl)
	boom := errors.New("db down")

	_, err := NewRouter(adminsFunc(func(context.Context) ([]int64, error) { return nil, boom }), sender).
		FanOut(context.Background(), question)
	assert.ErrorIs(t, err, boom)
}

func TestDeliverReply(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := chat.NewMockSender(ctrl)
	router := NewRouter(staticAdmins(), sender)
	reply := model.Reply{ID: 1, InquiryID: 7, ResponderID: 5, Text: "Next Monday."}

	sender.EXPECT().Send(gomock.Any(), chat.Message{
		Recipient: 100,
		Text:      "📩 Reply to your inquiry #7:\n\nNext Monday.",
	}).Return(nil)
	require.NoError(t, router.DeliverReply(context.Background(), question, reply))

	blocked := errors.New("Forbidden: bot was blocked by the user (403)")
	sender.EXPECT().Send(gomock.Any(), recipientIs(100)).Return(blocked)
	err := router.DeliverReply(context.Background(), question, reply)
	assert.ErrorIs(t, err, ErrUndeliverable)
	assert.ErrorIs(t, err, blocked)
}

func TestNotifyGranted(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := chat.NewMockSender(ctrl)
	router := NewRouter(staticAdmins(), sender)

	sender.EXPECT().Send(gomock.Any(), chat.Message{Recipient: 9, Text: grantedText}).Return(nil)
	assert.NoError(t, router.NotifyGranted(context.Background(), 9))

	sender.EXPECT().Send(gomock.Any(), recipientIs(9)).Return(errors.New("chat not found"))
	assert.Error(t, router.NotifyGranted(context.Background(), 9))
}

func TestSummary(t *testing.T) {
	s := Summary(question)
	assert.Contains(t, s, "Inquiry #7")
	assert.Contains(t, s, "Date: 2026-05-04 10:30 UTC")
	assert.Contains(t, s, "⏳ Awaiting reply")

	resolved := question
	resolved.Resolved = true
	assert.Contains(t, Summary(resolved), "✅ Answered")

	anon := question
	anon.Author = model.Author{ID: 55}
	assert.Contains(t, Notice(anon), "From: id 55")
}
