package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/feedbackbot/relay/model"
)

func TestParseAction(t *testing.T) {
	tests := []struct {
		kind, payload string
		want          Action
		wantErr       bool
	}{
		{kind: "question", want: NewAction(ActionQuestion)},
		{kind: " add_admin ", want: NewAction(ActionAddAdmin)},
		{kind: "reply", payload: "7", want: InquiryAction(ActionReply, 7)},
		{kind: "delete", payload: "12", want: InquiryAction(ActionDelete, 12)},
		{kind: "reply", payload: "", wantErr: true},
		{kind: "reply", payload: "seven", wantErr: true},
		{kind: "delete", payload: "-3", wantErr: true},
		{kind: "question", payload: "1", wantErr: true},
		{kind: "reply_7", wantErr: true},
		{kind: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseAction(tt.kind, tt.payload)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidAction, "%q|%q", tt.kind, tt.payload)
			continue
		}
		require.NoError(t, err, "%q|%q", tt.kind, tt.payload)
		assert.Equal(t, tt.want, got)
	}
}

func TestActionIdentifiers(t *testing.T) {
	a := InquiryAction(ActionReply, 7)
	assert.Equal(t, "reply:7", a.String())
	back, err := ParseIdentifier(a.String())
	require.NoError(t, err)
	assert.Equal(t, a, back)

	assert.Equal(t, "initiative", NewAction(ActionInitiative).String())
	assert.Empty(t, NewAction(ActionRecent).Payload())
}

func TestActionCategory(t *testing.T) {
	c, ok := ActionProblem.Category()
	assert.True(t, ok)
	assert.Equal(t, model.CategoryProblem, c)

	_, ok = ActionReply.Category()
	assert.False(t, ok)
}

func TestActionForLabel(t *testing.T) {
	a, ok := ActionForLabel("📋 Recent inquiries")
	require.True(t, ok)
	assert.Equal(t, NewAction(ActionRecent), a)

	a, ok = ActionForLabel(NewAction(ActionAddAdmin).Label())
	require.True(t, ok)
	assert.Equal(t, ActionAddAdmin, a.Kind)

	_, ok = ActionForLabel(NewAction(ActionReply).Label())
	assert.False(t, ok)
	_, ok = ActionForLabel("hello")
	assert.False(t, ok)
}

func TestParseCommand(t *testing.T) {
	for in, want := range map[string]CommandName{
		"/admin":             CommandAdmin,
		"admin":              CommandAdmin,
		"/unadmin":           CommandUnadmin,
		"/unadm":             CommandUnadmin,
		"/UNADM@feedbackbot": CommandUnadmin,
	} {
		got, ok := ParseCommand(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseCommand("/start")
	assert.False(t, ok)
}

func TestActorAuthor(t *testing.T) {
	a := Actor{ID: 3, Username: "u", FirstName: "F", LastName: "L"}
	assert.Equal(t, model.Author{ID: 3, Username: "u", FirstName: "F", LastName: "L"}, a.Author())
}
