package keyboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplyButtons(t *testing.T) {
	m := ReplyButtons([]string{"a", "b"}, []string{"c"})
	require.Len(t, m.ReplyKeyboard, 2)
	assert.Equal(t, "a", m.ReplyKeyboard[0][0].Text)
	assert.Equal(t, "c", m.ReplyKeyboard[1][0].Text)
	assert.True(t, m.ResizeKeyboard)
}

func TestInlineButtonsRows(t *testing.T) {
	m := InlineButtonsRows(
		[]InlineBtn{{Text: "Ask", Unique: "question"}},
		[]InlineBtn{
			{Text: "Reply", Unique: "reply", Data: "7"},
			{Text: "Delete", Unique: "delete", Data: "7"},
		},
	)
	require.Len(t, m.InlineKeyboard, 2)
	require.Len(t, m.InlineKeyboard[1], 2)
	btn := m.InlineKeyboard[1][0]
	assert.Equal(t, "Reply", btn.Text)
	assert.Equal(t, "reply", btn.Unique)
	assert.Contains(t, btn.Data, "7")
	assert.Equal(t, "question", m.InlineKeyboard[0][0].Unique)
}

func TestRemoveKeyboard(t *testing.T) {
	assert.True(t, RemoveKeyboard().RemoveKeyboard)
}
