package netutil

import (
	"errors"
	"net"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v4"
)

func TestShouldRetry(t *testing.T) {
	dial := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
		{"dial", dial, true},
		{"url wrapping dial", &url.Error{Op: "Post", URL: "https://api.telegram.org", Err: dial}, true},
		{"blocked", tele.ErrBlockedByUser, false},
		{"flood", tele.FloodError{RetryAfter: 3}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ShouldRetry(tc.err))
		})
	}
}

func TestRetryAfter(t *testing.T) {
	d, ok := RetryAfter(tele.FloodError{RetryAfter: 2})
	assert.True(t, ok)
	assert.Equal(t, 2*time.Second, d)

	_, ok = RetryAfter(errors.New("boom"))
	assert.False(t, ok)
}
