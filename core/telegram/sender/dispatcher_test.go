package sender

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	d := NewDispatcher(Options{Workers: 2, MaxRetries: 2, RetryBackoff: time.Millisecond, MaxDuration: time.Second})
	t.Cleanup(d.Close)
	return d
}

func TestDoReturnsResult(t *testing.T) {
	d := newTestDispatcher(t)
	var calls atomic.Int32

	err := d.Do(context.Background(), "send", "sendMessage", func() error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, calls.Load())

	blocked := errors.New("telegram: Forbidden: bot was blocked by the user (403)")
	err = d.Do(context.Background(), "send", "sendMessage", func() error {
		calls.Add(1)
		return blocked
	})
	assert.ErrorIs(t, err, blocked)
	assert.EqualValues(t, 2, calls.Load(), "permanent errors are not retried")
}

func TestDoRetriesTransientErrors(t *testing.T) {
	d := newTestDispatcher(t)
	var calls atomic.Int32

	err := d.Do(context.Background(), "send", "sendMessage", func() error {
		if calls.Add(1) < 3 {
			return timeoutErr{}
		}
		return nil
	})
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls.Load())
}

func TestDoAfterClose(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1})
	d.Close()
	assert.ErrorIs(t, d.Do(context.Background(), "send", "", func() error { return nil }), ErrQueueClosed)
	assert.Error(t, d.Do(context.Background(), "send", "", nil))
	d.Close()
}

func TestDoStopsWaitingWhenContextEnds(t *testing.T) {
	d := newTestDispatcher(t)
	release := make(chan struct{})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := d.Do(ctx, "send", "sendMessage", func() error {
		<-release
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClassifyError(t *testing.T) {
	assert.Equal(t, "timeout", classifyError(context.DeadlineExceeded))
	assert.Equal(t, "timeout", classifyError(timeoutErr{}))
	assert.Equal(t, "dns", classifyError(&net.DNSError{Err: "no such host", Name: "api.telegram.org"}))
	assert.Equal(t, "http_4xx", classifyError(tele.ErrBlockedByUser))
	assert.Equal(t, "http_5xx", classifyError(errors.New("telegram: internal error (502)")))
	assert.Equal(t, "unknown", classifyError(errors.New("boom")))
}

func TestSanitizeErrorMessage(t *testing.T) {
	err := errors.New(`Post "https://api.telegram.org/bot123456:AAH-secret_token/sendMessage": EOF`)
	msg := sanitizeErrorMessage(err)
	assert.NotContains(t, msg, "secret")
	assert.Contains(t, msg, "bot<redacted>")
}
