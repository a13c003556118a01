package telegram

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyTransport struct {
	calls    int
	failures int
}

func (f *flakyTransport) RoundTrip(*http.Request) (*http.Response, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	}
	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
}

func apiRequest(t *testing.T, method string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, "https://api.telegram.org/bot123:abc/"+method, strings.NewReader("{}"))
	require.NoError(t, err)
	return req
}

func TestRetryTransportRepeatsReadOnlyMethods(t *testing.T) {
	base := &flakyTransport{failures: 2}
	rt := &retryTransport{base: base, maxRetries: 2}

	resp, err := rt.RoundTrip(apiRequest(t, "getUpdates"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, base.calls)
}

func TestRetryTransportSendsMessagesOnce(t *testing.T) {
	base := &flakyTransport{failures: 1}
	rt := &retryTransport{base: base, maxRetries: 2}

	_, err := rt.RoundTrip(apiRequest(t, "sendMessage"))
	require.Error(t, err)
	assert.Equal(t, 1, base.calls)
}

func TestRetryTransportGivesUp(t *testing.T) {
	base := &flakyTransport{failures: 5}
	rt := &retryTransport{base: base, maxRetries: 1}

	_, err := rt.RoundTrip(apiRequest(t, "getMe"))
	require.Error(t, err)
	assert.Equal(t, 2, base.calls)
}

func TestBuildHTTPClientCoversLongPoll(t *testing.T) {
	c := BuildHTTPClient(HTTPOptions{LongPollTimeout: 50 * time.Second})
	assert.Greater(t, c.Timeout, 50*time.Second)

	rt, ok := c.Transport.(*retryTransport)
	require.True(t, ok)
	assert.Equal(t, defaultRetryAttempts, rt.maxRetries)
	tr, ok := rt.base.(*http.Transport)
	require.True(t, ok)
	assert.Greater(t, tr.ResponseHeaderTimeout, 50*time.Second)
}
