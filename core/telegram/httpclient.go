package telegram

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"path"
	"time"

	"github.com/m3rciful/feedbackbot/core/logger"
	"github.com/m3rciful/feedbackbot/core/telegram/netutil"
)

const (
	defaultDialTimeout       = 5 * time.Second
	defaultTLSHandshake      = 5 * time.Second
	defaultIdleConnTimeout   = 30 * time.Second
	defaultResponseTimeout   = 10 * time.Second
	defaultKeepAliveInterval = 30 * time.Second
	defaultRetryAttempts     = 2
	defaultRetryBackoff      = time.Second
)

// HTTPOptions tunes the Bot API client.
type HTTPOptions struct {
	// LongPollTimeout is the getUpdates timeout; response deadlines are
	// extended by it so a quiet poll is not cut short.
	LongPollTimeout time.Duration
	RetryAttempts   int
	RetryBackoff    time.Duration
}

// readOnlyMethods may be repeated without side effects. Everything else,
// sendMessage in particular, is retried by the dispatcher, which knows
// whether the caller is still waiting.
var readOnlyMethods = map[string]bool{
	"getUpdates":     true,
	"getMe":          true,
	"getWebhookInfo": true,
	"getMyCommands":  true,
}

// BuildHTTPClient returns an HTTP client tuned for Telegram API calls.
func BuildHTTPClient(opts HTTPOptions) *http.Client {
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = defaultRetryAttempts
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = defaultRetryBackoff
	}
	headerTimeout := defaultResponseTimeout + opts.LongPollTimeout

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAliveInterval}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   defaultTLSHandshake,
		ResponseHeaderTimeout: headerTimeout,
		ExpectContinueTimeout: time.Second,
	}

	return &http.Client{
		Timeout: headerTimeout + 5*time.Second,
		Transport: &retryTransport{
			base:       transport,
			maxRetries: opts.RetryAttempts,
			backoff:    opts.RetryBackoff,
		},
	}
}

type retryTransport struct {
	base       http.RoundTripper
	maxRetries int
	backoff    time.Duration
}

// apiMethod extracts the Bot API method from /bot<token>/<method>.
func apiMethod(req *http.Request) string {
	if req.URL == nil {
		return ""
	}
	return path.Base(req.URL.Path)
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	method := apiMethod(req)
	if !readOnlyMethods[method] {
		return base.RoundTrip(req)
	}

	attempts := t.maxRetries + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		curr := req
		if attempt > 1 {
			curr = req.Clone(req.Context())
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, err
				}
				curr.Body = body
			} else if req.Body != nil {
				return nil, lastErr
			}
		}

		resp, err := base.RoundTrip(curr)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !netutil.ShouldRetry(err) || attempt == attempts {
			break
		}

		delay := t.backoff * time.Duration(attempt)
		logger.Debug(context.Background(), logger.CompTG, "http.retry",
			slog.String("method", method),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
		)
		if delay <= 0 {
			continue
		}
		timer := time.NewTimer(delay)
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
	}
	return nil, lastErr
}
