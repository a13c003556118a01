package telegram

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/feedbackbot/core/config"

	tele "gopkg.in/telebot.v4"
)

// WebhookOptions declares webhook listener settings.
type WebhookOptions struct {
	Listen string
	Port   int
	URL    string
}

// PollerOptions configures BuildPoller.
type PollerOptions struct {
	RunMode                string
	LongPollTimeoutSeconds int
	Webhook                WebhookOptions
}

// BuildPoller returns a Telebot poller based on provided options.
func BuildPoller(opts PollerOptions) tele.Poller {
	runMode := strings.ToLower(strings.TrimSpace(opts.RunMode))
	if runMode == coreconfig.RunModeWebhook {
		return &tele.Webhook{
			Listen:         fmt.Sprintf("%s:%d", opts.Webhook.Listen, opts.Webhook.Port),
			Endpoint:       &tele.WebhookEndpoint{PublicURL: opts.Webhook.URL},
			AllowedUpdates: AllowedUpdates,
		}
	}

	return &tele.LongPoller{
		Timeout:        time.Duration(longPollTimeout(opts.LongPollTimeoutSeconds)) * time.Second,
		AllowedUpdates: AllowedUpdates,
	}
}

// AllowedUpdates limits the update kinds requested from Telegram to what the
// relay handles.
var AllowedUpdates = []string{"message", "callback_query"}

func longPollTimeout(seconds int) int {
	if seconds <= 0 {
		return 10
	}
	return seconds
}
