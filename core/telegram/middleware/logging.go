package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/m3rciful/feedbackbot/core/logger"
	"github.com/m3rciful/feedbackbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/feedbackbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// recentUpdates remembers processed update IDs for a short while so the
// receipt line is written once even when the middleware wraps several layers.
var recentUpdates = ttlcache.New(
	ttlcache.WithTTL[int, struct{}](10*time.Second),
	ttlcache.WithCapacity[int, struct{}](4096),
	ttlcache.WithDisableTouchOnHit[int, struct{}](),
)

func alreadyLogged(updateID int) bool {
	_, found := recentUpdates.GetOrSet(updateID, struct{}{})
	return found
}

// LoggerMiddleware logs a single receipt line per update and sets rid.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		upd := c.Update()
		user := c.Sender()
		chat := c.Chat()

		chatID, userID := int64(0), int64(0)
		if chat != nil {
			chatID = chat.ID
		}
		if user != nil {
			userID = user.ID
		}
		rid := logger.BuildRID(upd.ID, chatID, userID)

		// An outer layer already built the context; keep it so values
		// attached downstream of that layer survive.
		if cached, ok := tghelpers.ContextFrom(c); ok && logger.RIDFrom(cached) == rid {
			return next(c)
		}

		c.Set("rid", rid)
		c.Set("update_start", time.Now())

		ctx := logger.WithRID(context.Background(), rid)
		ctx = logger.WithUpdateMeta(ctx, upd.ID, userID, chatID)
		ctx = logger.WithLogger(ctx, logger.Component(logger.CompTG))
		tghelpers.StoreContext(c, ctx)

		if logger.ShouldSampleDebug() && !alreadyLogged(upd.ID) {
			attrs := []slog.Attr{
				slog.String("status", "ok"),
				slog.String("rid", rid),
				slog.Int("update_id", upd.ID),
			}
			if chatID != 0 {
				attrs = append(attrs, slog.Int64("chat_id", chatID))
				attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
			}
			if userID != 0 {
				attrs = append(attrs, slog.Int64("user_id", userID))
				if user.Username != "" {
					attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
				}
				if user.LanguageCode != "" {
					attrs = append(attrs, slog.String("lang", user.LanguageCode))
				}
			}

			switch {
			case upd.Callback != nil:
				key, payload := callbacks.Parse(upd.Callback)
				if key != "" {
					attrs = append(attrs, slog.String("cb_key", logger.SanitizeLimit(key, 128)))
				}
				if payload != "" {
					attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(payload, 256)))
				}
			case upd.Message != nil:
				if t := c.Text(); t != "" {
					attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(t, 256)))
				}
				if upd.Message.Origin != nil {
					attrs = append(attrs, slog.Bool("forwarded", true))
				}
			}
			logger.LogEvent(ctx, logger.Component(logger.CompTG), slog.LevelDebug, "update.received", attrs...)
		}

		return next(c)
	}
}
