package telegram

import (
	"github.com/m3rciful/feedbackbot/core/telegram/middleware"
)

// DefaultMiddlewares builds the shared middleware chain: panic recovery,
// update receipt logging and per-update send counters.
func DefaultMiddlewares() []Middleware {
	return []Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
		{Name: "logger", Use: middleware.LoggerMiddleware},
		{Name: "metrics", Use: middleware.MessageMetricsMiddleware},
	}
}
