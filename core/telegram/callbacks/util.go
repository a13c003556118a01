// Package callbacks decodes inline button data.
package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// ParseData splits telebot's "\f<unique>|<payload>" encoding. Data without
// the leading form feed is treated as a bare unique key.
func ParseData(data string) (string, string) {
	raw := strings.TrimPrefix(data, "\f")
	unique, payload, _ := strings.Cut(raw, "|")
	return strings.TrimSpace(unique), payload
}

// Parse returns the unique key and payload of cb. Handlers registered under
// "\f"+unique receive them pre-split; the generic OnCallback endpoint does not.
func Parse(cb *tele.Callback) (string, string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	return ParseData(cb.Data)
}
