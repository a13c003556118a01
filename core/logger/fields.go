package logger

import "strings"

var levelNames = map[string]string{
	"debug":   "DEBUG",
	"info":    "INFO",
	"warn":    "WARN",
	"warning": "WARN",
	"error":   "ERROR",
}

var statusNames = map[string]struct{}{
	"ok":        {},
	"fail":      {},
	"skip":      {},
	"retry":     {},
	"partial":   {},
	"cancelled": {},
}

func normalizeLevel(level string) string {
	if level == "" {
		return "INFO"
	}
	if mapped, ok := levelNames[strings.ToLower(level)]; ok {
		return mapped
	}
	return strings.ToUpper(level)
}

// normalizeStatus lowercases known status values and leaves unknown ones intact.
func normalizeStatus(status string) string {
	lower := strings.ToLower(strings.TrimSpace(status))
	if _, ok := statusNames[lower]; ok {
		return lower
	}
	return status
}

// durationKey renames a duration attribute so the unit is visible in the key.
func durationKey(key string) string {
	switch {
	case key == "duration":
		return "duration_ms"
	case strings.HasSuffix(key, "_ms"):
		return key
	default:
		return key + "_ms"
	}
}

var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"rid_full",
	"ts_unix_nano",
	"update_id",
	"user_id",
	"chat_id",
	"chat_type",
	"handler",
	"action",
	"cb_key",
	"state",
	"inquiry_id",
	"category",
	"admin_id",
	"recipients",
	"delivered",
	"failed",
	"duration_ms",
	"messages",
	"kb",
	"count",
	"payload",
	"username",
	"mode",
	"listen",
	"driver",
	"db",
	"host",
	"port",
	"http_code",
	"err",
	"err_code",
	"cause",
	"attempts",
	"backoff_ms",
}
