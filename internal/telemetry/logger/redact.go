package logger

import (
	"log/slog"
	"strings"
)

// Sensitive key patterns that should be redacted.
// Session tokens are opaque, so they can only be recognised by key name.
var sensitiveKeyPatterns = []string{
	"password",
	"passphrase",
	"secret",
	"token",
	"key",
	"credential",
	"auth",
	"bearer",
}

// redactedValue is the placeholder for redacted sensitive data.
const redactedValue = "***REDACTED***"

// redactSensitive replaces the value of any string attribute whose key looks
// sensitive. Values already masked by RedactString are kept as-is.
func redactSensitive(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindString {
		strVal := a.Value.String()
		if strVal != "" && IsSensitiveKey(a.Key) && !isMasked(strVal) {
			return slog.String(a.Key, redactedValue)
		}
		return a
	}

	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		newAttrs := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			newAttrs[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(newAttrs...)}
	}

	return a
}

// RedactString masks a secret so it can be shown to a human: the first and
// last three characters survive, everything else is hidden.
func RedactString(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 10 {
		return "***"
	}
	return value[:3] + "..." + value[len(value)-3:]
}

// isMasked reports whether value is already the output of RedactString.
func isMasked(value string) bool {
	if value == "***" || value == redactedValue {
		return true
	}
	return len(value) == 9 && value[3:6] == "..."
}

// IsSensitiveKey checks if a key name suggests sensitive content.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}
