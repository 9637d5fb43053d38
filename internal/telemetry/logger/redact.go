// Package logger provides structured logging for node processes.
package logger

import (
	"log/slog"
	"strings"
)

// Sensitive key patterns that should be redacted regardless of value shape.
// The core protocol carries no credentials, but config and CLI fields may
// still be logged verbatim by callers, so redact by key name defensively.
var sensitiveKeyPatterns = []string{
	"password",
	"secret",
	"token",
	"credential",
	"auth",
}

// redactedValue is the placeholder for redacted sensitive data.
const redactedValue = "***REDACTED***"

// redactSensitive checks if an attribute's key suggests sensitive data
// and redacts the value if so.
func redactSensitive(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindString {
		keyLower := strings.ToLower(a.Key)
		for _, pattern := range sensitiveKeyPatterns {
			if strings.Contains(keyLower, pattern) {
				if a.Value.String() != "" {
					return slog.String(a.Key, redactedValue)
				}
				break
			}
		}
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
