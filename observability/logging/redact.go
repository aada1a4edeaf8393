package logging

import (
	"log/slog"
	"net/url"
	"strings"
)

// RedactedValue is the canonical placeholder used for sensitive fields in logs.
const RedactedValue = "[REDACTED]"

// MaskValue returns the canonical redacted placeholder for non-empty values.
// Blank values collapse to the empty string.
func MaskValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	return RedactedValue
}

// MaskDSN hides the password of a connection string. URL style DSNs keep
// their host and database; key=value DSNs mask the password pair.
func MaskDSN(dsn string) string {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return trimmed
	}
	if u, err := url.Parse(trimmed); err == nil && u.Scheme != "" && u.Host != "" {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), RedactedValue)
		}
		return u.String()
	}
	fields := strings.Fields(trimmed)
	for i, field := range fields {
		key, _, found := strings.Cut(field, "=")
		if found && strings.EqualFold(key, "password") {
			fields[i] = key + "=" + RedactedValue
		}
	}
	return strings.Join(fields, " ")
}

// DSNField returns a slog.Attr carrying the masked connection string.
func DSNField(key, dsn string) slog.Attr {
	return slog.String(key, MaskDSN(dsn))
}
