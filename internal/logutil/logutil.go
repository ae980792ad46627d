// Package logutil renders request data and command values for log lines
// without leaking credentials.
package logutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

const redacted = "[REDACTED]"

var sensitiveFragments = []string{"token", "secret", "password", "apikey", "cookie", "auth", "session"}

// IsSensitiveLogField returns true when a key likely contains credentials.
func IsSensitiveLogField(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	normalized = strings.NewReplacer("-", "", "_", "").Replace(normalized)
	for _, fragment := range sensitiveFragments {
		if strings.Contains(normalized, fragment) {
			return true
		}
	}
	return false
}

// FormatHeadersForLog returns stable, redacted header text.
func FormatHeadersForLog(headers http.Header) string {
	if len(headers) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		values := headers.Values(k)
		switch {
		case len(values) == 0:
			parts = append(parts, fmt.Sprintf("%s=<empty>", strings.ToLower(k)))
		case IsSensitiveLogField(k):
			parts = append(parts, fmt.Sprintf("%s=%q", strings.ToLower(k), redacted))
		default:
			parts = append(parts, fmt.Sprintf("%s=%q", strings.ToLower(k), strings.Join(values, ", ")))
		}
	}
	return strings.Join(parts, "; ")
}

// RedactBody redacts sensitive fields from JSON and form payloads; other
// bodies are returned as-is.
func RedactBody(contentType string, body []byte) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "json"):
		return redactJSON(body)
	case strings.Contains(ct, "x-www-form-urlencoded"):
		return redactForm(body)
	default:
		return string(body)
	}
}

func redactJSON(body []byte) string {
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return string(body)
	}
	safe, err := json.Marshal(redactValue(payload))
	if err != nil {
		return string(body)
	}
	return string(safe)
}

func redactValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		for k, child := range typed {
			if IsSensitiveLogField(k) {
				typed[k] = redacted
				continue
			}
			typed[k] = redactValue(child)
		}
	case []any:
		for i, child := range typed {
			typed[i] = redactValue(child)
		}
	}
	return v
}

func redactForm(body []byte) string {
	form, err := url.ParseQuery(string(body))
	if err != nil {
		return string(body)
	}
	for k := range form {
		if IsSensitiveLogField(k) {
			form[k] = []string{redacted}
		}
	}
	return form.Encode()
}

// FormatBodyForLog truncates and redacts body text.
func FormatBodyForLog(contentType string, body []byte, maxBytes int, truncated bool) string {
	if len(body) == 0 {
		return ""
	}
	if maxBytes > 0 && len(body) > maxBytes {
		body = body[:maxBytes]
		truncated = true
	}
	text := RedactBody(contentType, body)
	if truncated {
		return text + " [truncated]"
	}
	return text
}

// TruncateForLog returns a single-line preview of value bounded to maxChars runes.
func TruncateForLog(value string, maxChars int) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	normalized := strings.ReplaceAll(trimmed, "\n", "\\n")
	runes := []rune(normalized)
	if maxChars <= 0 || len(runes) <= maxChars {
		return normalized
	}
	return string(runes[:maxChars]) + "... [truncated]"
}
