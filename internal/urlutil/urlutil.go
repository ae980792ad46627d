// Package urlutil resolves request targets against a configured base URL.
package urlutil

import (
	"path"
	"strings"
)

// Methods lists the request methods recognized when a two-argument request
// has to be told apart from a url+body request.
var Methods = []string{
	"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS", "TRACE",
	"COPY", "LOCK", "MKCOL", "MOVE", "PURGE", "PROPFIND", "PROPPATCH",
	"UNLOCK", "REPORT", "MKACTIVITY", "CHECKOUT", "MERGE", "M-SEARCH",
	"NOTIFY", "SUBSCRIBE", "UNSUBSCRIBE", "SEARCH", "CONNECT",
}

// IsMethod reports whether s names a request method, ignoring case.
func IsMethod(s string) bool {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for _, m := range Methods {
		if m == upper {
			return true
		}
	}
	return false
}

// IsAbsolute reports whether target already names a host: it carries a
// scheme, or starts with "localhost" or "www.".
func IsAbsolute(target string) bool {
	return strings.Contains(target, "://") ||
		strings.HasPrefix(target, "localhost") ||
		strings.HasPrefix(target, "www.")
}

// Resolve prefixes a relative target with base by joining paths. Absolute
// targets, and any target when base is empty, pass through unchanged.
func Resolve(base, target string) string {
	if IsAbsolute(target) {
		return target
	}
	base = normalizeBaseURL(base)
	if base == "" {
		return target
	}
	scheme, rest, ok := strings.Cut(base, "://")
	if !ok {
		return path.Join(base, target)
	}
	return scheme + "://" + path.Join(rest, target)
}

func normalizeBaseURL(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return ""
	}
	return strings.TrimRight(base, "/")
}
