package obs

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/kuitang/chaincmds/internal/logutil"
	"github.com/kuitang/chaincmds/internal/value"
)

// maxPropChars bounds each property rendered into a log line.
const maxPropChars = 200

// Entry is the command log of one invocation. A nil *Entry is a disabled
// log and every method on it is a no-op, so commands never branch on the
// log option after creating it.
type Entry struct {
	logger  *slog.Logger
	name    string
	started time.Time

	mu        sync.Mutex
	message   string
	props     map[string]any
	snapshots int
	ended     bool
}

// Command opens a log entry for the named command. It returns nil when
// enabled is false.
func Command(ctx context.Context, name, message string, enabled bool) *Entry {
	if !enabled {
		return nil
	}
	e := &Entry{
		logger:  From(ctx).With("pkg", "chain"),
		name:    name,
		message: message,
		started: time.Now(),
		props:   make(map[string]any),
	}
	e.logger.Debug("command_start", "name", name, "message", message)
	return e
}

// Set records a console property, or updates the message when field is
// "message".
func (e *Entry) Set(field string, v any) *Entry {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if field == "message" {
		e.message = value.Stringify(v)
		return e
	}
	e.props[field] = v
	return e
}

// Snapshot records the current state of the entry.
func (e *Entry) Snapshot() *Entry {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	e.snapshots++
	attrs := e.attrsLocked()
	e.mu.Unlock()
	e.logger.Debug("command_snapshot", attrs...)
	return e
}

// End finalizes the entry. Only the first call logs.
func (e *Entry) End() {
	if e == nil {
		return
	}
	e.mu.Lock()
	if e.ended {
		e.mu.Unlock()
		return
	}
	e.ended = true
	attrs := e.attrsLocked()
	e.mu.Unlock()
	e.logger.Info("command_end", attrs...)
}

// Fail finalizes the entry with an error.
func (e *Entry) Fail(err error) {
	if e == nil {
		return
	}
	e.mu.Lock()
	if e.ended {
		e.mu.Unlock()
		return
	}
	e.ended = true
	attrs := append(e.attrsLocked(), "error", logutil.TruncateForLog(err.Error(), 2*maxPropChars))
	e.mu.Unlock()
	e.logger.Warn("command_failed", attrs...)
}

// Message returns the current message.
func (e *Entry) Message() string {
	if e == nil {
		return ""
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.message
}

// Props returns a copy of the console properties.
func (e *Entry) Props() map[string]any {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]any, len(e.props))
	for k, v := range e.props {
		out[k] = v
	}
	return out
}

// Ended reports whether End or Fail ran.
func (e *Entry) Ended() bool {
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ended
}

func (e *Entry) attrsLocked() []any {
	keys := make([]string, 0, len(e.props))
	for k := range e.props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	props := make([]any, 0, len(keys)*2)
	for _, k := range keys {
		props = append(props, slog.String(k, renderProp(e.props[k])))
	}
	return []any{
		"name", e.name,
		"message", logutil.TruncateForLog(e.message, maxPropChars),
		"snapshots", e.snapshots,
		"dur_ms", float64(time.Since(e.started).Microseconds()) / 1000.0,
		slog.Group("props", props...),
	}
}

func renderProp(v any) string {
	if s, ok := v.(string); ok {
		return logutil.TruncateForLog(s, maxPropChars)
	}
	if value.IsArrayLike(v) || value.IsObject(v) {
		if b, err := value.CanonicalJSON(v); err == nil {
			return logutil.TruncateForLog(string(b), maxPropChars)
		}
	}
	return logutil.TruncateForLog(value.Stringify(v), maxPropChars)
}
