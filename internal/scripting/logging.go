package scripting

import (
	"context"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"
)

// LogEntry is one buffered log record.
type LogEntry struct {
	Time    time.Time         `json:"time"`
	Level   slog.Level        `json:"level"`
	Message string            `json:"message"`
	Attrs   map[string]string `json:"attrs,omitempty"`
}

// String formats the entry as a single line, attrs sorted by key.
func (e LogEntry) String() string {
	var b strings.Builder
	b.WriteString(e.Time.Format("15:04:05.000"))
	b.WriteByte(' ')
	b.WriteString(e.Level.String())
	b.WriteByte(' ')
	b.WriteString(e.Message)
	for _, k := range sortedKeys(e.Attrs) {
		b.WriteString(" " + k + "=" + e.Attrs[k])
	}
	return b.String()
}

func sortedKeys(m map[string]string) []string {
	return slices.Sorted(maps.Keys(m))
}

// ParseLevel maps a config value to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// logBuffer is the ring shared by a handler and its WithAttrs/WithGroup
// derivatives.
type logBuffer struct {
	mu      sync.RWMutex
	entries []LogEntry
	max     int
}

func (b *logBuffer) add(e LogEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, e)
	if over := len(b.entries) - b.max; over > 0 {
		b.entries = append(b.entries[:0], b.entries[over:]...)
	}
}

// LogHandler is a slog.Handler that keeps the most recent records in memory,
// and optionally forwards every record to a second handler.
type LogHandler struct {
	buf    *logBuffer
	level  slog.Leveler
	attrs  []slog.Attr
	groups []string
	next   slog.Handler
}

func (h *LogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *LogHandler) Handle(ctx context.Context, r slog.Record) error {
	attrs := make(map[string]string, len(h.attrs)+r.NumAttrs())
	prefix := strings.Join(h.groups, ".")
	for _, a := range h.attrs {
		flatten(attrs, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		flatten(attrs, prefix, a)
		return true
	})
	h.buf.add(LogEntry{Time: r.Time, Level: r.Level, Message: r.Message, Attrs: attrs})
	if h.next != nil && h.next.Enabled(ctx, r.Level) {
		return h.next.Handle(ctx, r)
	}
	return nil
}

func flatten(dst map[string]string, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if prefix != "" && key != "" {
		key = prefix + "." + key
	} else if key == "" {
		key = prefix
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, g := range a.Value.Group() {
			flatten(dst, key, g)
		}
		return
	}
	dst[key] = a.Value.String()
}

func (h *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	prefix := strings.Join(h.groups, ".")
	c.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		if prefix != "" {
			a = slog.Group(prefix, a)
		}
		c.attrs = append(c.attrs, a)
	}
	if h.next != nil {
		c.next = h.next.WithAttrs(attrs)
	}
	return &c
}

func (h *LogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.groups = append(append([]string(nil), h.groups...), name)
	if h.next != nil {
		c.next = h.next.WithGroup(name)
	}
	return &c
}

// Logger is the application logger: a bounded, searchable in-memory buffer,
// optionally teed as JSON to a writer (the log file).
type Logger struct {
	*slog.Logger
	buf *logBuffer
}

// NewLogger returns a logger buffering up to maxEntries records at or above
// level. If sink is non-nil, records are also written to it as JSON lines.
func NewLogger(level slog.Leveler, maxEntries int, sink io.Writer) *Logger {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	if level == nil {
		level = slog.LevelInfo
	}
	buf := &logBuffer{max: maxEntries, entries: make([]LogEntry, 0, min(maxEntries, 256))}
	h := &LogHandler{buf: buf, level: level}
	if sink != nil {
		h.next = slog.NewJSONHandler(sink, &slog.HandlerOptions{Level: level})
	}
	return &Logger{Logger: slog.New(h), buf: buf}
}

// Entries returns a copy of every buffered entry, oldest first.
func (l *Logger) Entries() []LogEntry {
	return l.Recent(0)
}

// Recent returns the last n entries; n <= 0 means all of them.
func (l *Logger) Recent(n int) []LogEntry {
	l.buf.mu.RLock()
	defer l.buf.mu.RUnlock()
	if n <= 0 || n > len(l.buf.entries) {
		n = len(l.buf.entries)
	}
	out := make([]LogEntry, n)
	copy(out, l.buf.entries[len(l.buf.entries)-n:])
	return out
}

// Search returns the entries whose message or attrs contain query, ignoring
// case.
func (l *Logger) Search(query string) []LogEntry {
	query = strings.ToLower(query)
	l.buf.mu.RLock()
	defer l.buf.mu.RUnlock()
	var out []LogEntry
	for _, e := range l.buf.entries {
		if matches(e, query) {
			out = append(out, e)
		}
	}
	return out
}

func matches(e LogEntry, query string) bool {
	if strings.Contains(strings.ToLower(e.Message), query) {
		return true
	}
	for k, v := range e.Attrs {
		if strings.Contains(strings.ToLower(k), query) || strings.Contains(strings.ToLower(v), query) {
			return true
		}
	}
	return false
}

// Clear drops all buffered entries.
func (l *Logger) Clear() {
	l.buf.mu.Lock()
	defer l.buf.mu.Unlock()
	l.buf.entries = l.buf.entries[:0]
}
