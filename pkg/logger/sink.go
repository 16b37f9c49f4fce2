package logger

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Entry is a single record captured by a Sink.
type Entry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
	Fields  string    `json:"fields,omitempty"`
}

// Sink receives copies of log records, e.g. for an in-app debug panel.
type Sink interface {
	Record(e Entry)
}

// Nop is a Sink that drops everything.
type Nop struct{}

// Record implements Sink.
func (Nop) Record(Entry) {}

// Ring keeps the last N entries in memory.
type Ring struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool
}

// NewRing creates a ring buffer holding up to size entries. Size below 1 is treated as 1.
func NewRing(size int) *Ring {
	if size < 1 {
		size = 1
	}
	return &Ring{entries: make([]Entry, size)}
}

// Record implements Sink.
func (r *Ring) Record(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[r.next] = e
	r.next = (r.next + 1) % len(r.entries)
	if r.next == 0 {
		r.full = true
	}
}

// Entries returns the buffered entries, oldest first.
func (r *Ring) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		out := make([]Entry, r.next)
		copy(out, r.entries[:r.next])
		return out
	}
	out := make([]Entry, 0, len(r.entries))
	out = append(out, r.entries[r.next:]...)
	out = append(out, r.entries[:r.next]...)
	return out
}

// Len returns the number of buffered entries.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return len(r.entries)
	}
	return r.next
}

// Reset drops all buffered entries.
func (r *Ring) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make([]Entry, len(r.entries))
	r.next = 0
	r.full = false
}

// teeLogger forwards every record to the wrapped logger and to a sink.
type teeLogger struct {
	next Logger
	sink Sink
	name string
	now  func() time.Time
}

// WithSink returns a Logger that writes to l and copies every record into sink.
// A nil sink returns l unchanged.
func WithSink(l Logger, sink Sink) Logger {
	if sink == nil {
		return l
	}
	return &teeLogger{next: l, sink: sink, now: time.Now}
}

func (t *teeLogger) Named(name string) Logger {
	n := name
	if t.name != "" {
		n = t.name + "." + name
	}
	return &teeLogger{next: t.next.Named(name), sink: t.sink, name: n, now: t.now}
}

func (t *teeLogger) Info(ctx context.Context, msg string, fields ...Field) {
	t.record("INFO", msg, fields)
	t.next.Info(ctx, msg, fields...)
}

func (t *teeLogger) Error(ctx context.Context, msg string, fields ...Field) {
	t.record("ERROR", msg, fields)
	t.next.Error(ctx, msg, fields...)
}

func (t *teeLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	t.record("DEBUG", msg, fields)
	t.next.Debug(ctx, msg, fields...)
}

func (t *teeLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	t.record("WARN", msg, fields)
	t.next.Warn(ctx, msg, fields...)
}

func (t *teeLogger) record(level, msg string, fields []Field) {
	if t.name != "" {
		msg = t.name + ": " + msg
	}
	t.sink.Record(Entry{
		Time:    t.now(),
		Level:   level,
		Message: msg,
		Fields:  formatFields(fields),
	})
}

func formatFields(fields []Field) string {
	if len(fields) == 0 {
		return ""
	}
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = fmt.Sprintf("%s=%v", f.Key, f.Value)
	}
	return strings.Join(parts, " ")
}
