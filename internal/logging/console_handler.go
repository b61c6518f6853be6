package logging

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// consoleHandler renders one line per record:
//
//	15:04:05 WARN  persister [a.json/persist] unknown format filename=x.bin (impact: image skipped)
//
// The batch path is shortened to its base name and run_id/event_type are left
// to the JSON format, since a console session only ever shows one run.
type consoleHandler struct {
	mu     *sync.Mutex
	out    io.Writer
	level  slog.Leveler
	attrs  []slog.Attr
	prefix string
}

func newConsoleHandler(out io.Writer, level slog.Leveler) *consoleHandler {
	return &consoleHandler{mu: &sync.Mutex{}, out: out, level: level}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	next.attrs = append(next.attrs, h.attrs...)
	for _, a := range attrs {
		next.attrs = flatten(next.attrs, h.prefix, a)
	}
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

// consoleLine collects the fields that have a fixed position on the line.
type consoleLine struct {
	component string
	batch     string
	stage     string
	impact    string
	hint      string
	rest      []slog.Attr
}

func (l *consoleLine) add(a slog.Attr) {
	switch a.Key {
	case FieldComponent:
		l.component = valueText(a.Value)
	case FieldBatch:
		l.batch = filepath.Base(valueText(a.Value))
	case FieldStage:
		l.stage = valueText(a.Value)
	case FieldImpact:
		l.impact = valueText(a.Value)
	case FieldErrorHint:
		l.hint = valueText(a.Value)
	case FieldRunID, FieldEventType:
	default:
		l.rest = append(l.rest, a)
	}
}

func (l *consoleLine) scope() string {
	switch {
	case l.batch != "" && l.stage != "":
		return l.batch + "/" + l.stage
	case l.batch != "":
		return l.batch
	default:
		return l.stage
	}
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	line := consoleLine{}
	for _, a := range h.attrs {
		line.add(a)
	}
	var recordAttrs []slog.Attr
	record.Attrs(func(a slog.Attr) bool {
		recordAttrs = flatten(recordAttrs, h.prefix, a)
		return true
	})
	for _, a := range recordAttrs {
		line.add(a)
	}

	var b strings.Builder
	if !record.Time.IsZero() {
		b.WriteString(record.Time.Format("15:04:05"))
		b.WriteByte(' ')
	}
	b.WriteString(levelLabel(record.Level))
	if line.component != "" {
		b.WriteByte(' ')
		b.WriteString(line.component)
	}
	if scope := line.scope(); scope != "" {
		b.WriteString(" [")
		b.WriteString(scope)
		b.WriteByte(']')
	}
	b.WriteByte(' ')
	b.WriteString(record.Message)
	for _, a := range line.rest {
		b.WriteByte(' ')
		b.WriteString(a.Key)
		b.WriteByte('=')
		b.WriteString(quoteIfNeeded(valueText(a.Value)))
	}
	if line.impact != "" {
		b.WriteString(" (impact: ")
		b.WriteString(line.impact)
		b.WriteByte(')')
	}
	if line.hint != "" {
		b.WriteString(" (hint: ")
		b.WriteString(line.hint)
		b.WriteByte(')')
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, b.String())
	return err
}

// flatten appends a with group values expanded into dotted keys.
func flatten(dst []slog.Attr, prefix string, a slog.Attr) []slog.Attr {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return dst
	}
	if a.Value.Kind() == slog.KindGroup {
		inner := prefix
		if a.Key != "" {
			inner = prefix + a.Key + "."
		}
		for _, member := range a.Value.Group() {
			dst = flatten(dst, inner, member)
		}
		return dst
	}
	a.Key = prefix + a.Key
	return append(dst, a)
}

func valueText(v slog.Value) string {
	if v.Kind() == slog.KindAny {
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
	}
	return v.String()
}

func quoteIfNeeded(s string) string {
	if s == "" || strings.ContainsAny(s, " =\"\t\n") {
		return strconv.Quote(s)
	}
	return s
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN "
	case level >= slog.LevelInfo:
		return "INFO "
	default:
		return "DEBUG"
	}
}
