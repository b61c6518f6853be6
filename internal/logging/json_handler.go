package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"photoferry/internal/services"
)

// FieldErrorKind carries the failure marker of a logged error in JSON output.
const FieldErrorKind = "error_kind"

// jsonHandler writes slog's JSON encoding with ts/level/msg keys and tags
// logged errors with their failure kind (fetch, write, batch_parse, ...).
type jsonHandler struct {
	slog.Handler
}

func newJSONHandler(out io.Writer, level slog.Leveler) *jsonHandler {
	return &jsonHandler{Handler: slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceJSONAttr,
	})}
}

func replaceJSONAttr(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return a
	}
	switch a.Key {
	case slog.TimeKey:
		a.Key = "ts"
		a.Value = slog.StringValue(a.Value.Time().Format(time.RFC3339Nano))
	case slog.LevelKey:
		a.Value = slog.StringValue(strings.ToLower(a.Value.String()))
	}
	return a
}

func (h *jsonHandler) Handle(ctx context.Context, record slog.Record) error {
	var kind string
	record.Attrs(func(a slog.Attr) bool {
		if a.Key != "error" || a.Value.Kind() != slog.KindAny {
			return true
		}
		if err, ok := a.Value.Any().(error); ok {
			kind = services.Kind(err)
		}
		return false
	})
	if kind != "" && kind != "unknown" {
		record = record.Clone()
		record.AddAttrs(slog.String(FieldErrorKind, kind))
	}
	return h.Handler.Handle(ctx, record)
}

func (h *jsonHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &jsonHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *jsonHandler) WithGroup(name string) slog.Handler {
	return &jsonHandler{Handler: h.Handler.WithGroup(name)}
}
