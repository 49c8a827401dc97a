package log

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"
)

// ErrFmtHandler adds the stack trace recorded by cockroachdb/errors to a
// record carrying an error attribute. Only the first error attribute is
// expanded; the trace goes under StacktraceAttrKey.
type ErrFmtHandler struct {
	handler slog.Handler
}

// WrapByErrFmtHandler wraps handler with stack trace extraction.
func WrapByErrFmtHandler(handler slog.Handler) slog.Handler {
	return &ErrFmtHandler{handler: handler}
}

func (eh *ErrFmtHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return eh.handler.Enabled(ctx, l)
}

func (eh *ErrFmtHandler) Handle(ctx context.Context, r slog.Record) error {
	var trace string
	r.Attrs(func(attr slog.Attr) bool {
		err, ok := attr.Value.Any().(error)
		if !ok {
			return true
		}
		trace = stacktrace(err)
		return false
	})
	if trace == "" {
		return eh.handler.Handle(ctx, r)
	}
	out := r.Clone()
	out.AddAttrs(slog.String(StacktraceAttrKey, trace))
	return eh.handler.Handle(ctx, out)
}

func (eh *ErrFmtHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ErrFmtHandler{handler: eh.handler.WithAttrs(attrs)}
}

func (eh *ErrFmtHandler) WithGroup(g string) slog.Handler {
	return &ErrFmtHandler{handler: eh.handler.WithGroup(g)}
}

// stacktrace returns the outermost recorded stack of err, walking the
// wrapping chain until a layer carries one.
func stacktrace(err error) string {
	for _, layer := range errors.GetAllSafeDetails(err) {
		for _, d := range layer.SafeDetails {
			if d != "" {
				return d
			}
		}
	}
	return ""
}
