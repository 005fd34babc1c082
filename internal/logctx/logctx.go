// Package logctx carries the request trace id and request attributes through
// context.Context and stamps them onto every slog record logged with that
// context.
package logctx

import (
	"context"
	"io"
	"log/slog"
)

// TraceIDKey is the attribute name used for the trace id.
const TraceIDKey = "trace_id"

type (
	traceIDKey struct{}
	attrsKey   struct{}
)

// WithTraceID returns ctx carrying traceID. An empty id leaves ctx unchanged.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	if traceID == "" {
		return ctx
	}
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// TraceID returns the trace id stored by WithTraceID, or "".
func TraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(traceIDKey{}).(string)
	return v
}

// WithAttrs returns ctx carrying attrs in addition to any already attached.
func WithAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	if len(attrs) == 0 {
		return ctx
	}
	prev := Attrs(ctx)
	merged := make([]slog.Attr, 0, len(prev)+len(attrs))
	merged = append(merged, prev...)
	merged = append(merged, attrs...)
	return context.WithValue(ctx, attrsKey{}, merged)
}

// Attrs returns the attributes attached by WithAttrs.
func Attrs(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	v, _ := ctx.Value(attrsKey{}).([]slog.Attr)
	return v
}

// Handler adds the context trace id and attributes to each record before delegating.
type Handler struct {
	next slog.Handler
}

// NewHandler wraps next.
func NewHandler(next slog.Handler) *Handler {
	return &Handler{next: next}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	id := TraceID(ctx)
	attrs := Attrs(ctx)
	if id != "" || len(attrs) > 0 {
		r = r.Clone()
		if id != "" {
			r.AddAttrs(slog.String(TraceIDKey, id))
		}
		r.AddAttrs(attrs...)
	}
	return h.next.Handle(ctx, r)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{next: h.next.WithAttrs(attrs)}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{next: h.next.WithGroup(name)}
}

// Wrap returns a logger whose records carry the context trace id. A nil logger
// yields a discarding logger.
func Wrap(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if _, ok := logger.Handler().(*Handler); ok {
		return logger
	}
	return slog.New(NewHandler(logger.Handler()))
}
