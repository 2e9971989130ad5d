package logging

import (
	"context"
	"log/slog"
)

// ContextProvider returns attributes for a record, derived from the record's
// context and from process state.
type ContextProvider func(ctx context.Context) []slog.Attr

type requestIDKey struct{}

// WithRequestID returns a context whose log records carry request_id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request id stored by WithRequestID, if any.
func RequestID(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok
}

// RequestIDProvider adds request_id when the context carries one.
func RequestIDProvider(ctx context.Context) []slog.Attr {
	if id, ok := RequestID(ctx); ok {
		return []slog.Attr{slog.String("request_id", id)}
	}
	return nil
}

// Providers chains several providers into one.
func Providers(ps ...ContextProvider) ContextProvider {
	return func(ctx context.Context) []slog.Attr {
		var attrs []slog.Attr
		for _, p := range ps {
			if p != nil {
				attrs = append(attrs, p(ctx)...)
			}
		}
		return attrs
	}
}

// ContextHandler wraps another handler and injects provider attributes.
type ContextHandler struct {
	inner    slog.Handler
	provider ContextProvider
}

// NewContextHandler creates a handler that adds dynamic context to each record.
func NewContextHandler(inner slog.Handler, provider ContextProvider) *ContextHandler {
	return &ContextHandler{
		inner:    inner,
		provider: provider,
	}
}

// Enabled delegates to the inner handler.
func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle adds provider attributes and delegates to the inner handler.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.provider != nil {
		r.AddAttrs(h.provider(ctx)...)
	}
	return h.inner.Handle(ctx, r)
}

// WithAttrs returns a new ContextHandler with the given attributes.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{
		inner:    h.inner.WithAttrs(attrs),
		provider: h.provider,
	}
}

// WithGroup returns a new ContextHandler with the given group.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &ContextHandler{
		inner:    h.inner.WithGroup(name),
		provider: h.provider,
	}
}
