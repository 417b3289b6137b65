// Package logging carries a request-scoped slog.Logger through contexts, so
// the logger the HTTP middleware decorates with request attributes is the
// same one the services and handlers annotate further down the call chain.
package logging

import (
	"context"
	"log/slog"
)

// loggerKey is unexported so only this package writes the context entry.
type loggerKey struct{}

// Attach returns a context carrying the logger. Nil inputs are returned
// unchanged so call sites never need to guard.
func Attach(ctx context.Context, logger *slog.Logger) context.Context {
	if ctx == nil || logger == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// From returns the logger attached to the context, or nil when none is.
func From(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return nil
	}
	logger, _ := ctx.Value(loggerKey{}).(*slog.Logger)
	return logger
}

// FromOr resolves a usable logger: the one attached to the context first,
// then the fallback, then slog.Default.
func FromOr(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if logger := From(ctx); logger != nil {
		return logger
	}
	if fallback != nil {
		return fallback
	}
	return slog.Default()
}
