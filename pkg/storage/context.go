package storage

import "context"

// ContextKey is the context key for the shared object storage.
var ContextKey = &struct{ string }{"storage"}

// FromContext returns the object storage from the context, or nil when the
// server runs without one.
func FromContext(ctx context.Context) Storage {
	if s, ok := ctx.Value(ContextKey).(Storage); ok {
		return s
	}

	return nil
}

// WithContext returns a new context with the object storage attached.
func WithContext(ctx context.Context, s Storage) context.Context {
	return context.WithValue(ctx, ContextKey, s)
}
