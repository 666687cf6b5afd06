package db

import "context"

// ContextKey is the context key for the database.
var ContextKey = &struct{ string }{"db"}

// FromContext returns the database from the given context, or nil.
func FromContext(ctx context.Context) *DB {
	if d, ok := ctx.Value(ContextKey).(*DB); ok {
		return d
	}

	return nil
}

// WithContext returns a new context with the given database.
func WithContext(ctx context.Context, d *DB) context.Context {
	return context.WithValue(ctx, ContextKey, d)
}
