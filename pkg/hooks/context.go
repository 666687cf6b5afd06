package hooks

import "context"

// ContextKey is the context key for the dispatcher.
var ContextKey = &struct{ string }{"hooks"}

// FromContext returns the dispatcher from the context, or nil.
func FromContext(ctx context.Context) *Dispatcher {
	if d, ok := ctx.Value(ContextKey).(*Dispatcher); ok {
		return d
	}

	return nil
}

// WithContext returns a new context with the dispatcher attached.
func WithContext(ctx context.Context, d *Dispatcher) context.Context {
	return context.WithValue(ctx, ContextKey, d)
}
