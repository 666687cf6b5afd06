package access

import (
	"context"

	"github.com/swadhinbiswas/opencodehub/pkg/proto"
)

// ContextKey is the context key for the access level.
var ContextKey = &struct{ string }{"access"}

// FromContext returns the access level from the context, or NoAccess.
func FromContext(ctx context.Context) proto.AccessLevel {
	if level, ok := ctx.Value(ContextKey).(proto.AccessLevel); ok {
		return level
	}

	return proto.NoAccess
}

// WithContext returns a new context with the given access level.
func WithContext(ctx context.Context, level proto.AccessLevel) context.Context {
	return context.WithValue(ctx, ContextKey, level)
}
