package proto

import "context"

// ContextKeyRepository is the context key for a repository.
var ContextKeyRepository = &struct{ string }{"repository"}

// ContextKeyUser is the context key for a user.
var ContextKeyUser = &struct{ string }{"user"}

// RepositoryFromContext returns the repository from the context, or nil.
func RepositoryFromContext(ctx context.Context) *Repository {
	if r, ok := ctx.Value(ContextKeyRepository).(*Repository); ok {
		return r
	}

	return nil
}

// WithRepositoryContext returns a new context with the repository attached.
func WithRepositoryContext(ctx context.Context, r *Repository) context.Context {
	return context.WithValue(ctx, ContextKeyRepository, r)
}

// UserFromContext returns the user from the context, or nil for anonymous.
func UserFromContext(ctx context.Context) *User {
	if u, ok := ctx.Value(ContextKeyUser).(*User); ok {
		return u
	}

	return nil
}

// WithUserContext returns a new context with the user attached.
func WithUserContext(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, ContextKeyUser, u)
}
