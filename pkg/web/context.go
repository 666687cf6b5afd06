package web

import (
	"context"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/swadhinbiswas/opencodehub/pkg/backend"
	"github.com/swadhinbiswas/opencodehub/pkg/config"
	"github.com/swadhinbiswas/opencodehub/pkg/db"
	"github.com/swadhinbiswas/opencodehub/pkg/hooks"
	"github.com/swadhinbiswas/opencodehub/pkg/storage"
	"github.com/swadhinbiswas/opencodehub/pkg/store"
)

// NewContextHandler returns a new context middleware. This middleware adds
// the config, backend, datastore, dispatcher and logger to the request
// context.
func NewContextHandler(ctx context.Context) func(http.Handler) http.Handler {
	cfg := config.FromContext(ctx)
	be := backend.FromContext(ctx)
	logger := log.FromContext(ctx).WithPrefix("http")
	dbx := db.FromContext(ctx)
	datastore := store.FromContext(ctx)
	dispatcher := hooks.FromContext(ctx)
	objstore := storage.FromContext(ctx)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ctx = config.WithContext(ctx, cfg)
			ctx = backend.WithContext(ctx, be)
			ctx = log.WithContext(ctx, logger.With(
				"method", r.Method,
				"path", r.URL,
				"addr", r.RemoteAddr,
			))
			ctx = db.WithContext(ctx, dbx)
			ctx = store.WithContext(ctx, datastore)
			if dispatcher != nil {
				ctx = hooks.WithContext(ctx, dispatcher)
			}
			if objstore != nil {
				ctx = storage.WithContext(ctx, objstore)
			}
			r = r.WithContext(ctx)

			next.ServeHTTP(w, r)
		})
	}
}
