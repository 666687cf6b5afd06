// Package web implements the HTTP surface of the server: smart-HTTP git
// transport, the Git LFS API, health checks and metrics.
package web

import (
	"context"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter returns a new HTTP router.
func NewRouter(ctx context.Context) http.Handler {
	logger := log.FromContext(ctx).WithPrefix("http")
	router := mux.NewRouter()

	// Health and metrics routes
	HealthController(ctx, router)
	router.Handle("/metrics", promhttp.Handler())

	// Git routes
	GitController(ctx, router)

	router.PathPrefix("/").HandlerFunc(renderNotFound)

	// Context handler
	// Adds context to the request
	h := NewLoggingMiddleware(router, logger)
	h = NewContextHandler(ctx)(h)
	h = handlers.CompressHandler(h)
	h = handlers.ProxyHeaders(h)
	h = handlers.RecoveryHandler()(h)

	return h
}
