package jobs

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/swadhinbiswas/opencodehub/pkg/config"
	"github.com/swadhinbiswas/opencodehub/pkg/db"
	"github.com/swadhinbiswas/opencodehub/pkg/store"
)

func init() {
	Register("lock-reap", lockReap{})
}

// lockReap removes expired repository locks from the database. The database
// lock manager already reaps a key lazily when it is next contended; this
// job cleans up keys nobody asks for again.
type lockReap struct{}

func (lockReap) Spec(ctx context.Context) string {
	return config.FromContext(ctx).Jobs.LockReap
}

func (lockReap) Func(ctx context.Context) func() {
	logger := log.FromContext(ctx).WithPrefix("jobs.lock-reap")
	dbx := db.FromContext(ctx)
	datastore := store.FromContext(ctx)
	return func() {
		if dbx == nil || datastore == nil {
			return
		}

		n, err := datastore.DeleteExpiredLocks(ctx, dbx, time.Now())
		if err != nil {
			logger.Error("error reaping expired locks", "err", err)
			return
		}

		if n > 0 {
			logger.Info("reaped expired locks", "count", n)
		}
	}
}
