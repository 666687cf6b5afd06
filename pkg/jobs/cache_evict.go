package jobs

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/swadhinbiswas/opencodehub/pkg/backend"
	"github.com/swadhinbiswas/opencodehub/pkg/config"
	"github.com/swadhinbiswas/opencodehub/pkg/resolver"
)

func init() {
	Register("cache-evict", cacheEvict{})
}

// cacheEvict drops cold remote-tier cache copies. The canonical snapshots
// stay in the object store; an evicted repository is simply re-fetched on
// its next resolve.
type cacheEvict struct{}

func (cacheEvict) Spec(ctx context.Context) string {
	return config.FromContext(ctx).Jobs.CacheEvict
}

func (cacheEvict) Func(ctx context.Context) func() {
	logger := log.FromContext(ctx).WithPrefix("jobs.cache-evict")
	be := backend.FromContext(ctx)
	return func() {
		if be == nil {
			return
		}

		tiered, ok := be.Resolver().(*resolver.TieredResolver)
		if !ok {
			// Local tier has no cache to evict.
			return
		}

		n, err := tiered.EvictColder(ctx)
		if err != nil {
			logger.Error("error evicting cache entries", "err", err)
			return
		}

		if n > 0 {
			logger.Info("evicted cold cache entries", "count", n)
		}
	}
}
