package hooks

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/swadhinbiswas/opencodehub/pkg/git"
	"github.com/swadhinbiswas/opencodehub/pkg/proto"
)

var refUpdateCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "opencodehub",
	Subsystem: "hooks",
	Name:      "ref_updates_total",
	Help:      "The total number of pushed ref updates by kind",
}, []string{"repo", "kind"})

// RefActivity derives push activity statistics from the ref updates a push
// carried.
type RefActivity struct {
	logger *log.Logger
}

var _ Analyzer = (*RefActivity)(nil)

// NewRefActivity returns an analyzer recording per-repository ref activity.
func NewRefActivity(logger *log.Logger) *RefActivity {
	if logger == nil {
		logger = log.Default()
	}

	return &RefActivity{logger: logger.WithPrefix("analyze")}
}

// AnalyzeRepository implements Analyzer.
func (a *RefActivity) AnalyzeRepository(_ context.Context, repo proto.Repository, updates []git.RefUpdate) error {
	for _, u := range updates {
		refUpdateCounter.WithLabelValues(repo.Name, refKind(u)).Inc()
	}

	a.logger.Debug("analyzed push", "repo", repo.Name, "updates", len(updates))
	return nil
}

func refKind(u git.RefUpdate) string {
	switch {
	case u.IsDelete():
		return "delete"
	case strings.HasPrefix(u.Ref, "refs/tags/"):
		return "tag"
	case strings.HasPrefix(u.Ref, "refs/heads/"):
		return "branch"
	default:
		return "other"
	}
}
