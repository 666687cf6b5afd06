// Package hooks fans out post-receive events to downstream consumers.
package hooks

import (
	"context"

	"github.com/swadhinbiswas/opencodehub/pkg/git"
	"github.com/swadhinbiswas/opencodehub/pkg/proto"
)

// PostReceiveEvent describes a completed push.
type PostReceiveEvent struct {
	// Repo is the repository that was pushed to.
	Repo proto.Repository

	// User is the authenticated pusher, nil for anonymous pushes.
	User *proto.User

	// RepoPath is the local working copy the push was applied to.
	RepoPath string

	// Updates are the ref commands the push carried.
	Updates []git.RefUpdate
}

// Consumer consumes post-receive events. Consumers are isolated from each
// other: one consumer failing or hanging must not starve the rest.
type Consumer interface {
	// Name identifies the consumer in logs and metrics.
	Name() string

	// Consume handles one event. Returning an error triggers a retry with
	// backoff, up to the dispatcher's retry budget.
	Consume(ctx context.Context, event PostReceiveEvent) error
}

// Analyzer updates derived repository data after a push, such as language
// and activity statistics.
type Analyzer interface {
	AnalyzeRepository(ctx context.Context, repo proto.Repository, updates []git.RefUpdate) error
}

// WorkflowTrigger starts CI workflows for pushed refs.
type WorkflowTrigger interface {
	TriggerWorkflows(ctx context.Context, repo proto.Repository, updates []git.RefUpdate) error
}

// AnalyzerConsumer adapts an Analyzer to the Consumer interface.
func AnalyzerConsumer(a Analyzer) Consumer {
	return consumerFunc{
		name: "analyzer",
		fn: func(ctx context.Context, e PostReceiveEvent) error {
			return a.AnalyzeRepository(ctx, e.Repo, e.Updates)
		},
	}
}

// WorkflowConsumer adapts a WorkflowTrigger to the Consumer interface.
func WorkflowConsumer(w WorkflowTrigger) Consumer {
	return consumerFunc{
		name: "workflow",
		fn: func(ctx context.Context, e PostReceiveEvent) error {
			return w.TriggerWorkflows(ctx, e.Repo, e.Updates)
		},
	}
}

type consumerFunc struct {
	name string
	fn   func(context.Context, PostReceiveEvent) error
}

func (c consumerFunc) Name() string { return c.name }

func (c consumerFunc) Consume(ctx context.Context, e PostReceiveEvent) error {
	return c.fn(ctx, e)
}
