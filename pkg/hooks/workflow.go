package hooks

import (
	"context"

	"github.com/swadhinbiswas/opencodehub/pkg/git"
	"github.com/swadhinbiswas/opencodehub/pkg/proto"
	"github.com/swadhinbiswas/opencodehub/pkg/webhook"
)

// EventSender delivers webhook event payloads. *webhook.Sender implements
// it.
type EventSender interface {
	SendEvent(ctx context.Context, payload webhook.EventPayload) error
}

// WorkflowNotifier triggers CI workflows by notifying an external runner
// endpoint about pushed refs.
type WorkflowNotifier struct {
	sender    EventSender
	publicURL string
}

var _ WorkflowTrigger = (*WorkflowNotifier)(nil)

// NewWorkflowNotifier returns a trigger delivering through the given sender.
func NewWorkflowNotifier(sender EventSender, publicURL string) *WorkflowNotifier {
	return &WorkflowNotifier{
		sender:    sender,
		publicURL: publicURL,
	}
}

// TriggerWorkflows implements WorkflowTrigger. Deleted refs have nothing to
// run against and are skipped.
func (w *WorkflowNotifier) TriggerWorkflows(ctx context.Context, repo proto.Repository, updates []git.RefUpdate) error {
	for _, update := range updates {
		if update.IsDelete() {
			continue
		}

		payload := webhook.NewWorkflowRunEvent(nil, repo, w.publicURL, update)
		if err := w.sender.SendEvent(ctx, payload); err != nil {
			return err
		}
	}

	return nil
}
