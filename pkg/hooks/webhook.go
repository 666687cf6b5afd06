package hooks

import (
	"context"

	"github.com/swadhinbiswas/opencodehub/pkg/webhook"
)

// WebhookConsumer delivers push webhooks for every ref update in an event.
type WebhookConsumer struct {
	sender    *webhook.Sender
	publicURL string
}

var _ Consumer = (*WebhookConsumer)(nil)

// NewWebhookConsumer returns a consumer delivering through the given sender.
func NewWebhookConsumer(sender *webhook.Sender, publicURL string) *WebhookConsumer {
	return &WebhookConsumer{
		sender:    sender,
		publicURL: publicURL,
	}
}

// Name implements Consumer.
func (w *WebhookConsumer) Name() string {
	return "webhook"
}

// Consume implements Consumer. Each ref update becomes its own push event,
// matching one delivery per updated ref.
func (w *WebhookConsumer) Consume(ctx context.Context, event PostReceiveEvent) error {
	for _, update := range event.Updates {
		payload, err := webhook.NewPushEvent(event.User, event.Repo, w.publicURL, event.RepoPath, update)
		if err != nil {
			return err
		}

		if err := w.sender.SendEvent(ctx, payload); err != nil {
			return err
		}
	}

	return nil
}
