package webhook

import (
	"fmt"

	"github.com/swadhinbiswas/opencodehub/pkg/git"
	"github.com/swadhinbiswas/opencodehub/pkg/proto"
)

// WorkflowRunEvent asks an external runner to start workflows for a pushed
// ref.
type WorkflowRunEvent struct {
	Common

	// Ref is the branch or tag name.
	Ref string `json:"ref" url:"ref"`
	// Before is the previous commit SHA.
	Before string `json:"before" url:"before"`
	// After is the commit SHA workflows should run against.
	After string `json:"after" url:"after"`
}

// NewWorkflowRunEvent builds a workflow trigger payload for a ref update.
func NewWorkflowRunEvent(user *proto.User, repo proto.Repository, publicURL string, update git.RefUpdate) WorkflowRunEvent {
	payload := WorkflowRunEvent{
		Ref:    update.Ref,
		Before: update.OldSHA,
		After:  update.NewSHA,
		Common: Common{
			EventType: EventWorkflowRun,
			Repository: Repository{
				ID:        repo.ID,
				Name:      repo.Name,
				Private:   repo.Private,
				Tier:      repo.Location.Tier.String(),
				HTTPURL:   fmt.Sprintf("%s/%s.git", publicURL, repo.Name),
				CreatedAt: repo.CreatedAt,
				UpdatedAt: repo.UpdatedAt,
			},
		},
	}
	if user != nil {
		payload.Sender = User{Username: user.Username}
	}

	return payload
}
