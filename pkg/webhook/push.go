package webhook

import (
	"errors"
	"fmt"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/swadhinbiswas/opencodehub/pkg/git"
	"github.com/swadhinbiswas/opencodehub/pkg/proto"
)

// maxPushCommits bounds how many commits a single push payload carries.
const maxPushCommits = 20

// PushEvent is a push event.
type PushEvent struct {
	Common

	// Ref is the branch or tag name.
	Ref string `json:"ref" url:"ref"`
	// Before is the previous commit SHA.
	Before string `json:"before" url:"before"`
	// After is the current commit SHA.
	After string `json:"after" url:"after"`
	// Commits is the list of commits.
	Commits []Commit `json:"commits" url:"commits"`
}

// NewPushEvent builds a push event payload for a single ref update. repoPath
// points at the repository working copy the push was applied to; it is used
// to read the pushed commits.
func NewPushEvent(user *proto.User, repo proto.Repository, publicURL, repoPath string, update git.RefUpdate) (PushEvent, error) {
	payload := PushEvent{
		Ref:    update.Ref,
		Before: update.OldSHA,
		After:  update.NewSHA,
		Common: Common{
			EventType: EventPush,
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

	if update.IsDelete() {
		return payload, nil
	}

	commits, err := pushedCommits(repoPath, update)
	if err != nil {
		return PushEvent{}, err
	}

	payload.Commits = commits
	return payload, nil
}

// pushedCommits walks history from the new tip down to the previous tip,
// newest first, bounded by maxPushCommits.
func pushedCommits(repoPath string, update git.RefUpdate) ([]Commit, error) {
	r, err := gogit.PlainOpen(repoPath)
	if err != nil {
		return nil, err
	}

	iter, err := r.Log(&gogit.LogOptions{From: plumbing.NewHash(update.NewSHA)})
	if err != nil {
		// The ref may point at an annotated tag or the object may be gone
		// already; an empty commit list is better than a failed delivery.
		return nil, nil
	}
	defer iter.Close()

	var commits []Commit
	for len(commits) < maxPushCommits {
		c, err := iter.Next()
		if err != nil {
			if errors.Is(err, plumbing.ErrObjectNotFound) {
				break
			}
			// io.EOF ends the walk on the root commit.
			break
		}

		if c.Hash.String() == update.OldSHA {
			break
		}

		commits = append(commits, Commit{
			ID:      c.Hash.String(),
			Message: c.Message,
			Author: Author{
				Name:  c.Author.Name,
				Email: c.Author.Email,
				Date:  c.Author.When,
			},
			Committer: Author{
				Name:  c.Committer.Name,
				Email: c.Committer.Email,
				Date:  c.Committer.When,
			},
			Timestamp: c.Committer.When,
		})
	}

	return commits, nil
}

// NewRepositoryEvent builds a repository lifecycle event payload.
func NewRepositoryEvent(user *proto.User, repo proto.Repository, publicURL, action string) RepositoryEvent {
	payload := RepositoryEvent{
		Action: action,
		Common: Common{
			EventType: EventRepository,
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

// RepositoryEvent is a repository lifecycle payload.
type RepositoryEvent struct {
	Common

	// Action is "create" or "delete".
	Action string `json:"action" url:"action"`
}
