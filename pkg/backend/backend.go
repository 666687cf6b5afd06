// Package backend implements the repository management layer on top of the
// database, the storage resolver and the access gate.
package backend

import (
	"context"
	"errors"
	"path"

	"github.com/charmbracelet/log"
	"github.com/swadhinbiswas/opencodehub/pkg/access"
	"github.com/swadhinbiswas/opencodehub/pkg/config"
	"github.com/swadhinbiswas/opencodehub/pkg/db"
	"github.com/swadhinbiswas/opencodehub/pkg/db/models"
	"github.com/swadhinbiswas/opencodehub/pkg/git"
	"github.com/swadhinbiswas/opencodehub/pkg/lfs"
	"github.com/swadhinbiswas/opencodehub/pkg/proto"
	"github.com/swadhinbiswas/opencodehub/pkg/resolver"
	"github.com/swadhinbiswas/opencodehub/pkg/store"
	"github.com/swadhinbiswas/opencodehub/pkg/utils"
	"github.com/swadhinbiswas/opencodehub/pkg/webhook"
)

// EventSender delivers webhook event payloads. *webhook.Sender implements
// it.
type EventSender interface {
	SendEvent(ctx context.Context, payload webhook.EventPayload) error
}

// Backend is the repository management backend.
type Backend struct {
	cfg      *config.Config
	db       *db.DB
	store    store.Store
	resolver resolver.Resolver
	gate     access.Gate
	webhooks EventSender
	logger   *log.Logger
}

// New returns a new backend.
func New(cfg *config.Config, database *db.DB, st store.Store, res resolver.Resolver, gate access.Gate, logger *log.Logger) *Backend {
	if logger == nil {
		logger = log.Default()
	}

	return &Backend{
		cfg:      cfg,
		db:       database,
		store:    st,
		resolver: res,
		gate:     gate,
		logger:   logger.WithPrefix("backend"),
	}
}

// SetWebhookSender configures the sender used for repository lifecycle
// webhooks. A nil sender disables them.
func (b *Backend) SetWebhookSender(s EventSender) {
	b.webhooks = s
}

// Config returns the server configuration.
func (b *Backend) Config() *config.Config {
	return b.cfg
}

// Gate returns the access gate.
func (b *Backend) Gate() access.Gate {
	return b.gate
}

// Resolver returns the storage resolver.
func (b *Backend) Resolver() resolver.Resolver {
	return b.resolver
}

// Repository returns the repository with the given name. The name is
// sanitized before lookup.
func (b *Backend) Repository(ctx context.Context, name string) (proto.Repository, error) {
	name = utils.SanitizeRepo(name)
	if err := utils.ValidateRepo(name); err != nil {
		return proto.Repository{}, proto.ErrRepoNotFound
	}

	var m models.Repo
	if err := b.db.TransactionContext(ctx, func(tx *db.Tx) (err error) {
		m, err = b.store.GetRepoByName(ctx, tx, name)
		return err
	}); err != nil {
		if errors.Is(err, db.ErrRecordNotFound) {
			return proto.Repository{}, proto.ErrRepoNotFound
		}
		return proto.Repository{}, err
	}

	return b.toRepository(m), nil
}

// CreateRepository creates a new repository on the configured storage tier
// and initializes it as an empty bare repository. On the remote tier the
// initial snapshot is published before the call returns, so the repository
// is immediately cloneable from any node.
func (b *Backend) CreateRepository(ctx context.Context, name string, private bool) (proto.Repository, error) {
	name = utils.SanitizeRepo(name)
	if err := utils.ValidateRepo(name); err != nil {
		return proto.Repository{}, err
	}

	tier, err := proto.ParseTier(b.cfg.Storage.Tier)
	if err != nil {
		return proto.Repository{}, err
	}

	remoteKey := ""
	if tier == proto.TierRemote {
		remoteKey = path.Join("repos", name+".tar")
	}

	var m models.Repo
	if err := b.db.TransactionContext(ctx, func(tx *db.Tx) (err error) {
		m, err = b.store.CreateRepo(ctx, tx, name, private, tier.String(), remoteKey)
		return err
	}); err != nil {
		return proto.Repository{}, err
	}

	repo := b.toRepository(m)
	handle, err := b.resolver.Resolve(ctx, repo.Location, true)
	if err != nil {
		return proto.Repository{}, err
	}

	initErr := git.InitBare(handle.Dir())
	if err := handle.Release(ctx, initErr == nil); err != nil {
		b.logger.Error("release after create", "repo", name, "err", err)
		if initErr == nil {
			initErr = err
		}
	}
	if initErr != nil {
		return proto.Repository{}, initErr
	}

	b.logger.Info("created repository", "repo", name, "tier", tier)
	b.sendRepositoryEvent(ctx, "create", repo)
	return repo, nil
}

// DeleteRepository removes the repository record. Storage cleanup is left to
// the cache eviction job and the operator; the row going away makes the
// repository unreachable.
func (b *Backend) DeleteRepository(ctx context.Context, name string) error {
	name = utils.SanitizeRepo(name)

	var repo proto.Repository
	if b.webhooks != nil {
		// The payload needs the row before it goes away.
		var err error
		repo, err = b.Repository(ctx, name)
		if err != nil {
			return err
		}
	}

	if err := b.db.TransactionContext(ctx, func(tx *db.Tx) error {
		return b.store.DeleteRepoByName(ctx, tx, name)
	}); err != nil {
		return err
	}

	b.sendRepositoryEvent(ctx, "delete", repo)
	return nil
}

// sendRepositoryEvent delivers a repository lifecycle webhook. Delivery
// failures are logged, never surfaced to the caller.
func (b *Backend) sendRepositoryEvent(ctx context.Context, action string, repo proto.Repository) {
	if b.webhooks == nil {
		return
	}

	user := proto.UserFromContext(ctx)
	payload := webhook.NewRepositoryEvent(user, repo, b.cfg.HTTP.PublicURL, action)
	if err := b.webhooks.SendEvent(ctx, payload); err != nil {
		b.logger.Error("send repository webhook", "repo", repo.Name, "action", action, "err", err)
	}
}

// TouchRepository bumps the repository's updated timestamp after a push.
func (b *Backend) TouchRepository(ctx context.Context, repo proto.Repository) error {
	return b.db.TransactionContext(ctx, func(tx *db.Tx) error {
		return b.store.TouchRepo(ctx, tx, repo.ID)
	})
}

// StoreLFSObjectMeta records an uploaded LFS object for the repository.
// Recording the same oid twice is a no-op.
func (b *Backend) StoreLFSObjectMeta(ctx context.Context, repo proto.Repository, ptr lfs.Pointer) error {
	err := b.db.TransactionContext(ctx, func(tx *db.Tx) error {
		return b.store.CreateLFSObject(ctx, tx, repo.ID, ptr.Oid, ptr.Size)
	})
	if errors.Is(err, db.ErrDuplicateKey) {
		return nil
	}

	return err
}

// LFSObjectMeta returns the recorded LFS object for the oid, if any.
func (b *Backend) LFSObjectMeta(ctx context.Context, repo proto.Repository, oid string) (models.LFSObject, error) {
	var m models.LFSObject
	err := b.db.TransactionContext(ctx, func(tx *db.Tx) (err error) {
		m, err = b.store.GetLFSObjectByOid(ctx, tx, repo.ID, oid)
		return err
	})
	if errors.Is(err, db.ErrRecordNotFound) {
		return m, proto.ErrObjectNotFound
	}

	return m, err
}

func (b *Backend) toRepository(m models.Repo) proto.Repository {
	tier, _ := proto.ParseTier(m.Tier)
	return proto.Repository{
		ID:      m.ID,
		Name:    m.Name,
		Private: m.Private,
		Location: proto.RepositoryLocation{
			ID:        m.ID,
			Name:      m.Name,
			Tier:      tier,
			RemoteKey: m.RemoteKey.String,
		},
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
