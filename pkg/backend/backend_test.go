package backend

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/matryer/is"
	"github.com/swadhinbiswas/opencodehub/pkg/access"
	"github.com/swadhinbiswas/opencodehub/pkg/config"
	"github.com/swadhinbiswas/opencodehub/pkg/db"
	"github.com/swadhinbiswas/opencodehub/pkg/db/migrate"
	"github.com/swadhinbiswas/opencodehub/pkg/proto"
	"github.com/swadhinbiswas/opencodehub/pkg/resolver"
	"github.com/swadhinbiswas/opencodehub/pkg/store/database"
	"github.com/swadhinbiswas/opencodehub/pkg/webhook"
)

type recordingSender struct {
	payloads []webhook.EventPayload
}

func (r *recordingSender) SendEvent(_ context.Context, p webhook.EventPayload) error {
	r.payloads = append(r.payloads, p)
	return nil
}

func newTestBackend(t *testing.T) (*Backend, context.Context) {
	t.Helper()
	is := is.New(t)

	cfg := config.DefaultConfig(t.TempDir())
	cfg.DB.DataSource = filepath.Join(cfg.DataPath, "test.db") +
		"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

	logger := log.New(io.Discard)
	ctx := log.WithContext(context.TODO(), logger)
	ctx = config.WithContext(ctx, cfg)

	dbx, err := db.Open(ctx, cfg.DB.Driver, cfg.DB.DataSource)
	is.NoErr(err)
	t.Cleanup(func() { dbx.Close() }) // nolint: errcheck
	is.NoErr(migrate.Migrate(ctx, dbx))

	gate, err := access.NewStaticGate(cfg.Auth)
	is.NoErr(err)

	res := resolver.NewLocalResolver(cfg.ReposPath())
	return New(cfg, dbx, database.New(), res, gate, logger), ctx
}

func TestRepositoryLifecycleWebhooks(t *testing.T) {
	is := is.New(t)
	be, ctx := newTestBackend(t)

	sender := &recordingSender{}
	be.SetWebhookSender(sender)

	ctx = proto.WithUserContext(ctx, &proto.User{Username: "octo"})

	repo, err := be.CreateRepository(ctx, "hello", false)
	is.NoErr(err)
	is.Equal(len(sender.payloads), 1)

	created, ok := sender.payloads[0].(webhook.RepositoryEvent)
	is.True(ok)
	is.Equal(created.Action, "create")
	is.Equal(created.Repository.Name, repo.Name)
	is.Equal(created.Sender.Username, "octo")

	is.NoErr(be.DeleteRepository(ctx, "hello"))
	is.Equal(len(sender.payloads), 2)

	deleted, ok := sender.payloads[1].(webhook.RepositoryEvent)
	is.True(ok)
	is.Equal(deleted.Action, "delete")
	is.Equal(deleted.Repository.Name, repo.Name)

	_, err = be.Repository(ctx, "hello")
	is.True(errors.Is(err, proto.ErrRepoNotFound))
}

func TestRepositoryLifecycleWithoutSender(t *testing.T) {
	is := is.New(t)
	be, ctx := newTestBackend(t)

	_, err := be.CreateRepository(ctx, "quiet", false)
	is.NoErr(err)
	is.NoErr(be.DeleteRepository(ctx, "quiet"))
}
