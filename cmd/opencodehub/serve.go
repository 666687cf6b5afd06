package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/swadhinbiswas/opencodehub/pkg/access"
	"github.com/swadhinbiswas/opencodehub/pkg/backend"
	"github.com/swadhinbiswas/opencodehub/pkg/config"
	"github.com/swadhinbiswas/opencodehub/pkg/cron"
	"github.com/swadhinbiswas/opencodehub/pkg/db"
	"github.com/swadhinbiswas/opencodehub/pkg/db/migrate"
	"github.com/swadhinbiswas/opencodehub/pkg/hooks"
	"github.com/swadhinbiswas/opencodehub/pkg/jobs"
	"github.com/swadhinbiswas/opencodehub/pkg/lock"
	logx "github.com/swadhinbiswas/opencodehub/pkg/log"
	"github.com/swadhinbiswas/opencodehub/pkg/proto"
	"github.com/swadhinbiswas/opencodehub/pkg/resolver"
	"github.com/swadhinbiswas/opencodehub/pkg/storage"
	"github.com/swadhinbiswas/opencodehub/pkg/store"
	"github.com/swadhinbiswas/opencodehub/pkg/store/database"
	"github.com/swadhinbiswas/opencodehub/pkg/web"
	"github.com/swadhinbiswas/opencodehub/pkg/webhook"
	"go.uber.org/automaxprocs/maxprocs"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := os.MkdirAll(dataPath, 0o700); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}

		cfg, err := config.ParseConfig(dataPath)
		if err != nil {
			return fmt.Errorf("parse config: %w", err)
		}

		ctx = config.WithContext(ctx, cfg)

		logger, f, err := logx.NewLogger(cfg)
		if err != nil {
			return fmt.Errorf("create logger: %w", err)
		}
		if f != nil {
			defer f.Close() // nolint: errcheck
		}

		log.SetDefault(logger)
		ctx = log.WithContext(ctx, logger)

		// Set the max number of processes to the number of CPUs.
		// This is useful when running in a container.
		if _, err := maxprocs.Set(maxprocs.Logger(logger.Debugf)); err != nil {
			logger.Warn("couldn't set automaxprocs", "err", err)
		}

		dbx, err := db.Open(ctx, cfg.DB.Driver, cfg.DB.DataSource)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer dbx.Close() // nolint: errcheck

		if err := migrate.Migrate(ctx, dbx); err != nil {
			return fmt.Errorf("migration error: %w", err)
		}

		ctx = db.WithContext(ctx, dbx)
		datastore := database.New()
		ctx = store.WithContext(ctx, datastore)

		var locks lock.Manager
		switch cfg.Lock.Backend {
		case "database":
			locks = lock.NewDatabaseManager(dbx, datastore)
		case "memory", "":
			locks = lock.NewMemoryManager()
		default:
			return fmt.Errorf("unknown lock backend %q", cfg.Lock.Backend)
		}

		tier, err := proto.ParseTier(cfg.Storage.Tier)
		if err != nil {
			return fmt.Errorf("parse storage tier: %w", err)
		}

		var res resolver.Resolver
		if tier == proto.TierRemote {
			objstore, err := storage.NewMinioStorage(cfg.Storage.Minio)
			if err != nil {
				return fmt.Errorf("connect object store: %w", err)
			}

			ctx = storage.WithContext(ctx, objstore)
			res = resolver.NewTieredResolver(objstore, locks,
				cfg.CachePath(),
				time.Duration(cfg.Storage.CacheTTL),
				time.Duration(cfg.Lock.TTL),
				logger)
		} else {
			res = resolver.NewLocalResolver(cfg.ReposPath())
		}

		gate, err := access.NewStaticGate(cfg.Auth)
		if err != nil {
			return fmt.Errorf("configure access gate: %w", err)
		}

		be := backend.New(cfg, dbx, datastore, res, gate, logger)
		ctx = backend.WithContext(ctx, be)

		consumers := []hooks.Consumer{
			hooks.AnalyzerConsumer(hooks.NewRefActivity(logger)),
		}

		if cfg.Workflows.Endpoint != "" {
			runner, err := webhook.NewSender(config.WebhookConfig{
				Endpoints:   []string{cfg.Workflows.Endpoint},
				Secret:      cfg.Workflows.Secret,
				ContentType: "json",
			}, logger)
			if err != nil {
				return fmt.Errorf("configure workflow trigger: %w", err)
			}

			consumers = append(consumers, hooks.WorkflowConsumer(hooks.NewWorkflowNotifier(runner, cfg.HTTP.PublicURL)))
		}

		if len(cfg.Webhook.Endpoints) > 0 {
			sender, err := webhook.NewSender(cfg.Webhook, logger)
			if err != nil {
				return fmt.Errorf("configure webhooks: %w", err)
			}

			be.SetWebhookSender(sender)
			consumers = append(consumers, hooks.NewWebhookConsumer(sender, cfg.HTTP.PublicURL))
		}

		dispatcher := hooks.NewDispatcher(cfg.Dispatch, logger, consumers...)
		dispatcher.Start(ctx)
		defer dispatcher.Close()
		ctx = hooks.WithContext(ctx, dispatcher)

		sched := cron.NewScheduler(ctx)
		for n, j := range jobs.List() {
			id, err := sched.AddFunc(j.Runner.Spec(ctx), j.Runner.Func(ctx))
			if err != nil {
				logger.Warn("error adding cron job", "job", n, "err", err)
				continue
			}

			j.ID = id
		}

		sched.Start()
		defer sched.Shutdown()

		srv, err := web.NewHTTPServer(ctx)
		if err != nil {
			return fmt.Errorf("create http server: %w", err)
		}

		done := make(chan os.Signal, 1)
		lch := make(chan error, 1)
		go func() {
			defer close(lch)
			defer close(done)
			logger.Info("Starting HTTP server", "addr", cfg.HTTP.ListenAddr)
			err := srv.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				err = nil
			}
			lch <- err
		}()

		signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
		<-done

		sctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return err
		}

		// wait for serve to finish
		return <-lch
	},
}
