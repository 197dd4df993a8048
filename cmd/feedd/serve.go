package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-feed-backend/internal/cache"
	"github.com/tbourn/go-feed-backend/internal/clients"
	"github.com/tbourn/go-feed-backend/internal/config"
	httpapi "github.com/tbourn/go-feed-backend/internal/http"
	"github.com/tbourn/go-feed-backend/internal/observability"
	"github.com/tbourn/go-feed-backend/internal/repo"
	"github.com/tbourn/go-feed-backend/internal/rpc"
	"github.com/tbourn/go-feed-backend/internal/services"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(c *cli) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the feed HTTP service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if port != "" {
				c.cfg.Port = port
			}
			return runServe(cmd.Context(), c.cfg)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (overrides PORT)")
	return cmd
}

// feedLog is a durable log backend that can also be probed by /health.
type feedLog interface {
	services.FeedLog
	httpapi.Pinger
}

// openFeedLog opens the configured backend. SQL backends are migrated on
// open; Mongo gets its owner index.
func openFeedLog(ctx context.Context, cfg config.FeedLogConfig) (feedLog, func(context.Context) error, error) {
	switch cfg.Backend {
	case "mongo":
		l, err := repo.OpenMongoFeedLog(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MaxDepth)
		if err != nil {
			return nil, nil, err
		}
		return l, l.Close, nil
	case "postgres", "sqlite", "":
		db, err := openSQL(cfg)
		if err != nil {
			return nil, nil, err
		}
		if err := repo.AutoMigrate(db); err != nil {
			return nil, nil, fmt.Errorf("migrate feed log: %w", err)
		}
		closeDB := func(context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		}
		return repo.NewSQLFeedLog(db, cfg.MaxDepth), closeDB, nil
	default:
		return nil, nil, fmt.Errorf("unknown feed log backend %q", cfg.Backend)
	}
}

func runServe(ctx context.Context, cfg config.Config) error {
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() { _ = shutdownOTel(context.Background()) }()

	router, err := cache.New(cache.Options{
		Mode:        cfg.Cache.Mode,
		Addr:        cfg.Cache.Addr,
		ReplicaAddr: cfg.Cache.ReplicaAddr,
		ShardAddrs:  cfg.Cache.ShardAddrs,
		Password:    cfg.Cache.Password,
		PoolSize:    cfg.Cache.PoolSize,
		DialTimeout: cfg.Cache.DialTimeout,
	})
	if err != nil {
		return err
	}
	defer router.Close()

	flog, closeLog, err := openFeedLog(ctx, cfg.FeedLog)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog(context.Background()) }()

	pool := rpc.NewPool(rpc.Options{
		MaxConns:     cfg.RPC.MaxConns,
		Timeout:      cfg.RPC.Timeout,
		LeaseTimeout: cfg.RPC.LeaseTimeout,
		KeepAlive:    cfg.RPC.KeepAlive,
	})
	defer pool.Close()

	peers := cfg.Collaborators
	posts := clients.NewPostStorageClient(pool, peers.PostStorage)
	writer := services.NewFeedWriter(router, flog, clients.NewSocialGraphClient(pool, peers.SocialGraph))
	compose := services.NewComposeService(
		clients.NewUserClient(pool, peers.User),
		clients.NewTextClient(pool, peers.Text),
		clients.NewMediaClient(pool, peers.Media),
		clients.NewUniqueIDClient(pool, peers.UniqueID),
		posts,
		writer,
	)

	engine := gin.New()
	httpapi.RegisterRoutes(engine, httpapi.Deps{
		Compose:      compose,
		UserTimeline: services.NewUserTimelineReader(router, flog, posts),
		HomeTimeline: services.NewHomeTimelineReader(router, posts),
		Feeds:        writer,
		Posts:        posts,
		Checks: map[string]httpapi.Pinger{
			"redis":    router,
			"feed_log": flog,
		},
	}, cfg)

	log.Info().
		Str("cache_mode", router.Mode()).
		Int("cache_shards", router.Shards()).
		Str("feed_log", cfg.FeedLog.Backend).
		Msg("feed service wired")

	return listenAndServe(ctx, newHTTPServer(cfg, cfg.Port, engine), "feed service")
}

func newHTTPServer(cfg config.Config, port string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + port,
		Handler:           h,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
}

// listenAndServe runs srv until ctx is cancelled, then drains in-flight
// requests for up to shutdownTimeout.
func listenAndServe(ctx context.Context, srv *http.Server, name string) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msgf("%s listening", name)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msgf("%s shutting down", name)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
