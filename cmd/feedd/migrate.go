package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/go-feed-backend/internal/config"
	"github.com/tbourn/go-feed-backend/internal/repo"
)

func newMigrateCmd(c *cli) *cobra.Command {
	var dev bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the feed log schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd.Context(), c.cfg, dev)
		},
	}
	cmd.Flags().BoolVar(&dev, "devstack", false, "migrate the devstack database instead")
	return cmd
}

func openSQL(cfg config.FeedLogConfig) (*gorm.DB, error) {
	if cfg.Backend == "postgres" {
		return repo.OpenPostgres(cfg.PostgresDSN)
	}
	return repo.OpenSQLite(cfg.DBPath)
}

func runMigrate(ctx context.Context, cfg config.Config, dev bool) error {
	if dev {
		db, err := repo.OpenSQLite(cfg.DevStack.DBPath)
		if err != nil {
			return err
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}
		if err := repo.AutoMigrateDevStack(db); err != nil {
			return err
		}
		log.Info().Str("db", cfg.DevStack.DBPath).Msg("devstack schema migrated")
		return nil
	}

	// openFeedLog migrates SQL backends and indexes Mongo.
	_, closeLog, err := openFeedLog(ctx, cfg.FeedLog)
	if err != nil {
		return fmt.Errorf("migrate %s feed log: %w", cfg.FeedLog.Backend, err)
	}
	log.Info().Str("backend", cfg.FeedLog.Backend).Msg("feed log schema migrated")
	return closeLog(ctx)
}
