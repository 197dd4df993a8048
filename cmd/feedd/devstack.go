package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-feed-backend/internal/config"
	"github.com/tbourn/go-feed-backend/internal/devstack"
	"github.com/tbourn/go-feed-backend/internal/repo"
	"github.com/tbourn/go-feed-backend/internal/sysutil"
	"github.com/tbourn/go-feed-backend/internal/uniqueid"
)

func newDevStackCmd(c *cli) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "devstack",
		Short: "Run every collaborator service in one process over SQLite",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if port != "" {
				c.cfg.DevStack.Port = port
			}
			return runDevStack(cmd.Context(), c.cfg)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (overrides DEVSTACK_PORT)")
	return cmd
}

func runDevStack(ctx context.Context, cfg config.Config) error {
	machineID, err := sysutil.ResolveMachineID(cfg.DevStack.MachineID)
	if err != nil {
		return err
	}
	ids, err := uniqueid.New(machineID)
	if err != nil {
		return err
	}

	db, err := repo.OpenSQLite(cfg.DevStack.DBPath)
	if err != nil {
		return fmt.Errorf("open devstack db: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := repo.AutoMigrateDevStack(db); err != nil {
		return fmt.Errorf("migrate devstack db: %w", err)
	}

	log.Info().Int64("machine_id", machineID).Str("db", cfg.DevStack.DBPath).Msg("devstack ready")
	srv := newHTTPServer(cfg, cfg.DevStack.Port, devstack.New(db, ids).Router())
	return listenAndServe(ctx, srv, "devstack")
}
