package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tbourn/go-feed-backend/internal/config"
	"github.com/tbourn/go-feed-backend/internal/repo"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"serve", "devstack", "migrate"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("subcommand %q missing: %v", name, err)
		}
	}
	if f := root.PersistentFlags().Lookup("env-file"); f == nil || f.DefValue != ".env" {
		t.Fatalf("env-file flag = %+v", f)
	}
}

func TestLoad_DotenvOverridesUnsetOnly(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, "test.env")
	if err := os.WriteFile(env, []byte("CACHE_MODE=replica\nREDIS_REPLICA_ADDR=r:6379\nLOG_LEVEL=debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("CACHE_MODE", "")
	t.Setenv("REDIS_REPLICA_ADDR", "")
	os.Unsetenv("CACHE_MODE")
	os.Unsetenv("REDIS_REPLICA_ADDR")

	c := &cli{envFile: env}
	if err := c.load("feedd"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.cfg.Cache.Mode != "replica" || c.cfg.Cache.ReplicaAddr != "r:6379" {
		t.Fatalf("dotenv values not applied: %+v", c.cfg.Cache)
	}
	if c.cfg.LogLevel != "warn" {
		t.Fatalf("process env must win over dotenv, got %q", c.cfg.LogLevel)
	}

	missing := &cli{envFile: filepath.Join(dir, "absent.env")}
	if err := missing.load("feedd"); err != nil {
		t.Fatalf("a missing env file is not an error: %v", err)
	}
}

func TestRunMigrate_SQLiteAndDevStack(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Config{
		FeedLog:  config.FeedLogConfig{Backend: "sqlite", DBPath: filepath.Join(dir, "feed.db"), MaxDepth: 10},
		DevStack: config.DevStackConfig{DBPath: filepath.Join(dir, "dev.db")},
	}
	ctx := context.Background()
	if err := runMigrate(ctx, cfg, false); err != nil {
		t.Fatalf("migrate feed log: %v", err)
	}
	if err := runMigrate(ctx, cfg, true); err != nil {
		t.Fatalf("migrate devstack: %v", err)
	}

	db, err := repo.OpenSQLite(cfg.DevStack.DBPath)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()
	for _, table := range []string{"users", "short_urls", "feed_log_entries"} {
		if !db.Migrator().HasTable(table) {
			t.Fatalf("table %s missing after migrate", table)
		}
	}
}

func TestOpenFeedLog_UnknownBackend(t *testing.T) {
	if _, _, err := openFeedLog(context.Background(), config.FeedLogConfig{Backend: "cassandra"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestListenAndServe_GracefulShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	srv := &http.Server{Addr: addr, Handler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- listenAndServe(ctx, srv, "test") }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		res, err := http.Get("http://" + addr)
		if err == nil {
			res.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never came up: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("shutdown returned %v", err)
		}
	case <-time.After(shutdownTimeout):
		t.Fatal("listenAndServe did not return after cancel")
	}
}
