package main

import (
	"context"
	"os"
	"strconv"

	"github.com/quailmother/contracting/internal/clog"
	"github.com/quailmother/contracting/params"
	"github.com/quailmother/contracting/pkg/cache"
	"github.com/quailmother/contracting/pkg/contractstore"
	"github.com/quailmother/contracting/pkg/kv"
	"github.com/quailmother/contracting/pkg/loader"
	"github.com/quailmother/contracting/pkg/sandbox"
)

// maybeRunWorker intercepts the re-exec this binary performs as a
// sandbox.SubprocessExecutor child. There is no cli.Context in that mode,
// so configuration travels through environment variables instead of flags.
func maybeRunWorker() {
	if len(os.Args) < 2 || os.Args[1] != sandbox.WorkerFlag {
		return
	}

	store, cfg, err := openStoreFromEnv()
	if err != nil {
		fatalf("worker: %v", err)
	}
	ld := loader.New(store, cfg)
	ex := sandbox.New(store, ld, cfg)

	if err := sandbox.RunWorker(ex); err != nil {
		fatalf("worker: %v", err)
	}
	os.Exit(0)
}

func openStoreFromEnv() (*contractstore.Driver, *params.Config, error) {
	if err := clog.Init(clog.Config{Level: envOr("CONTRACTING_LOG_LEVEL", "info")}); err != nil {
		return nil, nil, err
	}

	cfg := configFromFlags(
		envOr("CONTRACTING_STORE", "memory"),
		envOr("CONTRACTING_REDIS_ENDPOINT", "localhost:6379"),
		envIntOr("CONTRACTING_REDIS_DB", 0),
	)

	backing, err := kv.Open(context.Background(), cfg)
	if err != nil {
		return nil, nil, err
	}
	cacheDriver := cache.New(backing, cfg.ReadCostPerByte)
	driver, err := contractstore.New(cacheDriver, cfg, 256)
	if err != nil {
		return nil, nil, err
	}
	return driver, cfg, nil
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func envIntOr(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
