package main

import (
	"context"

	"gopkg.in/urfave/cli.v1"

	"github.com/quailmother/contracting/internal/clog"
	"github.com/quailmother/contracting/params"
	"github.com/quailmother/contracting/pkg/cache"
	"github.com/quailmother/contracting/pkg/contractstore"
	"github.com/quailmother/contracting/pkg/kv"
)

func configFromFlags(storeKind, redisEndpoint string, redisDB int) *params.Config {
	cfg := params.Default()
	if storeKind == "redis" {
		cfg.StoreKind = params.StoreRedis
	} else {
		cfg.StoreKind = params.StoreMemory
	}
	cfg.StoreEndpoint = redisEndpoint
	cfg.StoreDB = redisDB
	return cfg
}

// openStore builds the ContractDriver a CLI command dispatches against,
// from the global store/log flags.
func openStore(c *cli.Context) (*contractstore.Driver, *params.Config, error) {
	if err := clog.Init(clog.Config{Level: c.GlobalString(LogLevelFlag.Name)}); err != nil {
		return nil, nil, err
	}
	cfg := configFromFlags(c.GlobalString(StoreFlag.Name), c.GlobalString(RedisEndpointFlag.Name), c.GlobalInt(RedisDBFlag.Name))

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
