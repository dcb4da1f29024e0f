package kv

import (
	"context"

	"github.com/quailmother/contracting/params"
)

// Open constructs the Store named by cfg.StoreKind.
func Open(ctx context.Context, cfg *params.Config) (Store, error) {
	switch cfg.StoreKind {
	case params.StoreMemory:
		return NewMemory(), nil
	case params.StoreRedis:
		return NewRedis(ctx, cfg.StoreEndpoint, cfg.StoreDB), nil
	default:
		return nil, ErrDriverNotFound
	}
}
