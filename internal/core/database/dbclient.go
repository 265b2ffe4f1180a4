package db

import (
	"context"
	"fmt"

	"github.com/markdave123-py/dsa-galaxy/internal/config"
	"github.com/markdave123-py/dsa-galaxy/internal/core"
)

// NewStore builds the Store selected by STORE_DRIVER.
func NewStore(ctx context.Context, cfg *config.Config) (core.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		return NewMemoryStore(), nil
	case config.StoreDriverPostgres:
		return NewDatabaseClient(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
