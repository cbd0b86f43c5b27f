// Package storage opens the ledger store described by the configuration.
package storage

import (
	"context"
	"fmt"

	"github.com/compose-network/web3call/configs"
	"github.com/compose-network/web3call/internal/ledger"
	"github.com/compose-network/web3call/internal/storage/cache"
	"github.com/compose-network/web3call/internal/storage/sqlite"
	"github.com/prometheus/client_golang/prometheus"
)

// Open opens the SQLite ledger, seeds it from the fixtures file when one is
// configured and wraps it in the lookup cache. The returned close function
// releases the database.
func Open(ctx context.Context, storageCfg configs.Storage, cacheCfg configs.Cache, promRegistry prometheus.Registerer) (ledger.Store, func() error, error) {
	db, err := sqlite.New(storageCfg.DataDir)
	if err != nil {
		return nil, nil, err
	}

	if storageCfg.Fixtures != "" {
		if err := db.LoadFixtures(ctx, storageCfg.Fixtures); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("failed to load ledger fixtures: %w", err)
		}
	}

	return cache.New(db, cacheCfg.Size, cacheCfg.TTL, promRegistry), db.Close, nil
}
