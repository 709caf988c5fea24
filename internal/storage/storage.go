// Package storage selects the dataset store for a process.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/insurance-maps/internal/adapter/memstore"
	"github.com/couchcryptid/insurance-maps/internal/adapter/postgres"
	"github.com/couchcryptid/insurance-maps/internal/ingest"
)

// Store is the full dataset store contract.
type Store = ingest.Store

// Open returns a PostgreSQL store when databaseURL is set, migrating the
// schema first, and an in-memory store persisted to dataFile otherwise.
// The returned func releases the store.
func Open(ctx context.Context, databaseURL, dataFile string, logger *slog.Logger) (Store, func(), error) {
	if databaseURL != "" {
		if err := postgres.Migrate(ctx, databaseURL); err != nil {
			return nil, nil, err
		}
		pg, err := postgres.Open(ctx, databaseURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using postgres store")
		return pg, pg.Close, nil
	}

	mem := memstore.New(dataFile)
	if err := mem.Load(); err != nil {
		return nil, nil, fmt.Errorf("loading data file: %w", err)
	}
	logger.Info("using in-memory store", "data_file", dataFile)
	return mem, func() {}, nil
}
