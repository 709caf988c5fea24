package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/couchcryptid/insurance-maps/internal/domain"
)

// Seed imports every <trade>.csv file in dir whose trade has no stored
// dataset yet. Already-stored trades are never overwritten, so restarting
// with the same seed directory keeps uploads made since. It returns the
// trades that were imported.
func (im *Importer) Seed(ctx context.Context, dir string) ([]domain.Trade, error) {
	defer im.refreshTradeCount(ctx)
	if dir == "" {
		return nil, nil
	}
	paths, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("list seed files: %w", err)
	}
	sort.Strings(paths)

	var seeded []domain.Trade
	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".csv")
		trade, err := domain.ParseTrade(name)
		if err != nil {
			im.logger.Warn("skipping seed file", "path", path, "error", err)
			continue
		}

		_, err = im.store.Get(ctx, trade)
		if err == nil {
			im.logger.Debug("seed skipped, trade already stored", "trade", trade)
			continue
		}
		if !errors.Is(err, domain.ErrTradeNotFound) {
			return seeded, fmt.Errorf("check %s: %w", trade, err)
		}

		if err := im.seedFile(ctx, trade, path); err != nil {
			return seeded, err
		}
		seeded = append(seeded, trade)
	}
	return seeded, nil
}

func (im *Importer) seedFile(ctx context.Context, trade domain.Trade, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	if _, err := im.Import(ctx, string(trade), f); err != nil {
		return fmt.Errorf("seed %s from %s: %w", trade, path, err)
	}
	return nil
}
