// Package memstore keeps trade datasets in memory, optionally persisted to
// a JSON file so a restart restores the last imports.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/couchcryptid/insurance-maps/internal/domain"
)

const fileVersion = "1"

// Store is a thread-safe dataset store. A zero path disables persistence.
type Store struct {
	mu       sync.RWMutex
	datasets map[domain.Trade]*domain.Dataset
	path     string
}

type persistenceFile struct {
	Version  string                           `json:"version"`
	SavedAt  time.Time                        `json:"saved_at"`
	Datasets map[domain.Trade]*domain.Dataset `json:"datasets"`
}

// New creates an empty store persisting to path.
func New(path string) *Store {
	return &Store{
		datasets: make(map[domain.Trade]*domain.Dataset),
		path:     path,
	}
}

// Load restores datasets from the persistence file. A missing file leaves
// the store empty.
func (s *Store) Load() error {
	if s.path == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// A leftover temp file means a crash mid-write; the main file is intact.
	_ = os.Remove(s.path + ".tmp")

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", s.path, err)
	}

	var pf persistenceFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return fmt.Errorf("decode %s: %w", s.path, err)
	}
	s.datasets = make(map[domain.Trade]*domain.Dataset, len(pf.Datasets))
	for trade, ds := range pf.Datasets {
		if ds == nil {
			return fmt.Errorf("decode %s: trade %q has no dataset", s.path, trade)
		}
		if ds.Records == nil {
			ds.Records = make(map[domain.StateCode]domain.StateRecord)
		}
		ds.Trade = trade
		s.datasets[trade] = ds
	}
	return nil
}

// Save replaces the trade's dataset.
func (s *Store) Save(_ context.Context, ds *domain.Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.datasets[ds.Trade]
	s.datasets[ds.Trade] = ds.Clone()
	if err := s.persist(); err != nil {
		if had {
			s.datasets[ds.Trade] = prev
		} else {
			delete(s.datasets, ds.Trade)
		}
		return err
	}
	return nil
}

// Get returns a copy of the trade's dataset.
func (s *Store) Get(_ context.Context, trade domain.Trade) (*domain.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ds, ok := s.datasets[trade]
	if !ok {
		return nil, fmt.Errorf("%s: %w", trade, domain.ErrTradeNotFound)
	}
	return ds.Clone(), nil
}

// List summarizes every stored trade, sorted by name.
func (s *Store) List(_ context.Context) ([]domain.TradeSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.TradeSummary, 0, len(s.datasets))
	for _, ds := range s.datasets {
		out = append(out, ds.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Trade < out[j].Trade })
	return out, nil
}

// Delete removes the trade and returns how many state rows it held.
func (s *Store) Delete(_ context.Context, trade domain.Trade) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ds, ok := s.datasets[trade]
	if !ok {
		return 0, fmt.Errorf("%s: %w", trade, domain.ErrTradeNotFound)
	}
	delete(s.datasets, trade)
	if err := s.persist(); err != nil {
		s.datasets[trade] = ds
		return 0, err
	}
	return len(ds.Records), nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// persist writes all datasets atomically via a temp file. Callers hold mu.
func (s *Store) persist() error {
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	data, err := json.MarshalIndent(persistenceFile{
		Version:  fileVersion,
		SavedAt:  domain.Now(),
		Datasets: s.datasets,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode datasets: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}
