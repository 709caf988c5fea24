// Package ingest turns uploaded CSV files into stored trade datasets and
// announces each change.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/couchcryptid/insurance-maps/internal/csvio"
	"github.com/couchcryptid/insurance-maps/internal/domain"
	"github.com/couchcryptid/insurance-maps/internal/observability"
	"github.com/google/uuid"
)

var (
	// ErrInvalidCSV wraps every parse or validation failure of an upload.
	ErrInvalidCSV = errors.New("invalid csv")
	// ErrTooLarge is returned for uploads over csvio.MaxUploadBytes.
	ErrTooLarge = fmt.Errorf("csv file exceeds %d bytes", csvio.MaxUploadBytes)
)

// Store persists whole trade datasets.
type Store interface {
	Save(ctx context.Context, ds *domain.Dataset) error
	Get(ctx context.Context, trade domain.Trade) (*domain.Dataset, error)
	List(ctx context.Context) ([]domain.TradeSummary, error)
	Delete(ctx context.Context, trade domain.Trade) (int, error)
	Ping(ctx context.Context) error
}

// Publisher announces dataset changes.
type Publisher interface {
	PublishTradeUpdated(ctx context.Context, ev domain.TradeUpdated) error
	PublishTradeDeleted(ctx context.Context, ev domain.TradeDeleted) error
}

type nopPublisher struct{}

func (nopPublisher) PublishTradeUpdated(context.Context, domain.TradeUpdated) error { return nil }
func (nopPublisher) PublishTradeDeleted(context.Context, domain.TradeDeleted) error { return nil }

// Result describes a successful import.
type Result struct {
	ImportID   string             `json:"import_id"`
	Trade      domain.Trade       `json:"trade"`
	Rows       int                `json:"rows"`
	ClassCodes []string           `json:"class_codes"`
	Missing    []domain.StateCode `json:"missing,omitempty"`
	ImportedAt time.Time          `json:"imported_at"`
}

// Importer validates uploads, replaces the stored dataset, and publishes
// the change. Change listeners run synchronously after a successful write.
type Importer struct {
	store     Store
	publisher Publisher
	logger    *slog.Logger
	metrics   *observability.Metrics

	mu        sync.RWMutex
	listeners []func(domain.Trade)
}

// New creates an Importer. A nil publisher disables event publishing.
func New(store Store, publisher Publisher, logger *slog.Logger, metrics *observability.Metrics) *Importer {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &Importer{
		store:     store,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
	}
}

// OnChange registers fn to be called with the trade after every import or
// delete.
func (im *Importer) OnChange(fn func(domain.Trade)) {
	im.mu.Lock()
	defer im.mu.Unlock()
	im.listeners = append(im.listeners, fn)
}

// CheckReadiness reports whether the backing store is reachable.
func (im *Importer) CheckReadiness(ctx context.Context) error {
	if err := im.store.Ping(ctx); err != nil {
		return fmt.Errorf("store unavailable: %w", err)
	}
	return nil
}

// Import parses r as the full dataset for trade and replaces what is stored.
// A failed import leaves the previous dataset untouched.
func (im *Importer) Import(ctx context.Context, trade string, r io.Reader) (Result, error) {
	start := time.Now()

	t, err := domain.ParseTrade(trade)
	if err != nil {
		im.metrics.ImportsTotal.WithLabelValues("invalid").Inc()
		return Result{}, fmt.Errorf("%w: %q", err, trade)
	}

	ds, err := parseLimited(r, t)
	if err != nil {
		im.metrics.ImportsTotal.WithLabelValues("invalid").Inc()
		im.logger.Warn("import rejected", "trade", t, "error", err)
		return Result{}, err
	}
	ds.UpdatedAt = domain.Now()

	if err := im.store.Save(ctx, ds); err != nil {
		im.metrics.ImportsTotal.WithLabelValues("error").Inc()
		im.logger.Error("store dataset failed", "trade", t, "error", err)
		return Result{}, fmt.Errorf("store %s: %w", t, err)
	}

	missing := ds.Missing()
	res := Result{
		ImportID:   uuid.NewString(),
		Trade:      t,
		Rows:       len(ds.Records),
		ClassCodes: ds.ClassCodes,
		Missing:    missing,
		ImportedAt: ds.UpdatedAt,
	}

	im.metrics.ImportsTotal.WithLabelValues("success").Inc()
	im.metrics.RowsImported.Add(float64(res.Rows))
	im.metrics.ImportDuration.Observe(time.Since(start).Seconds())
	im.logger.Info("dataset imported",
		"import_id", res.ImportID,
		"trade", t,
		"rows", res.Rows,
		"missing", len(missing),
		"class_codes", ds.ClassCodes,
	)

	ev := domain.TradeUpdated{
		ImportID:   res.ImportID,
		Trade:      t,
		States:     res.Rows,
		Missing:    stateStrings(missing),
		ClassCodes: ds.ClassCodes,
		ImportedAt: res.ImportedAt,
	}
	// The store is the source of truth; a lost event does not undo the import.
	if err := im.publisher.PublishTradeUpdated(ctx, ev); err != nil {
		im.logger.Error("publish trade updated failed", "trade", t, "import_id", res.ImportID, "error", err)
	}

	im.changed(ctx, t)
	return res, nil
}

// Delete removes the trade's dataset and returns the number of state rows
// removed.
func (im *Importer) Delete(ctx context.Context, trade domain.Trade) (int, error) {
	n, err := im.store.Delete(ctx, trade)
	if err != nil {
		return 0, err
	}
	im.logger.Info("dataset deleted", "trade", trade, "rows", n)

	ev := domain.TradeDeleted{Trade: trade, Rows: n, DeletedAt: domain.Now()}
	if err := im.publisher.PublishTradeDeleted(ctx, ev); err != nil {
		im.logger.Error("publish trade deleted failed", "trade", trade, "error", err)
	}

	im.changed(ctx, trade)
	return n, nil
}

func (im *Importer) changed(ctx context.Context, trade domain.Trade) {
	im.refreshTradeCount(ctx)

	im.mu.RLock()
	listeners := slices.Clone(im.listeners)
	im.mu.RUnlock()
	for _, fn := range listeners {
		fn(trade)
	}
}

func (im *Importer) refreshTradeCount(ctx context.Context) {
	list, err := im.store.List(ctx)
	if err != nil {
		im.logger.Warn("list trades failed", "error", err)
		return
	}
	im.metrics.TradesLoaded.Set(float64(len(list)))
}

func parseLimited(r io.Reader, trade domain.Trade) (*domain.Dataset, error) {
	lr := &io.LimitedReader{R: r, N: csvio.MaxUploadBytes + 1}
	ds, err := csvio.Parse(lr, trade)
	if lr.N <= 0 {
		return nil, ErrTooLarge
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCSV, err)
	}
	return ds, nil
}

func stateStrings(codes []domain.StateCode) []string {
	if len(codes) == 0 {
		return nil
	}
	out := make([]string, len(codes))
	for i, c := range codes {
		out[i] = string(c)
	}
	return out
}
