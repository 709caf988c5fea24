package ingest_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/insurance-maps/internal/adapter/memstore"
	"github.com/couchcryptid/insurance-maps/internal/csvio"
	"github.com/couchcryptid/insurance-maps/internal/domain"
	"github.com/couchcryptid/insurance-maps/internal/ingest"
	"github.com/couchcryptid/insurance-maps/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const smallCSV = `State,GL_Premium_Low,GL_Premium_High,GL_Savings,GL_Competitiveness,WC_Rate_5437,WC_Rate_5645
GA,2.8,5.0,19,75,8.98,43.42
NC,0.6,1.9,12,60,5.60,
`

// --- mocks ---

type recordingPublisher struct {
	mu      sync.Mutex
	updated []domain.TradeUpdated
	deleted []domain.TradeDeleted
	err     error
}

func (p *recordingPublisher) PublishTradeUpdated(_ context.Context, ev domain.TradeUpdated) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updated = append(p.updated, ev)
	return p.err
}

func (p *recordingPublisher) PublishTradeDeleted(_ context.Context, ev domain.TradeDeleted) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, ev)
	return p.err
}

type failingStore struct {
	*memstore.Store
}

func (failingStore) Save(context.Context, *domain.Dataset) error {
	return errors.New("disk full")
}

func (failingStore) Ping(context.Context) error {
	return errors.New("connection refused")
}

func newImporter(t *testing.T, store ingest.Store, pub ingest.Publisher) (*ingest.Importer, *observability.Metrics) {
	t.Helper()
	m := observability.NewMetricsForTesting()
	return ingest.New(store, pub, slog.Default(), m), m
}

func freezeClock(t *testing.T) time.Time {
	t.Helper()
	now := time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(now))
	t.Cleanup(func() { domain.SetClock(nil) })
	return now
}

// --- tests ---

func TestImport_StoresAndPublishes(t *testing.T) {
	now := freezeClock(t)
	store := memstore.New("")
	pub := &recordingPublisher{}
	im, m := newImporter(t, store, pub)

	var changed []domain.Trade
	im.OnChange(func(tr domain.Trade) { changed = append(changed, tr) })

	res, err := im.Import(context.Background(), "carpenter", strings.NewReader(smallCSV))
	require.NoError(t, err)

	assert.Equal(t, domain.Trade("carpenter"), res.Trade)
	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, []string{"5437", "5645"}, res.ClassCodes)
	assert.Len(t, res.Missing, 48)
	assert.Equal(t, now, res.ImportedAt)
	assert.NotEmpty(t, res.ImportID)

	ds, err := store.Get(context.Background(), "carpenter")
	require.NoError(t, err)
	assert.Len(t, ds.Records, 2)
	assert.Equal(t, now, ds.UpdatedAt)

	require.Len(t, pub.updated, 1)
	ev := pub.updated[0]
	assert.Equal(t, res.ImportID, ev.ImportID)
	assert.Equal(t, 2, ev.States)
	assert.Len(t, ev.Missing, 48)
	assert.Equal(t, now, ev.ImportedAt)

	assert.Equal(t, []domain.Trade{"carpenter"}, changed)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ImportsTotal.WithLabelValues("success")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.RowsImported), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.TradesLoaded), 0)
}

func TestImport_InvalidCSVKeepsPreviousDataset(t *testing.T) {
	store := memstore.New("")
	pub := &recordingPublisher{}
	im, m := newImporter(t, store, pub)

	_, err := im.Import(context.Background(), "carpenter", strings.NewReader(smallCSV))
	require.NoError(t, err)

	bad := strings.Replace(smallCSV, "NC,0.6,1.9,12", "NC,0.6,1.9,120", 1)
	_, err = im.Import(context.Background(), "carpenter", strings.NewReader(bad))
	require.Error(t, err)
	assert.ErrorIs(t, err, ingest.ErrInvalidCSV)

	var rowErr *csvio.RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, 3, rowErr.Line)

	ds, err := store.Get(context.Background(), "carpenter")
	require.NoError(t, err)
	assert.Equal(t, "12", ds.Records["NC"].Savings.String())

	assert.Len(t, pub.updated, 1)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ImportsTotal.WithLabelValues("invalid")), 0)
}

func TestImport_InvalidTrade(t *testing.T) {
	im, _ := newImporter(t, memstore.New(""), nil)

	_, err := im.Import(context.Background(), "Carpenter2", strings.NewReader(smallCSV))
	assert.ErrorIs(t, err, domain.ErrInvalidTrade)
}

func TestImport_TooLarge(t *testing.T) {
	im, _ := newImporter(t, memstore.New(""), nil)

	body := smallCSV + strings.Repeat("x", csvio.MaxUploadBytes)
	_, err := im.Import(context.Background(), "carpenter", strings.NewReader(body))
	assert.ErrorIs(t, err, ingest.ErrTooLarge)
}

func TestImport_StoreFailure(t *testing.T) {
	pub := &recordingPublisher{}
	im, m := newImporter(t, failingStore{memstore.New("")}, pub)

	_, err := im.Import(context.Background(), "carpenter", strings.NewReader(smallCSV))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Empty(t, pub.updated)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ImportsTotal.WithLabelValues("error")), 0)
}

func TestImport_PublishFailureDoesNotFailImport(t *testing.T) {
	store := memstore.New("")
	pub := &recordingPublisher{err: errors.New("broker down")}
	im, _ := newImporter(t, store, pub)

	_, err := im.Import(context.Background(), "carpenter", strings.NewReader(smallCSV))
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "carpenter")
	assert.NoError(t, err)
}

func TestDelete(t *testing.T) {
	store := memstore.New("")
	pub := &recordingPublisher{}
	im, m := newImporter(t, store, pub)

	_, err := im.Import(context.Background(), "carpenter", strings.NewReader(smallCSV))
	require.NoError(t, err)

	n, err := im.Delete(context.Background(), "carpenter")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, pub.deleted, 1)
	assert.Equal(t, domain.Trade("carpenter"), pub.deleted[0].Trade)
	assert.Equal(t, 2, pub.deleted[0].Rows)
	assert.InDelta(t, 0, testutil.ToFloat64(m.TradesLoaded), 0)

	_, err = im.Delete(context.Background(), "carpenter")
	assert.ErrorIs(t, err, domain.ErrTradeNotFound)
	assert.Len(t, pub.deleted, 1)
}

func TestOnChange_NotifiesEveryListener(t *testing.T) {
	im, _ := newImporter(t, memstore.New(""), nil)

	var first, second []domain.Trade
	im.OnChange(func(tr domain.Trade) { first = append(first, tr) })
	im.OnChange(func(tr domain.Trade) { second = append(second, tr) })

	_, err := im.Import(context.Background(), "carpenter", strings.NewReader(smallCSV))
	require.NoError(t, err)
	_, err = im.Delete(context.Background(), "carpenter")
	require.NoError(t, err)

	want := []domain.Trade{"carpenter", "carpenter"}
	assert.Equal(t, want, first)
	assert.Equal(t, want, second)

	// Failed operations change nothing and notify no one.
	_, err = im.Delete(context.Background(), "carpenter")
	require.Error(t, err)
	assert.Len(t, first, 2)
}

func TestCheckReadiness(t *testing.T) {
	ok, _ := newImporter(t, memstore.New(""), nil)
	assert.NoError(t, ok.CheckReadiness(context.Background()))

	down, _ := newImporter(t, failingStore{memstore.New("")}, nil)
	err := down.CheckReadiness(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestSeed(t *testing.T) {
	store := memstore.New("")
	im, _ := newImporter(t, store, nil)

	seeded, err := im.Seed(context.Background(), "testdata/seed")
	require.NoError(t, err)
	assert.Equal(t, []domain.Trade{"carpenter"}, seeded)

	ds, err := store.Get(context.Background(), "carpenter")
	require.NoError(t, err)
	assert.Len(t, ds.Records, 50)

	// A second run leaves stored trades alone.
	seeded, err = im.Seed(context.Background(), "testdata/seed")
	require.NoError(t, err)
	assert.Empty(t, seeded)
}

func TestSeed_EmptyDir(t *testing.T) {
	im, _ := newImporter(t, memstore.New(""), nil)

	seeded, err := im.Seed(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, seeded)

	seeded, err = im.Seed(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, seeded)
}
