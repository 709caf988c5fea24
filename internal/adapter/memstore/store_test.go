package memstore

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/insurance-maps/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDataset(trade domain.Trade, states ...domain.StateCode) *domain.Dataset {
	ds := domain.NewDataset(trade, "5437")
	ds.UpdatedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, code := range states {
		ds.Records[code] = domain.StateRecord{
			State:           code,
			PremiumLow:      decimal.RequireFromString("2.8"),
			PremiumHigh:     decimal.RequireFromString("5.0"),
			Savings:         decimal.RequireFromString("19"),
			Competitiveness: 75,
			WCRates:         map[string]decimal.Decimal{"5437": decimal.RequireFromString("8.98")},
		}
	}
	return ds
}

func TestStore_SaveGet(t *testing.T) {
	ctx := context.Background()
	s := New("")

	require.NoError(t, s.Save(ctx, testDataset("carpenter", "GA", "NC")))

	got, err := s.Get(ctx, "carpenter")
	require.NoError(t, err)
	assert.Len(t, got.Records, 2)
	assert.Equal(t, []string{"5437"}, got.ClassCodes)
}

func TestStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := New("")
	require.NoError(t, s.Save(ctx, testDataset("carpenter", "GA")))

	got, err := s.Get(ctx, "carpenter")
	require.NoError(t, err)
	delete(got.Records, "GA")
	got.Records["NC"] = domain.StateRecord{State: "NC"}

	again, err := s.Get(ctx, "carpenter")
	require.NoError(t, err)
	assert.Contains(t, again.Records, domain.StateCode("GA"))
	assert.NotContains(t, again.Records, domain.StateCode("NC"))
}

func TestStore_SaveReplacesWholeTrade(t *testing.T) {
	ctx := context.Background()
	s := New("")
	require.NoError(t, s.Save(ctx, testDataset("carpenter", "GA", "NC", "LA")))
	require.NoError(t, s.Save(ctx, testDataset("carpenter", "TX")))

	got, err := s.Get(ctx, "carpenter")
	require.NoError(t, err)
	assert.Len(t, got.Records, 1)
	assert.Contains(t, got.Records, domain.StateCode("TX"))
}

func TestStore_NotFound(t *testing.T) {
	ctx := context.Background()
	s := New("")

	_, err := s.Get(ctx, "plumber")
	assert.ErrorIs(t, err, domain.ErrTradeNotFound)

	_, err = s.Delete(ctx, "plumber")
	assert.ErrorIs(t, err, domain.ErrTradeNotFound)
}

func TestStore_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	s := New("")
	require.NoError(t, s.Save(ctx, testDataset("plumber", "TX")))
	require.NoError(t, s.Save(ctx, testDataset("carpenter", "GA", "NC")))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, domain.Trade("carpenter"), list[0].Trade)
	assert.Equal(t, 2, list[0].States)
	assert.Equal(t, domain.Trade("plumber"), list[1].Trade)

	n, err := s.Delete(ctx, "carpenter")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	list, err = s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestStore_PersistenceRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "datasets.json")

	s := New(path)
	require.NoError(t, s.Save(ctx, testDataset("carpenter", "GA", "NC")))
	require.NoError(t, s.Save(ctx, testDataset("plumber", "TX")))
	_, err := s.Delete(ctx, "plumber")
	require.NoError(t, err)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")

	restored := New(path)
	require.NoError(t, restored.Load())

	got, err := restored.Get(ctx, "carpenter")
	require.NoError(t, err)
	assert.Len(t, got.Records, 2)
	assert.True(t, got.Records["GA"].WCRates["5437"].Equal(decimal.RequireFromString("8.98")))
	assert.True(t, got.UpdatedAt.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)))

	_, err = restored.Get(ctx, "plumber")
	assert.ErrorIs(t, err, domain.ErrTradeNotFound)
}

func TestStore_LoadMissingFile(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, s.Load())

	list, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStore_LoadCleansStaleTemp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "datasets.json")
	require.NoError(t, os.WriteFile(path+".tmp", []byte("{garbage"), 0o600))

	require.NoError(t, New(path).Load())
	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestStore_LoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "datasets.json")
	require.NoError(t, os.WriteFile(path, []byte("{garbage"), 0o600))

	assert.Error(t, New(path).Load())
}

func TestStore_LoadNullDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "datasets.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"datasets":{"carpenter":null}}`), 0o600))

	err := New(path).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"carpenter"`)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := New("")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.Save(ctx, testDataset("carpenter", "GA"))
		}()
		go func() {
			defer wg.Done()
			_, _ = s.Get(ctx, "carpenter")
			_, _ = s.List(ctx)
		}()
	}
	wg.Wait()

	got, err := s.Get(ctx, "carpenter")
	require.NoError(t, err)
	assert.Len(t, got.Records, 1)
}
