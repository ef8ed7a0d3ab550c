package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nseingest/internal/config"
	"nseingest/internal/coverage"
	"nseingest/internal/models"
	"nseingest/internal/pricestore"
)

type fakeFetcher struct {
	entries      []models.IndexEntry
	history      []models.PriceRecord
	historyErr   error
	historyCalls int
}

func (f *fakeFetcher) FetchIndexConstituents(ctx context.Context, indexName string) ([]models.IndexEntry, error) {
	return f.entries, nil
}

func (f *fakeFetcher) FetchPriceHistory(ctx context.Context, symbol string, from, to time.Time) ([]models.PriceRecord, error) {
	f.historyCalls++
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.history, nil
}

type fakeRepo struct {
	stocks []*models.Stock
	prices []*models.StockPrice
}

func (r *fakeRepo) UpsertStock(ctx context.Context, stock *models.Stock) (int, error) {
	r.stocks = append(r.stocks, stock)
	return len(r.stocks), nil
}

func (r *fakeRepo) UpsertPrice(ctx context.Context, stockID int, price *models.StockPrice) error {
	r.prices = append(r.prices, price)
	return nil
}

type fakePublisher struct {
	events []models.IngestEvent
}

func (p *fakePublisher) Publish(ctx context.Context, event models.IngestEvent) error {
	p.events = append(p.events, event)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		IndexName: "NIFTY 50",
		OutputPaths: config.OutputPaths{
			StockList:            "stock_list_{index_name}.json",
			TransformedStockList: "transformed_stock_list.json",
			StockPrices:          "prices/{symbol}.json",
			StockNames:           "stock_names.json",
		},
		PriceFetchSettings: config.PriceFetchSettings{
			FromDate: "2023-01-01",
			ToDate:   "2023-06-30",
		},
		MetadataFile: "symbol_metadata.json",
	}
}

func testEntries() []models.IndexEntry {
	return []models.IndexEntry{
		{"symbol": "NIFTY 50", "priority": 1},
		{"symbol": "TCS", "priority": 0, "meta": map[string]any{
			"listingDate": "2004-08-25",
			"companyName": "Tata Consultancy Services Limited",
			"isin":        "INE467B01029",
		}},
	}
}

func testRecords() []models.PriceRecord {
	return []models.PriceRecord{
		{"CH_TIMESTAMP": "2023-06-29", "CH_CLOSING_PRICE": json.Number("3290.0")},
		{"CH_TIMESTAMP": "2023-06-30", "CH_CLOSING_PRICE": json.Number("3301.5")},
	}
}

var fixedNow = func() time.Time {
	return time.Date(2023, 6, 30, 12, 0, 0, 0, time.UTC)
}

func TestPipelineRun(t *testing.T) {
	t.Chdir(t.TempDir())
	logger := zerolog.Nop()
	cfg := testConfig()
	fetcher := &fakeFetcher{entries: testEntries(), history: testRecords()}
	repo := &fakeRepo{}
	pub := &fakePublisher{}

	p := New(cfg, fetcher, logger, WithRepository(repo), WithPublisher(pub), WithClock(fixedNow))
	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.SymbolsProcessed)
	assert.Equal(t, 0, summary.SymbolsErrored)
	assert.Equal(t, 2, summary.RecordsFetched)

	t.Run("index aggregate row excluded", func(t *testing.T) {
		data, err := os.ReadFile("stock_names.json")
		require.NoError(t, err)
		var symbols []string
		require.NoError(t, json.Unmarshal(data, &symbols))
		assert.Equal(t, []string{"TCS"}, symbols)
	})

	t.Run("price file written", func(t *testing.T) {
		records := pricestore.Load("prices/tcs.json", logger)
		assert.Len(t, records, 2)
	})

	t.Run("stock list transformed with backup", func(t *testing.T) {
		assert.FileExists(t, "stock_list_NIFTY_50.json.backup")
		data, err := os.ReadFile("transformed_stock_list.json")
		require.NoError(t, err)
		var list stockListFile
		require.NoError(t, json.Unmarshal(data, &list))
		require.Len(t, list.Data, 2)
	})

	t.Run("coverage metadata rebuilt", func(t *testing.T) {
		store := coverage.Load("symbol_metadata.json", logger)
		rec := store.Get("TCS")
		require.NotNil(t, rec)
		assert.Equal(t, "2004-08-25", rec.ListingDate)
		assert.Equal(t, "2015-01-01", rec.StartDate)
		assert.Equal(t, "2023-06-30", rec.EndDate)
	})

	t.Run("database loaded", func(t *testing.T) {
		require.Len(t, repo.stocks, 1)
		assert.Equal(t, "TCS", repo.stocks[0].Symbol)
		assert.Equal(t, "Tata Consultancy Services Limited", repo.stocks[0].CompanyName)
		require.Len(t, repo.prices, 2)
		assert.Equal(t, "2023-06-30", repo.prices[1].TradeDate.Format("2006-01-02"))
	})

	t.Run("events published", func(t *testing.T) {
		require.Len(t, pub.events, 2)
		assert.Equal(t, models.EventSymbolIngested, pub.events[0].EventType)
		assert.Equal(t, "TCS", pub.events[0].Symbol)
		assert.Equal(t, 2, pub.events[0].Records)
		assert.Equal(t, models.EventRunCompleted, pub.events[1].EventType)
		assert.Equal(t, 1, pub.events[1].Processed)
	})

	t.Run("second run fetches nothing new", func(t *testing.T) {
		before := fetcher.historyCalls
		summary, err := p.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, before, fetcher.historyCalls)
		assert.Equal(t, 1, summary.SymbolsProcessed)
		assert.Equal(t, 0, summary.RecordsFetched)
	})
}

func TestPipelineRunChunkFailures(t *testing.T) {
	t.Chdir(t.TempDir())
	logger := zerolog.Nop()
	cfg := testConfig()
	fetcher := &fakeFetcher{entries: testEntries(), historyErr: errors.New("connection reset")}

	p := New(cfg, fetcher, logger, WithClock(fixedNow))
	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, summary.SymbolsProcessed)
	assert.Equal(t, 1, summary.SymbolsErrored)

	// a failed symbol keeps end_date unset so the next run retries it
	store := coverage.Load("symbol_metadata.json", logger)
	rec := store.Get("TCS")
	require.NotNil(t, rec)
	assert.Empty(t, rec.EndDate)
}

func TestPipelineRunFutureListedSymbol(t *testing.T) {
	t.Chdir(t.TempDir())
	logger := zerolog.Nop()
	cfg := testConfig()
	entries := []models.IndexEntry{
		{"symbol": "FUTURE", "priority": 0, "meta": map[string]any{"listingDate": "2024-05-01"}},
	}
	fetcher := &fakeFetcher{entries: entries}

	p := New(cfg, fetcher, logger, WithClock(fixedNow))
	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.SymbolsProcessed)
	assert.Equal(t, 0, fetcher.historyCalls)
}
