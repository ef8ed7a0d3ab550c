// Package ingest orchestrates the batch price ingestion pipeline: fetch
// the index constituents, fill per-symbol coverage gaps in bounded
// chunks, merge into the price files, rebuild coverage metadata and load
// the result into the database.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"nseingest/internal/config"
	"nseingest/internal/coverage"
	"nseingest/internal/dateutil"
	"nseingest/internal/models"
	"nseingest/internal/pricestore"
)

// Fetcher is the remote market-data provider.
type Fetcher interface {
	FetchIndexConstituents(ctx context.Context, indexName string) ([]models.IndexEntry, error)
	FetchPriceHistory(ctx context.Context, symbol string, from, to time.Time) ([]models.PriceRecord, error)
}

// Repository is the relational store the pipeline loads into.
type Repository interface {
	UpsertStock(ctx context.Context, stock *models.Stock) (int, error)
	UpsertPrice(ctx context.Context, stockID int, price *models.StockPrice) error
}

// Publisher emits pipeline lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, event models.IngestEvent) error
}

// Summary is the per-run outcome logged and published at completion.
type Summary struct {
	SymbolsProcessed int `json:"symbols_processed"`
	SymbolsErrored   int `json:"symbols_errored"`
	RecordsFetched   int `json:"records_fetched"`
}

// Pipeline runs one ingestion pass. Symbols are processed strictly one
// at a time; the coverage metadata is loaded once, mutated in memory and
// saved once at the end.
type Pipeline struct {
	cfg       *config.Config
	fetcher   Fetcher
	repo      Repository
	publisher Publisher
	logger    zerolog.Logger
	now       func() time.Time
}

// Option configures optional pipeline collaborators.
type Option func(*Pipeline)

// WithRepository enables the database load step.
func WithRepository(repo Repository) Option {
	return func(p *Pipeline) {
		p.repo = repo
	}
}

// WithPublisher enables lifecycle event publishing.
func WithPublisher(pub Publisher) Option {
	return func(p *Pipeline) {
		p.publisher = pub
	}
}

// WithClock overrides the pipeline's notion of "today".
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// New creates a pipeline. The repository and publisher are optional;
// without them the corresponding steps are skipped.
func New(cfg *config.Config, fetcher Fetcher, logger zerolog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:     cfg,
		fetcher: fetcher,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes the full pipeline. A failure to fetch the index list is
// fatal; everything after that makes maximal forward progress, with
// per-symbol and per-chunk failures logged and skipped.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	summary := Summary{}
	p.logger.Info().Str("index", p.cfg.IndexName).Msg("starting ingestion run")

	entries, err := p.fetchStockList(ctx)
	if err != nil {
		return summary, err
	}

	symbols, bySymbol := p.extractSymbols(entries)
	if err := p.saveSymbols(symbols); err != nil {
		return summary, err
	}

	store := coverage.Load(p.cfg.MetadataFile, p.logger)

	for _, symbol := range symbols {
		fetched, err := p.processSymbol(ctx, symbol, bySymbol[symbol], store)
		if err != nil {
			p.logger.Error().Err(err).Str("symbol", symbol).Msg("failed to process symbol")
			summary.SymbolsErrored++
			continue
		}
		summary.SymbolsProcessed++
		summary.RecordsFetched += fetched
		p.publish(ctx, models.IngestEvent{
			EventType: models.EventSymbolIngested,
			Symbol:    symbol,
			Records:   fetched,
			Timestamp: p.now().UTC(),
		})
	}

	if err := p.transformStep(); err != nil {
		p.logger.Error().Err(err).Msg("transform step failed")
	}

	p.rebuildMetadata(symbols, bySymbol, store)
	if err := store.Save(); err != nil {
		p.logger.Error().Err(err).Msg("failed to save coverage metadata")
	}

	if p.repo != nil {
		p.loadDatabase(ctx, symbols, bySymbol)
	}

	p.publish(ctx, models.IngestEvent{
		EventType: models.EventRunCompleted,
		Processed: summary.SymbolsProcessed,
		Errored:   summary.SymbolsErrored,
		Timestamp: p.now().UTC(),
	})

	p.logger.Info().
		Int("processed", summary.SymbolsProcessed).
		Int("errored", summary.SymbolsErrored).
		Int("records", summary.RecordsFetched).
		Msg("ingestion run completed")
	return summary, nil
}

// fetchStockList retrieves the index constituents and persists the raw
// list for the transform step.
func (p *Pipeline) fetchStockList(ctx context.Context) ([]models.IndexEntry, error) {
	entries, err := p.fetcher.FetchIndexConstituents(ctx, p.cfg.IndexName)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch stock list: %w", err)
	}

	data, err := json.MarshalIndent(stockListFile{Data: entries}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal stock list: %w", err)
	}
	path := p.cfg.StockListPath()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write stock list: %w", err)
	}
	p.logger.Info().Str("path", path).Int("entries", len(entries)).Msg("saved stock list")
	return entries, nil
}

// extractSymbols keeps the priority-0 constituents (actual instruments,
// not the index aggregate row) and normalizes their symbols to uppercase.
func (p *Pipeline) extractSymbols(entries []models.IndexEntry) ([]string, map[string]models.IndexEntry) {
	var symbols []string
	bySymbol := make(map[string]models.IndexEntry)
	for _, entry := range entries {
		if entry.Priority() != 0 {
			continue
		}
		symbol := strings.ToUpper(entry.Symbol())
		if symbol == "" {
			continue
		}
		if _, seen := bySymbol[symbol]; seen {
			continue
		}
		symbols = append(symbols, symbol)
		bySymbol[symbol] = entry
	}
	return symbols, bySymbol
}

func (p *Pipeline) saveSymbols(symbols []string) error {
	if symbols == nil {
		symbols = []string{}
	}
	data, err := json.MarshalIndent(symbols, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal symbol list: %w", err)
	}
	if err := os.WriteFile(p.cfg.OutputPaths.StockNames, data, 0o644); err != nil {
		return fmt.Errorf("failed to write symbol list: %w", err)
	}
	p.logger.Info().Int("symbols", len(symbols)).Str("path", p.cfg.OutputPaths.StockNames).Msg("saved symbol list")
	return nil
}

// processSymbol fetches the symbol's missing ranges chunk by chunk and
// merges each chunk into the price file as soon as it arrives, so a
// later chunk failure cannot lose earlier data. It returns the number of
// newly fetched records.
func (p *Pipeline) processSymbol(ctx context.Context, symbol string, entry models.IndexEntry, store *coverage.Store) (int, error) {
	today := p.now()

	from := dateutil.ResolveOrDefault(p.cfg.PriceFetchSettings.FromDate, dateutil.FloorDate, p.logger)
	to := dateutil.ResolveOrDefault(p.cfg.PriceFetchSettings.ToDate, dateutil.FormatISO(today), p.logger)

	listing := p.listingDate(symbol, entry, store)
	effectiveStart := dateutil.Max(from, listing)
	effectiveEnd := dateutil.Min(to, today)

	if effectiveStart.After(effectiveEnd) {
		p.logger.Info().Str("symbol", symbol).
			Str("listing_date", dateutil.FormatISO(listing)).
			Msg("no valid date range for symbol")
		return 0, nil
	}

	var fetchedStart, fetchedEnd time.Time
	if rec := store.Get(symbol); rec != nil {
		var err error
		if fetchedStart, err = dateutil.Parse(rec.StartDate, dateutil.ISO); err != nil {
			p.logger.Warn().Err(err).Str("symbol", symbol).Msg("invalid start_date in metadata, treating as no data")
		}
		if fetchedEnd, err = dateutil.Parse(rec.EndDate, dateutil.ISO); err != nil {
			p.logger.Warn().Err(err).Str("symbol", symbol).Msg("invalid end_date in metadata, treating as no data")
		}
	}

	gaps := coverage.MissingRanges(effectiveStart, effectiveEnd, fetchedStart, fetchedEnd)
	if len(gaps) == 0 {
		p.logger.Info().Str("symbol", symbol).
			Str("from", dateutil.FormatISO(effectiveStart)).
			Str("to", dateutil.FormatISO(effectiveEnd)).
			Msg("data already up to date")
		return 0, nil
	}

	path := pricestore.Path(p.cfg.OutputPaths.StockPrices, symbol)
	fetched, attempted, failed := 0, 0, 0
	for _, gap := range gaps {
		for _, chunk := range Chunks(gap.Start, gap.End, maxChunkDays) {
			attempted++
			records, err := p.fetcher.FetchPriceHistory(ctx, symbol, chunk.Start, chunk.End)
			if err != nil {
				failed++
				p.logger.Warn().Err(err).Str("symbol", symbol).
					Str("from", dateutil.FormatISO(chunk.Start)).
					Str("to", dateutil.FormatISO(chunk.End)).
					Msg("chunk fetch failed, skipping")
				continue
			}
			if len(records) == 0 {
				continue
			}
			if _, err := pricestore.Merge(path, records, p.logger); err != nil {
				failed++
				p.logger.Warn().Err(err).Str("symbol", symbol).Msg("chunk merge failed, skipping")
				continue
			}
			fetched += len(records)
		}
	}
	if attempted > 0 && failed == attempted {
		return 0, fmt.Errorf("all %d chunks failed for %s", attempted, symbol)
	}
	return fetched, nil
}

// listingDate resolves a symbol's listing date, preferring recorded
// metadata over the index entry, falling back to the global floor.
func (p *Pipeline) listingDate(symbol string, entry models.IndexEntry, store *coverage.Store) time.Time {
	raw := ""
	if rec := store.Get(symbol); rec != nil && rec.ListingDate != "" {
		raw = rec.ListingDate
	} else if entry != nil {
		raw = entry.ListingDate()
	}
	return dateutil.ResolveOrDefault(raw, dateutil.FloorDate, p.logger)
}

func (p *Pipeline) transformStep() error {
	return TransformStockList(p.cfg.StockListPath(), p.cfg.OutputPaths.TransformedStockList, p.logger)
}

// rebuildMetadata recomputes each symbol's coverage record from the
// dates actually present in its price file.
func (p *Pipeline) rebuildMetadata(symbols []string, bySymbol map[string]models.IndexEntry, store *coverage.Store) {
	now := p.now()
	for _, symbol := range symbols {
		path := pricestore.Path(p.cfg.OutputPaths.StockPrices, symbol)
		records := pricestore.Load(path, p.logger)
		earliest, latest := pricestore.MinMaxDates(records)

		listing := ""
		if entry := bySymbol[symbol]; entry != nil {
			listing = entry.ListingDate()
		}
		store.Upsert(symbol, listing, earliest, latest, now)
	}
	p.logger.Info().Int("symbols", len(symbols)).Msg("rebuilt coverage metadata")
}

// loadDatabase upserts every symbol and its price records. A failed
// record is logged and skipped; it never blocks the rest of the batch.
func (p *Pipeline) loadDatabase(ctx context.Context, symbols []string, bySymbol map[string]models.IndexEntry) {
	for _, symbol := range symbols {
		entry := bySymbol[symbol]
		if entry == nil {
			continue
		}
		stock, err := FlattenEntry(entry).ToStock()
		if err != nil {
			p.logger.Error().Err(err).Str("symbol", symbol).Msg("failed to map stock entry")
			continue
		}

		stockID, err := p.repo.UpsertStock(ctx, stock)
		if err != nil {
			p.logger.Error().Err(err).Str("symbol", symbol).Msg("failed to upsert stock")
			continue
		}

		records := pricestore.Load(pricestore.Path(p.cfg.OutputPaths.StockPrices, symbol), p.logger)
		upserted, failed := 0, 0
		for _, record := range records {
			price, err := models.NewStockPriceFromRecord(symbol, record)
			if err != nil {
				failed++
				p.logger.Warn().Err(err).Str("symbol", symbol).Msg("skipping unmappable price record")
				continue
			}
			if err := p.repo.UpsertPrice(ctx, stockID, price); err != nil {
				failed++
				p.logger.Warn().Err(err).Str("symbol", symbol).
					Str("trade_date", dateutil.FormatISO(price.TradeDate)).
					Msg("failed to upsert price record")
				continue
			}
			upserted++
		}
		p.logger.Info().Str("symbol", symbol).
			Int("upserted", upserted).
			Int("failed", failed).
			Msg("loaded price records into database")
	}
}

func (p *Pipeline) publish(ctx context.Context, event models.IngestEvent) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(ctx, event); err != nil {
		p.logger.Warn().Err(err).Str("event", event.EventType).Msg("failed to publish event")
	}
}
