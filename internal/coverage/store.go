// Package coverage tracks which date ranges have already been fetched
// for each symbol, and computes the gaps left in a requested window.
package coverage

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"nseingest/internal/dateutil"
	"nseingest/internal/models"
)

// Store holds the per-symbol coverage metadata for a run. It is loaded
// once, mutated in memory while symbols are processed, and saved once
// at the end.
type Store struct {
	path    string
	records map[string]*models.CoverageRecord
	order   []string
	logger  zerolog.Logger
}

// Load reads the coverage metadata file. A missing or malformed file is
// treated as empty with a warning, never an error.
func Load(path string, logger zerolog.Logger) *Store {
	s := &Store{
		path:    path,
		records: make(map[string]*models.CoverageRecord),
		logger:  logger,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn().Err(err).Str("path", path).Msg("failed to read metadata file, starting empty")
		}
		return s
	}

	var entries []models.CoverageRecord
	if err := json.Unmarshal(data, &entries); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("malformed metadata file, starting empty")
		return s
	}

	for i := range entries {
		rec := entries[i]
		if _, ok := s.records[rec.Symbol]; !ok {
			s.order = append(s.order, rec.Symbol)
		}
		s.records[rec.Symbol] = &rec
	}
	return s
}

// Get returns the coverage record for a symbol, or nil if none exists.
func (s *Store) Get(symbol string) *models.CoverageRecord {
	return s.records[symbol]
}

// All returns the coverage records in insertion order.
func (s *Store) All() []models.CoverageRecord {
	out := make([]models.CoverageRecord, 0, len(s.order))
	for _, sym := range s.order {
		out = append(out, *s.records[sym])
	}
	return out
}

// Symbols returns the tracked symbols sorted alphabetically.
func (s *Store) Symbols() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	sort.Strings(out)
	return out
}

// Upsert records the observed coverage for a symbol after a fetch pass.
// earliestObserved and latestObserved are the min and max trade dates in
// the symbol's persisted price data; either may be zero when no data has
// been fetched. Existing entries are mutated in place, new symbols are
// appended. Entries are never removed.
func (s *Store) Upsert(symbol string, listingDate string, earliestObserved, latestObserved, now time.Time) {
	listing := dateutil.ResolveOrDefault(listingDate, dateutil.FloorDate, s.logger)
	floor, _ := dateutil.Parse(dateutil.FloorDate, dateutil.ISO)

	start := dateutil.Max(listing, floor)
	if !earliestObserved.IsZero() {
		start = dateutil.Min(start, earliestObserved)
	}

	var end time.Time
	if !latestObserved.IsZero() {
		end = latestObserved
	}
	// A symbol listed after its last observed trade has not started
	// trading yet; mark coverage as extending to the listing date so
	// later runs don't retry a window with no data in it.
	if !end.IsZero() && listing.After(end) {
		end = listing
	}
	if end.IsZero() && listing.After(now) {
		end = listing
	}

	rec := s.records[symbol]
	if rec == nil {
		rec = &models.CoverageRecord{Symbol: symbol}
		s.records[symbol] = rec
		s.order = append(s.order, symbol)
	}
	rec.ListingDate = dateutil.FormatISO(listing)
	rec.StartDate = dateutil.FormatISO(start)
	if end.IsZero() {
		rec.EndDate = ""
	} else {
		rec.EndDate = dateutil.FormatISO(end)
	}
}

// Save writes the metadata file atomically via a temp file rename.
func (s *Store) Save() error {
	data, err := json.MarshalIndent(s.All(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace metadata file: %w", err)
	}
	return nil
}
