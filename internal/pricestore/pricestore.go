// Package pricestore persists per-symbol price history as JSON files
// and merges newly fetched records into existing ones.
package pricestore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"nseingest/internal/models"
)

// Path resolves the price file path template for a symbol. The symbol
// placeholder is substituted uppercase and the whole path is lowercased,
// matching the layout of existing data directories.
func Path(template, symbol string) string {
	return strings.ToLower(strings.ReplaceAll(template, "{symbol}", strings.ToUpper(symbol)))
}

// wrapper is the alternate on-disk shape some earlier writers produced.
type wrapper struct {
	Data []models.PriceRecord `json:"data"`
}

// Load reads a per-symbol price file. Both a bare array and a
// {"data": [...]} wrapper are accepted. A missing or malformed file is
// treated as empty with a warning.
func Load(path string, logger zerolog.Logger) []models.PriceRecord {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn().Err(err).Str("path", path).Msg("failed to read price file, treating as empty")
		}
		return nil
	}
	records, err := decodeRecords(data)
	if err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("malformed price file, treating as empty")
		return nil
	}
	return records
}

func decodeRecords(data []byte) ([]models.PriceRecord, error) {
	var records []models.PriceRecord
	if err := decodeJSON(data, &records); err == nil {
		return records, nil
	}

	var w wrapper
	if err := decodeJSON(data, &w); err != nil {
		return nil, fmt.Errorf("unrecognized price file shape: %w", err)
	}
	return w.Data, nil
}

// decodeJSON unmarshals with UseNumber so numeric literals survive a
// re-encode unchanged, which the dedup key depends on.
func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// MergeRecords appends records from incoming that are not already
// present in existing, using whole-record equality. Existing records
// keep their order; duplicates inside incoming collapse to one.
func MergeRecords(existing, incoming []models.PriceRecord) []models.PriceRecord {
	seen := make(map[string]struct{}, len(existing))
	merged := make([]models.PriceRecord, 0, len(existing)+len(incoming))

	for _, rec := range existing {
		key, err := canonicalKey(rec)
		if err != nil {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, rec)
	}
	for _, rec := range incoming {
		key, err := canonicalKey(rec)
		if err != nil {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, rec)
	}
	return merged
}

// canonicalKey serializes a record with sorted keys so field order in
// the source JSON does not affect equality.
func canonicalKey(rec models.PriceRecord) (string, error) {
	data, err := json.Marshal(map[string]any(rec))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Merge loads the existing price file for path, merges incoming into it
// and writes the result back atomically. It returns the full merged
// record set.
func Merge(path string, incoming []models.PriceRecord, logger zerolog.Logger) ([]models.PriceRecord, error) {
	existing := Load(path, logger)
	merged := MergeRecords(existing, incoming)

	if err := Save(path, merged); err != nil {
		return nil, err
	}
	logger.Debug().Str("path", path).
		Int("existing", len(existing)).
		Int("incoming", len(incoming)).
		Int("merged", len(merged)).
		Msg("merged price records")
	return merged, nil
}

// Save writes records to path as a bare JSON array via a temp file
// rename, creating parent directories as needed.
func Save(path string, records []models.PriceRecord) error {
	if records == nil {
		records = []models.PriceRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal price records: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create price directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write price file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace price file: %w", err)
	}
	return nil
}

// MinMaxDates returns the earliest and latest trade dates across
// records. Records without a parseable timestamp are skipped; both
// results are zero when nothing qualifies.
func MinMaxDates(records []models.PriceRecord) (time.Time, time.Time) {
	var min, max time.Time
	for _, rec := range records {
		d := rec.TradeDate()
		if d.IsZero() {
			continue
		}
		if min.IsZero() || d.Before(min) {
			min = d
		}
		if max.IsZero() || d.After(max) {
			max = d
		}
	}
	return min, max
}
