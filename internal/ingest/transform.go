package ingest

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"nseingest/internal/models"
)

// stockListFile is the on-disk shape of the raw and transformed stock
// list files.
type stockListFile struct {
	Data []models.IndexEntry `json:"data"`
}

// FlattenEntry lifts the keys of a nested "meta" object up to the top
// level with a meta_ prefix. All other keys are kept as is.
func FlattenEntry(entry models.IndexEntry) models.IndexEntry {
	flattened := make(models.IndexEntry, len(entry))
	for key, value := range entry {
		if key == "meta" {
			if meta, ok := value.(map[string]any); ok {
				for mkey, mval := range meta {
					flattened["meta_"+mkey] = mval
				}
				continue
			}
		}
		flattened[key] = value
	}
	return flattened
}

// TransformStockList reads the raw stock list file, backs it up
// alongside the original, flattens every entry and writes the result to
// outputPath.
func TransformStockList(inputPath, outputPath string, logger zerolog.Logger) error {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("failed to read stock list %s: %w", inputPath, err)
	}

	var list stockListFile
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("failed to parse stock list %s: %w", inputPath, err)
	}

	backupPath := inputPath + ".backup"
	if err := os.WriteFile(backupPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to back up stock list: %w", err)
	}
	logger.Info().Str("path", backupPath).Msg("backed up raw stock list")

	flattened := stockListFile{Data: make([]models.IndexEntry, 0, len(list.Data))}
	for _, entry := range list.Data {
		flattened.Data = append(flattened.Data, FlattenEntry(entry))
	}

	out, err := json.MarshalIndent(flattened, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal transformed stock list: %w", err)
	}
	if err := os.WriteFile(outputPath, out, 0o644); err != nil {
		return fmt.Errorf("failed to write transformed stock list: %w", err)
	}

	logger.Info().Str("path", outputPath).Int("entries", len(flattened.Data)).Msg("transformed stock list")
	return nil
}
