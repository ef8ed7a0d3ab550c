package ingest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nseingest/internal/models"
)

func TestFlattenEntry(t *testing.T) {
	t.Run("meta keys lifted with prefix", func(t *testing.T) {
		entry := models.IndexEntry{
			"symbol":   "TCS",
			"priority": 0,
			"meta": map[string]any{
				"listingDate": "2004-08-25",
				"companyName": "Tata Consultancy Services Limited",
			},
		}

		flat := FlattenEntry(entry)
		assert.Equal(t, "TCS", flat["symbol"])
		assert.Equal(t, "2004-08-25", flat["meta_listingDate"])
		assert.Equal(t, "Tata Consultancy Services Limited", flat["meta_companyName"])
		assert.NotContains(t, flat, "meta")
	})

	t.Run("entry without meta unchanged", func(t *testing.T) {
		entry := models.IndexEntry{"symbol": "NIFTY 50", "priority": 1}
		assert.Equal(t, entry, FlattenEntry(entry))
	})

	t.Run("non-object meta kept as is", func(t *testing.T) {
		entry := models.IndexEntry{"symbol": "X", "meta": "opaque"}
		assert.Equal(t, "opaque", FlattenEntry(entry)["meta"])
	})
}

func TestTransformStockList(t *testing.T) {
	logger := zerolog.Nop()

	t.Run("flattens and backs up", func(t *testing.T) {
		dir := t.TempDir()
		input := filepath.Join(dir, "stock_list.json")
		output := filepath.Join(dir, "transformed.json")

		raw := `{"data":[{"symbol":"TCS","priority":0,"meta":{"listingDate":"2004-08-25"}}]}`
		require.NoError(t, os.WriteFile(input, []byte(raw), 0o644))

		require.NoError(t, TransformStockList(input, output, logger))

		backup, err := os.ReadFile(input + ".backup")
		require.NoError(t, err)
		assert.Equal(t, raw, string(backup))

		out, err := os.ReadFile(output)
		require.NoError(t, err)
		var transformed stockListFile
		require.NoError(t, json.Unmarshal(out, &transformed))
		require.Len(t, transformed.Data, 1)
		assert.Equal(t, "2004-08-25", transformed.Data[0]["meta_listingDate"])
	})

	t.Run("missing input is an error", func(t *testing.T) {
		dir := t.TempDir()
		err := TransformStockList(filepath.Join(dir, "missing.json"), filepath.Join(dir, "out.json"), logger)
		assert.Error(t, err)
	})
}
