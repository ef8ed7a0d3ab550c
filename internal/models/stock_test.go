package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexEntryAccessors(t *testing.T) {
	t.Run("symbol and priority", func(t *testing.T) {
		entry := IndexEntry{"symbol": "TCS", "priority": json.Number("0")}
		assert.Equal(t, "TCS", entry.Symbol())
		assert.Equal(t, 0, entry.Priority())
	})

	t.Run("priority as float and int", func(t *testing.T) {
		assert.Equal(t, 1, IndexEntry{"priority": float64(1)}.Priority())
		assert.Equal(t, 1, IndexEntry{"priority": 1}.Priority())
	})

	t.Run("absent priority defaults to zero", func(t *testing.T) {
		assert.Equal(t, 0, IndexEntry{"symbol": "TCS"}.Priority())
	})

	t.Run("listing date from nested meta", func(t *testing.T) {
		entry := IndexEntry{"meta": map[string]any{"listingDate": "2004-08-25"}}
		assert.Equal(t, "2004-08-25", entry.ListingDate())
	})

	t.Run("listing date from flattened shape", func(t *testing.T) {
		entry := IndexEntry{"meta_listingDate": "2004-08-25"}
		assert.Equal(t, "2004-08-25", entry.ListingDate())
	})

	t.Run("absent listing date", func(t *testing.T) {
		assert.Empty(t, IndexEntry{"symbol": "TCS"}.ListingDate())
	})
}

func TestToStock(t *testing.T) {
	entry := IndexEntry{
		"symbol":           "tcs",
		"priority":         json.Number("0"),
		"meta_companyName": "Tata Consultancy Services Limited",
		"meta_industry":    "Information Technology",
		"meta_isin":        "INE467B01029",
		"meta_listingDate": "2004-08-25",
	}

	stock, err := entry.ToStock()
	require.NoError(t, err)

	assert.Equal(t, "TCS", stock.Symbol)
	assert.Equal(t, "Tata Consultancy Services Limited", stock.CompanyName)
	assert.Equal(t, "Information Technology", stock.Industry)
	assert.Equal(t, "INE467B01029", stock.ISIN)

	// unmapped fields land in the meta bag
	var meta map[string]any
	require.NoError(t, json.Unmarshal(stock.Meta, &meta))
	assert.Equal(t, "2004-08-25", meta["meta_listingDate"])
	assert.NotContains(t, meta, "symbol")
	assert.NotContains(t, meta, "meta_companyName")
}
