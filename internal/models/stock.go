package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Stock represents a row in the stocks table.
type Stock struct {
	ID          int             `json:"id"`
	Symbol      string          `json:"symbol"`
	CompanyName string          `json:"company_name,omitempty"`
	Industry    string          `json:"industry,omitempty"`
	ISIN        string          `json:"isin,omitempty"`
	Meta        json.RawMessage `json:"meta_data,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// IndexEntry is one constituent record from an index stock list. The
// provider returns an open set of fields; they are preserved as-is and
// read through accessors.
type IndexEntry map[string]any

// Symbol returns the entry's ticker symbol, or "" when absent.
func (e IndexEntry) Symbol() string {
	s, _ := e["symbol"].(string)
	return s
}

// Priority returns the entry's priority. Absent or non-numeric values
// report as 0, matching the provider's convention for primary listings.
func (e IndexEntry) Priority() int {
	switch v := e["priority"].(type) {
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0
		}
		return int(n)
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// stringField returns the named field as a string, or "" when absent or
// not a string.
func (e IndexEntry) stringField(key string) string {
	s, _ := e[key].(string)
	return s
}

// ListingDate returns the instrument's listing date string from either the
// flattened (meta_listingDate) or nested (meta.listingDate) shape.
func (e IndexEntry) ListingDate() string {
	if s := e.stringField("meta_listingDate"); s != "" {
		return s
	}
	if meta, ok := e["meta"].(map[string]any); ok {
		if s, ok := meta["listingDate"].(string); ok {
			return s
		}
	}
	return ""
}

// ToStock maps a flattened index entry onto a Stock row. Recognised
// meta_* fields populate typed columns; everything else is preserved in
// the Meta bag, mirroring the upsert contract of the stocks table.
func (e IndexEntry) ToStock() (*Stock, error) {
	stock := &Stock{
		Symbol:      strings.ToUpper(e.Symbol()),
		CompanyName: e.stringField("meta_companyName"),
		Industry:    e.stringField("meta_industry"),
		ISIN:        e.stringField("meta_isin"),
	}

	rest := make(map[string]any, len(e))
	for k, v := range e {
		switch k {
		case "symbol", "meta_companyName", "meta_industry", "meta_isin":
			continue
		}
		rest[k] = v
	}

	meta, err := json.Marshal(rest)
	if err != nil {
		return nil, err
	}
	stock.Meta = meta
	return stock, nil
}
