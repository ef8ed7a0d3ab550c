package models

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Provider field names carried on raw daily price records.
const (
	FieldTimestamp      = "CH_TIMESTAMP"
	FieldSymbol         = "CH_SYMBOL"
	FieldHighPrice      = "CH_TRADE_HIGH_PRICE"
	FieldLowPrice       = "CH_TRADE_LOW_PRICE"
	FieldOpenPrice      = "CH_OPENING_PRICE"
	FieldClosePrice     = "CH_CLOSING_PRICE"
	FieldLastTraded     = "CH_LAST_TRADED_PRICE"
	FieldPreviousClose  = "CH_PREVIOUS_CLS_PRICE"
	FieldTotalTradedQty = "CH_TOT_TRADED_QTY"
	FieldTotalTradedVal = "CH_TOT_TRADED_VAL"
	FieldHigh52Week     = "CH_52WEEK_HIGH_PRICE"
	FieldLow52Week      = "CH_52WEEK_LOW_PRICE"
	FieldTotalTrades    = "CH_TOTAL_TRADES"
	FieldDeliveryQty    = "COP_DELIV_QTY"
	FieldDeliveryPerc   = "COP_DELIV_PERC"
	FieldVWAP           = "VWAP"
)

// PriceRecord is a raw daily price record exactly as the provider returned
// it. Fields beyond the recognised CH_* set are preserved verbatim for
// forward compatibility. Numeric values are json.Number so that records
// re-serialise byte-stably.
type PriceRecord map[string]any

// TradeDate parses the record's CH_TIMESTAMP (YYYY-MM-DD). A missing or
// malformed timestamp returns the zero time.
func (r PriceRecord) TradeDate() time.Time {
	s, _ := r[FieldTimestamp].(string)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// StockPrice is a typed row in the stock_prices table. Optional provider
// fields are pointers so that absent values map to NULL columns.
type StockPrice struct {
	ID               int              `json:"id"`
	StockID          int              `json:"stock_id"`
	Symbol           string           `json:"symbol"`
	TradeDate        time.Time        `json:"trade_date"`
	OpenPrice        *decimal.Decimal `json:"open_price,omitempty"`
	HighPrice        *decimal.Decimal `json:"high_price,omitempty"`
	LowPrice         *decimal.Decimal `json:"low_price,omitempty"`
	ClosePrice       *decimal.Decimal `json:"close_price,omitempty"`
	LastTradedPrice  *decimal.Decimal `json:"last_traded_price,omitempty"`
	PrevClosePrice   *decimal.Decimal `json:"previous_close_price,omitempty"`
	TotalTradedQty   *int64           `json:"total_traded_qty,omitempty"`
	TotalTradedValue *decimal.Decimal `json:"total_traded_value,omitempty"`
	High52Week       *decimal.Decimal `json:"high_52week,omitempty"`
	Low52Week        *decimal.Decimal `json:"low_52week,omitempty"`
	TotalTrades      *int64           `json:"total_trades,omitempty"`
	DeliveryQty      *int64           `json:"delivery_qty,omitempty"`
	DeliveryPerc     *decimal.Decimal `json:"delivery_perc,omitempty"`
	VWAP             *decimal.Decimal `json:"vwap,omitempty"`
	Meta             json.RawMessage  `json:"meta_data,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}

// NewStockPriceFromRecord maps a raw provider record onto a typed
// StockPrice row. Recognised CH_* fields are sanitised into typed columns;
// unparseable numeric values become NULL; all remaining fields are kept in
// the Meta bag. Returns an error when CH_TIMESTAMP is missing or invalid,
// since trade_date is part of the row's natural key.
func NewStockPriceFromRecord(symbol string, record PriceRecord) (*StockPrice, error) {
	tradeDate := record.TradeDate()
	if tradeDate.IsZero() {
		return nil, &MissingTradeDateError{Symbol: symbol}
	}

	consumed := map[string]bool{
		FieldTimestamp: true, FieldSymbol: true,
		FieldHighPrice: true, FieldLowPrice: true,
		FieldOpenPrice: true, FieldClosePrice: true,
		FieldLastTraded: true, FieldPreviousClose: true,
		FieldTotalTradedQty: true, FieldTotalTradedVal: true,
		FieldHigh52Week: true, FieldLow52Week: true,
		FieldTotalTrades: true, FieldDeliveryQty: true,
		FieldDeliveryPerc: true, FieldVWAP: true,
	}

	rest := make(map[string]any)
	for k, v := range record {
		if !consumed[k] {
			rest[k] = v
		}
	}
	meta, err := json.Marshal(rest)
	if err != nil {
		return nil, err
	}

	if s, ok := record[FieldSymbol].(string); ok && s != "" {
		symbol = s
	}

	return &StockPrice{
		Symbol:           symbol,
		TradeDate:        tradeDate,
		OpenPrice:        toDecimal(record[FieldOpenPrice]),
		HighPrice:        toDecimal(record[FieldHighPrice]),
		LowPrice:         toDecimal(record[FieldLowPrice]),
		ClosePrice:       toDecimal(record[FieldClosePrice]),
		LastTradedPrice:  toDecimal(record[FieldLastTraded]),
		PrevClosePrice:   toDecimal(record[FieldPreviousClose]),
		TotalTradedQty:   toInt64(record[FieldTotalTradedQty]),
		TotalTradedValue: toDecimal(record[FieldTotalTradedVal]),
		High52Week:       toDecimal(record[FieldHigh52Week]),
		Low52Week:        toDecimal(record[FieldLow52Week]),
		TotalTrades:      toInt64(record[FieldTotalTrades]),
		DeliveryQty:      toInt64(record[FieldDeliveryQty]),
		DeliveryPerc:     toDecimal(record[FieldDeliveryPerc]),
		VWAP:             toDecimal(record[FieldVWAP]),
		Meta:             meta,
	}, nil
}

// MissingTradeDateError reports a raw record that cannot be ingested
// because it carries no usable trade date.
type MissingTradeDateError struct {
	Symbol string
}

func (e *MissingTradeDateError) Error() string {
	return "price record for " + e.Symbol + " has no valid " + FieldTimestamp
}

func toDecimal(v any) *decimal.Decimal {
	var s string
	switch n := v.(type) {
	case nil:
		return nil
	case json.Number:
		s = n.String()
	case string:
		s = n
	case float64:
		d := decimal.NewFromFloat(n)
		return &d
	default:
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &d
}

func toInt64(v any) *int64 {
	switch n := v.(type) {
	case nil:
		return nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return nil
		}
		return &i
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return nil
		}
		return &i
	case float64:
		i := int64(n)
		return &i
	}
	return nil
}
