package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"nseingest/internal/models"
)

// UpsertPrice inserts a daily price row or updates it if one already
// exists for the same stock and trade date.
func (db *DB) UpsertPrice(ctx context.Context, stockID int, p *models.StockPrice) error {
	query := `
		INSERT INTO stock_prices (
			stock_id, trade_date, open_price, high_price, low_price, close_price,
			last_traded_price, previous_close_price, total_traded_qty, total_traded_value,
			high_52week, low_52week, total_trades, delivery_qty, delivery_perc, vwap,
			meta_data, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (stock_id, trade_date) DO UPDATE SET
			open_price = EXCLUDED.open_price,
			high_price = EXCLUDED.high_price,
			low_price = EXCLUDED.low_price,
			close_price = EXCLUDED.close_price,
			last_traded_price = EXCLUDED.last_traded_price,
			previous_close_price = EXCLUDED.previous_close_price,
			total_traded_qty = EXCLUDED.total_traded_qty,
			total_traded_value = EXCLUDED.total_traded_value,
			high_52week = EXCLUDED.high_52week,
			low_52week = EXCLUDED.low_52week,
			total_trades = EXCLUDED.total_trades,
			delivery_qty = EXCLUDED.delivery_qty,
			delivery_perc = EXCLUDED.delivery_perc,
			vwap = EXCLUDED.vwap,
			meta_data = EXCLUDED.meta_data
		RETURNING id
	`
	err := db.conn.QueryRowContext(ctx, query,
		stockID, p.TradeDate,
		nullDecimal(p.OpenPrice), nullDecimal(p.HighPrice), nullDecimal(p.LowPrice), nullDecimal(p.ClosePrice),
		nullDecimal(p.LastTradedPrice), nullDecimal(p.PrevClosePrice),
		nullInt64(p.TotalTradedQty), nullDecimal(p.TotalTradedValue),
		nullDecimal(p.High52Week), nullDecimal(p.Low52Week),
		nullInt64(p.TotalTrades), nullInt64(p.DeliveryQty), nullDecimal(p.DeliveryPerc), nullDecimal(p.VWAP),
		nullJSON(p.Meta), time.Now(),
	).Scan(&p.ID)

	if err != nil {
		return fmt.Errorf("failed to upsert price for stock %d on %s: %w",
			stockID, p.TradeDate.Format("2006-01-02"), err)
	}
	p.StockID = stockID
	return nil
}

// GetPricesByStock retrieves price rows for a stock within a date range,
// ordered by trade date ascending.
func (db *DB) GetPricesByStock(ctx context.Context, stockID int, from, to time.Time) ([]*models.StockPrice, error) {
	query := `
		SELECT id, stock_id, trade_date, open_price, high_price, low_price, close_price,
			last_traded_price, previous_close_price, total_traded_qty, total_traded_value,
			high_52week, low_52week, total_trades, delivery_qty, delivery_perc, vwap,
			meta_data, created_at
		FROM stock_prices
		WHERE stock_id = $1 AND trade_date >= $2 AND trade_date <= $3
		ORDER BY trade_date ASC
	`
	rows, err := db.conn.QueryContext(ctx, query, stockID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to get prices: %w", err)
	}
	defer rows.Close()

	var prices []*models.StockPrice
	for rows.Next() {
		p, err := scanPrice(rows)
		if err != nil {
			return nil, err
		}
		prices = append(prices, p)
	}
	return prices, rows.Err()
}

// CountPrices returns the number of price rows stored for a stock.
func (db *DB) CountPrices(ctx context.Context, stockID int) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM stock_prices WHERE stock_id = $1`, stockID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count prices: %w", err)
	}
	return count, nil
}

func scanPrice(rows *sql.Rows) (*models.StockPrice, error) {
	var p models.StockPrice
	var open, high, low, closeP, ltp, prevClose, ttv, h52, l52, delPerc, vwap sql.NullString
	var ttq, trades, delQty sql.NullInt64
	var meta []byte

	err := rows.Scan(
		&p.ID, &p.StockID, &p.TradeDate, &open, &high, &low, &closeP,
		&ltp, &prevClose, &ttq, &ttv, &h52, &l52, &trades, &delQty, &delPerc, &vwap,
		&meta, &p.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan price: %w", err)
	}

	p.OpenPrice = parseDecimal(open)
	p.HighPrice = parseDecimal(high)
	p.LowPrice = parseDecimal(low)
	p.ClosePrice = parseDecimal(closeP)
	p.LastTradedPrice = parseDecimal(ltp)
	p.PrevClosePrice = parseDecimal(prevClose)
	p.TotalTradedValue = parseDecimal(ttv)
	p.High52Week = parseDecimal(h52)
	p.Low52Week = parseDecimal(l52)
	p.DeliveryPerc = parseDecimal(delPerc)
	p.VWAP = parseDecimal(vwap)
	p.TotalTradedQty = parseInt64(ttq)
	p.TotalTrades = parseInt64(trades)
	p.DeliveryQty = parseInt64(delQty)
	p.Meta = meta
	return &p, nil
}

func nullDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func nullInt64(n *int64) any {
	if n == nil {
		return nil
	}
	return *n
}

func parseDecimal(ns sql.NullString) *decimal.Decimal {
	if !ns.Valid {
		return nil
	}
	d, err := decimal.NewFromString(ns.String)
	if err != nil {
		return nil
	}
	return &d
}

func parseInt64(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}
