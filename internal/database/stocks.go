package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"nseingest/internal/models"
)

// UpsertStock inserts a stock or updates its attributes if the symbol
// already exists, returning the row id either way.
func (db *DB) UpsertStock(ctx context.Context, s *models.Stock) (int, error) {
	query := `
		INSERT INTO stocks (symbol, company_name, industry, isin, meta_data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (symbol) DO UPDATE SET
			company_name = EXCLUDED.company_name,
			industry = EXCLUDED.industry,
			isin = EXCLUDED.isin,
			meta_data = EXCLUDED.meta_data,
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`
	err := db.conn.QueryRowContext(ctx, query,
		s.Symbol, nullString(s.CompanyName), nullString(s.Industry), nullString(s.ISIN),
		nullJSON(s.Meta), time.Now(),
	).Scan(&s.ID)

	if err != nil {
		return 0, fmt.Errorf("failed to upsert stock %s: %w", s.Symbol, err)
	}
	return s.ID, nil
}

// GetStockBySymbol retrieves a stock by its symbol
func (db *DB) GetStockBySymbol(ctx context.Context, symbol string) (*models.Stock, error) {
	query := `
		SELECT id, symbol, company_name, industry, isin, meta_data, created_at, updated_at
		FROM stocks
		WHERE symbol = $1
	`
	var s models.Stock
	var companyName, industry, isin sql.NullString
	var meta []byte

	err := db.conn.QueryRowContext(ctx, query, symbol).Scan(
		&s.ID, &s.Symbol, &companyName, &industry, &isin, &meta, &s.CreatedAt, &s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("stock not found: %s", symbol)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stock: %w", err)
	}

	s.CompanyName = companyName.String
	s.Industry = industry.String
	s.ISIN = isin.String
	s.Meta = meta
	return &s, nil
}

// ListStocks retrieves all stocks ordered by symbol
func (db *DB) ListStocks(ctx context.Context) ([]*models.Stock, error) {
	query := `
		SELECT id, symbol, company_name, industry, isin, meta_data, created_at, updated_at
		FROM stocks
		ORDER BY symbol ASC
	`
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list stocks: %w", err)
	}
	defer rows.Close()

	var stocks []*models.Stock
	for rows.Next() {
		var s models.Stock
		var companyName, industry, isin sql.NullString
		var meta []byte

		err := rows.Scan(&s.ID, &s.Symbol, &companyName, &industry, &isin, &meta, &s.CreatedAt, &s.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stock: %w", err)
		}

		s.CompanyName = companyName.String
		s.Industry = industry.String
		s.ISIN = isin.String
		s.Meta = meta
		stocks = append(stocks, &s)
	}

	return stocks, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
