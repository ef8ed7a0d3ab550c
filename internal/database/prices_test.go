package database

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nseingest/internal/models"
)

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func int64Ptr(n int64) *int64 {
	return &n
}

func TestPricesRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := SetupTestDB(t)
	defer testDB.Cleanup(t)
	ctx := context.Background()

	newStock := func(t *testing.T) int {
		t.Helper()
		id, err := testDB.UpsertStock(ctx, &models.Stock{Symbol: "TCS"})
		require.NoError(t, err)
		return id
	}

	tradeDate := time.Date(2023, 6, 30, 0, 0, 0, 0, time.UTC)

	t.Run("UpsertPrice creates new row", func(t *testing.T) {
		testDB.TruncateAll(t)
		stockID := newStock(t)

		price := &models.StockPrice{
			TradeDate:      tradeDate,
			OpenPrice:      decPtr("3285.00"),
			HighPrice:      decPtr("3310.00"),
			LowPrice:       decPtr("3280.50"),
			ClosePrice:     decPtr("3301.50"),
			TotalTradedQty: int64Ptr(2500000),
			VWAP:           decPtr("3298.12"),
		}

		err := testDB.UpsertPrice(ctx, stockID, price)
		require.NoError(t, err)
		assert.NotZero(t, price.ID)
		assert.Equal(t, stockID, price.StockID)
	})

	t.Run("UpsertPrice updates on natural key conflict", func(t *testing.T) {
		testDB.TruncateAll(t)
		stockID := newStock(t)

		price := &models.StockPrice{TradeDate: tradeDate, ClosePrice: decPtr("3301.50")}
		require.NoError(t, testDB.UpsertPrice(ctx, stockID, price))

		revised := &models.StockPrice{TradeDate: tradeDate, ClosePrice: decPtr("3305.00")}
		require.NoError(t, testDB.UpsertPrice(ctx, stockID, revised))

		count, err := testDB.CountPrices(ctx, stockID)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		rows, err := testDB.GetPricesByStock(ctx, stockID, tradeDate, tradeDate)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		require.NotNil(t, rows[0].ClosePrice)
		assert.True(t, rows[0].ClosePrice.Equal(decimal.RequireFromString("3305.00")))
	})

	t.Run("nullable columns round trip as nil", func(t *testing.T) {
		testDB.TruncateAll(t)
		stockID := newStock(t)

		price := &models.StockPrice{TradeDate: tradeDate, ClosePrice: decPtr("3301.50")}
		require.NoError(t, testDB.UpsertPrice(ctx, stockID, price))

		rows, err := testDB.GetPricesByStock(ctx, stockID, tradeDate, tradeDate)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Nil(t, rows[0].OpenPrice)
		assert.Nil(t, rows[0].TotalTradedQty)
		assert.NotNil(t, rows[0].ClosePrice)
	})

	t.Run("GetPricesByStock range ordered ascending", func(t *testing.T) {
		testDB.TruncateAll(t)
		stockID := newStock(t)

		for _, day := range []int{30, 28, 29} {
			d := time.Date(2023, 6, day, 0, 0, 0, 0, time.UTC)
			require.NoError(t, testDB.UpsertPrice(ctx, stockID, &models.StockPrice{TradeDate: d}))
		}

		from := time.Date(2023, 6, 28, 0, 0, 0, 0, time.UTC)
		rows, err := testDB.GetPricesByStock(ctx, stockID, from, tradeDate)
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, 28, rows[0].TradeDate.Day())
		assert.Equal(t, 30, rows[2].TradeDate.Day())
	})
}
