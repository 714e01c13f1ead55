package finmind

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twquant/screener/internal/data"
	"github.com/twquant/screener/pkg/config"
	"github.com/twquant/screener/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(&config.Config{LogLevel: "error", LogFormat: "json"})
}

// fakeFinMind serves canned rows per dataset in the FinMind envelope.
func fakeFinMind(t *testing.T, rows map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dataset := r.URL.Query().Get("dataset")
		payload, ok := rows[dataset]
		if !ok {
			payload = []struct{}{}
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"msg":    "success",
			"status": 200,
			"data":   payload,
		})
	}))
}

func testProvider(t *testing.T, rows map[string]interface{}) *Provider {
	t.Helper()
	server := fakeFinMind(t, rows)
	t.Cleanup(server.Close)

	cfg := &config.Config{LogLevel: "error", LogFormat: "json"}
	cfg.FinMind.BaseURL = server.URL
	cfg.FinMind.RateLimit = 6000

	return NewProvider(NewClient(cfg, testLogger()), nil, testLogger())
}

func TestProviderBuildsPriceTables(t *testing.T) {
	p := testProvider(t, map[string]interface{}{
		DatasetPrice: []PriceRow{
			{Date: "2025-01-02", StockID: "2330", Open: 990, Max: 1010, Min: 985, Close: 1000, TradingVolume: 30000},
			{Date: "2025-01-03", StockID: "2330", Open: 1000, Max: 1030, Min: 995, Close: 1025, TradingVolume: 32000},
			{Date: "2025-01-02", StockID: "1101", Open: 35, Max: 36, Min: 34, Close: 35.5, TradingVolume: 8000},
		},
	})

	closeTable, err := p.Table(context.Background(), data.KeyClose)
	require.NoError(t, err)
	assert.Equal(t, 2, closeTable.NumDates())
	assert.Equal(t, []string{"1101", "2330"}, closeTable.Stocks())
	v, _ := closeTable.LatestRow().Value("2330")
	assert.Equal(t, 1025.0, v)

	// Sibling tables built from the same fetch
	highTable, err := p.Table(context.Background(), data.KeyHigh)
	require.NoError(t, err)
	v, _ = highTable.LatestRow().Value("2330")
	assert.Equal(t, 1030.0, v)
}

func TestProviderRevenueDerivatives(t *testing.T) {
	rows := make([]RevenueRow, 0, 13)
	months := []string{
		"2024-01-01", "2024-02-01", "2024-03-01", "2024-04-01", "2024-05-01",
		"2024-06-01", "2024-07-01", "2024-08-01", "2024-09-01", "2024-10-01",
		"2024-11-01", "2024-12-01", "2025-01-01",
	}
	for i, m := range months {
		rows = append(rows, RevenueRow{Date: m, StockID: "2330", Revenue: float64(1000000+100000*i)})
	}
	p := testProvider(t, map[string]interface{}{DatasetMonthRevenue: rows})

	revenue, err := p.Table(context.Background(), data.KeyRevenue)
	require.NoError(t, err)
	// NTD 換算仟元
	v, _ := revenue.LatestRow().Value("2330")
	assert.InDelta(t, 2200.0, v, 1e-9)

	yoy, err := p.Table(context.Background(), data.KeyRevenueYoY)
	require.NoError(t, err)
	v, _ = yoy.LatestRow().Value("2330")
	assert.InDelta(t, 1.2, v, 1e-9) // 2200/1000 - 1
}

func TestProviderMarketCapDerivation(t *testing.T) {
	p := testProvider(t, map[string]interface{}{
		DatasetPrice: []PriceRow{
			{Date: "2025-01-02", StockID: "2330", Close: 1000, Open: 1000, Max: 1000, Min: 1000, TradingVolume: 1},
		},
		DatasetBalanceSheet: []StatementRow{
			// 股本 2,593 億 (元計)
			{Date: "2024-12-31", StockID: "2330", Type: typeCommonStock, Value: 259_303_805_000},
		},
	})

	mcap, err := p.Table(context.Background(), data.KeyMarketCap)
	require.NoError(t, err)
	v, _ := mcap.LatestRow().Value("2330")
	// 股本(仟元) × 100 股/仟元 × 收盤價
	assert.InDelta(t, 259_303_805*100*1000.0, v, 1)
}

func TestProviderROEInPercent(t *testing.T) {
	p := testProvider(t, map[string]interface{}{
		DatasetFinancialStatements: []StatementRow{
			{Date: "2024-12-31", StockID: "2330", Type: typeNetIncome, Value: 300_000_000},
		},
		DatasetBalanceSheet: []StatementRow{
			{Date: "2024-12-31", StockID: "2330", Type: typeEquity, Value: 2_000_000_000},
		},
	})

	roe, err := p.Table(context.Background(), data.KeyROE)
	require.NoError(t, err)
	v, _ := roe.LatestRow().Value("2330")
	assert.InDelta(t, 15.0, v, 1e-9)
}

func TestProviderDividendTable(t *testing.T) {
	p := testProvider(t, map[string]interface{}{
		DatasetDividend: []DividendRow{
			{Date: "2022-07-01", StockID: "2330", CashEarningsDistribution: 2.75},
			{Date: "2023-07-01", StockID: "2330", CashEarningsDistribution: 2.75, CashStatutorySurplus: 0.25},
			{Date: "2024-07-01", StockID: "2330", CashEarningsDistribution: 3.0},
			// 同日盈餘配息與公積配息分列，需相加
			{Date: "2024-07-01", StockID: "2330", CashStatutorySurplus: 0.5},
		},
	})

	dividend, err := p.Table(context.Background(), data.KeyCashDividend)
	require.NoError(t, err)
	require.Equal(t, 3, dividend.NumDates())

	v, _ := dividend.LatestRow().Value("2330")
	assert.InDelta(t, 3.5, v, 1e-9)
	v, _ = dividend.RowFromEnd(1).Value("2330")
	assert.InDelta(t, 3.0, v, 1e-9)
}

func TestProviderUnknownKeyIsEmpty(t *testing.T) {
	p := testProvider(t, nil)

	f, err := p.Table(context.Background(), data.KeyExcludeAttention)
	require.NoError(t, err)
	assert.True(t, f.IsEmpty())
}

func TestProviderBundleDegradesOnFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusPaymentRequired)
	}))
	t.Cleanup(server.Close)

	cfg := &config.Config{LogLevel: "error", LogFormat: "json"}
	cfg.FinMind.BaseURL = server.URL
	cfg.FinMind.RateLimit = 6000
	p := NewProvider(NewClient(cfg, testLogger()), nil, testLogger())

	b, err := p.Bundle(context.Background(), []string{data.KeyClose, data.KeyRevenue})
	require.NoError(t, err)
	assert.True(t, b.Table(data.KeyClose).IsEmpty())
	assert.True(t, b.Table(data.KeyRevenue).IsEmpty())
}

func TestProviderIndustryMap(t *testing.T) {
	p := testProvider(t, map[string]interface{}{
		DatasetStockInfo: []InfoRow{
			{StockID: "2330", StockName: "台積電", IndustryCategory: "半導體業", Type: "twse"},
			{StockID: "1101", StockName: "台泥", IndustryCategory: "水泥工業", Type: "twse"},
		},
	})

	industry, err := p.Industry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "半導體業", industry["2330"])
	assert.Equal(t, "水泥工業", industry["1101"])
}
