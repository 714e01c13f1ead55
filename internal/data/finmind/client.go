// Package finmind implements the FinMind (台灣開放資料) data provider:
// a rate-limited API client, long-to-aligned-table conversion, and a
// Redis-backed daily cache of the built tables.
package finmind

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/twquant/screener/pkg/config"
	"github.com/twquant/screener/pkg/httputil"
	"github.com/twquant/screener/pkg/logger"
)

// FinMind dataset identifiers.
const (
	DatasetPrice               = "TaiwanStockPrice"
	DatasetMonthRevenue        = "TaiwanStockMonthRevenue"
	DatasetFinancialStatements = "TaiwanStockFinancialStatements"
	DatasetBalanceSheet        = "TaiwanStockBalanceSheet"
	DatasetCashFlows           = "TaiwanStockCashFlowsStatement"
	DatasetMarginShortSale     = "TaiwanStockMarginPurchaseShortSale"
	DatasetDividend            = "TaiwanStockDividend"
	DatasetStockInfo           = "TaiwanStockInfo"
)

// Client is the low-level FinMind API client.
// ⭐ SSOT: FinMind 的 HTTP 細節只在這裡
type Client struct {
	http    *httputil.Client
	log     *logger.Logger
	baseURL string
	token   string
}

// NewClient creates a FinMind client with retry and local rate limiting
// sized to the configured API tier (requests per hour).
func NewClient(cfg *config.Config, log *logger.Logger) *Client {
	perMinute := cfg.FinMind.RateLimit / 60
	if perMinute < 1 {
		perMinute = 1
	}
	return &Client{
		http:    httputil.NewWithTimeout(cfg, log, 60*time.Second).WithLocalRateLimit(perMinute),
		log:     log,
		baseURL: cfg.FinMind.BaseURL,
		token:   cfg.FinMind.Token,
	}
}

// apiResponse is the FinMind envelope. Data decodes per dataset.
type apiResponse struct {
	Msg    string          `json:"msg"`
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

// fetch retrieves one dataset into out (a pointer to a row slice).
// An empty data_id queries the whole market.
func (c *Client) fetch(ctx context.Context, dataset, dataID, startDate string, out interface{}) error {
	params := url.Values{}
	params.Set("dataset", dataset)
	if dataID != "" {
		params.Set("data_id", dataID)
	}
	if startDate != "" {
		params.Set("start_date", startDate)
	}
	if c.token != "" {
		params.Set("token", c.token)
	}

	reqURL := fmt.Sprintf("%s/data?%s", c.baseURL, params.Encode())
	resp, err := c.http.Get(ctx, reqURL)
	if err != nil {
		return fmt.Errorf("finmind %s request failed: %w", dataset, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("finmind %s returned HTTP %d: %s", dataset, resp.StatusCode, string(body))
	}

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("finmind %s decode failed: %w", dataset, err)
	}
	if envelope.Status != 200 {
		return fmt.Errorf("finmind %s API error %d: %s", dataset, envelope.Status, envelope.Msg)
	}

	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("finmind %s rows decode failed: %w", dataset, err)
	}
	return nil
}

// PriceRow is one TaiwanStockPrice observation.
type PriceRow struct {
	Date          string  `json:"date"`
	StockID       string  `json:"stock_id"`
	Open          float64 `json:"open"`
	Max           float64 `json:"max"`
	Min           float64 `json:"min"`
	Close         float64 `json:"close"`
	TradingVolume float64 `json:"Trading_Volume"`
}

// RevenueRow is one TaiwanStockMonthRevenue observation.
// Revenue is in NTD; the strategies work in 仟元, converted on build.
type RevenueRow struct {
	Date    string  `json:"date"`
	StockID string  `json:"stock_id"`
	Revenue float64 `json:"revenue"`
}

// StatementRow is one long-format financial statement line item, shared
// by the income statement, balance sheet, and cash flow datasets.
type StatementRow struct {
	Date    string  `json:"date"`
	StockID string  `json:"stock_id"`
	Type    string  `json:"type"`
	Value   float64 `json:"value"`
}

// MarginRow is one TaiwanStockMarginPurchaseShortSale observation.
type MarginRow struct {
	Date                       string  `json:"date"`
	StockID                    string  `json:"stock_id"`
	MarginPurchaseTodayBalance float64 `json:"MarginPurchaseTodayBalance"`
}

// DividendRow is one TaiwanStockDividend announcement. The cash payout
// per share splits across two sources (盈餘與公積金配息), both in 元/股.
type DividendRow struct {
	Date                     string  `json:"date"`
	StockID                  string  `json:"stock_id"`
	CashEarningsDistribution float64 `json:"CashEarningsDistribution"`
	CashStatutorySurplus     float64 `json:"CashStatutorySurplus"`
}

// InfoRow is one TaiwanStockInfo listing entry.
type InfoRow struct {
	StockID          string `json:"stock_id"`
	StockName        string `json:"stock_name"`
	IndustryCategory string `json:"industry_category"`
	Type             string `json:"type"` // twse / tpex
}

// Prices fetches whole-market daily OHLCV since startDate.
func (c *Client) Prices(ctx context.Context, startDate string) ([]PriceRow, error) {
	var rows []PriceRow
	if err := c.fetch(ctx, DatasetPrice, "", startDate, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// MonthRevenues fetches whole-market monthly revenue since startDate.
func (c *Client) MonthRevenues(ctx context.Context, startDate string) ([]RevenueRow, error) {
	var rows []RevenueRow
	if err := c.fetch(ctx, DatasetMonthRevenue, "", startDate, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Statements fetches one of the three statement datasets since startDate.
func (c *Client) Statements(ctx context.Context, dataset, startDate string) ([]StatementRow, error) {
	var rows []StatementRow
	if err := c.fetch(ctx, dataset, "", startDate, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// MarginBalances fetches whole-market margin balances since startDate.
func (c *Client) MarginBalances(ctx context.Context, startDate string) ([]MarginRow, error) {
	var rows []MarginRow
	if err := c.fetch(ctx, DatasetMarginShortSale, "", startDate, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Dividends fetches whole-market dividend announcements since startDate.
func (c *Client) Dividends(ctx context.Context, startDate string) ([]DividendRow, error) {
	var rows []DividendRow
	if err := c.fetch(ctx, DatasetDividend, "", startDate, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// StockInfo fetches the listing directory (id, name, industry, board).
func (c *Client) StockInfo(ctx context.Context) ([]InfoRow, error) {
	var rows []InfoRow
	if err := c.fetch(ctx, DatasetStockInfo, "", "", &rows); err != nil {
		return nil, err
	}
	return rows, nil
}
