// Package twse implements a client for the TWSE open API: whole-market
// trading summaries (FMTQIK) and institutional-investor flow totals
// (BFI82U) used by the market dashboard.
package twse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/twquant/screener/pkg/config"
	"github.com/twquant/screener/pkg/httputil"
	"github.com/twquant/screener/pkg/logger"
)

// Client wraps the TWSE open API.
type Client struct {
	http    *httputil.Client
	log     *logger.Logger
	baseURL string
}

// New creates a TWSE client.
func New(cfg *config.Config, log *logger.Logger) *Client {
	return &Client{
		http:    httputil.NewWithTimeout(cfg, log, 15*time.Second),
		log:     log,
		baseURL: cfg.TWSE.BaseURL,
	}
}

// MarketSummary is one day of whole-market trading totals.
type MarketSummary struct {
	Date         string  `json:"date"`
	TradeVolume  float64 `json:"trade_volume"`
	TradeValue   float64 `json:"trade_value"`
	Transactions float64 `json:"transactions"`
	TaiexIndex   float64 `json:"taiex_index"`
	Change       float64 `json:"change"`
}

// Flow is one institutional group's daily buy/sell totals in NTD.
type Flow struct {
	Buy        float64 `json:"buy"`
	Sell       float64 `json:"sell"`
	Net        float64 `json:"net"`
	NetBillion float64 `json:"net_billion"` // 億元
}

// InstitutionalFlows aggregates the three investor groups for one day.
type InstitutionalFlows struct {
	Date            string `json:"date"`
	Foreign         Flow   `json:"foreign"`
	InvestmentTrust Flow   `json:"investment_trust"`
	Dealer          Flow   `json:"dealer"`
}

type fmtqikRow struct {
	Date        string `json:"Date"`
	TradeVolume string `json:"TradeVolume"`
	TradeValue  string `json:"TradeValue"`
	Transaction string `json:"Transaction"`
	TaiexIndex  string `json:"TAIEX"`
	Change      string `json:"Change"`
}

type bfi82uRow struct {
	Date       string `json:"Date"`
	Name       string `json:"Name"`
	BuyAmount  string `json:"BuyAmount"`
	SellAmount string `json:"SellAmount"`
	DifAmount  string `json:"DifAmount"`
}

// MarketSummaries returns the current month's daily market totals in
// date-ascending order.
func (c *Client) MarketSummaries(ctx context.Context) ([]MarketSummary, error) {
	var rows []fmtqikRow
	if err := c.get(ctx, "/exchangeReport/FMTQIK", &rows); err != nil {
		return nil, err
	}

	out := make([]MarketSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, MarketSummary{
			Date:         rocToISO(row.Date),
			TradeVolume:  parseNumber(row.TradeVolume),
			TradeValue:   parseNumber(row.TradeValue),
			Transactions: parseNumber(row.Transaction),
			TaiexIndex:   parseNumber(row.TaiexIndex),
			Change:       parseNumber(row.Change),
		})
	}
	return out, nil
}

// LatestSummary returns the most recent market summary.
func (c *Client) LatestSummary(ctx context.Context) (*MarketSummary, error) {
	summaries, err := c.MarketSummaries(ctx)
	if err != nil {
		return nil, err
	}
	if len(summaries) == 0 {
		return nil, fmt.Errorf("twse returned no market summaries")
	}
	latest := summaries[len(summaries)-1]
	return &latest, nil
}

// InstitutionalFlows returns the latest day's three-group totals.
// Multiple dealer and foreign sub-rows are summed into their group.
// 三大法人買賣金額統計
func (c *Client) InstitutionalFlows(ctx context.Context) (*InstitutionalFlows, error) {
	var rows []bfi82uRow
	if err := c.get(ctx, "/fund/BFI82U", &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("twse returned no institutional flow rows")
	}

	flows := &InstitutionalFlows{Date: rocToISO(rows[0].Date)}
	for _, row := range rows {
		flow := Flow{
			Buy:  parseNumber(row.BuyAmount),
			Sell: parseNumber(row.SellAmount),
			Net:  parseNumber(row.DifAmount),
		}
		switch {
		case strings.Contains(row.Name, "外資"):
			flows.Foreign = addFlow(flows.Foreign, flow)
		case strings.Contains(row.Name, "投信"):
			flows.InvestmentTrust = addFlow(flows.InvestmentTrust, flow)
		case strings.Contains(row.Name, "自營商"):
			flows.Dealer = addFlow(flows.Dealer, flow)
		}
	}

	flows.Foreign.NetBillion = flows.Foreign.Net / 1e8
	flows.InvestmentTrust.NetBillion = flows.InvestmentTrust.Net / 1e8
	flows.Dealer.NetBillion = flows.Dealer.Net / 1e8
	return flows, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	resp, err := c.http.Get(ctx, c.baseURL+path)
	if err != nil {
		return fmt.Errorf("twse %s request failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("twse %s returned HTTP %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("twse %s decode failed: %w", path, err)
	}
	return nil
}

func addFlow(a, b Flow) Flow {
	return Flow{Buy: a.Buy + b.Buy, Sell: a.Sell + b.Sell, Net: a.Net + b.Net}
}

// parseNumber handles the API's comma-separated numeric strings.
// Unparseable values become 0.
func parseNumber(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// rocToISO converts a ROC-calendar date (1140102) to ISO (2025-01-02).
// Already-ISO dates pass through.
func rocToISO(s string) string {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "-") {
		return s
	}
	if len(s) != 7 {
		return s
	}
	year, err := strconv.Atoi(s[:3])
	if err != nil {
		return s
	}
	return fmt.Sprintf("%d-%s-%s", year+1911, s[3:5], s[5:7])
}
