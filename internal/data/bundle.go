// Package data defines the table bundle the screening strategies consume
// and the provider contract the data sources implement.
package data

import (
	"context"

	"github.com/twquant/screener/internal/table"
)

// Well-known table keys
// ⭐ SSOT: 資料表鍵值只在這裡定義
const (
	KeyClose  = "close"
	KeyOpen   = "open"
	KeyHigh   = "high"
	KeyLow    = "low"
	KeyVolume = "volume"

	KeyMarketCap = "market_cap"

	// Monthly revenue and its derived growth rates
	KeyRevenue    = "revenue"
	KeyRevenueYoY = "revenue_yoy"
	KeyRevenueMoM = "revenue_mom"

	// Quarterly financial-statement line items
	KeyROE          = "roe"
	KeyEPS          = "eps"
	KeyCash         = "cash"
	KeyCommonStock  = "common_stock"
	KeyOperatingCF  = "operating_cash_flow"
	KeyInvestingCF  = "investing_cash_flow"
	KeyFinancingCF  = "financing_cash_flow"
	KeyTotalAssets  = "total_assets"
	KeyCashDividend = "cash_dividend"

	// Daily margin-trading balance (融資餘額)
	KeyMarginBalance = "margin_balance"

	// Exclusion tables: latest row true = 可交易（保留）
	KeyExcludeAttention    = "exclude_attention"
	KeyExcludeCashDelivery = "exclude_cash_delivery"
)

// Bundle carries the aligned tables for one screening run, plus the
// per-stock industry classification used by cross-sectional group
// comparisons.
type Bundle struct {
	tables   map[string]*table.Frame
	Industry map[string]string // stock_id → 產業別
}

// NewBundle creates an empty bundle.
func NewBundle() *Bundle {
	return &Bundle{
		tables:   make(map[string]*table.Frame),
		Industry: make(map[string]string),
	}
}

// Set stores a table under a key. A nil frame is stored as-is; Table
// treats it as empty.
func (b *Bundle) Set(key string, f *table.Frame) {
	b.tables[key] = f
}

// Table returns the frame for a key. Unknown keys return a nil frame,
// which reports IsEmpty() — callers never see an error for a missing
// table.
func (b *Bundle) Table(key string) *table.Frame {
	return b.tables[key]
}

// Has reports whether the bundle holds a non-empty table for the key.
func (b *Bundle) Has(key string) bool {
	return !b.tables[key].IsEmpty()
}

// Keys returns the keys currently held, in map order.
func (b *Bundle) Keys() []string {
	out := make([]string, 0, len(b.tables))
	for k := range b.tables {
		out = append(out, k)
	}
	return out
}

// Provider builds aligned tables from an upstream source. Implementations
// return an empty frame (never an error) for keys they do not serve, so a
// strategy asking for an exotic table degrades to its documented
// missing-data behavior instead of failing the whole run.
type Provider interface {
	// Table builds the aligned frame for one key.
	Table(ctx context.Context, key string) (*table.Frame, error)

	// Bundle builds the frames for all given keys. Per-key upstream
	// failures surface as an error; unknown keys yield empty frames.
	Bundle(ctx context.Context, keys []string) (*Bundle, error)
}
