// Package screening implements the rule-based stock screening strategies:
// a shared strategy contract, the basic tradability filters, six tuned
// strategies with their classic counterparts, and a manager that runs
// them as a batch and aggregates cross-strategy appearances.
package screening

import (
	"context"
	"math"
	"sort"

	"github.com/twquant/screener/internal/data"
	"github.com/twquant/screener/internal/table"
)

// Strategy is the contract every screening strategy implements.
// Screen never mutates the bundle, returns an empty well-formed result
// (not an error) when required tables are missing, and is deterministic
// for a given bundle.
type Strategy interface {
	Key() string
	Name() string
	Description() string
	RequiredDataKeys() []string
	Screen(ctx context.Context, bundle *data.Bundle) (*Result, error)
}

// baseRequiredKeys 是幾乎所有策略共用的基礎資料需求
var baseRequiredKeys = []string{
	data.KeyClose,
	data.KeyVolume,
	data.KeyMarketCap,
	data.KeyExcludeAttention,
	data.KeyExcludeCashDelivery,
}

// requiredKeys returns the base set plus strategy-specific extras.
func requiredKeys(extra ...string) []string {
	out := append([]string(nil), baseRequiredKeys...)
	return append(out, extra...)
}

// Row is one selected stock in a strategy result.
type Row struct {
	StockID string             `json:"stock_id"`
	Score   float64            `json:"score"`
	Rank    int                `json:"rank"`
	Extra   map[string]float64 `json:"extra,omitempty"`
}

// Result is the outcome of one strategy run. Rows are sorted by score
// descending (stock id ascending on ties) and carry 1-based ranks.
type Result struct {
	StrategyKey   string                 `json:"strategy_key"`
	StrategyName  string                 `json:"strategy_name"`
	SelectionDate string                 `json:"selection_date"`
	Rows          []Row                  `json:"rows"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// IsEmpty reports whether the result selected no stocks.
func (r *Result) IsEmpty() bool {
	return r == nil || len(r.Rows) == 0
}

// StockIDs returns the selected stock ids in rank order.
func (r *Result) StockIDs() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.Rows))
	for i, row := range r.Rows {
		out[i] = row.StockID
	}
	return out
}

// emptyResult builds a well-formed result with no rows.
func emptyResult(key, name string) *Result {
	return &Result{
		StrategyKey:  key,
		StrategyName: name,
		Rows:         []Row{},
	}
}

// newResult assembles a result from the selected stocks, their scores,
// and per-stock diagnostic columns. A nil scores series assigns every
// stock the default score 100.0. NaN scores are coerced to 0 so the
// result serializes cleanly; NaN extras are dropped per stock.
func newResult(
	key, name, selectionDate string,
	selected []string,
	scores *table.Series,
	extras map[string]*table.Series,
	metadata map[string]interface{},
) *Result {
	rows := make([]Row, 0, len(selected))
	for _, stock := range selected {
		score := 100.0
		if scores != nil {
			if v, ok := scores.Value(stock); ok && !math.IsNaN(v) {
				score = v
			} else {
				score = 0
			}
		}

		var extra map[string]float64
		for col, s := range extras {
			if s == nil {
				continue
			}
			v, ok := s.Value(stock)
			if !ok || math.IsNaN(v) {
				continue
			}
			if extra == nil {
				extra = make(map[string]float64, len(extras))
			}
			extra[col] = v
		}

		rows = append(rows, Row{StockID: stock, Score: score, Extra: extra})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		return rows[i].StockID < rows[j].StockID
	})
	for i := range rows {
		rows[i].Rank = i + 1
	}

	return &Result{
		StrategyKey:   key,
		StrategyName:  name,
		SelectionDate: selectionDate,
		Rows:          rows,
		Metadata:      metadata,
	}
}
