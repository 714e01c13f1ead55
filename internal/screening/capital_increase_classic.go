package screening

import (
	"context"

	"github.com/twquant/screener/internal/data"
	"github.com/twquant/screener/internal/table"
	"github.com/twquant/screener/pkg/logger"
)

// CapitalIncreaseClassic is the original spreadsheet rendition of the
// rights-issue screen. Payment-deadline announcements are unavailable,
// so it keeps the original's proxy: capital stock up more than 5% and
// cash up more than 20% within the last three periods, plus quality
// gates on ROE and revenue growth.
type CapitalIncreaseClassic struct {
	log *logger.Logger
}

// NewCapitalIncreaseClassic creates the classic capital increase strategy.
func NewCapitalIncreaseClassic(log *logger.Logger) *CapitalIncreaseClassic {
	return &CapitalIncreaseClassic{log: log}
}

func (s *CapitalIncreaseClassic) Key() string  { return "capital_increase_classic" }
func (s *CapitalIncreaseClassic) Name() string { return "大現增快繳款結束（原始版）" }

func (s *CapitalIncreaseClassic) Description() string {
	return "現增繳款日<2天，現增比率>5%（以股本與現金變化間接推估）"
}

func (s *CapitalIncreaseClassic) RequiredDataKeys() []string {
	return requiredKeys(data.KeyCash, data.KeyCommonStock, data.KeyROE, data.KeyRevenue)
}

func (s *CapitalIncreaseClassic) Screen(ctx context.Context, b *data.Bundle) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	close := b.Table(data.KeyClose)
	commonStock := b.Table(data.KeyCommonStock)
	cash := b.Table(data.KeyCash)
	roe := b.Table(data.KeyROE)
	revenue := b.Table(data.KeyRevenue)

	if close.IsEmpty() || commonStock.IsEmpty() {
		s.log.WithField("strategy", s.Key()).Warn("missing price or capital tables, returning empty result")
		return emptyResult(s.Key(), s.Name()), nil
	}

	universe := close.Stocks()
	latestClose := close.LatestRow()

	// 近 3 期內股本增加 > 5%
	stockGrowth3Max := commonStock.PctChange(1).Rolling(3).Max().LatestRow()
	recentStockIncrease := stockGrowth3Max.Gt(0.05)
	logCondition(s.log, s.Key(), "capital_stock_up_5pct", recentStockIncrease)

	// 近 3 期內現金增加 > 20%（無資料視為通過）
	var recentCashIncrease *table.Mask
	var cashGrowth3Max *table.Series
	if !cash.IsEmpty() {
		cashGrowth3Max = cash.PctChange(1).Rolling(3).Max().LatestRow()
		recentCashIncrease = cashGrowth3Max.Gt(0.20)
	} else {
		s.log.WithField("strategy", s.Key()).Warn("no cash table, skipping cash condition")
		recentCashIncrease = table.NewMaskAll(universe)
	}
	logCondition(s.log, s.Key(), "cash_up_20pct", recentCashIncrease)

	// 品質門檻: ROE > 10（原始資料以百分比計）
	var qualityFilter *table.Mask
	var latestROE *table.Series
	if !roe.IsEmpty() {
		latestROE = roe.LatestRow()
		qualityFilter = latestROE.Gt(10)
	} else {
		qualityFilter = table.NewMaskAll(universe)
	}
	logCondition(s.log, s.Key(), "roe_above_10", qualityFilter)

	// 成長門檻: 營收年增率 > 0
	var growthFilter *table.Mask
	if !revenue.IsEmpty() {
		growthFilter = revenue.PctChange(12).LatestRow().Gt(0)
	} else {
		growthFilter = table.NewMaskAll(universe)
	}
	logCondition(s.log, s.Key(), "revenue_yoy_positive", growthFilter)

	basic := BasicFilters{}.Apply(b)
	logCondition(s.log, s.Key(), "basic_filters", basic)

	final := table.NewMaskAll(universe).
		AndAll(recentStockIncrease, recentCashIncrease, qualityFilter, growthFilter, basic)
	selected := final.TrueStocks()
	if len(selected) == 0 {
		s.log.WithField("strategy", s.Key()).Info("no stocks matched")
		return emptyResult(s.Key(), s.Name()), nil
	}

	scores := subsetScore(selected, []weightedPart{
		{0.4, stockGrowth3Max},
		{0.3, cashGrowth3Max},
		{0.3, latestROE},
	})

	return newResult(s.Key(), s.Name(), close.LatestDate(), selected, scores,
		map[string]*table.Series{
			"price":          latestClose,
			"stock_increase": stockGrowth3Max,
			"cash_increase":  cashGrowth3Max,
		},
		map[string]interface{}{
			"strategy": "capital_increase",
			"version":  "classic",
			"proxy":    "capital_and_cash_deltas",
		},
	), nil
}
