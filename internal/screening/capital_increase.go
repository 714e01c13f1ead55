package screening

import (
	"context"

	"github.com/twquant/screener/internal/data"
	"github.com/twquant/screener/internal/table"
	"github.com/twquant/screener/pkg/logger"
)

// CapitalIncrease looks for freshly completed rights issues: capital
// stock up alongside a jump in cash, backed by sound fundamentals.
// 注意: 沒有現增公告資料，用股本與現金變化間接判斷
type CapitalIncrease struct {
	log      *logger.Logger
	defaults FilterDefaults
}

// NewCapitalIncrease creates the tuned capital increase strategy.
func NewCapitalIncrease(log *logger.Logger, defaults FilterDefaults) *CapitalIncrease {
	return &CapitalIncrease{log: log, defaults: defaults}
}

func (s *CapitalIncrease) Key() string  { return "capital_increase" }
func (s *CapitalIncrease) Name() string { return "大現增快繳款結束" }

func (s *CapitalIncrease) Description() string {
	return "偵測現增繳款後現金大增、基本面良好的股票"
}

func (s *CapitalIncrease) RequiredDataKeys() []string {
	return requiredKeys(data.KeyCash, data.KeyCommonStock, data.KeyROE, data.KeyRevenueYoY)
}

func (s *CapitalIncrease) Screen(ctx context.Context, b *data.Bundle) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	close := b.Table(data.KeyClose)
	cash := b.Table(data.KeyCash)
	commonStock := b.Table(data.KeyCommonStock)
	roe := b.Table(data.KeyROE)
	revenueYoY := b.Table(data.KeyRevenueYoY)

	if close.IsEmpty() || cash.IsEmpty() || commonStock.IsEmpty() {
		s.log.WithField("strategy", s.Key()).Warn("missing price, cash or capital tables, returning empty result")
		return emptyResult(s.Key(), s.Name()), nil
	}
	if cash.NumDates() < 2 {
		s.log.WithField("strategy", s.Key()).Warn("fewer than two financial periods, returning empty result")
		return emptyResult(s.Key(), s.Name()), nil
	}

	universe := close.Stocks()
	latestClose := close.LatestRow()
	latestCash := cash.RowFromEnd(0)
	prevCash := cash.RowFromEnd(1)
	latestStock := commonStock.RowFromEnd(0)
	prevStock := latestStock
	if commonStock.NumDates() >= 2 {
		prevStock = commonStock.RowFromEnd(1)
	}

	// 條件1: 股本增加 > 5%（現增跡象）
	stockIncrease := latestStock.Sub(prevStock).Div(prevStock)
	cond1 := stockIncrease.Gt(0.05)
	logCondition(s.log, s.Key(), "capital_stock_up_5pct", cond1)

	// 條件2: 現金及約當現金增加 > 20%（繳款完成）
	cashIncrease := latestCash.Sub(prevCash).Div(prevCash)
	cond2 := cashIncrease.Gt(0.20)
	logCondition(s.log, s.Key(), "cash_up_20pct", cond2)

	// 條件3: ROE > 10%
	var cond3 *table.Mask
	var latestROE *table.Series
	if !roe.IsEmpty() {
		latestROE = roe.LatestRow()
		cond3 = latestROE.Gt(10)
	} else {
		cond3 = table.NewMaskAll(universe)
	}
	logCondition(s.log, s.Key(), "roe_above_10pct", cond3)

	// 條件4: 營收年增率 > 0
	var cond4 *table.Mask
	var latestYoY *table.Series
	if !revenueYoY.IsEmpty() {
		latestYoY = revenueYoY.LatestRow()
		cond4 = latestYoY.Gt(0)
	} else {
		cond4 = table.NewMaskAll(universe)
	}
	logCondition(s.log, s.Key(), "revenue_yoy_positive", cond4)

	// 條件5: 價格合理區間
	cond5 := latestClose.Gt(20).And(latestClose.Lt(150))
	logCondition(s.log, s.Key(), "price_range", cond5)

	// 條件6: 現金占股本比 > 30%
	cond6 := latestCash.Div(latestStock).Gt(0.3)
	logCondition(s.log, s.Key(), "cash_to_capital_ratio", cond6)

	basic := BasicFilters{
		MinPrice:            20,
		MaxPrice:            150,
		MinMarketCap:        s.defaults.MinMarketCap,
		LiquidityPercentile: s.defaults.LiquidityPercentile,
	}.Apply(b)
	logCondition(s.log, s.Key(), "basic_filters", basic)

	final := table.NewMaskAll(universe).
		AndAll(cond1, cond2, cond3, cond4, cond5, cond6, basic)
	selected := final.TrueStocks()
	if len(selected) == 0 {
		s.log.WithField("strategy", s.Key()).Info("no stocks matched")
		return emptyResult(s.Key(), s.Name()), nil
	}

	roeZ := zeroSeries(universe)
	if latestROE != nil {
		roeZ = zscore(latestROE)
	}
	yoyZ := zeroSeries(universe)
	if latestYoY != nil {
		yoyZ = zscore(latestYoY)
	}

	scores := weightedSum(universe, []weightedPart{
		{0.30, zscore(cashIncrease)},
		{0.20, zscore(stockIncrease)},
		{0.25, roeZ},
		{0.25, yoyZ},
	})

	return newResult(s.Key(), s.Name(), close.LatestDate(), selected, scores,
		map[string]*table.Series{
			"price":          latestClose,
			"cash_increase":  cashIncrease,
			"stock_increase": stockIncrease,
			"roe":            latestROE,
			"cash_yi":        latestCash.MulScalar(1.0 / 1e5), // 仟元 → 億元
		},
		map[string]interface{}{
			"strategy":           "capital_increase",
			"min_stock_increase": 0.05,
			"min_cash_increase":  0.20,
			"data_source":        "indirect_indicators",
		},
	), nil
}
