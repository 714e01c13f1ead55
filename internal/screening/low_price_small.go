package screening

import (
	"context"

	"github.com/twquant/screener/internal/data"
	"github.com/twquant/screener/internal/table"
	"github.com/twquant/screener/pkg/logger"
)

// LowPriceSmallCap selects small-cap stocks under 100 NTD whose monthly
// revenue just made a 12-month high and is still growing year over year.
type LowPriceSmallCap struct {
	log      *logger.Logger
	defaults FilterDefaults
}

// NewLowPriceSmallCap creates the tuned low-price small-cap strategy.
func NewLowPriceSmallCap(log *logger.Logger, defaults FilterDefaults) *LowPriceSmallCap {
	return &LowPriceSmallCap{log: log, defaults: defaults}
}

func (s *LowPriceSmallCap) Key() string  { return "low_price_small" }
func (s *LowPriceSmallCap) Name() string { return "低價小股本營收創一年高" }

func (s *LowPriceSmallCap) Description() string {
	return "選擇股價<100元、市值<100億、營收創新高的小型成長股"
}

func (s *LowPriceSmallCap) RequiredDataKeys() []string {
	return requiredKeys(data.KeyRevenue, data.KeyRevenueYoY)
}

func (s *LowPriceSmallCap) Screen(ctx context.Context, b *data.Bundle) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	close := b.Table(data.KeyClose)
	marketCap := b.Table(data.KeyMarketCap)
	revenue := b.Table(data.KeyRevenue)
	revenueYoY := b.Table(data.KeyRevenueYoY)

	if close.IsEmpty() || marketCap.IsEmpty() || revenue.IsEmpty() {
		s.log.WithField("strategy", s.Key()).Warn("missing price, market-cap or revenue tables, returning empty result")
		return emptyResult(s.Key(), s.Name()), nil
	}

	universe := close.Stocks()
	latestClose := close.LatestRow()
	latestMarketCap := marketCap.LatestRow()
	latestRevenue := revenue.LatestRow()

	// 條件1: 低價股
	cond1 := latestClose.Lt(100)
	logCondition(s.log, s.Key(), "price_below_100", cond1)

	// 條件2: 小股本（市值 < 100 億）
	cond2 := latestMarketCap.Lt(10_000_000_000)
	logCondition(s.log, s.Key(), "market_cap_below_10b", cond2)

	// 條件3: 當月營收創近 12 個月新高（允許 1% 誤差）
	window := 12
	if revenue.NumDates() < 12 {
		// 營收不足 12 個月時退而使用全部歷史
		logInsufficientHistory(s.log, s.Key(), "revenue_12m_high", revenue.NumDates())
		window = revenue.NumDates()
	}
	max12 := tailMax(revenue, window)
	cond3 := latestRevenue.GeSeries(max12.MulScalar(0.99))
	logCondition(s.log, s.Key(), "revenue_12m_high", cond3)

	// 條件4: 營收年增率 > 15%
	var cond4 *table.Mask
	var latestYoY *table.Series
	if !revenueYoY.IsEmpty() {
		latestYoY = revenueYoY.LatestRow()
		cond4 = latestYoY.Gt(0.15)
	} else {
		cond4 = table.NewMaskAll(universe)
	}
	logCondition(s.log, s.Key(), "yoy_gt_15pct", cond4)

	// 條件5: 市值 > 10 億（排除過小公司）
	cond5 := latestMarketCap.Gt(1_000_000_000)
	logCondition(s.log, s.Key(), "market_cap_above_1b", cond5)

	basic := BasicFilters{
		MinPrice:            10,
		MaxPrice:            100,
		MinMarketCap:        1_000_000_000,
		LiquidityPercentile: 0.4, // 小型股流動性較差，放寬分位數
	}.Apply(b)
	logCondition(s.log, s.Key(), "basic_filters", basic)

	final := table.NewMaskAll(universe).
		AndAll(cond1, cond2, cond3, cond4, cond5, basic)
	selected := final.TrueStocks()
	if len(selected) == 0 {
		s.log.WithField("strategy", s.Key()).Info("no stocks matched")
		return emptyResult(s.Key(), s.Name()), nil
	}

	// 營收創新高程度: 當月營收 / 窗口內平均
	avgRevenue := tailMean(revenue, window)
	revenueRatio := latestRevenue.Div(avgRevenue)

	yoyZ := zeroSeries(universe)
	if latestYoY != nil {
		yoyZ = zscore(latestYoY)
	}

	scores := weightedSum(universe, []weightedPart{
		{0.4, zscore(revenueRatio)},
		{0.3, yoyZ},
		{0.3, zscore(latestMarketCap).MulScalar(-1)}, // 市值越小越好
	})

	return newResult(s.Key(), s.Name(), close.LatestDate(), selected, scores,
		map[string]*table.Series{
			"price":         latestClose,
			"market_cap_yi": latestMarketCap.MulScalar(1.0 / 1e8),
			"revenue_ratio": revenueRatio,
			"yoy":           latestYoY,
		},
		map[string]interface{}{
			"strategy":       "low_price_small_cap",
			"max_price":      100,
			"max_market_cap": 100, // 億
			"min_yoy":        0.15,
		},
	), nil
}
