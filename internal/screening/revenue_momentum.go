package screening

import (
	"context"

	"github.com/twquant/screener/internal/data"
	"github.com/twquant/screener/internal/table"
	"github.com/twquant/screener/pkg/logger"
)

// RevenueMomentum selects stocks whose monthly revenue is growing more
// than 20% year over year, still accelerating, and above the market-wide
// median, capped at a 150 NTD share price.
type RevenueMomentum struct {
	log      *logger.Logger
	defaults FilterDefaults
}

// NewRevenueMomentum creates the tuned revenue momentum strategy.
func NewRevenueMomentum(log *logger.Logger, defaults FilterDefaults) *RevenueMomentum {
	return &RevenueMomentum{log: log, defaults: defaults}
}

func (s *RevenueMomentum) Key() string  { return "revenue_momentum" }
func (s *RevenueMomentum) Name() string { return "營收動能高於同業平均" }

func (s *RevenueMomentum) Description() string {
	return "選擇月營收YoY>20%且持續成長的股票，價格<150元"
}

func (s *RevenueMomentum) RequiredDataKeys() []string {
	return requiredKeys(data.KeyRevenue, data.KeyRevenueYoY, data.KeyRevenueMoM)
}

func (s *RevenueMomentum) Screen(ctx context.Context, b *data.Bundle) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	revenue := b.Table(data.KeyRevenue)
	revenueYoY := b.Table(data.KeyRevenueYoY)
	revenueMoM := b.Table(data.KeyRevenueMoM)
	close := b.Table(data.KeyClose)

	if revenue.IsEmpty() || revenueYoY.IsEmpty() || close.IsEmpty() {
		s.log.WithField("strategy", s.Key()).Warn("missing revenue or price tables, returning empty result")
		return emptyResult(s.Key(), s.Name()), nil
	}

	universe := close.Stocks()
	latestYoY := revenueYoY.LatestRow()
	latestClose := close.LatestRow()

	// 條件1: 營收年增率 > 20%
	cond1 := latestYoY.Gt(0.20)
	logCondition(s.log, s.Key(), "yoy_gt_20pct", cond1)

	// 條件2: 營收月增率 > 0（持續成長）
	var cond2 *table.Mask
	var latestMoM *table.Series
	if !revenueMoM.IsEmpty() {
		latestMoM = revenueMoM.LatestRow()
		cond2 = latestMoM.Gt(0)
	} else {
		cond2 = table.NewMaskAll(universe)
	}
	logCondition(s.log, s.Key(), "mom_positive", cond2)

	// 條件3: 營收動能加速（近 3 個月 YoY 趨勢向上）
	var cond3 *table.Mask
	var yoyTrend *table.Series
	if revenueYoY.NumDates() >= 3 {
		yoyTrend = tailTrend(revenueYoY, 3)
		cond3 = yoyTrend.Gt(0)
	} else {
		logInsufficientHistory(s.log, s.Key(), "yoy_trend_3m", revenueYoY.NumDates())
		cond3 = table.NewMaskAll(universe)
		yoyTrend = zeroSeries(universe)
	}
	logCondition(s.log, s.Key(), "yoy_trend_3m", cond3)

	// 條件4: YoY 高於全市場中位數
	median := latestYoY.Median()
	cond4 := latestYoY.Gt(median)
	logCondition(s.log, s.Key(), "yoy_above_median", cond4)

	// 條件5: 股價 < 150 元
	cond5 := latestClose.Lt(150)
	logCondition(s.log, s.Key(), "price_below_150", cond5)

	basic := BasicFilters{
		MinPrice:            10,
		MaxPrice:            150,
		MinMarketCap:        s.defaults.MinMarketCap,
		LiquidityPercentile: s.defaults.LiquidityPercentile,
	}.Apply(b)
	logCondition(s.log, s.Key(), "basic_filters", basic)

	final := table.NewMaskAll(universe).
		AndAll(cond1, cond2, cond3, cond4, cond5, basic)
	selected := final.TrueStocks()
	if len(selected) == 0 {
		s.log.WithField("strategy", s.Key()).Info("no stocks matched")
		return emptyResult(s.Key(), s.Name()), nil
	}

	momZ := zeroSeries(universe)
	if latestMoM != nil {
		momZ = zscore(latestMoM)
	}

	// YoY 60% + MoM 20% + 趨勢斜率 20%（斜率不標準化）
	scores := weightedSum(universe, []weightedPart{
		{0.6, zscore(latestYoY)},
		{0.2, momZ},
		{0.2, yoyTrend},
	})

	return newResult(s.Key(), s.Name(), close.LatestDate(), selected, scores,
		map[string]*table.Series{
			"yoy":   latestYoY,
			"mom":   latestMoM,
			"price": latestClose,
		},
		map[string]interface{}{
			"strategy":      "revenue_momentum",
			"yoy_threshold": 0.20,
			"median_yoy":    median,
			"max_price":     150,
		},
	), nil
}
