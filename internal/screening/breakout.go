package screening

import (
	"context"
	"math"

	"github.com/twquant/screener/internal/data"
	"github.com/twquant/screener/internal/table"
	"github.com/twquant/screener/pkg/logger"
)

// Breakout selects stocks that held their base for 60 sessions and are
// now pushing through their 20-day high on expanding volume with
// contracting volatility (VCP-style breakout).
type Breakout struct {
	log      *logger.Logger
	defaults FilterDefaults
}

// NewBreakout creates the tuned breakout strategy.
func NewBreakout(log *logger.Logger, defaults FilterDefaults) *Breakout {
	return &Breakout{log: log, defaults: defaults}
}

func (s *Breakout) Key() string  { return "breakout" }
func (s *Breakout) Name() string { return "長時間未破底後創新高" }

func (s *Breakout) Description() string {
	return "選擇底部穩固（60天未破底）且近期突破的股票"
}

func (s *Breakout) RequiredDataKeys() []string {
	return requiredKeys(data.KeyHigh, data.KeyLow)
}

// Screen runs the breakout conditions over the latest cross-section.
func (s *Breakout) Screen(ctx context.Context, b *data.Bundle) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	close := b.Table(data.KeyClose)
	high := b.Table(data.KeyHigh)
	low := b.Table(data.KeyLow)
	volume := b.Table(data.KeyVolume)

	if close.IsEmpty() || high.IsEmpty() || low.IsEmpty() {
		s.log.WithField("strategy", s.Key()).Warn("missing price tables, returning empty result")
		return emptyResult(s.Key(), s.Name()), nil
	}

	universe := close.Stocks()
	latest := close.LatestRow()
	days := close.NumDates()

	// 條件1: 60 天未創新低（最低點落在窗口前段）
	var cond1 *table.Mask
	if days >= 60 {
		argMin := tailArgMin(low, 60)
		cond1 = argMin.Lt(20)
	} else {
		logInsufficientHistory(s.log, s.Key(), "base_60d", days)
		cond1 = table.NewMaskAll(universe)
	}
	logCondition(s.log, s.Key(), "base_60d", cond1)

	// 條件2: 收盤價貼近 20 天最高價（允許 1% 誤差）
	var cond2 *table.Mask
	max20 := tailMax(high, 20)
	if days >= 20 {
		cond2 = latest.GeSeries(max20.MulScalar(0.99))
	} else {
		logInsufficientHistory(s.log, s.Key(), "new_high_20d", days)
		cond2 = table.NewMaskAll(universe)
	}
	logCondition(s.log, s.Key(), "new_high_20d", cond2)

	// 條件3: 波動率收斂（20 天變異係數 < 60 天變異係數）
	var cond3 *table.Mask
	var volRatio *table.Series
	if days >= 60 {
		cv20 := tailStd(close, 20).Div(tailMean(close, 20))
		cv60 := tailStd(close, 60).Div(tailMean(close, 60))
		cond3 = cv20.LtSeries(cv60)
		volRatio = cv20.Div(cv60)
	} else {
		cond3 = table.NewMaskAll(universe)
	}
	logCondition(s.log, s.Key(), "volatility_contraction", cond3)

	// 條件4: 成交量放大（5 日均量 > 20 日均量 1.2 倍）
	var cond4 *table.Mask
	var volumeRatio *table.Series
	if !volume.IsEmpty() && volume.NumDates() >= 20 {
		avg5 := tailMean(volume, 5)
		avg20 := tailMean(volume, 20)
		cond4 = avg5.GtSeries(avg20.MulScalar(1.2))
		volumeRatio = avg5.Div(avg20)
	} else {
		cond4 = table.NewMaskAll(universe)
	}
	logCondition(s.log, s.Key(), "volume_expansion", cond4)

	// 條件5: 相對強度（20 日報酬 > 0）
	var cond5 *table.Mask
	var return20 *table.Series
	if days >= 20 {
		return20 = latest.Div(close.RowFromEnd(19)).Sub(oneSeries(universe))
		cond5 = return20.Gt(0)
	} else {
		cond5 = table.NewMaskAll(universe)
		return20 = zeroSeries(universe)
	}
	logCondition(s.log, s.Key(), "return_20d", cond5)

	// 條件6: 價格合理區間
	cond6 := latest.Gt(20).And(latest.Lt(300))
	logCondition(s.log, s.Key(), "price_range", cond6)

	basic := BasicFilters{
		MinPrice:            20,
		MaxPrice:            300,
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

	// 評分因子
	var distLow, distHigh *table.Series
	if days >= 60 {
		min60 := tailMin(low, 60)
		distLow = latest.Sub(min60).Div(min60)
		distHigh = latest.Sub(max20).Div(max20)
	} else {
		distLow = zeroSeries(universe)
		distHigh = zeroSeries(universe)
		volRatio = oneSeries(universe)
	}
	if volumeRatio == nil {
		volumeRatio = oneSeries(universe)
	}

	scores := weightedSum(universe, []weightedPart{
		{0.25, zscore(distLow)},                                                   // 遠離低點
		{0.20, mapSeries(zscore(distHigh), func(v float64) float64 { return -math.Abs(v) })}, // 接近高點
		{0.20, zscore(volRatio).MulScalar(-1)},                                    // 波動收斂
		{0.20, zscore(volumeRatio)},                                               // 量能放大
		{0.15, zscore(return20)},                                                  // 相對強度
	})

	return newResult(s.Key(), s.Name(), close.LatestDate(), selected, scores,
		map[string]*table.Series{
			"price":             latest,
			"return_20d":        return20,
			"volume_ratio":      volumeRatio,
			"distance_from_low": distLow,
		},
		map[string]interface{}{
			"strategy":        "breakout_after_base",
			"base_period":     60,
			"breakout_period": 20,
		},
	), nil
}
