package screening

import (
	"context"

	"github.com/twquant/screener/internal/data"
	"github.com/twquant/screener/internal/table"
	"github.com/twquant/screener/pkg/logger"
)

// InstitutionalBuying selects stocks with two consecutive up days on
// heavy volume while the margin balance shrinks, a pattern read as
// institutional accumulation.
// 注意: 沒有券商買超資料，用量價與融資間接推測主力行為
type InstitutionalBuying struct {
	log      *logger.Logger
	defaults FilterDefaults
}

// NewInstitutionalBuying creates the tuned institutional buying strategy.
func NewInstitutionalBuying(log *logger.Logger, defaults FilterDefaults) *InstitutionalBuying {
	return &InstitutionalBuying{log: log, defaults: defaults}
}

func (s *InstitutionalBuying) Key() string  { return "inst_buying" }
func (s *InstitutionalBuying) Name() string { return "連兩日大戶大買超" }

func (s *InstitutionalBuying) Description() string {
	return "連續2日量增價漲且融資減少，推測主力吸籌"
}

func (s *InstitutionalBuying) RequiredDataKeys() []string {
	return requiredKeys(data.KeyMarginBalance)
}

func (s *InstitutionalBuying) Screen(ctx context.Context, b *data.Bundle) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	close := b.Table(data.KeyClose)
	volume := b.Table(data.KeyVolume)
	margin := b.Table(data.KeyMarginBalance)

	if close.IsEmpty() || volume.IsEmpty() {
		s.log.WithField("strategy", s.Key()).Warn("missing price or volume tables, returning empty result")
		return emptyResult(s.Key(), s.Name()), nil
	}

	// 需要 20 日均量加最近 2 日
	if close.NumDates() < 22 {
		s.log.WithFields(map[string]interface{}{
			"strategy": s.Key(),
			"rows":     close.NumDates(),
		}).Warn("fewer than 22 sessions of history, returning empty result")
		return emptyResult(s.Key(), s.Name()), nil
	}

	universe := close.Stocks()
	closeT0 := close.RowFromEnd(0)
	closeT1 := close.RowFromEnd(1)
	closeT2 := close.RowFromEnd(2)
	volumeT0 := volume.RowFromEnd(0)
	volumeT1 := volume.RowFromEnd(1)

	// 條件1: 連續 2 日上漲
	cond1 := closeT0.GtSeries(closeT1).And(closeT1.GtSeries(closeT2))
	logCondition(s.log, s.Key(), "two_up_days", cond1)

	// 條件2: 連續 2 日量增（排除最近 2 日計算均量）
	avg20 := tailMean(volume.Tail(22).Shift(2), 20)
	cond2 := volumeT0.GtSeries(avg20.MulScalar(1.5)).
		And(volumeT1.GtSeries(avg20.MulScalar(1.5)))
	logCondition(s.log, s.Key(), "two_volume_surges", cond2)

	// 條件3: 連續 2 日融資減少（主力吸籌）
	var cond3 *table.Mask
	var marginChange *table.Series
	if !margin.IsEmpty() && margin.NumDates() >= 3 {
		m0 := margin.RowFromEnd(0)
		m1 := margin.RowFromEnd(1)
		m2 := margin.RowFromEnd(2)
		cond3 = m0.LtSeries(m1).And(m1.LtSeries(m2))
		marginChange = m0.Sub(m2).Div(m2)
	} else {
		cond3 = table.NewMaskAll(universe)
		marginChange = zeroSeries(universe)
	}
	logCondition(s.log, s.Key(), "margin_decline", cond3)

	// 條件4: 漲幅適中（兩日皆為 0 到 7%，避免追漲停）
	one := oneSeries(universe)
	day1Return := closeT0.Div(closeT1).Sub(one)
	day2Return := closeT1.Div(closeT2).Sub(one)
	cond4 := day1Return.Gt(0).And(day1Return.Lt(0.07)).
		And(day2Return.Gt(0)).And(day2Return.Lt(0.07))
	logCondition(s.log, s.Key(), "moderate_gains", cond4)

	// 條件5: 價格合理區間
	cond5 := closeT0.Gt(20).And(closeT0.Lt(200))
	logCondition(s.log, s.Key(), "price_range", cond5)

	// 條件6: 成交量高於全市場中位數
	cond6 := volumeT0.Gt(volumeT0.Median())
	logCondition(s.log, s.Key(), "volume_above_median", cond6)

	basic := BasicFilters{
		MinPrice:            20,
		MaxPrice:            200,
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

	// 評分因子: 量增倍數、兩日累積漲幅、融資變化（減少為正）
	avgVolumeRatio := volumeT0.Div(avg20).Add(volumeT1.Div(avg20)).MulScalar(0.5)
	totalReturn2d := closeT0.Div(closeT2).Sub(one)

	scores := weightedSum(universe, []weightedPart{
		{0.40, zscore(avgVolumeRatio)},
		{0.30, zscore(totalReturn2d)},
		{0.30, zscore(marginChange).MulScalar(-1)},
	})

	return newResult(s.Key(), s.Name(), close.LatestDate(), selected, scores,
		map[string]*table.Series{
			"price":        closeT0,
			"return_2d":    totalReturn2d,
			"volume_ratio": avgVolumeRatio,
			"day1_return":  day1Return,
			"day2_return":  day2Return,
		},
		map[string]interface{}{
			"strategy":         "institutional_buying",
			"consecutive_days": 2,
			"volume_threshold": 1.5,
		},
	), nil
}
