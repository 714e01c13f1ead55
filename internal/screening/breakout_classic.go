package screening

import (
	"context"

	"github.com/twquant/screener/internal/data"
	"github.com/twquant/screener/internal/table"
	"github.com/twquant/screener/pkg/logger"
)

// BreakoutClassic is the original spreadsheet rendition of the breakout
// screen: a 90-day base, a fresh 20-day high, monthly revenue at a
// 36-month peak, penny-priced small caps, and a fundamental gate of
// either high ROE or a three-year dividend record.
type BreakoutClassic struct {
	log *logger.Logger
}

// NewBreakoutClassic creates the classic breakout strategy.
func NewBreakoutClassic(log *logger.Logger) *BreakoutClassic {
	return &BreakoutClassic{log: log}
}

func (s *BreakoutClassic) Key() string  { return "breakout_classic" }
func (s *BreakoutClassic) Name() string { return "長時間未破底後創新高（原始版）" }

func (s *BreakoutClassic) Description() string {
	return "90天底部穩固後創20天新高，營收創36月新高，價格<20元且股本<20億"
}

func (s *BreakoutClassic) RequiredDataKeys() []string {
	return requiredKeys(
		data.KeyHigh, data.KeyLow, data.KeyRevenue,
		data.KeyCommonStock, data.KeyROE, data.KeyCashDividend,
	)
}

func (s *BreakoutClassic) Screen(ctx context.Context, b *data.Bundle) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	close := b.Table(data.KeyClose)
	high := b.Table(data.KeyHigh)
	low := b.Table(data.KeyLow)
	volume := b.Table(data.KeyVolume)
	revenue := b.Table(data.KeyRevenue)
	commonStock := b.Table(data.KeyCommonStock)
	roe := b.Table(data.KeyROE)
	dividend := b.Table(data.KeyCashDividend)

	if close.IsEmpty() || high.IsEmpty() || low.IsEmpty() || volume.IsEmpty() {
		s.log.WithField("strategy", s.Key()).Warn("missing price or volume tables, returning empty result")
		return emptyResult(s.Key(), s.Name()), nil
	}

	universe := close.Stocks()
	latestClose := close.LatestRow()
	latestHigh := high.RowFromEnd(0)
	days := close.NumDates()

	// 條件1: 90 天底部在窗口前段（最低點落在前 40 天）
	var cond1 *table.Mask
	low90Min := tailMin(low, 90)
	if days >= 90 {
		cond1 = tailArgMin(low, 90).Lt(40)
	} else {
		logInsufficientHistory(s.log, s.Key(), "base_90d", days)
		cond1 = table.NewMaskAll(universe)
	}
	logCondition(s.log, s.Key(), "base_90d", cond1)

	// 條件2: 創 20 天新高（允許 1% 誤差）
	high20Max := tailMax(high, 20)
	cond2 := latestHigh.GeSeries(high20Max.MulScalar(0.99))
	logCondition(s.log, s.Key(), "new_high_20d", cond2)

	// 條件3: 整理幅度有限（距 90 天低點 < 25%）
	cond3 := latestClose.Sub(low90Min).Div(low90Min).Lt(0.25)
	logCondition(s.log, s.Key(), "tight_consolidation", cond3)

	// 條件4: 成交量 > 20 日均量 2.5 倍
	volMA20 := volume.Rolling(20).Mean().LatestRow()
	latestVolume := volume.RowFromEnd(0)
	cond4 := latestVolume.GtSeries(volMA20.MulScalar(2.5))
	logCondition(s.log, s.Key(), "volume_surge", cond4)

	// 條件5: 月營收創 36 個月新高（無營收資料視為通過）
	var cond5 *table.Mask
	if !revenue.IsEmpty() {
		max36 := revenue.Rolling(36).Max().LatestRow()
		cond5 = revenue.LatestRow().GeSeries(max36.MulScalar(0.99))
	} else {
		cond5 = table.NewMaskAll(universe)
	}
	logCondition(s.log, s.Key(), "revenue_36m_high", cond5)

	// 條件6: 收盤價 < 20 元
	cond6 := latestClose.Lt(20)
	logCondition(s.log, s.Key(), "price_below_20", cond6)

	// 條件7: 股本 < 20 億（仟元計 2,000,000）
	var cond7 *table.Mask
	if !commonStock.IsEmpty() {
		cond7 = commonStock.LatestRow().Lt(2_000_000)
	} else {
		cond7 = table.NewMaskAll(universe)
	}
	logCondition(s.log, s.Key(), "small_capital", cond7)

	// 條件8: 基本面門檻: ROE > 25 或連續 3 年現金股利 > 2 元
	cond8 := s.fundamentalGate(roe, dividend, universe)
	logCondition(s.log, s.Key(), "fundamental_gate", cond8)

	basic := BasicFilters{}.Apply(b)
	logCondition(s.log, s.Key(), "basic_filters", basic)

	final := table.NewMaskAll(universe).
		AndAll(cond1, cond2, cond3, cond4, cond5, cond6, cond7, cond8, basic)
	selected := final.TrueStocks()
	if len(selected) == 0 {
		s.log.WithField("strategy", s.Key()).Info("no stocks matched")
		return emptyResult(s.Key(), s.Name()), nil
	}

	// 評分因子: 突破幅度、量能倍數、營收年增率
	breakoutStrength := latestHigh.Sub(high20Max).Div(high20Max)
	volumeRatio := latestVolume.Div(volMA20)
	var revenueYoY *table.Series
	if !revenue.IsEmpty() {
		revenueYoY = revenue.PctChange(12).LatestRow()
	}

	scores := subsetScore(selected, []weightedPart{
		{0.4, breakoutStrength},
		{0.3, volumeRatio},
		{0.3, revenueYoY},
	})

	return newResult(s.Key(), s.Name(), close.LatestDate(), selected, scores,
		map[string]*table.Series{
			"price":             latestClose,
			"breakout_strength": breakoutStrength,
			"volume_ratio":      volumeRatio,
			"revenue_yoy":       revenueYoY,
		},
		map[string]interface{}{
			"strategy": "breakout_after_base",
			"version":  "classic",
		},
	), nil
}

// fundamentalGate passes stocks with ROE > 25 or three consecutive
// yearly cash dividends above 2 NTD. Missing tables fail their half of
// the gate rather than waiving it.
func (s *BreakoutClassic) fundamentalGate(roe, dividend *table.Frame, universe []string) *table.Mask {
	roeOK := table.NewMask(universe)
	if !roe.IsEmpty() {
		roeOK = roe.LatestRow().Gt(25)
	}

	dividendOK := table.NewMask(universe)
	if !dividend.IsEmpty() && dividend.NumDates() >= 3 {
		dividendOK = dividend.RowFromEnd(0).Gt(2).
			And(dividend.RowFromEnd(1).Gt(2)).
			And(dividend.RowFromEnd(2).Gt(2))
	}

	return table.NewMask(universe).Or(roeOK).Or(dividendOK)
}
