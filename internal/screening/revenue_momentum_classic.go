package screening

import (
	"context"
	"math"

	"github.com/twquant/screener/internal/data"
	"github.com/twquant/screener/internal/table"
	"github.com/twquant/screener/pkg/logger"
)

// RevenueMomentumClassic is the original spreadsheet rendition of the
// revenue momentum screen: strict 20% thresholds on both YoY and MoM,
// the 3-month YoY average compared against the stock's own industry
// mean, and two consecutive quarters of EPS growth.
type RevenueMomentumClassic struct {
	log *logger.Logger
}

// NewRevenueMomentumClassic creates the classic revenue momentum strategy.
func NewRevenueMomentumClassic(log *logger.Logger) *RevenueMomentumClassic {
	return &RevenueMomentumClassic{log: log}
}

func (s *RevenueMomentumClassic) Key() string  { return "revenue_momentum_classic" }
func (s *RevenueMomentumClassic) Name() string { return "營收動能高於同業平均（原始版）" }

func (s *RevenueMomentumClassic) Description() string {
	return "月營收YoY>20%、MoM>20%、3月平均YoY高於同產業平均，連兩季EPS成長，價格<100元"
}

func (s *RevenueMomentumClassic) RequiredDataKeys() []string {
	return requiredKeys(data.KeyRevenue, data.KeyEPS)
}

func (s *RevenueMomentumClassic) Screen(ctx context.Context, b *data.Bundle) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	revenue := b.Table(data.KeyRevenue)
	close := b.Table(data.KeyClose)
	eps := b.Table(data.KeyEPS)

	if revenue.IsEmpty() || close.IsEmpty() {
		s.log.WithField("strategy", s.Key()).Warn("missing revenue or price tables, returning empty result")
		return emptyResult(s.Key(), s.Name()), nil
	}

	universe := close.Stocks()
	latestClose := close.LatestRow()

	// 由原始月營收推導成長率
	yoyFrame := revenue.PctChange(12)
	latestYoY := yoyFrame.LatestRow()
	latestMoM := revenue.PctChange(1).LatestRow()
	yoy3Avg := yoyFrame.Rolling(3).Mean().LatestRow()

	// 條件1: YoY > 20%
	cond1 := latestYoY.Gt(0.20)
	logCondition(s.log, s.Key(), "yoy_gt_20pct", cond1)

	// 條件2: MoM > 20%
	cond2 := latestMoM.Gt(0.20)
	logCondition(s.log, s.Key(), "mom_gt_20pct", cond2)

	// 條件3: 3 個月平均 YoY 高於同產業平均（無產業資料者視為通過）
	cond3 := s.industryCondition(yoy3Avg, b.Industry, universe)
	logCondition(s.log, s.Key(), "above_industry_avg", cond3)

	// 條件4: 連續兩季 EPS 成長
	var cond4 *table.Mask
	if !eps.IsEmpty() {
		cond4 = consecutiveGrowth(eps, 2)
	} else {
		cond4 = table.NewMaskAll(universe)
	}
	logCondition(s.log, s.Key(), "eps_growth_2q", cond4)

	// 條件5: 股價 < 100 元
	cond5 := latestClose.Lt(100)
	logCondition(s.log, s.Key(), "price_below_100", cond5)

	basic := BasicFilters{}.Apply(b)
	logCondition(s.log, s.Key(), "basic_filters", basic)

	final := table.NewMaskAll(universe).
		AndAll(cond1, cond2, cond3, cond4, cond5, basic)
	selected := final.TrueStocks()
	if len(selected) == 0 {
		s.log.WithField("strategy", s.Key()).Info("no stocks matched")
		return emptyResult(s.Key(), s.Name()), nil
	}

	scores := subsetScore(selected, []weightedPart{
		{0.6, latestYoY},
		{0.4, latestMoM},
	})

	return newResult(s.Key(), s.Name(), close.LatestDate(), selected, scores,
		map[string]*table.Series{
			"yoy":   latestYoY,
			"mom":   latestMoM,
			"price": latestClose,
		},
		map[string]interface{}{
			"strategy": "revenue_momentum",
			"version":  "classic",
		},
	), nil
}

// industryCondition compares each stock's value against the mean of its
// industry peers. Stocks without a classification pass.
func (s *RevenueMomentumClassic) industryCondition(
	values *table.Series,
	industry map[string]string,
	universe []string,
) *table.Mask {
	if len(industry) == 0 {
		return table.NewMaskAll(universe)
	}

	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, stock := range values.Stocks() {
		group, ok := industry[stock]
		if !ok {
			continue
		}
		v, _ := values.Value(stock)
		if math.IsNaN(v) {
			continue
		}
		sums[group] += v
		counts[group]++
	}

	mask := table.NewMask(universe)
	for _, stock := range universe {
		group, ok := industry[stock]
		if !ok {
			mask.Set(stock, true) // 無產業分類，視為通過
			continue
		}
		v, valid := values.Value(stock)
		if !valid || math.IsNaN(v) || counts[group] == 0 {
			continue
		}
		mask.Set(stock, v > sums[group]/float64(counts[group]))
	}
	return mask
}
