package screening

import (
	"context"

	"github.com/twquant/screener/internal/data"
	"github.com/twquant/screener/internal/table"
	"github.com/twquant/screener/pkg/logger"
)

// CashGrowthClassic is the original spreadsheet rendition: cash up more
// than 5% quarter over quarter for four straight quarters, revenue MoM
// above 20%, and two consecutive quarters of EPS growth, with quality
// gates on operating cash flow and ROE.
type CashGrowthClassic struct {
	log *logger.Logger
}

// NewCashGrowthClassic creates the classic cash growth strategy.
func NewCashGrowthClassic(log *logger.Logger) *CashGrowthClassic {
	return &CashGrowthClassic{log: log}
}

func (s *CashGrowthClassic) Key() string  { return "cash_growth_classic" }
func (s *CashGrowthClassic) Name() string { return "現金快速累積中（原始版）" }

func (s *CashGrowthClassic) Description() string {
	return "連續4季現金增>5%（QoQ環比），MoM>20%，連續2季EPS成長"
}

func (s *CashGrowthClassic) RequiredDataKeys() []string {
	return requiredKeys(data.KeyCash, data.KeyRevenue, data.KeyEPS, data.KeyOperatingCF, data.KeyROE)
}

func (s *CashGrowthClassic) Screen(ctx context.Context, b *data.Bundle) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	close := b.Table(data.KeyClose)
	cash := b.Table(data.KeyCash)
	revenue := b.Table(data.KeyRevenue)
	eps := b.Table(data.KeyEPS)
	ocf := b.Table(data.KeyOperatingCF)
	roe := b.Table(data.KeyROE)

	if close.IsEmpty() || cash.IsEmpty() || revenue.IsEmpty() {
		s.log.WithField("strategy", s.Key()).Warn("missing price, cash or revenue tables, returning empty result")
		return emptyResult(s.Key(), s.Name()), nil
	}

	universe := close.Stocks()
	latestClose := close.LatestRow()

	// 連續 4 季現金 QoQ 增加 > 5%
	cashGrowth := cash.PctChange(1)
	cond1 := cashGrowth.RowFromEnd(0).Gt(0.05).
		And(cashGrowth.RowFromEnd(1).Gt(0.05)).
		And(cashGrowth.RowFromEnd(2).Gt(0.05)).
		And(cashGrowth.RowFromEnd(3).Gt(0.05))
	logCondition(s.log, s.Key(), "cash_up_4q", cond1)

	// 月營收 MoM > 20%
	latestMoM := revenue.PctChange(1).LatestRow()
	cond2 := latestMoM.Gt(0.20)
	logCondition(s.log, s.Key(), "mom_gt_20pct", cond2)

	// 連續兩季 EPS 成長（無資料視為通過）
	var cond3 *table.Mask
	if !eps.IsEmpty() {
		cond3 = consecutiveGrowth(eps, 2)
	} else {
		cond3 = table.NewMaskAll(universe)
	}
	logCondition(s.log, s.Key(), "eps_growth_2q", cond3)

	// 營業現金流 > 0（無資料視為通過）
	var cond4 *table.Mask
	var latestOCF *table.Series
	if !ocf.IsEmpty() {
		latestOCF = ocf.LatestRow()
		cond4 = latestOCF.Gt(0)
	} else {
		cond4 = table.NewMaskAll(universe)
	}
	logCondition(s.log, s.Key(), "ocf_positive", cond4)

	// ROE > 10（原始資料以百分比計，無資料視為通過）
	var cond5 *table.Mask
	if !roe.IsEmpty() {
		cond5 = roe.LatestRow().Gt(10)
	} else {
		cond5 = table.NewMaskAll(universe)
	}
	logCondition(s.log, s.Key(), "roe_above_10", cond5)

	basic := BasicFilters{}.Apply(b)
	logCondition(s.log, s.Key(), "basic_filters", basic)

	final := table.NewMaskAll(universe).
		AndAll(cond1, cond2, cond3, cond4, cond5, basic)
	selected := final.TrueStocks()
	if len(selected) == 0 {
		s.log.WithField("strategy", s.Key()).Info("no stocks matched")
		return emptyResult(s.Key(), s.Name()), nil
	}

	// 評分因子: 4 季平均現金增速、營收 MoM、OCF 強度
	cashGrowthAvg := cashGrowth.Rolling(4).Mean().LatestRow()

	scores := subsetScore(selected, []weightedPart{
		{0.4, cashGrowthAvg},
		{0.3, latestMoM},
		{0.3, latestOCF},
	})

	return newResult(s.Key(), s.Name(), close.LatestDate(), selected, scores,
		map[string]*table.Series{
			"price":              latestClose,
			"cash_growth_4q_avg": cashGrowthAvg,
			"revenue_mom":        latestMoM,
		},
		map[string]interface{}{
			"strategy": "cash_growth",
			"version":  "classic",
		},
	), nil
}
