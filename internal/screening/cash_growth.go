package screening

import (
	"context"

	"github.com/twquant/screener/internal/data"
	"github.com/twquant/screener/internal/table"
	"github.com/twquant/screener/pkg/logger"
)

// CashGrowth selects cash-machine companies: positive operating cash
// flow for three straight periods, rising cash balances, healthy free
// cash flow, and no dependence on financing.
type CashGrowth struct {
	log      *logger.Logger
	defaults FilterDefaults
}

// NewCashGrowth creates the tuned cash growth strategy.
func NewCashGrowth(log *logger.Logger, defaults FilterDefaults) *CashGrowth {
	return &CashGrowth{log: log, defaults: defaults}
}

func (s *CashGrowth) Key() string  { return "cash_growth" }
func (s *CashGrowth) Name() string { return "現金快速累積中" }

func (s *CashGrowth) Description() string {
	return "選擇營業現金流強、現金持續增加的高品質公司"
}

func (s *CashGrowth) RequiredDataKeys() []string {
	return requiredKeys(
		data.KeyCash, data.KeyOperatingCF, data.KeyInvestingCF,
		data.KeyFinancingCF, data.KeyTotalAssets, data.KeyROE,
	)
}

func (s *CashGrowth) Screen(ctx context.Context, b *data.Bundle) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	close := b.Table(data.KeyClose)
	cash := b.Table(data.KeyCash)
	ocf := b.Table(data.KeyOperatingCF)
	icf := b.Table(data.KeyInvestingCF)
	fin := b.Table(data.KeyFinancingCF)
	roe := b.Table(data.KeyROE)
	assets := b.Table(data.KeyTotalAssets)

	if close.IsEmpty() || cash.IsEmpty() || ocf.IsEmpty() {
		s.log.WithField("strategy", s.Key()).Warn("missing price, cash or cash-flow tables, returning empty result")
		return emptyResult(s.Key(), s.Name()), nil
	}
	if cash.NumDates() < 3 || ocf.NumDates() < 3 {
		s.log.WithField("strategy", s.Key()).Warn("fewer than three financial periods, returning empty result")
		return emptyResult(s.Key(), s.Name()), nil
	}

	universe := close.Stocks()
	latestClose := close.LatestRow()
	latestOCF := ocf.RowFromEnd(0)

	// 條件1: 營業現金流連續 3 期為正
	cond1 := latestOCF.Gt(0).
		And(ocf.RowFromEnd(1).Gt(0)).
		And(ocf.RowFromEnd(2).Gt(0))
	logCondition(s.log, s.Key(), "ocf_positive_3p", cond1)

	// 條件2: 現金連續 2 期增加
	cond2 := consecutiveGrowth(cash, 2)
	logCondition(s.log, s.Key(), "cash_rising_2p", cond2)

	// 條件3: 自由現金流 > 0（投資現金流通常為負，相加即 FCF）
	var cond3 *table.Mask
	fcf := latestOCF
	if !icf.IsEmpty() {
		fcf = latestOCF.Add(icf.RowFromEnd(0))
		cond3 = fcf.Gt(0)
	} else {
		cond3 = table.NewMaskAll(universe)
	}
	logCondition(s.log, s.Key(), "fcf_positive", cond3)

	// 條件4: 融資現金流 < 營業現金流，或為負（不靠借錢）
	var cond4 *table.Mask
	if !fin.IsEmpty() {
		latestFin := fin.RowFromEnd(0)
		cond4 = latestFin.LtSeries(latestOCF).Or(latestFin.Lt(0))
	} else {
		cond4 = table.NewMaskAll(universe)
	}
	logCondition(s.log, s.Key(), "financing_modest", cond4)

	// 條件5: 現金年增率 > 20%（季報足夠時與去年同期比）
	latestCash := cash.RowFromEnd(0)
	base := cash.RowFromEnd(2)
	if cash.NumDates() >= 5 {
		base = cash.RowFromEnd(4)
	}
	cashYoY := latestCash.Sub(base).Div(base)
	cond5 := cashYoY.Gt(0.20)
	logCondition(s.log, s.Key(), "cash_yoy_gt_20pct", cond5)

	// 條件6: 營業現金流 / 總資產 > 5%（現金品質）
	var cond6 *table.Mask
	var ocfToAssets *table.Series
	if !assets.IsEmpty() {
		ocfToAssets = latestOCF.Div(assets.RowFromEnd(0))
		cond6 = ocfToAssets.Gt(0.05)
	} else {
		cond6 = table.NewMaskAll(universe)
		ocfToAssets = zeroSeries(universe)
	}
	logCondition(s.log, s.Key(), "ocf_to_assets", cond6)

	// 條件7: ROE > 10%
	var cond7 *table.Mask
	var latestROE *table.Series
	if !roe.IsEmpty() {
		latestROE = roe.LatestRow()
		cond7 = latestROE.Gt(10)
	} else {
		cond7 = table.NewMaskAll(universe)
	}
	logCondition(s.log, s.Key(), "roe_above_10pct", cond7)

	basic := BasicFilters{
		MinPrice:            15,
		MinMarketCap:        s.defaults.MinMarketCap,
		LiquidityPercentile: s.defaults.LiquidityPercentile,
	}.Apply(b)
	logCondition(s.log, s.Key(), "basic_filters", basic)

	final := table.NewMaskAll(universe).
		AndAll(cond1, cond2, cond3, cond4, cond5, cond6, cond7, basic)
	selected := final.TrueStocks()
	if len(selected) == 0 {
		s.log.WithField("strategy", s.Key()).Info("no stocks matched")
		return emptyResult(s.Key(), s.Name()), nil
	}

	roeZ := zeroSeries(universe)
	if latestROE != nil {
		roeZ = zscore(latestROE)
	}
	ocfToAssetsZ := zeroSeries(universe)
	if !assets.IsEmpty() {
		ocfToAssetsZ = zscore(ocfToAssets)
	}

	scores := weightedSum(universe, []weightedPart{
		{0.30, zscore(latestOCF)},
		{0.25, zscore(cashYoY)},
		{0.20, zscore(fcf)},
		{0.15, ocfToAssetsZ},
		{0.10, roeZ},
	})

	return newResult(s.Key(), s.Name(), close.LatestDate(), selected, scores,
		map[string]*table.Series{
			"price":         latestClose,
			"cash_yoy":      cashYoY,
			"ocf_yi":        latestOCF.MulScalar(1.0 / 1e5), // 仟元 → 億元
			"fcf_yi":        fcf.MulScalar(1.0 / 1e5),
			"ocf_to_assets": ocfToAssets,
			"roe":           latestROE,
		},
		map[string]interface{}{
			"strategy":          "cash_growth",
			"min_cash_growth":   0.20,
			"min_ocf_to_assets": 0.05,
		},
	), nil
}
