package screening

import (
	"context"

	"github.com/twquant/screener/internal/data"
	"github.com/twquant/screener/internal/table"
	"github.com/twquant/screener/pkg/logger"
)

// LowPriceSmallCapClassic is the original spreadsheet rendition: close
// under 20 NTD, monthly revenue at a strict 12-month high, and capital
// stock under 2 billion NTD.
type LowPriceSmallCapClassic struct {
	log *logger.Logger
}

// NewLowPriceSmallCapClassic creates the classic low-price small-cap strategy.
func NewLowPriceSmallCapClassic(log *logger.Logger) *LowPriceSmallCapClassic {
	return &LowPriceSmallCapClassic{log: log}
}

func (s *LowPriceSmallCapClassic) Key() string  { return "low_price_small_classic" }
func (s *LowPriceSmallCapClassic) Name() string { return "低價小股本營收創一年高（原始版）" }

func (s *LowPriceSmallCapClassic) Description() string {
	return "收盤價<20元，月營收創12個月新高，股本<20億"
}

func (s *LowPriceSmallCapClassic) RequiredDataKeys() []string {
	return requiredKeys(data.KeyRevenue, data.KeyCommonStock)
}

func (s *LowPriceSmallCapClassic) Screen(ctx context.Context, b *data.Bundle) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	close := b.Table(data.KeyClose)
	revenue := b.Table(data.KeyRevenue)
	commonStock := b.Table(data.KeyCommonStock)

	if close.IsEmpty() || revenue.IsEmpty() {
		s.log.WithField("strategy", s.Key()).Warn("missing price or revenue tables, returning empty result")
		return emptyResult(s.Key(), s.Name()), nil
	}

	universe := close.Stocks()
	latestClose := close.LatestRow()
	latestRevenue := revenue.LatestRow()

	// 條件1: 收盤價 < 20 元
	cond1 := latestClose.Lt(20)
	logCondition(s.log, s.Key(), "price_below_20", cond1)

	// 條件2: 月營收創 12 個月新高（嚴格 12 月滾動窗，不足即不通過）
	revenue12Max := revenue.Rolling(12).Max().LatestRow()
	cond2 := latestRevenue.GeSeries(revenue12Max.MulScalar(0.99))
	logCondition(s.log, s.Key(), "revenue_12m_high", cond2)

	// 條件3: 股本 < 20 億（仟元計 2,000,000；無資料時跳過）
	var cond3 *table.Mask
	if !commonStock.IsEmpty() {
		cond3 = commonStock.LatestRow().Lt(2_000_000)
	} else {
		s.log.WithField("strategy", s.Key()).Warn("no capital stock table, skipping capital filter")
		cond3 = table.NewMaskAll(universe)
	}
	logCondition(s.log, s.Key(), "small_capital", cond3)

	basic := BasicFilters{}.Apply(b)
	logCondition(s.log, s.Key(), "basic_filters", basic)

	final := table.NewMaskAll(universe).AndAll(cond1, cond2, cond3, basic)
	selected := final.TrueStocks()
	if len(selected) == 0 {
		s.log.WithField("strategy", s.Key()).Info("no stocks matched")
		return emptyResult(s.Key(), s.Name()), nil
	}

	// 評分因子: 營收突破幅度、YoY、低價偏好
	revenueRatio := latestRevenue.Div(revenue12Max)
	revenueYoY := revenue.PctChange(12).LatestRow()

	scores := subsetScore(selected, []weightedPart{
		{0.4, revenueRatio},
		{0.3, revenueYoY},
		{0.3, latestClose.MulScalar(-1)}, // 價格越低分數越高
	})

	return newResult(s.Key(), s.Name(), close.LatestDate(), selected, scores,
		map[string]*table.Series{
			"price":                  latestClose,
			"revenue_12m_high_ratio": revenueRatio,
			"revenue_yoy":            revenueYoY,
		},
		map[string]interface{}{
			"strategy": "low_price_small_cap",
			"version":  "classic",
		},
	), nil
}
