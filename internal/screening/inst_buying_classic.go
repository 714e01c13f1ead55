package screening

import (
	"context"

	"github.com/twquant/screener/internal/data"
	"github.com/twquant/screener/internal/table"
	"github.com/twquant/screener/pkg/logger"
)

// InstitutionalBuyingClassic is the original spreadsheet rendition of
// the broker buy-imbalance screen. Broker-level data is unavailable, so
// it keeps the original's proxy: two up days, two days of volume above
// 1.5x the 20-day average, and a shrinking margin balance, gated by two
// consecutive quarters of EPS growth and a 70 NTD price cap.
type InstitutionalBuyingClassic struct {
	log *logger.Logger
}

// NewInstitutionalBuyingClassic creates the classic institutional buying strategy.
func NewInstitutionalBuyingClassic(log *logger.Logger) *InstitutionalBuyingClassic {
	return &InstitutionalBuyingClassic{log: log}
}

func (s *InstitutionalBuyingClassic) Key() string  { return "inst_buying_classic" }
func (s *InstitutionalBuyingClassic) Name() string { return "連兩日大戶大買超（原始版）" }

func (s *InstitutionalBuyingClassic) Description() string {
	return "券商買超>10%（以量價與融資間接推估），連續兩季EPS成長，價格<70元"
}

func (s *InstitutionalBuyingClassic) RequiredDataKeys() []string {
	return requiredKeys(data.KeyMarginBalance, data.KeyEPS)
}

func (s *InstitutionalBuyingClassic) Screen(ctx context.Context, b *data.Bundle) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	close := b.Table(data.KeyClose)
	volume := b.Table(data.KeyVolume)
	margin := b.Table(data.KeyMarginBalance)
	eps := b.Table(data.KeyEPS)

	if close.IsEmpty() || volume.IsEmpty() {
		s.log.WithField("strategy", s.Key()).Warn("missing price or volume tables, returning empty result")
		return emptyResult(s.Key(), s.Name()), nil
	}

	universe := close.Stocks()
	latestClose := close.LatestRow()

	// 間接買超訊號: 連續 2 日上漲
	priceChange := close.PctChange(1)
	chg0 := priceChange.RowFromEnd(0)
	chg1 := priceChange.RowFromEnd(1)
	priceUp2d := chg0.Gt(0).And(chg1.Gt(0))
	logCondition(s.log, s.Key(), "two_up_days", priceUp2d)

	// 連續 2 日成交量 > 20 日均量 1.5 倍
	volumeRatio := volume.Div(volume.Rolling(20).Mean())
	ratio0 := volumeRatio.RowFromEnd(0)
	ratio1 := volumeRatio.RowFromEnd(1)
	volumeSurge2d := ratio0.Gt(1.5).And(ratio1.Gt(1.5))
	logCondition(s.log, s.Key(), "two_volume_surges", volumeSurge2d)

	// 連續 2 日融資減少（無資料視為通過）
	var marginDecrease2d *table.Mask
	if !margin.IsEmpty() {
		diff := margin.Sub(margin.Shift(1))
		marginDecrease2d = diff.RowFromEnd(0).Lt(0).And(diff.RowFromEnd(1).Lt(0))
	} else {
		s.log.WithField("strategy", s.Key()).Warn("no margin balance table, skipping margin condition")
		marginDecrease2d = table.NewMaskAll(universe)
	}
	logCondition(s.log, s.Key(), "margin_decline", marginDecrease2d)

	buyingSignal := table.NewMaskAll(universe).
		AndAll(priceUp2d, volumeSurge2d, marginDecrease2d)

	// 連續兩季 EPS 成長（無資料視為通過）
	var epsGrowth *table.Mask
	if !eps.IsEmpty() {
		epsGrowth = consecutiveGrowth(eps, 2)
	} else {
		epsGrowth = table.NewMaskAll(universe)
	}
	logCondition(s.log, s.Key(), "eps_growth_2q", epsGrowth)

	// 收盤價 < 70 元
	priceFilter := latestClose.Lt(70)
	logCondition(s.log, s.Key(), "price_below_70", priceFilter)

	basic := BasicFilters{}.Apply(b)
	logCondition(s.log, s.Key(), "basic_filters", basic)

	final := buyingSignal.AndAll(epsGrowth, priceFilter, basic)
	selected := final.TrueStocks()
	if len(selected) == 0 {
		s.log.WithField("strategy", s.Key()).Info("no stocks matched")
		return emptyResult(s.Key(), s.Name()), nil
	}

	// 評分因子: 買超強度（量能放大）、價格動能
	scores := subsetScore(selected, []weightedPart{
		{0.6, ratio0},
		{0.4, chg0},
	})

	return newResult(s.Key(), s.Name(), close.LatestDate(), selected, scores,
		map[string]*table.Series{
			"price":        latestClose,
			"volume_ratio": ratio0,
			"price_change": chg0,
		},
		map[string]interface{}{
			"strategy": "institutional_buying",
			"version":  "classic",
			"proxy":    "volume_price_margin",
		},
	), nil
}
