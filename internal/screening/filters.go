package screening

import (
	"github.com/twquant/screener/internal/data"
	"github.com/twquant/screener/internal/table"
)

// FilterDefaults carries the screening thresholds shared by the tuned
// strategies, sourced from config.
type FilterDefaults struct {
	MinMarketCap        float64
	LiquidityPercentile float64
}

// BasicFilters composes the tradability filters applied on top of each
// strategy's own conditions. Zero-valued thresholds skip that filter;
// the attention / cash-delivery exclusions apply unless explicitly
// switched off.
// ⭐ SSOT: 基本篩選邏輯只在這裡實作
type BasicFilters struct {
	MinPrice            float64
	MaxPrice            float64
	MinVolume           float64 // 對 20 日均量
	MinMarketCap        float64
	LiquidityPercentile float64 // 保留 20 日均量 >= 此分位數的股票
	IncludeAttention    bool    // true = 不排除注意股
	IncludeCashDelivery bool    // true = 不排除全額交割股
}

// Apply evaluates the filters over the close table's stock universe.
// Each sub-mask is reindexed to that universe with false fill before
// conjunction; an empty close table yields an empty mask. Filters whose
// source table is absent are skipped.
func (f BasicFilters) Apply(b *data.Bundle) *table.Mask {
	close := b.Table(data.KeyClose)
	if close.IsEmpty() {
		return table.NewMask(nil)
	}
	universe := close.Stocks()
	mask := table.NewMaskAll(universe)

	volume := b.Table(data.KeyVolume)
	marketCap := b.Table(data.KeyMarketCap)

	if f.MinPrice > 0 {
		mask = mask.And(close.LatestRow().Ge(f.MinPrice))
	}
	if f.MaxPrice > 0 {
		mask = mask.And(close.LatestRow().Le(f.MaxPrice))
	}

	if f.MinVolume > 0 && !volume.IsEmpty() {
		avg := volume.Rolling(20).Mean().LatestRow()
		mask = mask.And(avg.Ge(f.MinVolume))
	}

	if f.MinMarketCap > 0 && !marketCap.IsEmpty() {
		mask = mask.And(marketCap.LatestRow().Ge(f.MinMarketCap))
	}

	if f.LiquidityPercentile > 0 && !volume.IsEmpty() {
		avg := volume.Rolling(20).Mean().LatestRow()
		threshold := avg.Quantile(f.LiquidityPercentile)
		mask = mask.And(avg.Ge(threshold))
	}

	// 排除表的語意: 最新一列 true = 可交易（保留）
	if !f.IncludeAttention {
		if attention := b.Table(data.KeyExcludeAttention); !attention.IsEmpty() {
			mask = mask.And(attention.LatestRow().Ge(1))
		}
	}
	if !f.IncludeCashDelivery {
		if cashDelivery := b.Table(data.KeyExcludeCashDelivery); !cashDelivery.IsEmpty() {
			mask = mask.And(cashDelivery.LatestRow().Ge(1))
		}
	}

	return mask
}
