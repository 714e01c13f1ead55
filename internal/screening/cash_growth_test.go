package screening

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twquant/screener/internal/data"
)

// cashGrowthBundle builds three financial periods where every cash
// condition holds for both stocks, so only the ROE column decides.
func cashGrowthBundle(roe map[string][]float64) *data.Bundle {
	dates := dateRange(3)
	stocks := []string{"1101", "2330"}

	b := data.NewBundle()
	b.Set(data.KeyClose, constFrame(dates, stocks, 50))
	b.Set(data.KeyCash, frameFromColumns(dates, map[string][]float64{
		"1101": {100, 150, 200}, // 連續增加且年增 100%
		"2330": {100, 150, 200},
	}))
	b.Set(data.KeyOperatingCF, frameFromColumns(dates, map[string][]float64{
		"1101": {100, 110, 120},
		"2330": {100, 110, 120},
	}))
	b.Set(data.KeyInvestingCF, constFrame(dates, stocks, -10))
	b.Set(data.KeyFinancingCF, constFrame(dates, stocks, -5))
	b.Set(data.KeyTotalAssets, constFrame(dates, stocks, 1000))
	b.Set(data.KeyROE, frameFromColumns(dates, roe))
	return b
}

func TestCashGrowthROEGateUsesPercentScale(t *testing.T) {
	s := NewCashGrowth(testLogger(), FilterDefaults{})

	// ROE 表為百分比: 15 = 15%, 5 = 5%
	b := cashGrowthBundle(map[string][]float64{
		"1101": repeat(15, 3),
		"2330": repeat(5, 3),
	})

	r, err := s.Screen(context.Background(), b)
	require.NoError(t, err)

	require.Equal(t, []string{"1101"}, r.StockIDs())
	assert.InDelta(t, 15.0, r.Rows[0].Extra["roe"], 1e-9)
}

func TestCashGrowthRejectsLowROEDespiteStrongCash(t *testing.T) {
	s := NewCashGrowth(testLogger(), FilterDefaults{})

	// 現金條件全過，但 ROE 都不到 10%
	b := cashGrowthBundle(map[string][]float64{
		"1101": repeat(5, 3),
		"2330": repeat(9.5, 3),
	})

	r, err := s.Screen(context.Background(), b)
	require.NoError(t, err)
	assert.True(t, r.IsEmpty())
}

func TestCashGrowthMissingROETableIsPermissive(t *testing.T) {
	s := NewCashGrowth(testLogger(), FilterDefaults{})

	b := cashGrowthBundle(map[string][]float64{
		"1101": repeat(15, 3),
		"2330": repeat(5, 3),
	})
	b.Set(data.KeyROE, nil)

	r, err := s.Screen(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, []string{"1101", "2330"}, r.StockIDs())
}
