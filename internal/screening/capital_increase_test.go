package screening

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twquant/screener/internal/data"
)

// capitalIncreaseBundle builds two periods where the capital and cash
// jumps hold for both stocks, leaving the ROE gate as the deciding
// condition.
func capitalIncreaseBundle(roe map[string][]float64) *data.Bundle {
	dates := dateRange(2)
	stocks := []string{"1101", "2330"}

	b := data.NewBundle()
	b.Set(data.KeyClose, constFrame(dates, stocks, 50))
	b.Set(data.KeyCash, frameFromColumns(dates, map[string][]float64{
		"1101": {100, 150}, // +50%
		"2330": {100, 150},
	}))
	b.Set(data.KeyCommonStock, frameFromColumns(dates, map[string][]float64{
		"1101": {100, 110}, // +10%
		"2330": {100, 110},
	}))
	b.Set(data.KeyRevenueYoY, constFrame(dates, stocks, 0.10))
	b.Set(data.KeyROE, frameFromColumns(dates, roe))
	return b
}

func TestCapitalIncreaseROEGateUsesPercentScale(t *testing.T) {
	s := NewCapitalIncrease(testLogger(), FilterDefaults{})

	// ROE 表為百分比: 12 = 12%, 6 = 6%
	b := capitalIncreaseBundle(map[string][]float64{
		"1101": repeat(12, 2),
		"2330": repeat(6, 2),
	})

	r, err := s.Screen(context.Background(), b)
	require.NoError(t, err)

	require.Equal(t, []string{"1101"}, r.StockIDs())
	assert.InDelta(t, 12.0, r.Rows[0].Extra["roe"], 1e-9)
	assert.InDelta(t, 0.50, r.Rows[0].Extra["cash_increase"], 1e-9)
}

func TestCapitalIncreaseRejectsLowROEDespiteCashJump(t *testing.T) {
	s := NewCapitalIncrease(testLogger(), FilterDefaults{})

	b := capitalIncreaseBundle(map[string][]float64{
		"1101": repeat(6, 2),
		"2330": repeat(9, 2),
	})

	r, err := s.Screen(context.Background(), b)
	require.NoError(t, err)
	assert.True(t, r.IsEmpty())
}
