package screening

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twquant/screener/internal/data"
)

// breakoutBundle builds a 100-day bundle with one textbook breakout
// (1101: base, shakeout low early in the 60-day window, then a volume
// backed push through the 20-day high) and one flat stock (2330).
func breakoutBundle() *data.Bundle {
	const days = 100
	dates := dateRange(days)

	winner := make([]float64, days)
	for i := 0; i < 40; i++ {
		winner[i] = 100
	}
	// 洗盤: 跌到窗口前段的低點
	decline := []float64{98, 96, 94, 92, 90, 85}
	copy(winner[40:], decline)
	for i := 46; i < 80; i++ {
		winner[i] = 85 + 0.5*float64(i-45)
	}
	// 突破段: 穩定上攻創 20 日新高
	for i := 80; i < days; i++ {
		winner[i] = 102 + 0.9*float64(i-79)
	}

	flat := repeat(50, days)

	closeCols := map[string][]float64{"1101": winner, "2330": flat}
	highCols := map[string][]float64{"1101": addScalar(winner, 1), "2330": addScalar(flat, 1)}
	lowCols := map[string][]float64{"1101": addScalar(winner, -1), "2330": addScalar(flat, -1)}

	winnerVol := repeat(1000, days)
	for i := 95; i < days; i++ {
		winnerVol[i] = 3000
	}
	volCols := map[string][]float64{"1101": winnerVol, "2330": repeat(1000, days)}

	b := data.NewBundle()
	b.Set(data.KeyClose, frameFromColumns(dates, closeCols))
	b.Set(data.KeyHigh, frameFromColumns(dates, highCols))
	b.Set(data.KeyLow, frameFromColumns(dates, lowCols))
	b.Set(data.KeyVolume, frameFromColumns(dates, volCols))
	b.Set(data.KeyExcludeAttention, constFrame(dates, []string{"1101", "2330"}, 1))
	b.Set(data.KeyExcludeCashDelivery, constFrame(dates, []string{"1101", "2330"}, 1))
	return b
}

func addScalar(vals []float64, d float64) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = v + d
	}
	return out
}

func TestBreakoutSelectsBaseBreakout(t *testing.T) {
	s := NewBreakout(testLogger(), FilterDefaults{})

	r, err := s.Screen(context.Background(), breakoutBundle())
	require.NoError(t, err)

	require.Equal(t, []string{"1101"}, r.StockIDs())
	require.Len(t, r.Rows, 1)
	assert.Equal(t, 1, r.Rows[0].Rank)
	assert.InDelta(t, 120.0, r.Rows[0].Extra["price"], 0.01)
	assert.Greater(t, r.Rows[0].Extra["return_20d"], 0.0)
	assert.Equal(t, "breakout", r.StrategyKey)
}

func TestBreakoutMissingTables(t *testing.T) {
	s := NewBreakout(testLogger(), FilterDefaults{})

	r, err := s.Screen(context.Background(), data.NewBundle())
	require.NoError(t, err)
	assert.True(t, r.IsEmpty())
}

func TestBreakoutShortHistory(t *testing.T) {
	// Under 60 days the base condition is waived; the flat stock still
	// fails the breakout conditions, so nothing is selected.
	dates := dateRange(30)
	b := data.NewBundle()
	b.Set(data.KeyClose, frameFromColumns(dates, map[string][]float64{"2330": repeat(50, 30)}))
	b.Set(data.KeyHigh, frameFromColumns(dates, map[string][]float64{"2330": repeat(51, 30)}))
	b.Set(data.KeyLow, frameFromColumns(dates, map[string][]float64{"2330": repeat(49, 30)}))
	b.Set(data.KeyVolume, frameFromColumns(dates, map[string][]float64{"2330": repeat(1000, 30)}))

	s := NewBreakout(testLogger(), FilterDefaults{})
	r, err := s.Screen(context.Background(), b)
	require.NoError(t, err)
	assert.True(t, r.IsEmpty())
}

func TestBreakoutDeterministic(t *testing.T) {
	s := NewBreakout(testLogger(), FilterDefaults{})
	b := breakoutBundle()

	first, err := s.Screen(context.Background(), b)
	require.NoError(t, err)
	second, err := s.Screen(context.Background(), b)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestBreakoutCancelledContext(t *testing.T) {
	s := NewBreakout(testLogger(), FilterDefaults{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Screen(ctx, breakoutBundle())
	assert.Error(t, err)
}
