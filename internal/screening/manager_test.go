package screening

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twquant/screener/internal/data"
	"github.com/twquant/screener/internal/table"
)

// stubStrategy lets tests inject failing behavior into the registry.
type stubStrategy struct {
	key    string
	screen func(ctx context.Context, b *data.Bundle) (*Result, error)
}

func (s *stubStrategy) Key() string                { return s.key }
func (s *stubStrategy) Name() string               { return s.key }
func (s *stubStrategy) Description() string        { return s.key }
func (s *stubStrategy) RequiredDataKeys() []string { return baseRequiredKeys }

func (s *stubStrategy) Screen(ctx context.Context, b *data.Bundle) (*Result, error) {
	return s.screen(ctx, b)
}

func TestManagerRegistersAllStrategies(t *testing.T) {
	m := NewManager(testLogger(), FilterDefaults{})

	infos := m.List()
	require.Len(t, infos, 12)

	seen := make(map[string]bool)
	for _, info := range infos {
		assert.False(t, seen[info.Key], "duplicate key %s", info.Key)
		seen[info.Key] = true
		assert.NotEmpty(t, info.Name)
	}
	for _, key := range []string{
		"breakout", "revenue_momentum", "low_price_small",
		"inst_buying", "capital_increase", "cash_growth",
		"breakout_classic", "revenue_momentum_classic", "low_price_small_classic",
		"inst_buying_classic", "capital_increase_classic", "cash_growth_classic",
	} {
		assert.True(t, seen[key], "missing strategy %s", key)
	}
}

func TestManagerRunUnknownKey(t *testing.T) {
	m := NewManager(testLogger(), FilterDefaults{})

	_, err := m.Run(context.Background(), "no_such_strategy", data.NewBundle())
	assert.Error(t, err)
}

func TestManagerRunAllEmptyBundle(t *testing.T) {
	// With no tables every strategy degrades to an empty result; none may
	// error or panic.
	m := NewManager(testLogger(), FilterDefaults{})

	results := m.RunAll(context.Background(), data.NewBundle())

	require.Len(t, results, 12)
	for key, r := range results {
		require.NotNil(t, r, "strategy %s", key)
		assert.True(t, r.IsEmpty(), "strategy %s", key)
	}
}

func TestManagerRunAllIsolatesFailures(t *testing.T) {
	m := NewManager(testLogger(), FilterDefaults{})
	m.Register(&stubStrategy{key: "boom", screen: func(context.Context, *data.Bundle) (*Result, error) {
		panic("boom")
	}})
	m.Register(&stubStrategy{key: "fail", screen: func(context.Context, *data.Bundle) (*Result, error) {
		return nil, errors.New("data source down")
	}})
	m.Register(&stubStrategy{key: "ok", screen: func(context.Context, *data.Bundle) (*Result, error) {
		return newResult("ok", "ok", "2025-01-31", []string{"2330"}, nil, nil, nil), nil
	}})

	results := m.RunAll(context.Background(), data.NewBundle())

	require.Len(t, results, 15)
	assert.True(t, results["boom"].IsEmpty())
	assert.True(t, results["fail"].IsEmpty())
	assert.Equal(t, []string{"2330"}, results["ok"].StockIDs())
}

func TestStockAppearances(t *testing.T) {
	m := NewManager(testLogger(), FilterDefaults{})
	m.Register(&stubStrategy{key: "a"})
	m.Register(&stubStrategy{key: "b"})
	m.Register(&stubStrategy{key: "c"})

	results := map[string]*Result{
		"a": newResult("a", "策略A", "2025-01-31", []string{"1101", "2330"},
			table.NewSeries([]string{"1101", "2330"}, []float64{10, 30}), nil, nil),
		"b": newResult("b", "策略B", "2025-01-31", []string{"2330", "2454"},
			table.NewSeries([]string{"2330", "2454"}, []float64{40, 50}), nil, nil),
		"c": newResult("c", "策略C", "2025-01-31", []string{"1101"},
			table.NewSeries([]string{"1101"}, []float64{40}), nil, nil),
	}

	apps := m.StockAppearances(results, 2)

	require.Len(t, apps, 2)
	// 2330 and 1101 both appear twice; 2330 has the higher average score
	assert.Equal(t, "2330", apps[0].StockID)
	assert.Equal(t, 2, apps[0].Appearances)
	assert.InDelta(t, 35.0, apps[0].AvgScore, 1e-12)
	assert.ElementsMatch(t, []string{"策略A", "策略B"}, apps[0].Strategies)

	assert.Equal(t, "1101", apps[1].StockID)
	assert.InDelta(t, 25.0, apps[1].AvgScore, 1e-12)

	// Raising the floor drops everyone below it
	assert.Empty(t, m.StockAppearances(results, 3))
}

func TestSummarize(t *testing.T) {
	m := NewManager(testLogger(), FilterDefaults{})
	m.Register(&stubStrategy{key: "a"})
	m.Register(&stubStrategy{key: "b"})

	results := map[string]*Result{
		"a": newResult("a", "策略A", "2025-01-31", []string{"1101", "2330"}, nil, nil, nil),
		"b": emptyResult("b", "策略B"),
	}

	summary := m.Summarize(results)

	assert.Equal(t, 14, summary.TotalStrategies)
	assert.Equal(t, 2, summary.Executed)
	assert.Equal(t, 1, summary.WithResults)
	assert.Equal(t, 2, summary.TotalStocks)
}

func TestManagerRequiredDataKeys(t *testing.T) {
	m := NewManager(testLogger(), FilterDefaults{})

	keys := m.RequiredDataKeys()
	assert.Contains(t, keys, data.KeyClose)
	assert.Contains(t, keys, data.KeyRevenue)
	assert.Contains(t, keys, data.KeyCash)
	assert.Contains(t, keys, data.KeyMarginBalance)
	assert.True(t, sortedUnique(keys))
}

func sortedUnique(keys []string) bool {
	for i := 1; i < len(keys); i++ {
		if keys[i] <= keys[i-1] {
			return false
		}
	}
	return true
}
