package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twquant/screener/internal/screening"
	"github.com/twquant/screener/pkg/config"
	"github.com/twquant/screener/pkg/logger"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	cfg := &config.Config{LogLevel: "error", LogFormat: "json"}
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "screener.db")

	s, err := Open(cfg, logger.New(cfg))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleResult(date string, stocks ...string) *screening.Result {
	r := &screening.Result{
		StrategyKey:   "breakout",
		StrategyName:  "長時間未破底後創新高",
		SelectionDate: date,
	}
	for i, stock := range stocks {
		r.Rows = append(r.Rows, screening.Row{
			StockID: stock,
			Score:   float64(100 - i),
			Rank:    i + 1,
			Extra:   map[string]float64{"price": 50.5},
		})
	}
	return r
}

func TestSaveAndQuerySelections(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveSelections(ctx, sampleResult("2025-01-31", "2330", "1101")))

	recs, err := s.Selections(ctx, "breakout", "2025-01-31", 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "2330", recs[0].StockID)
	assert.Equal(t, 1, recs[0].Rank)
	assert.Equal(t, 50.5, recs[0].Extra["price"])
	assert.Equal(t, "長時間未破底後創新高", recs[0].StrategyName)
}

func TestSaveSelectionsIdempotent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveSelections(ctx, sampleResult("2025-01-31", "2330", "1101", "2454")))
	// 重跑同日期: 舊列被換掉而不是累積
	require.NoError(t, s.SaveSelections(ctx, sampleResult("2025-01-31", "2330")))

	recs, err := s.Selections(ctx, "breakout", "2025-01-31", 0)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestSelectionsLatestDateAndTopN(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveSelections(ctx, sampleResult("2025-01-30", "1101")))
	require.NoError(t, s.SaveSelections(ctx, sampleResult("2025-01-31", "2330", "1101", "2454")))

	latest, err := s.LatestSelectionDate(ctx, "breakout")
	require.NoError(t, err)
	assert.Equal(t, "2025-01-31", latest)

	recs, err := s.Selections(ctx, "breakout", "", 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "2025-01-31", recs[0].SelectionDate)
}

func TestEmptyResultDoesNotWipePrevious(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveSelections(ctx, sampleResult("2025-01-31", "2330")))
	require.NoError(t, s.SaveSelections(ctx, &screening.Result{
		StrategyKey: "breakout", StrategyName: "x", SelectionDate: "2025-01-31",
	}))

	recs, err := s.Selections(ctx, "breakout", "2025-01-31", 0)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestLatestSelectionDateEmptyStore(t *testing.T) {
	s := testStore(t)

	latest, err := s.LatestSelectionDate(context.Background(), "breakout")
	require.NoError(t, err)
	assert.Empty(t, latest)

	recs, err := s.Selections(context.Background(), "breakout", "", 0)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestWatchlistCRUD(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddToWatchlist(ctx, WatchlistEntry{
		StockID: "2330", StockName: "台積電", BuyPrice: 980, Shares: 1000, Notes: "長期持有",
	}))
	require.NoError(t, s.AddToWatchlist(ctx, WatchlistEntry{StockID: "1101", StockName: "台泥"}))

	list, err := s.Watchlist(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	// Replace on re-add
	require.NoError(t, s.AddToWatchlist(ctx, WatchlistEntry{StockID: "2330", StockName: "台積電", BuyPrice: 1000}))
	list, err = s.Watchlist(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	require.NoError(t, s.RemoveFromWatchlist(ctx, "2330"))
	list, err = s.Watchlist(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "1101", list[0].StockID)
}
