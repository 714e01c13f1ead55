package screening

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/twquant/screener/internal/factor"
	"github.com/twquant/screener/internal/table"
	"github.com/twquant/screener/pkg/logger"
)

// tailAgg reduces the last n rows of each stock's column to a scalar.
// Stocks with no valid observations in the window get NaN.
func tailAgg(f *table.Frame, n int, agg func([]float64) float64) *table.Series {
	if f.IsEmpty() {
		return table.NewSeries(nil, nil)
	}
	t := f.Tail(n)
	out := table.NewSeries(f.Stocks(), nil)
	for _, stock := range f.Stocks() {
		vals := make([]float64, 0, t.NumDates())
		for _, v := range t.Column(stock) {
			if !math.IsNaN(v) {
				vals = append(vals, v)
			}
		}
		if len(vals) == 0 {
			continue
		}
		out.Set(stock, agg(vals))
	}
	return out
}

// tailMin returns the NaN-skipping minimum over the last n rows.
func tailMin(f *table.Frame, n int) *table.Series {
	return tailAgg(f, n, func(vals []float64) float64 {
		min := vals[0]
		for _, v := range vals[1:] {
			if v < min {
				min = v
			}
		}
		return min
	})
}

// tailMax returns the NaN-skipping maximum over the last n rows.
func tailMax(f *table.Frame, n int) *table.Series {
	return tailAgg(f, n, func(vals []float64) float64 {
		max := vals[0]
		for _, v := range vals[1:] {
			if v > max {
				max = v
			}
		}
		return max
	})
}

// tailMean returns the NaN-skipping mean over the last n rows.
func tailMean(f *table.Frame, n int) *table.Series {
	return tailAgg(f, n, func(vals []float64) float64 {
		return stat.Mean(vals, nil)
	})
}

// tailStd returns the NaN-skipping sample std over the last n rows.
func tailStd(f *table.Frame, n int) *table.Series {
	return tailAgg(f, n, func(vals []float64) float64 {
		if len(vals) < 2 {
			return math.NaN()
		}
		return stat.StdDev(vals, nil)
	})
}

// tailArgMin returns, per stock, the 0-based position within the last n
// rows where the first minimum occurs. NaN cells are skipped; a column
// with no valid cell gets NaN.
func tailArgMin(f *table.Frame, n int) *table.Series {
	if f.IsEmpty() {
		return table.NewSeries(nil, nil)
	}
	t := f.Tail(n)
	out := table.NewSeries(f.Stocks(), nil)
	for _, stock := range f.Stocks() {
		col := t.Column(stock)
		best := math.NaN()
		pos := -1
		for i, v := range col {
			if math.IsNaN(v) {
				continue
			}
			if pos < 0 || v < best {
				best = v
				pos = i
			}
		}
		if pos >= 0 {
			out.Set(stock, float64(pos))
		}
	}
	return out
}

// mapSeries applies fn to every non-NaN value.
func mapSeries(s *table.Series, fn func(float64) float64) *table.Series {
	out := table.NewSeries(s.Stocks(), nil)
	for _, stock := range s.Stocks() {
		v, _ := s.Value(stock)
		if math.IsNaN(v) {
			continue
		}
		out.Set(stock, fn(v))
	}
	return out
}

// fillNA replaces NaN values with v.
func fillNA(s *table.Series, v float64) *table.Series {
	out := table.NewSeries(s.Stocks(), nil)
	for _, stock := range s.Stocks() {
		x, _ := s.Value(stock)
		if math.IsNaN(x) {
			x = v
		}
		out.Set(stock, x)
	}
	return out
}

// zeroSeries returns an all-zero series over the universe.
func zeroSeries(universe []string) *table.Series {
	return table.NewSeries(universe, make([]float64, len(universe)))
}

// oneSeries returns an all-one series over the universe.
func oneSeries(universe []string) *table.Series {
	vals := make([]float64, len(universe))
	for i := range vals {
		vals[i] = 1
	}
	return table.NewSeries(universe, vals)
}

// zscore is the cross-sectional z-score used by the score factors.
func zscore(s *table.Series) *table.Series {
	return factor.Standardize(s)
}

// weightedPart pairs a factor cross-section with its score weight.
type weightedPart struct {
	weight float64
	series *table.Series
}

// weightedSum combines pre-computed factor series into a score over the
// universe. Each part is reindexed to the universe and NaN-filled with 0
// before weighting, so a stock missing one factor is scored neutrally on
// it instead of dropping out.
func weightedSum(universe []string, parts []weightedPart) *table.Series {
	out := zeroSeries(universe)
	for _, p := range parts {
		if p.series == nil {
			continue
		}
		re := fillNA(p.series.Reindex(universe), 0)
		for _, stock := range universe {
			v, _ := re.Value(stock)
			cur, _ := out.Value(stock)
			out.Set(stock, cur+p.weight*v)
		}
	}
	return out
}

// subsetScore standardizes each raw factor over the selected stocks only
// and combines them. 經典版評分方式: 只對入選股票做 z-score
func subsetScore(selected []string, parts []weightedPart) *table.Series {
	out := zeroSeries(selected)
	for _, p := range parts {
		if p.series == nil {
			continue
		}
		z := fillNA(factor.Standardize(p.series.Reindex(selected)), 0)
		for _, stock := range selected {
			v, _ := z.Value(stock)
			cur, _ := out.Value(stock)
			out.Set(stock, cur+p.weight*v)
		}
	}
	return out
}

// trendSlope returns the OLS slope of the values against their position.
// NaN values are dropped; fewer than two valid points yields 0.
func trendSlope(vals []float64) float64 {
	xs := make([]float64, 0, len(vals))
	ys := make([]float64, 0, len(vals))
	for _, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		xs = append(xs, float64(len(xs)))
		ys = append(ys, v)
	}
	if len(ys) < 2 {
		return 0
	}
	_, slope := stat.LinearRegression(xs, ys, nil, false)
	return slope
}

// tailTrend returns the per-stock OLS slope over the last n rows.
func tailTrend(f *table.Frame, n int) *table.Series {
	if f.IsEmpty() {
		return table.NewSeries(nil, nil)
	}
	t := f.Tail(n)
	out := table.NewSeries(f.Stocks(), nil)
	for _, stock := range f.Stocks() {
		out.Set(stock, trendSlope(t.Column(stock)))
	}
	return out
}

// consecutiveGrowth returns the mask of stocks whose latest n values are
// strictly increasing, evaluated on the frame's last n+1 rows.
func consecutiveGrowth(f *table.Frame, n int) *table.Mask {
	if f.IsEmpty() {
		return table.NewMask(nil)
	}
	mask := table.NewMaskAll(f.Stocks())
	for i := 0; i < n; i++ {
		mask = mask.And(f.RowFromEnd(i).GtSeries(f.RowFromEnd(i + 1)))
	}
	return mask
}

// logCondition records a per-condition match count.
func logCondition(log *logger.Logger, strategy, condition string, m *table.Mask) {
	log.WithFields(map[string]interface{}{
		"strategy":  strategy,
		"condition": condition,
		"matches":   m.Count(),
	}).Debug("screening condition evaluated")
}

// logInsufficientHistory records a condition waived for lack of data.
// 歷史不足: 條件視為通過
func logInsufficientHistory(log *logger.Logger, strategy, condition string, rows int) {
	log.WithFields(map[string]interface{}{
		"strategy":  strategy,
		"condition": condition,
		"rows":      rows,
	}).Warn("insufficient history, condition treated as pass")
}
