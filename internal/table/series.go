package table

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Series is a single cross-section: one value per stock.
// Missing values are NaN, same as Frame cells.
type Series struct {
	stocks []string
	values []float64
	idx    map[string]int
}

// NewSeries creates a series over the given stocks. A nil values slice
// yields an all-NaN series.
func NewSeries(stocks []string, values []float64) *Series {
	s := &Series{
		stocks: append([]string(nil), stocks...),
		idx:    make(map[string]int, len(stocks)),
	}
	for i, st := range s.stocks {
		s.idx[st] = i
	}
	if values == nil {
		s.values = make([]float64, len(stocks))
		for i := range s.values {
			s.values[i] = math.NaN()
		}
	} else {
		s.values = append([]float64(nil), values...)
	}
	return s
}

// Stocks returns the stock axis.
func (s *Series) Stocks() []string { return s.stocks }

// Len returns the number of stocks.
func (s *Series) Len() int { return len(s.stocks) }

// Value returns the value for a stock; ok is false for unknown stocks.
func (s *Series) Value(stock string) (float64, bool) {
	i, ok := s.idx[stock]
	if !ok {
		return math.NaN(), false
	}
	return s.values[i], true
}

// Set assigns the value for a stock. Unknown stocks are ignored.
func (s *Series) Set(stock string, v float64) {
	if i, ok := s.idx[stock]; ok {
		s.values[i] = v
	}
}

// compareScalar builds a mask from a per-value predicate. NaN 一律為 false
func (s *Series) compareScalar(pred func(v float64) bool) *Mask {
	m := NewMask(s.stocks)
	for i, v := range s.values {
		if math.IsNaN(v) {
			continue
		}
		if pred(v) {
			m.values[i] = true
		}
	}
	return m
}

// Gt returns the mask of stocks with value > x.
func (s *Series) Gt(x float64) *Mask {
	return s.compareScalar(func(v float64) bool { return v > x })
}

// Ge returns the mask of stocks with value >= x.
func (s *Series) Ge(x float64) *Mask {
	return s.compareScalar(func(v float64) bool { return v >= x })
}

// Lt returns the mask of stocks with value < x.
func (s *Series) Lt(x float64) *Mask {
	return s.compareScalar(func(v float64) bool { return v < x })
}

// Le returns the mask of stocks with value <= x.
func (s *Series) Le(x float64) *Mask {
	return s.compareScalar(func(v float64) bool { return v <= x })
}

// compareSeries builds a mask over the stock intersection.
// 缺另一邊的股票直接排除
func (s *Series) compareSeries(other *Series, pred func(a, b float64) bool) *Mask {
	stocks := intersectStocks(s.stocks, other.idx)
	m := NewMask(stocks)
	for i, st := range stocks {
		a := s.values[s.idx[st]]
		b := other.values[other.idx[st]]
		if math.IsNaN(a) || math.IsNaN(b) {
			continue
		}
		if pred(a, b) {
			m.values[i] = true
		}
	}
	return m
}

// GtSeries returns the mask of stocks where s > other, over the
// intersection of the two universes.
func (s *Series) GtSeries(other *Series) *Mask {
	return s.compareSeries(other, func(a, b float64) bool { return a > b })
}

// GeSeries returns the mask of stocks where s >= other.
func (s *Series) GeSeries(other *Series) *Mask {
	return s.compareSeries(other, func(a, b float64) bool { return a >= b })
}

// LtSeries returns the mask of stocks where s < other.
func (s *Series) LtSeries(other *Series) *Mask {
	return s.compareSeries(other, func(a, b float64) bool { return a < b })
}

// LeSeries returns the mask of stocks where s <= other.
func (s *Series) LeSeries(other *Series) *Mask {
	return s.compareSeries(other, func(a, b float64) bool { return a <= b })
}

// binaryOp applies op over the stock intersection; NaN propagates.
func (s *Series) binaryOp(other *Series, op func(a, b float64) float64) *Series {
	stocks := intersectStocks(s.stocks, other.idx)
	out := NewSeries(stocks, nil)
	for i, st := range stocks {
		a := s.values[s.idx[st]]
		b := other.values[other.idx[st]]
		if math.IsNaN(a) || math.IsNaN(b) {
			continue
		}
		out.values[i] = op(a, b)
	}
	return out
}

// Add returns the elementwise sum over the stock intersection.
func (s *Series) Add(other *Series) *Series {
	return s.binaryOp(other, func(a, b float64) float64 { return a + b })
}

// Sub returns the elementwise difference over the stock intersection.
func (s *Series) Sub(other *Series) *Series {
	return s.binaryOp(other, func(a, b float64) float64 { return a - b })
}

// Mul returns the elementwise product over the stock intersection.
func (s *Series) Mul(other *Series) *Series {
	return s.binaryOp(other, func(a, b float64) float64 { return a * b })
}

// Div returns the elementwise quotient; division by zero yields NaN.
func (s *Series) Div(other *Series) *Series {
	return s.binaryOp(other, func(a, b float64) float64 {
		if b == 0 {
			return math.NaN()
		}
		return a / b
	})
}

// MulScalar returns the series scaled by x.
func (s *Series) MulScalar(x float64) *Series {
	out := NewSeries(s.stocks, s.values)
	for i, v := range out.values {
		if !math.IsNaN(v) {
			out.values[i] = v * x
		}
	}
	return out
}

// Reindex returns a series over the given universe; stocks absent from
// the source stay NaN.
func (s *Series) Reindex(stocks []string) *Series {
	out := NewSeries(stocks, nil)
	for i, st := range stocks {
		if j, ok := s.idx[st]; ok {
			out.values[i] = s.values[j]
		}
	}
	return out
}

// clean returns the non-NaN values.
func (s *Series) clean() []float64 {
	out := make([]float64, 0, len(s.values))
	for _, v := range s.values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// ValidCount returns the number of non-NaN values.
func (s *Series) ValidCount() int {
	return len(s.clean())
}

// Mean returns the NaN-skipping cross-sectional mean.
func (s *Series) Mean() float64 {
	vals := s.clean()
	if len(vals) == 0 {
		return math.NaN()
	}
	return stat.Mean(vals, nil)
}

// Std returns the NaN-skipping sample standard deviation.
func (s *Series) Std() float64 {
	vals := s.clean()
	if len(vals) < 2 {
		return math.NaN()
	}
	return stat.StdDev(vals, nil)
}

// Median returns the NaN-skipping cross-sectional median.
func (s *Series) Median() float64 {
	return s.Quantile(0.5)
}

// Quantile returns the empirical q-quantile of the non-NaN values.
func (s *Series) Quantile(q float64) float64 {
	vals := s.clean()
	if len(vals) == 0 {
		return math.NaN()
	}
	sort.Float64s(vals)
	return stat.Quantile(q, stat.Empirical, vals, nil)
}
