package table

import "math"

// Rolling is a windowed view over a frame's columns.
// Results mirror the usual convention: a cell is NaN until the window
// is fully populated, and any NaN inside the window poisons the result.
type Rolling struct {
	f      *Frame
	window int
}

// Rolling returns a windowed view of width w over the date axis.
func (f *Frame) Rolling(w int) Rolling {
	return Rolling{f: f, window: w}
}

func (r Rolling) apply(agg func(window []float64) float64) *Frame {
	out := NewFrame(r.f.dates, r.f.stocks)
	if r.window <= 0 {
		return out
	}
	buf := make([]float64, r.window)
	for j := range r.f.stocks {
		for i := r.window - 1; i < len(r.f.dates); i++ {
			valid := true
			for k := 0; k < r.window; k++ {
				v := r.f.data[i-k][j]
				if math.IsNaN(v) {
					valid = false
					break
				}
				buf[k] = v
			}
			if !valid {
				continue
			}
			out.data[i][j] = agg(buf)
		}
	}
	return out
}

// Min returns the rolling minimum.
func (r Rolling) Min() *Frame {
	return r.apply(func(w []float64) float64 {
		m := w[0]
		for _, v := range w[1:] {
			if v < m {
				m = v
			}
		}
		return m
	})
}

// Max returns the rolling maximum.
func (r Rolling) Max() *Frame {
	return r.apply(func(w []float64) float64 {
		m := w[0]
		for _, v := range w[1:] {
			if v > m {
				m = v
			}
		}
		return m
	})
}

// Sum returns the rolling sum.
func (r Rolling) Sum() *Frame {
	return r.apply(func(w []float64) float64 {
		var s float64
		for _, v := range w {
			s += v
		}
		return s
	})
}

// Mean returns the rolling arithmetic mean.
func (r Rolling) Mean() *Frame {
	return r.apply(func(w []float64) float64 {
		var s float64
		for _, v := range w {
			s += v
		}
		return s / float64(len(w))
	})
}

// Std returns the rolling sample standard deviation (ddof=1).
// 窗口小於2時為 NaN
func (r Rolling) Std() *Frame {
	return r.apply(func(w []float64) float64 {
		n := len(w)
		if n < 2 {
			return math.NaN()
		}
		var sum float64
		for _, v := range w {
			sum += v
		}
		mean := sum / float64(n)
		var ss float64
		for _, v := range w {
			d := v - mean
			ss += d * d
		}
		return math.Sqrt(ss / float64(n-1))
	})
}
