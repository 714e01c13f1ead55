// Package table implements the aligned-table primitives the screening
// strategies are written against: a dense date×stock matrix of float64
// values with NaN as the missing marker, latest-row cross-sections, and
// boolean masks over a stock universe.
package table

import (
	"fmt"
	"math"
	"sort"
)

// Frame is a dense date×stock matrix
// ⭐ SSOT: 對齊表格只有這一種表示法
// Dates are ISO (YYYY-MM-DD) strings in ascending order; missing cells
// hold NaN.
type Frame struct {
	dates    []string
	stocks   []string
	data     [][]float64 // [dateIdx][stockIdx]
	stockIdx map[string]int
	dateIdx  map[string]int
}

// NewFrame creates an empty frame with all cells set to NaN.
// Dates and stocks are copied; dates must already be sorted ascending.
func NewFrame(dates, stocks []string) *Frame {
	f := &Frame{
		dates:    append([]string(nil), dates...),
		stocks:   append([]string(nil), stocks...),
		data:     make([][]float64, len(dates)),
		stockIdx: make(map[string]int, len(stocks)),
		dateIdx:  make(map[string]int, len(dates)),
	}
	for i, s := range f.stocks {
		f.stockIdx[s] = i
	}
	for i, d := range f.dates {
		f.dateIdx[d] = i
	}
	for i := range f.data {
		row := make([]float64, len(stocks))
		for j := range row {
			row[j] = math.NaN()
		}
		f.data[i] = row
	}
	return f
}

// Cell is a single observation used to build frames from provider rows.
type Cell struct {
	Date  string
	Stock string
	Value float64
}

// FromCells builds a frame from long-format observations.
// The date and stock axes are the sorted unions of what appears in cells.
func FromCells(cells []Cell) *Frame {
	dateSet := make(map[string]struct{})
	stockSet := make(map[string]struct{})
	for _, c := range cells {
		dateSet[c.Date] = struct{}{}
		stockSet[c.Stock] = struct{}{}
	}

	dates := make([]string, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	stocks := make([]string, 0, len(stockSet))
	for s := range stockSet {
		stocks = append(stocks, s)
	}
	sort.Strings(stocks)

	f := NewFrame(dates, stocks)
	for _, c := range cells {
		f.data[f.dateIdx[c.Date]][f.stockIdx[c.Stock]] = c.Value
	}
	return f
}

// Set assigns a cell value. Unknown date or stock is ignored.
func (f *Frame) Set(date, stock string, v float64) {
	di, ok := f.dateIdx[date]
	if !ok {
		return
	}
	si, ok := f.stockIdx[stock]
	if !ok {
		return
	}
	f.data[di][si] = v
}

// At returns the value at a date row index for a stock.
// Returns NaN for unknown stocks or out-of-range rows.
func (f *Frame) At(row int, stock string) float64 {
	if row < 0 || row >= len(f.dates) {
		return math.NaN()
	}
	si, ok := f.stockIdx[stock]
	if !ok {
		return math.NaN()
	}
	return f.data[row][si]
}

// Dates returns the date axis.
func (f *Frame) Dates() []string { return f.dates }

// Stocks returns the stock axis (the frame's universe).
func (f *Frame) Stocks() []string { return f.stocks }

// NumDates returns the number of date rows.
func (f *Frame) NumDates() int { return len(f.dates) }

// NumStocks returns the number of stocks.
func (f *Frame) NumStocks() int { return len(f.stocks) }

// IsEmpty reports whether the frame has no rows or no stocks.
func (f *Frame) IsEmpty() bool {
	return f == nil || len(f.dates) == 0 || len(f.stocks) == 0
}

// LatestDate returns the last date, or "" for an empty frame.
func (f *Frame) LatestDate() string {
	if f.IsEmpty() {
		return ""
	}
	return f.dates[len(f.dates)-1]
}

// Row returns the cross-section at date row index i.
func (f *Frame) Row(i int) *Series {
	if i < 0 || i >= len(f.dates) {
		return NewSeries(f.stocks, nil)
	}
	values := append([]float64(nil), f.data[i]...)
	return NewSeries(f.stocks, values)
}

// RowFromEnd returns the cross-section n rows before the latest one.
// RowFromEnd(0) is the latest row.
// 對應 iloc[-1-n]
func (f *Frame) RowFromEnd(n int) *Series {
	return f.Row(len(f.dates) - 1 - n)
}

// LatestRow returns the most recent cross-section.
func (f *Frame) LatestRow() *Series {
	return f.RowFromEnd(0)
}

// Column returns the full time series for one stock, NaN-padded.
func (f *Frame) Column(stock string) []float64 {
	si, ok := f.stockIdx[stock]
	out := make([]float64, len(f.dates))
	for i := range out {
		if ok {
			out[i] = f.data[i][si]
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// Shift returns a frame with every column lagged by n rows.
// The first n rows become NaN; dates keep their positions.
func (f *Frame) Shift(n int) *Frame {
	out := NewFrame(f.dates, f.stocks)
	for i := range f.data {
		src := i - n
		if src < 0 || src >= len(f.data) {
			continue
		}
		copy(out.data[i], f.data[src])
	}
	return out
}

// PctChange returns the n-row fractional change (v[i]-v[i-n])/v[i-n].
// Cells where either endpoint is NaN, or the base is zero, become NaN.
func (f *Frame) PctChange(n int) *Frame {
	out := NewFrame(f.dates, f.stocks)
	for i := range f.data {
		src := i - n
		if src < 0 {
			continue
		}
		for j := range f.stocks {
			prev := f.data[src][j]
			cur := f.data[i][j]
			if math.IsNaN(prev) || math.IsNaN(cur) || prev == 0 {
				continue
			}
			out.data[i][j] = (cur - prev) / prev
		}
	}
	return out
}

// Tail returns a new frame containing only the last n rows.
func (f *Frame) Tail(n int) *Frame {
	if n > len(f.dates) {
		n = len(f.dates)
	}
	start := len(f.dates) - n
	out := NewFrame(f.dates[start:], f.stocks)
	for i := 0; i < n; i++ {
		copy(out.data[i], f.data[start+i])
	}
	return out
}

// Reindex returns a frame over the given stock universe; stocks absent
// from the source stay NaN.
func (f *Frame) Reindex(stocks []string) *Frame {
	out := NewFrame(f.dates, stocks)
	for j, s := range stocks {
		si, ok := f.stockIdx[s]
		if !ok {
			continue
		}
		for i := range f.data {
			out.data[i][j] = f.data[i][si]
		}
	}
	return out
}

// Apply returns a frame with fn applied to every non-NaN cell.
func (f *Frame) Apply(fn func(float64) float64) *Frame {
	out := NewFrame(f.dates, f.stocks)
	for i := range f.data {
		for j, v := range f.data[i] {
			if math.IsNaN(v) {
				continue
			}
			out.data[i][j] = fn(v)
		}
	}
	return out
}

// binaryOp applies op elementwise over the intersection of the two
// stock universes; the result keeps the receiver's date axis.
// 比較與運算一律取交集
func (f *Frame) binaryOp(other *Frame, op func(a, b float64) float64) *Frame {
	stocks := intersectStocks(f.stocks, other.stockIdx)
	out := NewFrame(f.dates, stocks)
	for i, d := range f.dates {
		oi, ok := other.dateIdx[d]
		if !ok {
			continue
		}
		for j, s := range stocks {
			a := f.data[i][f.stockIdx[s]]
			b := other.data[oi][other.stockIdx[s]]
			if math.IsNaN(a) || math.IsNaN(b) {
				continue
			}
			out.data[i][j] = op(a, b)
		}
	}
	return out
}

// Add returns the elementwise sum over the stock intersection.
func (f *Frame) Add(other *Frame) *Frame {
	return f.binaryOp(other, func(a, b float64) float64 { return a + b })
}

// Sub returns the elementwise difference over the stock intersection.
func (f *Frame) Sub(other *Frame) *Frame {
	return f.binaryOp(other, func(a, b float64) float64 { return a - b })
}

// Mul returns the elementwise product over the stock intersection.
func (f *Frame) Mul(other *Frame) *Frame {
	return f.binaryOp(other, func(a, b float64) float64 { return a * b })
}

// Div returns the elementwise quotient over the stock intersection.
// Division by zero yields NaN.
func (f *Frame) Div(other *Frame) *Frame {
	return f.binaryOp(other, func(a, b float64) float64 {
		if b == 0 {
			return math.NaN()
		}
		return a / b
	})
}

func intersectStocks(stocks []string, otherIdx map[string]int) []string {
	out := make([]string, 0, len(stocks))
	for _, s := range stocks {
		if _, ok := otherIdx[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

// String implements fmt.Stringer for debugging.
func (f *Frame) String() string {
	if f.IsEmpty() {
		return "Frame(empty)"
	}
	return fmt.Sprintf("Frame(%d dates × %d stocks, %s..%s)",
		len(f.dates), len(f.stocks), f.dates[0], f.dates[len(f.dates)-1])
}
