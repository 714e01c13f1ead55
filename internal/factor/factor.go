// Package factor provides cross-sectional factor utilities: z-score
// standardization, percentile ranks, and weighted factor combination.
package factor

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/twquant/screener/internal/table"
)

// Standardize returns the cross-sectional z-score of the series.
// A degenerate cross-section (std of zero, or too few values) maps
// every non-NaN element to the neutral constant 0.0, so a flat factor
// neither rewards nor punishes any stock.
func Standardize(s *table.Series) *table.Series {
	out := table.NewSeries(s.Stocks(), nil)

	mean := s.Mean()
	std := s.Std()
	degenerate := math.IsNaN(std) || std == 0

	for _, stock := range s.Stocks() {
		v, _ := s.Value(stock)
		if math.IsNaN(v) {
			continue
		}
		if degenerate {
			out.Set(stock, 0.0)
			continue
		}
		out.Set(stock, (v-mean)/std)
	}
	return out
}

// RankPercentile returns percentile ranks in (0, 1] with average-method
// tie handling: tied values share the mean of the positions they span.
// NaN 不參與排名
func RankPercentile(s *table.Series) *table.Series {
	out := table.NewSeries(s.Stocks(), nil)

	type entry struct {
		stock string
		value float64
	}
	entries := make([]entry, 0, s.Len())
	for _, stock := range s.Stocks() {
		v, _ := s.Value(stock)
		if math.IsNaN(v) {
			continue
		}
		entries = append(entries, entry{stock: stock, value: v})
	}
	n := len(entries)
	if n == 0 {
		return out
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].value < entries[j].value
	})

	// Walk runs of equal values and hand out the average 1-based rank
	i := 0
	for i < n {
		j := i
		for j < n && entries[j].value == entries[i].value {
			j++
		}
		avgRank := float64(i+1+j) / 2.0 // mean of ranks i+1..j
		for k := i; k < j; k++ {
			out.Set(entries[k].stock, avgRank/float64(n))
		}
		i = j
	}
	return out
}

// Weighted pairs a named factor cross-section with its combination weight.
type Weighted struct {
	Name   string
	Series *table.Series
	Weight float64
}

// Combine standardizes each factor and returns the weighted sum over
// the union of their universes. Empty factors (nil or all-NaN) are
// dropped silently; if every given weight is zero the survivors share
// equal weights. A stock missing from any surviving factor gets NaN,
// matching aligned-sum semantics.
func Combine(factors []Weighted) *table.Series {
	kept := make([]Weighted, 0, len(factors))
	for _, f := range factors {
		if f.Series == nil || f.Series.ValidCount() == 0 {
			continue
		}
		kept = append(kept, f)
	}
	if len(kept) == 0 {
		return table.NewSeries(nil, nil)
	}

	allZero := true
	for _, f := range kept {
		if f.Weight != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		w := 1.0 / float64(len(kept))
		for i := range kept {
			kept[i].Weight = w
		}
	}

	universe := unionStocks(kept)
	out := table.NewSeries(universe, nil)

	standardized := make([]*table.Series, len(kept))
	for i, f := range kept {
		standardized[i] = Standardize(f.Series)
	}

	for _, stock := range universe {
		sum := 0.0
		valid := true
		for i, f := range kept {
			z, ok := standardized[i].Value(stock)
			if !ok || math.IsNaN(z) {
				valid = false
				break
			}
			sum += z * f.Weight
		}
		if valid {
			out.Set(stock, sum)
		}
	}
	return out
}

// NormalizeWeights rescales weights to sum to 1.0. A zero sum returns
// equal weights.
func NormalizeWeights(weights []float64) []float64 {
	out := make([]float64, len(weights))
	var sum float64
	for _, w := range weights {
		sum += w
	}
	if sum == 0 {
		if len(weights) > 0 {
			eq := 1.0 / float64(len(weights))
			for i := range out {
				out[i] = eq
			}
		}
		return out
	}
	for i, w := range weights {
		out[i] = w / sum
	}
	return out
}

// Correlation returns the Pearson correlation of two factors over the
// stocks where both are observed. Fewer than two shared observations
// yields NaN.
func Correlation(a, b *table.Series) float64 {
	var xs, ys []float64
	for _, stock := range a.Stocks() {
		av, _ := a.Value(stock)
		bv, ok := b.Value(stock)
		if !ok || math.IsNaN(av) || math.IsNaN(bv) {
			continue
		}
		xs = append(xs, av)
		ys = append(ys, bv)
	}
	if len(xs) < 2 {
		return math.NaN()
	}
	return stat.Correlation(xs, ys, nil)
}

func unionStocks(factors []Weighted) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, f := range factors {
		for _, s := range f.Series.Stocks() {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
