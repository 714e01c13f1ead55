package screening

import (
	"context"
	"fmt"
	"sort"

	"github.com/twquant/screener/internal/data"
	"github.com/twquant/screener/pkg/logger"
)

// Info describes a registered strategy for listings.
type Info struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Manager holds the strategy registry and runs screening batches.
// ⭐ SSOT: 策略註冊只在這裡
type Manager struct {
	log        *logger.Logger
	strategies map[string]Strategy
	order      []string
}

// NewManager creates a manager with all twelve strategies registered:
// the six tuned screens and their classic counterparts.
func NewManager(log *logger.Logger, defaults FilterDefaults) *Manager {
	m := &Manager{
		log:        log,
		strategies: make(map[string]Strategy),
	}
	m.Register(NewRevenueMomentum(log, defaults))
	m.Register(NewLowPriceSmallCap(log, defaults))
	m.Register(NewBreakout(log, defaults))
	m.Register(NewInstitutionalBuying(log, defaults))
	m.Register(NewCapitalIncrease(log, defaults))
	m.Register(NewCashGrowth(log, defaults))
	m.Register(NewRevenueMomentumClassic(log))
	m.Register(NewLowPriceSmallCapClassic(log))
	m.Register(NewBreakoutClassic(log))
	m.Register(NewInstitutionalBuyingClassic(log))
	m.Register(NewCapitalIncreaseClassic(log))
	m.Register(NewCashGrowthClassic(log))
	return m
}

// Register adds a strategy to the registry. Re-registering a key
// replaces the previous strategy.
func (m *Manager) Register(s Strategy) {
	if _, exists := m.strategies[s.Key()]; !exists {
		m.order = append(m.order, s.Key())
	}
	m.strategies[s.Key()] = s
}

// List returns strategy descriptors in registration order.
func (m *Manager) List() []Info {
	out := make([]Info, 0, len(m.order))
	for _, key := range m.order {
		s := m.strategies[key]
		out = append(out, Info{Key: s.Key(), Name: s.Name(), Description: s.Description()})
	}
	return out
}

// Get returns the strategy registered under key.
func (m *Manager) Get(key string) (Strategy, bool) {
	s, ok := m.strategies[key]
	return s, ok
}

// RequiredDataKeys returns the union of the data keys every registered
// strategy needs, for provider bundle building.
func (m *Manager) RequiredDataKeys() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, key := range m.order {
		for _, dk := range m.strategies[key].RequiredDataKeys() {
			if _, ok := seen[dk]; ok {
				continue
			}
			seen[dk] = struct{}{}
			out = append(out, dk)
		}
	}
	sort.Strings(out)
	return out
}

// Run executes one strategy. An unknown key is an error.
func (m *Manager) Run(ctx context.Context, key string, bundle *data.Bundle) (*Result, error) {
	s, ok := m.strategies[key]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q", key)
	}
	return s.Screen(ctx, bundle)
}

// RunAll executes every registered strategy against the bundle.
// A strategy that errors or panics contributes an empty result instead
// of failing the batch.
func (m *Manager) RunAll(ctx context.Context, bundle *data.Bundle) map[string]*Result {
	return m.RunAllWithProgress(ctx, bundle, nil)
}

// RunAllWithProgress runs like RunAll and additionally invokes fn after
// each strategy finishes, in registration order.
func (m *Manager) RunAllWithProgress(ctx context.Context, bundle *data.Bundle, fn func(key string, result *Result)) map[string]*Result {
	results := make(map[string]*Result, len(m.order))
	for _, key := range m.order {
		s := m.strategies[key]
		result := m.runIsolated(ctx, s, bundle)
		results[key] = result

		m.log.WithFields(map[string]interface{}{
			"strategy": key,
			"selected": len(result.Rows),
		}).Info("strategy completed")

		if fn != nil {
			fn(key, result)
		}
	}
	return results
}

// runIsolated shields the batch from a single strategy's failure.
func (m *Manager) runIsolated(ctx context.Context, s Strategy, bundle *data.Bundle) (result *Result) {
	defer func() {
		if r := recover(); r != nil {
			m.log.WithFields(map[string]interface{}{
				"strategy": s.Key(),
				"panic":    fmt.Sprint(r),
			}).Error("strategy panicked, recording empty result")
			result = emptyResult(s.Key(), s.Name())
		}
	}()

	result, err := s.Screen(ctx, bundle)
	if err != nil {
		m.log.WithError(err).WithField("strategy", s.Key()).Error("strategy failed, recording empty result")
		return emptyResult(s.Key(), s.Name())
	}
	if result == nil {
		return emptyResult(s.Key(), s.Name())
	}
	return result
}

// Appearance is one stock's cross-strategy aggregate.
type Appearance struct {
	StockID     string   `json:"stock_id"`
	Appearances int      `json:"appearances"`
	AvgScore    float64  `json:"avg_score"`
	Strategies  []string `json:"strategies"`
}

// StockAppearances aggregates the stocks selected by at least
// minAppearances strategies, sorted by appearance count descending and
// average score descending on ties.
func (m *Manager) StockAppearances(results map[string]*Result, minAppearances int) []Appearance {
	counts := make(map[string]int)
	scoreSums := make(map[string]float64)
	strategies := make(map[string][]string)

	for _, key := range m.order {
		result, ok := results[key]
		if !ok || result.IsEmpty() {
			continue
		}
		for _, row := range result.Rows {
			counts[row.StockID]++
			scoreSums[row.StockID] += row.Score
			strategies[row.StockID] = append(strategies[row.StockID], result.StrategyName)
		}
	}

	out := make([]Appearance, 0, len(counts))
	for stock, n := range counts {
		if n < minAppearances {
			continue
		}
		out = append(out, Appearance{
			StockID:     stock,
			Appearances: n,
			AvgScore:    scoreSums[stock] / float64(n),
			Strategies:  strategies[stock],
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Appearances != out[j].Appearances {
			return out[i].Appearances > out[j].Appearances
		}
		if out[i].AvgScore != out[j].AvgScore {
			return out[i].AvgScore > out[j].AvgScore
		}
		return out[i].StockID < out[j].StockID
	})
	return out
}

// StrategySummary is one strategy's line in the batch summary.
type StrategySummary struct {
	Key        string `json:"key"`
	Name       string `json:"name"`
	StockCount int    `json:"stock_count"`
}

// Summary is the aggregate view of one batch run.
type Summary struct {
	TotalStrategies int               `json:"total_strategies"`
	Executed        int               `json:"executed"`
	WithResults     int               `json:"with_results"`
	TotalStocks     int               `json:"total_stocks"`
	Details         []StrategySummary `json:"details"`
}

// Summarize builds the batch summary for a RunAll result set.
func (m *Manager) Summarize(results map[string]*Result) *Summary {
	summary := &Summary{
		TotalStrategies: len(m.strategies),
		Executed:        len(results),
	}

	distinct := make(map[string]struct{})
	for _, key := range m.order {
		result, ok := results[key]
		if !ok {
			continue
		}
		count := 0
		if !result.IsEmpty() {
			summary.WithResults++
			count = len(result.Rows)
			for _, row := range result.Rows {
				distinct[row.StockID] = struct{}{}
			}
		}
		summary.Details = append(summary.Details, StrategySummary{
			Key:        key,
			Name:       m.strategies[key].Name(),
			StockCount: count,
		})
	}
	summary.TotalStocks = len(distinct)
	return summary
}
