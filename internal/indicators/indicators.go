// Package indicators computes single-series technical indicators for
// the market dashboard (MA, RSI, MACD, KD) on top of go-talib.
package indicators

import (
	"math"

	"github.com/markcheno/go-talib"
)

// Snapshot is the indicator panel for one price series. Indicators the
// history is too short for stay nil.
type Snapshot struct {
	StockID   string   `json:"stock_id,omitempty"`
	Price     float64  `json:"price"`
	MA5       *float64 `json:"ma_5,omitempty"`
	MA20      *float64 `json:"ma_20,omitempty"`
	MA60      *float64 `json:"ma_60,omitempty"`
	RSI       *float64 `json:"rsi,omitempty"`
	MACD      *float64 `json:"macd,omitempty"`
	Signal    *float64 `json:"signal,omitempty"`
	Histogram *float64 `json:"histogram,omitempty"`
	Trend     string   `json:"trend,omitempty"` // 多頭 / 空頭
	K         *float64 `json:"k,omitempty"`
	D         *float64 `json:"d,omitempty"`
}

// SMA returns the latest simple moving average, or nil when the series
// is shorter than the period.
func SMA(values []float64, period int) *float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	out := talib.Sma(values, period)
	return round2(out[len(out)-1])
}

// RSI returns the latest 14-style relative strength index.
func RSI(values []float64, period int) *float64 {
	if period <= 0 || len(values) < period+1 {
		return nil
	}
	out := talib.Rsi(values, period)
	return round2(out[len(out)-1])
}

// MACD returns the latest MACD line, signal line, and histogram using
// the conventional 12/26/9 parameters.
func MACD(values []float64) (macdLine, signal, histogram *float64) {
	const fast, slow, signalPeriod = 12, 26, 9
	if len(values) < slow+signalPeriod {
		return nil, nil, nil
	}
	m, s, h := talib.Macd(values, fast, slow, signalPeriod)
	return round2(m[len(m)-1]), round2(s[len(s)-1]), round2(h[len(h)-1])
}

// KD returns the latest stochastic K and D with the 9/3/3 parameters
// conventional in the Taiwan market.
func KD(high, low, close []float64) (k, d *float64) {
	const fastK, slowK, slowD = 9, 3, 3
	if len(close) < fastK+slowK+slowD || len(high) != len(close) || len(low) != len(close) {
		return nil, nil
	}
	ks, ds := talib.Stoch(high, low, close, fastK, slowK, talib.SMA, slowD, talib.SMA)
	return round2(ks[len(ks)-1]), round2(ds[len(ds)-1])
}

// Compute builds the full indicator snapshot for a close-price series.
func Compute(stockID string, close []float64) *Snapshot {
	snap := &Snapshot{StockID: stockID}
	if len(close) == 0 {
		return snap
	}
	snap.Price = close[len(close)-1]
	snap.MA5 = SMA(close, 5)
	snap.MA20 = SMA(close, 20)
	snap.MA60 = SMA(close, 60)
	snap.RSI = RSI(close, 14)
	snap.MACD, snap.Signal, snap.Histogram = MACD(close)
	if snap.Histogram != nil {
		if *snap.Histogram > 0 {
			snap.Trend = "多頭"
		} else {
			snap.Trend = "空頭"
		}
	}
	return snap
}

// ComputeOHLC extends Compute with the stochastic oscillator.
func ComputeOHLC(stockID string, high, low, close []float64) *Snapshot {
	snap := Compute(stockID, close)
	snap.K, snap.D = KD(high, low, close)
	return snap
}

func round2(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	r := math.Round(v*100) / 100
	return &r
}
